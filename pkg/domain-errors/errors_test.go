package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	err := New(CodeConflict, "applicant already registered")
	assert.True(t, HasCode(err, CodeConflict))
	assert.False(t, HasCode(err, CodeNotFound))

	wrapped := Wrap(err, CodeInternal, "conversion failed")
	assert.True(t, HasCode(wrapped, CodeInternal))
	assert.True(t, HasCode(wrapped, CodeConflict), "inner codes remain visible")

	assert.False(t, HasCode(errors.New("plain"), CodeInternal))
	assert.False(t, HasCode(nil, CodeInternal))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeUnavailable, "roster fetch failed")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeUnavailable, CodeOf(err))
	assert.Equal(t, "roster fetch failed", MessageOf(err))

	assert.Nil(t, Wrap(nil, CodeInternal, "ignored"))
}

func TestWrapWithFmtChain(t *testing.T) {
	inner := New(CodeNotFound, "grouping not found")
	outer := fmt.Errorf("reconcile: %w", inner)
	assert.True(t, HasCode(outer, CodeNotFound))
}

func TestToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ToHTTPStatus(CodeValidation))
	assert.Equal(t, http.StatusNotFound, ToHTTPStatus(CodeNotFound))
	assert.Equal(t, http.StatusConflict, ToHTTPStatus(CodeConflict))
	assert.Equal(t, http.StatusUnauthorized, ToHTTPStatus(CodeUnauthorized))
	assert.Equal(t, http.StatusServiceUnavailable, ToHTTPStatus(CodeUnavailable))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(CodeInternal))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(Code("unknown")))
}
