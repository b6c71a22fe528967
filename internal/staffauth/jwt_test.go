package staffauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "rostersync/pkg/domain-errors"
)

var jwtService = NewService(
	"test-signing-key",
	"test-issuer",
	"test-audience",
)

func Test_GenerateToken(t *testing.T) {
	token, err := jwtService.GenerateToken("staff-7", "admin", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "staff-7", claims.StaffID)
	assert.Equal(t, "admin", claims.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	token, err := jwtService.GenerateToken("staff-7", "admin", -time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Equal(t, "token has expired", dErrors.MessageOf(err))
}

func Test_ValidateToken_WrongKey(t *testing.T) {
	other := NewService("other-key", "test-issuer", "test-audience")
	token, err := other.GenerateToken("staff-7", "admin", time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
