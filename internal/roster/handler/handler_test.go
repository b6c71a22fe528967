package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"rostersync/internal/roster"
	"rostersync/internal/staffauth"
	dErrors "rostersync/pkg/domain-errors"
)

const testAPIKey = "cron-trigger-key"

type mockService struct {
	mock.Mock
}

func (m *mockService) Sync(ctx context.Context, scopeID int64) (roster.Result, error) {
	args := m.Called(ctx, scopeID)
	return args.Get(0).(roster.Result), args.Error(1)
}

type RosterHandlerSuite struct {
	suite.Suite
	service *mockService
	router  chi.Router
	token   string
}

func (s *RosterHandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwt := staffauth.NewService("test-signing-key", "test-issuer", "test-audience")

	token, err := jwt.GenerateToken("staff-7", "admin", time.Hour)
	s.Require().NoError(err)
	s.token = token

	keyHash, err := bcrypt.GenerateFromPassword([]byte(testAPIKey), bcrypt.MinCost)
	s.Require().NoError(err)

	s.service = &mockService{}
	s.router = chi.NewRouter()
	New(s.service, logger, staffauth.NewMiddlewareAdapter(jwt), string(keyHash)).Register(s.router)
}

func TestRosterHandlerSuite(t *testing.T) {
	suite.Run(t, new(RosterHandlerSuite))
}

func (s *RosterHandlerSuite) doSync(scope, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/sync/roster/"+scope, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RosterHandlerSuite) TestSyncReturnsCounts() {
	s.service.On("Sync", mock.Anything, int64(2)).
		Return(roster.Result{Created: 3, Updated: 1, Deactivated: 2}, nil)

	w := s.doSync("2", s.token)
	s.Equal(http.StatusOK, w.Code)

	var resp map[string]int
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(3, resp["created"])
	s.Equal(1, resp["updated"])
	s.Equal(2, resp["deactivated"])
	s.Equal(0, resp["failed"])
	s.service.AssertExpectations(s.T())
}

func (s *RosterHandlerSuite) TestSyncRequiresToken() {
	w := s.doSync("2", "")
	s.Equal(http.StatusUnauthorized, w.Code)
	s.service.AssertNotCalled(s.T(), "Sync")
}

func (s *RosterHandlerSuite) TestSyncAcceptsAPIKey() {
	s.service.On("Sync", mock.Anything, int64(4)).
		Return(roster.Result{Created: 1}, nil)

	req := httptest.NewRequest(http.MethodPost, "/sync/roster/4", nil)
	req.Header.Set("X-Api-Key", testAPIKey)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusOK, w.Code)
	s.service.AssertExpectations(s.T())
}

func (s *RosterHandlerSuite) TestSyncRejectsBadAPIKey() {
	req := httptest.NewRequest(http.MethodPost, "/sync/roster/4", nil)
	req.Header.Set("X-Api-Key", "wrong-key")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	s.Equal(http.StatusUnauthorized, w.Code)
	s.service.AssertNotCalled(s.T(), "Sync")
}

func (s *RosterHandlerSuite) TestSyncRejectsBadScope() {
	w := s.doSync("not-a-number", s.token)
	s.Equal(http.StatusBadRequest, w.Code)
	s.service.AssertNotCalled(s.T(), "Sync")
}

func (s *RosterHandlerSuite) TestSyncMapsUnavailable() {
	s.service.On("Sync", mock.Anything, int64(2)).
		Return(roster.Result{}, dErrors.Wrap(errors.New("connection reset"), dErrors.CodeUnavailable, "failed to fetch authoritative roster"))

	w := s.doSync("2", s.token)
	s.Equal(http.StatusServiceUnavailable, w.Code)

	var resp map[string]string
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(string(dErrors.CodeUnavailable), resp["error"])
}
