package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"rostersync/internal/participation/models"
	"rostersync/internal/participation/service"
	"rostersync/internal/staffauth"
	dErrors "rostersync/pkg/domain-errors"
	"rostersync/pkg/testutil"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) ListMembers(ctx context.Context, groupingID int64) ([]service.Entry, error) {
	args := m.Called(ctx, groupingID)
	return args.Get(0).([]service.Entry), args.Error(1)
}

func (m *mockService) Reconcile(ctx context.Context, groupingID, familyID, scopeID int64) (service.Result, error) {
	args := m.Called(ctx, groupingID, familyID, scopeID)
	return args.Get(0).(service.Result), args.Error(1)
}

func (m *mockService) AddManualRecord(ctx context.Context, record *models.Record) (*models.Record, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Record), args.Error(1)
}

func (m *mockService) Promote(ctx context.Context, recordID uuid.UUID) (*models.Record, error) {
	args := m.Called(ctx, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Record), args.Error(1)
}

type ParticipationHandlerSuite struct {
	suite.Suite
	service *mockService
	router  chi.Router
	token   string
}

func (s *ParticipationHandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jwt := staffauth.NewService("test-signing-key", "test-issuer", "test-audience")

	token, err := jwt.GenerateToken("staff-7", "admin", time.Hour)
	s.Require().NoError(err)
	s.token = token

	s.service = &mockService{}
	s.router = chi.NewRouter()
	New(s.service, logger, staffauth.NewMiddlewareAdapter(jwt)).Register(s.router)
}

func TestParticipationHandlerSuite(t *testing.T) {
	suite.Run(t, new(ParticipationHandlerSuite))
}

func (s *ParticipationHandlerSuite) authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer "+s.token)
	return req
}

func (s *ParticipationHandlerSuite) TestReconcileReturnsCounts() {
	s.service.On("Reconcile", mock.Anything, int64(100), int64(7), int64(2)).
		Return(service.Result{Added: 2, Removed: 1}, nil)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/groupings/100/reconcile",
		map[string]int64{"family_id": 7, "scope_id": 2})
	rr := testutil.DoRequest(s.router, s.authed(req))

	s.Equal(http.StatusOK, rr.Code)
	resp := testutil.UnmarshalResponse[map[string]int](s.T(), rr)
	s.Equal(2, (*resp)["added"])
	s.Equal(1, (*resp)["removed"])
	s.service.AssertExpectations(s.T())
}

func (s *ParticipationHandlerSuite) TestReconcileRequiresFamilyAndScope() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/groupings/100/reconcile",
		map[string]int64{"family_id": 7})
	rr := testutil.DoRequest(s.router, s.authed(req))

	s.Equal(http.StatusBadRequest, rr.Code)
	s.service.AssertNotCalled(s.T(), "Reconcile")
}

func (s *ParticipationHandlerSuite) TestListMembersRequiresToken() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/groupings/100/members")
	rr := testutil.DoRequest(s.router, req)

	s.Equal(http.StatusUnauthorized, rr.Code)
	s.service.AssertNotCalled(s.T(), "ListMembers")
}

func (s *ParticipationHandlerSuite) TestAddRecordConflictMapped() {
	s.service.On("AddManualRecord", mock.Anything, mock.Anything).
		Return(nil, dErrors.New(dErrors.CodeConflict, "participant is already registered in this grouping"))

	memberID := uuid.New()
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/groupings/100/records",
		map[string]any{"family_id": 7, "participant_type": "trial", "member_id": memberID})
	rr := testutil.DoRequest(s.router, s.authed(req))

	s.Equal(http.StatusConflict, rr.Code)
	errResp := testutil.UnmarshalErrorResponse(s.T(), rr)
	s.Equal(string(dErrors.CodeConflict), errResp["error"])
}

func (s *ParticipationHandlerSuite) TestPromote() {
	recordID := uuid.New()
	memberID := uuid.New()
	s.service.On("Promote", mock.Anything, recordID).
		Return(&models.Record{
			ID:         recordID,
			GroupingID: 100,
			FamilyID:   7,
			MemberID:   &memberID,
			Type:       models.TypeEnrolled,
			CreatedAt:  time.Now(),
		}, nil)

	req := testutil.NewRequest(s.T(), http.MethodPost, "/records/"+recordID.String()+"/promote")
	rr := testutil.DoRequest(s.router, s.authed(req))

	s.Equal(http.StatusOK, rr.Code)
	resp := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
	s.Equal("enrolled", (*resp)["participant_type"])
}
