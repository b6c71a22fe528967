package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"rostersync/internal/audit"
	"rostersync/internal/authority"
	authstore "rostersync/internal/authority/store"
	"rostersync/internal/fieldcrypt"
	"rostersync/internal/member/identity"
	membermodels "rostersync/internal/member/models"
	memberstore "rostersync/internal/member/store"
	"rostersync/internal/participation/models"
	recordstore "rostersync/internal/participation/store"
	"rostersync/internal/syncledger"
	ledgerstore "rostersync/internal/syncledger/store"
	dErrors "rostersync/pkg/domain-errors"
)

const (
	testGrouping = int64(100)
	testFamily   = int64(7)
	testScope    = int64(2)
)

type ReconcileSuite struct {
	suite.Suite
	ctx       context.Context
	codec     *fieldcrypt.Codec
	upstream  *authstore.InMemory
	members   *memberstore.InMemory
	records   *recordstore.InMemory
	ledger    *ledgerstore.InMemory
	publisher *audit.Memory
	service   *Service
}

func (s *ReconcileSuite) SetupTest() {
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.codec = fieldcrypt.New("test-secret", fieldcrypt.WithLogger(logger))
	s.upstream = authstore.NewInMemory()
	s.members = memberstore.NewInMemory()
	s.records = recordstore.NewInMemory()
	s.ledger = ledgerstore.NewInMemory()
	s.publisher = audit.NewMemory()

	resolver := identity.New(s.members, s.codec, logger)
	s.service = New(s.upstream, s.records, s.members, resolver, s.ledger,
		WithLogger(logger),
		WithAuditPublisher(s.publisher),
	)
}

func TestReconcileSuite(t *testing.T) {
	suite.Run(t, new(ReconcileSuite))
}

func (s *ReconcileSuite) seedUpstream(id int64, name string, status authority.Status) {
	nameEnc, err := s.codec.Encrypt(name)
	s.Require().NoError(err)
	phoneEnc, err := s.codec.Encrypt("010-1234-5678")
	s.Require().NoError(err)
	s.upstream.SetMember(authority.Member{
		ID:        id,
		AcademyID: testScope,
		NameEnc:   nameEnc,
		PhoneEnc:  phoneEnc,
		Status:    status,
	})
}

// seedMirror creates a mirror row tracking an external member and returns it.
func (s *ReconcileSuite) seedMirror(externalID int64, name string) *membermodels.Member {
	extID := externalID
	m := &membermodels.Member{
		ID:         uuid.New(),
		ExternalID: &extID,
		Name:       name,
		Status:     membermodels.StatusActive,
		ScopeID:    testScope,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	s.Require().NoError(s.members.Create(s.ctx, m))
	return m
}

func (s *ReconcileSuite) seedRecord(memberID uuid.UUID, typ models.ParticipantType) *models.Record {
	r := &models.Record{
		ID:         uuid.New(),
		GroupingID: testGrouping,
		FamilyID:   testFamily,
		MemberID:   &memberID,
		Type:       typ,
		CreatedAt:  time.Now(),
	}
	s.Require().NoError(s.records.Create(s.ctx, r))
	return r
}

func (s *ReconcileSuite) TestAddsActiveMembers() {
	s.seedUpstream(10, "Kim Minjun", authority.StatusActive)
	s.seedUpstream(11, "Lee Seoyun", authority.StatusActive)

	res, err := s.service.Reconcile(s.ctx, testGrouping, testFamily, testScope)
	s.Require().NoError(err)
	s.Equal(Result{Added: 2}, res)

	records, err := s.records.ListByGrouping(s.ctx, testGrouping)
	s.Require().NoError(err)
	s.Len(records, 2)
	for _, r := range records {
		s.Equal(models.TypeEnrolled, r.Type)
	}
}

func (s *ReconcileSuite) TestIdempotence() {
	s.seedUpstream(10, "Kim Minjun", authority.StatusActive)

	first, err := s.service.Reconcile(s.ctx, testGrouping, testFamily, testScope)
	s.Require().NoError(err)
	s.Equal(Result{Added: 1}, first)

	second, err := s.service.Reconcile(s.ctx, testGrouping, testFamily, testScope)
	s.Require().NoError(err)
	s.Equal(Result{}, second, "unchanged roster must be a no-op")
}

func (s *ReconcileSuite) TestRemovesEnrolledWhoLeftActiveSet() {
	s.seedUpstream(10, "Kim Minjun", authority.StatusActive)
	_, err := s.service.Reconcile(s.ctx, testGrouping, testFamily, testScope)
	s.Require().NoError(err)

	s.seedUpstream(10, "Kim Minjun", authority.StatusWithdrawn)
	res, err := s.service.Reconcile(s.ctx, testGrouping, testFamily, testScope)
	s.Require().NoError(err)
	s.Equal(Result{Removed: 1}, res)

	records, err := s.records.ListByGrouping(s.ctx, testGrouping)
	s.Require().NoError(err)
	s.Empty(records)
}

// TestManualRecordsProtected is the core safety property: rest, trial and
// applicant rows survive reconciliation even when their member is absent
// from, or inactive in, the authoritative set.
func (s *ReconcileSuite) TestManualRecordsProtected() {
	resting := s.seedMirror(20, "Park Jiho")
	s.seedRecord(resting.ID, models.TypeRest)

	trialing := s.seedMirror(21, "Choi Haeun")
	s.seedRecord(trialing.ID, models.TypeTrial)

	applicantID := int64(300)
	applicantRecord := &models.Record{
		ID:          uuid.New(),
		GroupingID:  testGrouping,
		FamilyID:    testFamily,
		ApplicantID: &applicantID,
		Type:        models.TypeApplicant,
		CreatedAt:   time.Now(),
	}
	s.Require().NoError(s.records.Create(s.ctx, applicantRecord))

	// None of the three referents is in the active set.
	res, err := s.service.Reconcile(s.ctx, testGrouping, testFamily, testScope)
	s.Require().NoError(err)
	s.Equal(Result{}, res)

	records, err := s.records.ListByGrouping(s.ctx, testGrouping)
	s.Require().NoError(err)
	s.Len(records, 3, "manually curated rows are never removed")
}

// TestFamilyDedup: a member already registered in a sibling grouping of the
// same family, under any participant type, is not enrolled again.
func (s *ReconcileSuite) TestFamilyDedup() {
	s.seedUpstream(10, "Kim Minjun", authority.StatusActive)

	// Member 10 already sits as a trial participant in a sibling grouping.
	mirror := s.seedMirror(10, "Kim Minjun")
	sibling := &models.Record{
		ID:         uuid.New(),
		GroupingID: testGrouping + 1,
		FamilyID:   testFamily,
		MemberID:   &mirror.ID,
		Type:       models.TypeTrial,
		CreatedAt:  time.Now(),
	}
	s.Require().NoError(s.records.Create(s.ctx, sibling))

	res, err := s.service.Reconcile(s.ctx, testGrouping, testFamily, testScope)
	s.Require().NoError(err)
	s.Equal(Result{}, res, "family-wide registration suppresses enrollment")

	records, err := s.records.ListByGrouping(s.ctx, testGrouping)
	s.Require().NoError(err)
	s.Empty(records)
}

// TestTrialNotAutoPromoted: the member behind a trial row in this grouping
// turning authoritative-active must not yield a second, enrolled row.
func (s *ReconcileSuite) TestTrialNotAutoPromoted() {
	s.seedUpstream(10, "Kim Minjun", authority.StatusActive)
	mirror := s.seedMirror(10, "Kim Minjun")
	trial := s.seedRecord(mirror.ID, models.TypeTrial)

	res, err := s.service.Reconcile(s.ctx, testGrouping, testFamily, testScope)
	s.Require().NoError(err)
	s.Equal(Result{}, res)

	got, err := s.records.FindByID(s.ctx, trial.ID)
	s.Require().NoError(err)
	s.Equal(models.TypeTrial, got.Type, "promotion is a staff decision, never automatic")
}

func (s *ReconcileSuite) TestEnrolledLocalOnlyMemberSkipped() {
	local := &membermodels.Member{
		ID:        uuid.New(),
		Name:      "Locally Added",
		Status:    membermodels.StatusActive,
		ScopeID:   testScope,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.Require().NoError(s.members.Create(s.ctx, local))
	enrolled := s.seedRecord(local.ID, models.TypeEnrolled)

	res, err := s.service.Reconcile(s.ctx, testGrouping, testFamily, testScope)
	s.Require().NoError(err)
	s.Equal(Result{}, res)

	_, err = s.records.FindByID(s.ctx, enrolled.ID)
	s.Require().NoError(err, "anomalous rows are preserved, not destroyed")
}

func (s *ReconcileSuite) TestFetchFailureAborts() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	failing := failingSource{err: errors.New("connection reset")}
	service := New(failing, s.records, s.members, identity.New(s.members, s.codec, logger), s.ledger)

	_, err := service.Reconcile(s.ctx, testGrouping, testFamily, testScope)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	runs, err := s.ledger.ListRecent(s.ctx, nil, 10)
	s.Require().NoError(err)
	s.Require().Len(runs, 1)
	s.Equal(syncledger.OutcomeFailed, runs[0].Outcome)
}

func (s *ReconcileSuite) TestLedgerAndAuditWritten() {
	s.seedUpstream(10, "Kim Minjun", authority.StatusActive)

	_, err := s.service.Reconcile(s.ctx, testGrouping, testFamily, testScope)
	s.Require().NoError(err)

	runs, err := s.ledger.ListRecent(s.ctx, nil, 10)
	s.Require().NoError(err)
	s.Require().Len(runs, 1)
	s.Equal(syncledger.KindParticipation, runs[0].Kind)
	s.Require().NotNil(runs[0].GroupingID)
	s.Equal(testGrouping, *runs[0].GroupingID)
	s.Equal(1, runs[0].Added)

	events := s.publisher.Events()
	s.Require().Len(events, 1)
	s.Equal(audit.ActionParticipationReconciled, events[0].Action)
}

func (s *ReconcileSuite) TestListMembersIsPureRead() {
	mirror := s.seedMirror(10, "Kim Minjun")
	s.seedRecord(mirror.ID, models.TypeRest)

	entries, err := s.service.ListMembers(s.ctx, testGrouping)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Require().NotNil(entries[0].Member)
	s.Equal("Kim Minjun", entries[0].Member.Name)

	// Upstream could say anything; a read never reconciles.
	records, err := s.records.ListByGrouping(s.ctx, testGrouping)
	s.Require().NoError(err)
	s.Len(records, 1)
}

func (s *ReconcileSuite) TestAddManualRecordRejectsEnrolled() {
	mirror := s.seedMirror(10, "Kim Minjun")
	_, err := s.service.AddManualRecord(s.ctx, &models.Record{
		GroupingID: testGrouping,
		FamilyID:   testFamily,
		MemberID:   &mirror.ID,
		Type:       models.TypeEnrolled,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ReconcileSuite) TestAddManualRecordDuplicateConflicts() {
	mirror := s.seedMirror(10, "Kim Minjun")
	_, err := s.service.AddManualRecord(s.ctx, &models.Record{
		GroupingID: testGrouping,
		FamilyID:   testFamily,
		MemberID:   &mirror.ID,
		Type:       models.TypeRest,
	})
	s.Require().NoError(err)

	_, err = s.service.AddManualRecord(s.ctx, &models.Record{
		GroupingID: testGrouping,
		FamilyID:   testFamily,
		MemberID:   &mirror.ID,
		Type:       models.TypeTrial,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ReconcileSuite) TestPromote() {
	mirror := s.seedMirror(10, "Kim Minjun")
	trial := s.seedRecord(mirror.ID, models.TypeTrial)

	promoted, err := s.service.Promote(s.ctx, trial.ID)
	s.Require().NoError(err)
	s.Equal(models.TypeEnrolled, promoted.Type)

	got, err := s.records.FindByID(s.ctx, trial.ID)
	s.Require().NoError(err)
	s.Equal(models.TypeEnrolled, got.Type)
}

func (s *ReconcileSuite) TestPromoteRejectsNonTrial() {
	mirror := s.seedMirror(10, "Kim Minjun")
	rest := s.seedRecord(mirror.ID, models.TypeRest)

	_, err := s.service.Promote(s.ctx, rest.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ReconcileSuite) TestPromoteUnknownRecord() {
	_, err := s.service.Promote(s.ctx, uuid.New())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

type failingSource struct {
	err error
}

func (f failingSource) FetchActiveRoster(context.Context, int64) ([]authority.Member, error) {
	return nil, f.err
}
