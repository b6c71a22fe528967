// Package service reconciles a grouping's membership against the
// authoritative active roster. Reading a grouping and reconciling it are
// separate operations: inspection never mutates.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rostersync/internal/audit"
	"rostersync/internal/authority"
	membermodels "rostersync/internal/member/models"
	"rostersync/internal/participation/models"
	"rostersync/internal/participation/store"
	"rostersync/internal/platform/metrics"
	"rostersync/internal/syncledger"
	dErrors "rostersync/pkg/domain-errors"
	"rostersync/pkg/platform/sentinel"
	"rostersync/pkg/requestcontext"
)

// MemberReader resolves mirror rows referenced by membership records.
type MemberReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*membermodels.Member, error)
}

// Resolver maps an authoritative member onto a mirror row, creating it on
// first encounter.
type Resolver interface {
	ResolveOrCreate(ctx context.Context, ext authority.Member) (uuid.UUID, error)
}

// LedgerStore records one row per reconciliation run.
type LedgerStore interface {
	Append(ctx context.Context, run syncledger.Run) error
}

// Result reports what a reconciliation run actually did.
type Result struct {
	Added   int
	Removed int
	Failed  int
}

// Entry is one row of the pure membership read, with the referenced member
// joined in when present.
type Entry struct {
	Record models.Record
	Member *membermodels.Member
}

// Service reconciles grouping membership.
type Service struct {
	source    authority.RosterSource
	records   store.Store
	members   MemberReader
	resolver  Resolver
	ledger    LedgerStore
	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher audit.Publisher
	tracer    trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// New constructs a Service.
func New(source authority.RosterSource, records store.Store, members MemberReader, resolver Resolver, ledger LedgerStore, opts ...Option) *Service {
	s := &Service{
		source:    source,
		records:   records,
		members:   members,
		resolver:  resolver,
		ledger:    ledger,
		logger:    slog.Default(),
		publisher: audit.Nop{},
		tracer:    otel.Tracer("rostersync/participation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListMembers is the pure read: current records with their members joined.
// It never reconciles; callers choose when that cost is paid.
func (s *Service) ListMembers(ctx context.Context, groupingID int64) ([]Entry, error) {
	records, err := s.records.ListByGrouping(ctx, groupingID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list membership records")
	}
	entries := make([]Entry, 0, len(records))
	for _, r := range records {
		e := Entry{Record: r}
		if r.MemberID != nil {
			m, err := s.members.FindByID(ctx, *r.MemberID)
			if err == nil {
				e.Member = m
			} else if !errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load member for record")
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Reconcile brings groupingID's enrolled membership into agreement with the
// authoritative active set for scopeID, deduplicating across the whole
// family. Manually curated rows (trial, rest, applicant) are never touched,
// whatever their referent's authoritative status. Removals apply before
// additions, in one pass.
func (s *Service) Reconcile(ctx context.Context, groupingID, familyID, scopeID int64) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "participation.Reconcile",
		trace.WithAttributes(
			attribute.Int64("grouping_id", groupingID),
			attribute.Int64("family_id", familyID),
			attribute.Int64("scope_id", scopeID),
		))
	defer span.End()

	started := time.Now()
	now := requestcontext.Now(ctx)

	roster, err := s.source.FetchActiveRoster(ctx, scopeID)
	if err != nil {
		s.appendLedger(ctx, syncledger.Run{
			ID: uuid.New(), Kind: syncledger.KindParticipation, ScopeID: scopeID, GroupingID: &groupingID,
			Outcome: syncledger.OutcomeFailed, Error: err.Error(),
			StartedAt: started, FinishedAt: time.Now(),
		})
		return Result{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to fetch authoritative roster")
	}

	activeByID := make(map[int64]authority.Member, len(roster))
	for _, ext := range roster {
		if ext.ID == 0 || ext.Status.Terminal() {
			continue
		}
		activeByID[ext.ID] = ext
	}

	registered, err := s.registeredExternalIDs(ctx, familyID)
	if err != nil {
		return Result{}, err
	}

	var result Result

	// Removals first: enrolled rows whose member left the active set.
	grouping, err := s.records.ListByGrouping(ctx, groupingID)
	if err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list grouping records")
	}
	for _, r := range grouping {
		if r.Type.Manual() || r.MemberID == nil {
			continue
		}
		m, err := s.members.FindByID(ctx, *r.MemberID)
		if err != nil {
			result.Failed++
			s.logger.ErrorContext(ctx, "loading member for enrolled record failed",
				"record_id", r.ID, "error", err)
			continue
		}
		if !m.ExternallyTracked() {
			// An enrolled row pointing at a locally-originated member should
			// not exist; leave it alone rather than destroy local state.
			s.logger.WarnContext(ctx, "enrolled record references local-only member, skipping",
				"record_id", r.ID, "member_id", m.ID)
			continue
		}
		if _, stillActive := activeByID[*m.ExternalID]; stillActive {
			continue
		}
		if err := s.records.Delete(ctx, r.ID); err != nil {
			result.Failed++
			s.logger.ErrorContext(ctx, "removing enrolled record failed", "record_id", r.ID, "error", err)
			continue
		}
		result.Removed++
	}

	// Additions: active members not yet registered anywhere in the family.
	for extID, ext := range activeByID {
		if _, taken := registered[extID]; taken {
			continue
		}
		memberID, err := s.resolver.ResolveOrCreate(ctx, ext)
		if err != nil {
			result.Failed++
			s.logger.ErrorContext(ctx, "resolving member for enrollment failed",
				"external_id", extID, "error", err)
			continue
		}
		record := &models.Record{
			ID:         uuid.New(),
			GroupingID: groupingID,
			FamilyID:   familyID,
			MemberID:   &memberID,
			Type:       models.TypeEnrolled,
			CreatedAt:  now,
		}
		if err := s.records.Create(ctx, record); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				// A concurrent reconcile enrolled this member first.
				continue
			}
			result.Failed++
			s.logger.ErrorContext(ctx, "creating enrolled record failed",
				"external_id", extID, "error", err)
			continue
		}
		result.Added++
	}

	s.recordRun(ctx, groupingID, familyID, scopeID, result, started)
	return result, nil
}

// AddManualRecord registers a staff-curated row. Enrolled rows are managed
// by reconciliation and cannot be created here.
func (s *Service) AddManualRecord(ctx context.Context, record *models.Record) (*models.Record, error) {
	if record.Type == models.TypeEnrolled {
		return nil, dErrors.New(dErrors.CodeValidation, "enrolled records are managed by reconciliation")
	}
	record.ID = uuid.New()
	record.CreatedAt = requestcontext.Now(ctx)
	if err := record.Validate(); err != nil {
		return nil, err
	}
	if err := s.records.Create(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "participant is already registered in this grouping")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to create membership record")
	}
	return record, nil
}

// Promote flips a trial record to enrolled. The syncer never does this on
// its own: a trial member turning authoritative-active stays trial until a
// staff member promotes them explicitly.
func (s *Service) Promote(ctx context.Context, recordID uuid.UUID) (*models.Record, error) {
	record, err := s.records.FindByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "membership record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load membership record")
	}
	if record.Type != models.TypeTrial {
		return nil, dErrors.New(dErrors.CodeValidation, "only trial records can be promoted")
	}
	if record.MemberID == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "record does not reference a member")
	}
	m, err := s.members.FindByID(ctx, *record.MemberID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load member")
	}
	if !m.ExternallyTracked() {
		return nil, dErrors.New(dErrors.CodeValidation, "member is not tracked by the authoritative roster")
	}

	record.Type = models.TypeEnrolled
	if err := s.records.Update(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to promote record")
	}
	return record, nil
}

// registeredExternalIDs collects the external ids already referenced by any
// record in the family, regardless of participant type or grouping.
func (s *Service) registeredExternalIDs(ctx context.Context, familyID int64) (map[int64]struct{}, error) {
	records, err := s.records.ListByFamily(ctx, familyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list family records")
	}
	out := make(map[int64]struct{}, len(records))
	for _, r := range records {
		if r.MemberID == nil {
			continue
		}
		m, err := s.members.FindByID(ctx, *r.MemberID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load member for dedup")
		}
		if m.ExternalID != nil {
			out[*m.ExternalID] = struct{}{}
		}
	}
	return out, nil
}

func (s *Service) recordRun(ctx context.Context, groupingID, familyID, scopeID int64, result Result, started time.Time) {
	s.appendLedger(ctx, syncledger.Run{
		ID:         uuid.New(),
		Kind:       syncledger.KindParticipation,
		ScopeID:    scopeID,
		GroupingID: &groupingID,
		Added:      result.Added,
		Removed:    result.Removed,
		Failed:     result.Failed,
		Outcome:    syncledger.OutcomeCompleted,
		StartedAt:  started,
		FinishedAt: time.Now(),
	})
	if s.metrics != nil {
		s.metrics.ParticipationAdded.Add(float64(result.Added))
		s.metrics.ParticipationRemoved.Add(float64(result.Removed))
	}
	event := audit.Enrich(ctx, audit.Event{
		Action:     audit.ActionParticipationReconciled,
		ScopeID:    scopeID,
		GroupingID: groupingID,
		Added:      result.Added,
		Removed:    result.Removed,
		Failed:     result.Failed,
		Outcome:    string(syncledger.OutcomeCompleted),
	})
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "error", err)
	}
	s.logger.InfoContext(ctx, "participation reconciled",
		"grouping_id", groupingID,
		"family_id", familyID,
		"added", result.Added,
		"removed", result.Removed,
		"failed", result.Failed,
	)
}

func (s *Service) appendLedger(ctx context.Context, run syncledger.Run) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Append(ctx, run); err != nil {
		s.logger.WarnContext(ctx, "sync ledger append failed", "error", err)
	}
}
