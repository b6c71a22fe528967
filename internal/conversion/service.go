// Package conversion turns a pending applicant into a full member across the
// authoritative store and the local mirror. The two stores have no shared
// transaction coordinator, so the pipeline is a saga: the authoritative
// creation commits first, the whole local phase runs in one transaction, and
// a failed local phase compensates by marking the new member for cleanup
// instead of deleting it.
package conversion

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
	"rostersync/internal/fieldcrypt"
	"rostersync/internal/member/identity"
	participationmodels "rostersync/internal/participation/models"
	"rostersync/internal/platform/metrics"
	"rostersync/internal/syncledger"
	dErrors "rostersync/pkg/domain-errors"
	"rostersync/pkg/platform/sentinel"
	"rostersync/pkg/requestcontext"
)

// Fixed enrollment defaults applied to every converted applicant.
const (
	defaultEnrollType = "regular"
)

// RecordStore is the membership-record surface the local phase needs.
type RecordStore interface {
	Update(ctx context.Context, r *participationmodels.Record) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByApplicant(ctx context.Context, applicantID int64) ([]participationmodels.Record, error)
}

// MeasurementStore is the measurement surface the local phase needs.
type MeasurementStore interface {
	MigrateSubject(ctx context.Context, applicantID int64, memberID uuid.UUID) (int, error)
}

// MirrorStores bundles the mirror-side stores bound to one transaction.
type MirrorStores struct {
	Members      identity.MemberStore
	Records      RecordStore
	Measurements MeasurementStore
}

// MirrorTx runs fn inside a single mirror-database transaction. fn's stores
// are transaction-scoped; a returned error rolls everything back.
type MirrorTx interface {
	RunInTx(ctx context.Context, fn func(stores MirrorStores) error) error
}

// LedgerStore records one row per conversion attempt.
type LedgerStore interface {
	Append(ctx context.Context, run syncledger.Run) error
}

// Result carries the identifiers a successful conversion produced.
type Result struct {
	LocalMemberID    uuid.UUID
	ExternalMemberID int64
}

// Service is the conversion pipeline.
type Service struct {
	upstream  authority.Store
	mirror    MirrorTx
	codec     *fieldcrypt.Codec
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
func New(upstream authority.Store, mirror MirrorTx, codec *fieldcrypt.Codec, ledger LedgerStore, opts ...Option) *Service {
	s := &Service{
		upstream:  upstream,
		mirror:    mirror,
		codec:     codec,
		ledger:    ledger,
		logger:    slog.Default(),
		publisher: audit.Nop{},
		tracer:    otel.Tracer("rostersync/conversion"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Convert registers applicantID as a member. The status guard runs before
// any mutation, so a second call returns Conflict and the whole operation is
// retryable after a transient failure.
func (s *Service) Convert(ctx context.Context, applicantID int64) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "conversion.Convert",
		trace.WithAttributes(attribute.Int64("applicant_id", applicantID)))
	defer span.End()

	started := time.Now()

	applicant, err := s.upstream.GetApplicant(ctx, applicantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Result{}, dErrors.New(dErrors.CodeNotFound, "applicant not found")
		}
		return Result{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load applicant")
	}
	if applicant.Status == authority.ApplicantRegistered {
		return Result{}, dErrors.New(dErrors.CodeConflict, "applicant is already registered")
	}

	// Phase 1: authoritative creation, committed on its own. PII moves as
	// ciphertext; the pipeline never decrypts on the authoritative side.
	externalID, err := s.upstream.CreateMember(ctx, &authority.Member{
		AcademyID:  applicant.AcademyID,
		NameEnc:    applicant.NameEnc,
		PhoneEnc:   applicant.PhoneEnc,
		Status:     authority.StatusActive,
		EnrollType: defaultEnrollType,
		StartDate:  requestcontext.Now(ctx),
	})
	if err != nil {
		s.recordRun(ctx, applicant, syncledger.OutcomeFailed, err, started)
		return Result{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to create authoritative member")
	}

	// Phase 2: everything mirror-side in one transaction.
	var localID uuid.UUID
	err = s.mirror.RunInTx(ctx, func(stores MirrorStores) error {
		resolver := identity.New(stores.Members, s.codec, s.logger)
		id, err := resolver.ResolveOrCreate(ctx, authority.Member{
			ID:        externalID,
			AcademyID: applicant.AcademyID,
			NameEnc:   applicant.NameEnc,
			PhoneEnc:  applicant.PhoneEnc,
			Status:    authority.StatusActive,
		})
		if err != nil {
			return err
		}
		localID = id

		if _, err := stores.Measurements.MigrateSubject(ctx, applicantID, localID); err != nil {
			return err
		}
		return s.repointRecords(ctx, stores.Records, applicantID, localID)
	})
	if err != nil {
		s.compensate(ctx, applicant.AcademyID, externalID, err)
		s.recordRun(ctx, applicant, syncledger.OutcomeFailed, err, started)
		return Result{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "conversion local phase failed")
	}

	// Final step: flip the applicant with the forward pointer. A failure
	// here leaves both members in place and the applicant pending; the
	// retry path resolves the existing mirror row instead of duplicating.
	if err := s.upstream.RegisterApplicant(ctx, applicantID, externalID); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return Result{}, dErrors.New(dErrors.CodeConflict, "applicant is already registered")
		}
		s.recordRun(ctx, applicant, syncledger.OutcomeFailed, err, started)
		return Result{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to register applicant")
	}

	s.recordRun(ctx, applicant, syncledger.OutcomeCompleted, nil, started)
	s.logger.InfoContext(ctx, "applicant converted",
		"applicant_id", applicantID,
		"external_member_id", externalID,
		"local_member_id", localID,
	)
	return Result{LocalMemberID: localID, ExternalMemberID: externalID}, nil
}

// repointRecords moves the applicant's membership records onto the new
// member as enrolled rows. When the member is already registered in one of
// those groupings, the applicant row is a duplicate and is dropped.
func (s *Service) repointRecords(ctx context.Context, records RecordStore, applicantID int64, memberID uuid.UUID) error {
	rows, err := records.ListByApplicant(ctx, applicantID)
	if err != nil {
		return err
	}
	for i := range rows {
		r := rows[i]
		r.ApplicantID = nil
		r.MemberID = &memberID
		r.Type = participationmodels.TypeEnrolled
		if err := records.Update(ctx, &r); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				if err := records.Delete(ctx, r.ID); err != nil {
					return err
				}
				s.logger.InfoContext(ctx, "dropped duplicate applicant record during conversion",
					"record_id", r.ID, "grouping_id", r.GroupingID)
				continue
			}
			return err
		}
	}
	return nil
}

func (s *Service) compensate(ctx context.Context, scopeID, externalID int64, cause error) {
	if err := s.upstream.MarkMemberPendingCleanup(ctx, externalID); err != nil {
		s.logger.ErrorContext(ctx, "compensation failed, authoritative member orphaned",
			"external_member_id", externalID, "error", err, "cause", cause)
		return
	}
	if s.metrics != nil {
		s.metrics.Conversions.WithLabelValues("compensated").Inc()
	}
	event := audit.Enrich(ctx, audit.Event{
		Action:  audit.ActionConversionCompensated,
		ScopeID: scopeID,
		Outcome: string(syncledger.OutcomeFailed),
	})
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "error", err)
	}
	s.logger.WarnContext(ctx, "conversion compensated, member marked for cleanup",
		"external_member_id", externalID, "cause", cause)
}

func (s *Service) recordRun(ctx context.Context, applicant *authority.Applicant, outcome syncledger.Outcome, cause error, started time.Time) {
	run := syncledger.Run{
		ID:         uuid.New(),
		Kind:       syncledger.KindConversion,
		ScopeID:    applicant.AcademyID,
		Outcome:    outcome,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if cause != nil {
		run.Error = cause.Error()
	}
	if s.ledger != nil {
		if err := s.ledger.Append(ctx, run); err != nil {
			s.logger.WarnContext(ctx, "sync ledger append failed", "error", err)
		}
	}
	if s.metrics != nil {
		s.metrics.Conversions.WithLabelValues(string(outcome)).Inc()
	}
	if outcome == syncledger.OutcomeCompleted {
		event := audit.Enrich(ctx, audit.Event{
			Action:      audit.ActionApplicantConverted,
			ScopeID:     applicant.AcademyID,
			ApplicantID: applicant.ID,
			Outcome:     string(outcome),
		})
		if err := s.publisher.Emit(ctx, event); err != nil {
			s.logger.WarnContext(ctx, "audit emit failed", "error", err)
		}
	}
}
