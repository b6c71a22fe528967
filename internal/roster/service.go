// Package roster reconciles the local mirror against the authoritative
// active roster for a scope. Sync is pull-based and request-triggered; any
// number of concurrent triggers for the same scope are safe because every
// mutation is an idempotent upsert or guarded by a unique constraint.
package roster

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"rostersync/internal/audit"
	"rostersync/internal/authority"
	"rostersync/internal/fieldcrypt"
	"rostersync/internal/member/identity"
	"rostersync/internal/member/models"
	"rostersync/internal/platform/metrics"
	"rostersync/internal/syncledger"
	dErrors "rostersync/pkg/domain-errors"
	"rostersync/pkg/platform/sentinel"
	"rostersync/pkg/requestcontext"
)

const defaultApplyConcurrency = 8

// Result reports what a sync run actually did. Failed counts rows whose
// mutation errored and was skipped; the batch itself still completes.
type Result struct {
	Created     int
	Updated     int
	Deactivated int
	Failed      int
}

// MemberStore is the mirror surface sync needs.
type MemberStore interface {
	FindByExternalID(ctx context.Context, externalID int64) (*models.Member, error)
	Update(ctx context.Context, m *models.Member) error
	ListActiveExternal(ctx context.Context, scopeID int64) ([]models.Member, error)
	Deactivate(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Resolver creates the mirror row for a first-seen authoritative member.
type Resolver interface {
	ResolveOrCreate(ctx context.Context, ext authority.Member) (uuid.UUID, error)
}

// LedgerStore records one row per run.
type LedgerStore interface {
	Append(ctx context.Context, run syncledger.Run) error
}

// Service implements roster synchronization for one mirror store.
type Service struct {
	source      authority.RosterSource
	members     MemberStore
	resolver    Resolver
	codec       *fieldcrypt.Codec
	ledger      LedgerStore
	logger      *slog.Logger
	metrics     *metrics.Metrics
	publisher   audit.Publisher
	tracer      trace.Tracer
	concurrency int
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

// WithApplyConcurrency bounds how many row mutations run in parallel.
func WithApplyConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// New constructs a Service.
func New(source authority.RosterSource, members MemberStore, resolver Resolver, codec *fieldcrypt.Codec, ledger LedgerStore, opts ...Option) *Service {
	s := &Service{
		source:      source,
		members:     members,
		resolver:    resolver,
		codec:       codec,
		ledger:      ledger,
		logger:      slog.Default(),
		publisher:   audit.Nop{},
		tracer:      otel.Tracer("rostersync/roster"),
		concurrency: defaultApplyConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync brings the mirror for scopeID into agreement with the authoritative
// active set. The fetch happens before any local write and no transaction is
// held across it; each row mutation is then attempted independently, so one
// bad row is logged and counted without aborting the batch. Running Sync
// twice against an unchanged roster reports all-zero counts on the second run.
func (s *Service) Sync(ctx context.Context, scopeID int64) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "roster.Sync",
		trace.WithAttributes(attribute.Int64("scope_id", scopeID)))
	defer span.End()

	started := time.Now()
	now := requestcontext.Now(ctx)

	roster, err := s.source.FetchActiveRoster(ctx, scopeID)
	if err != nil {
		s.appendLedger(ctx, syncledger.Run{
			ID: uuid.New(), Kind: syncledger.KindRoster, ScopeID: scopeID,
			Outcome: syncledger.OutcomeFailed, Error: err.Error(),
			StartedAt: started, FinishedAt: time.Now(),
		})
		return Result{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to fetch authoritative roster")
	}

	var created, updated, deactivated, failed atomic.Int64

	active := make(map[int64]struct{}, len(roster))
	group := errgroup.Group{}
	group.SetLimit(s.concurrency)

	for _, ext := range roster {
		if ext.ID == 0 {
			s.logger.WarnContext(ctx, "skipping roster entry without external id", "scope_id", scopeID)
			failed.Add(1)
			continue
		}
		if ext.Status.Terminal() {
			// Excluded from the active set by contract; a terminal entry in
			// the payload is an upstream bug, not a reason to mirror it.
			s.logger.WarnContext(ctx, "skipping terminal-status roster entry",
				"scope_id", scopeID, "external_id", ext.ID, "status", ext.Status)
			failed.Add(1)
			continue
		}
		active[ext.ID] = struct{}{}

		group.Go(func() error {
			outcome, err := s.applyRosterEntry(ctx, ext, now)
			switch {
			case err != nil:
				failed.Add(1)
				s.logger.ErrorContext(ctx, "roster row sync failed",
					"scope_id", scopeID, "external_id", ext.ID, "error", err)
			case outcome == rowCreated:
				created.Add(1)
			case outcome == rowUpdated:
				updated.Add(1)
			}
			return nil
		})
	}
	_ = group.Wait()

	// Deactivation pass: active mirror rows whose external id vanished from
	// the authoritative active set. Soft-deactivate only, never delete.
	current, err := s.members.ListActiveExternal(ctx, scopeID)
	if err != nil {
		failed.Add(1)
		s.logger.ErrorContext(ctx, "listing active mirror members failed", "scope_id", scopeID, "error", err)
	} else {
		for _, m := range current {
			if _, stillActive := active[*m.ExternalID]; stillActive {
				continue
			}
			if err := s.members.Deactivate(ctx, m.ID, now); err != nil {
				failed.Add(1)
				s.logger.ErrorContext(ctx, "deactivating mirror member failed",
					"scope_id", scopeID, "member_id", m.ID, "error", err)
				continue
			}
			deactivated.Add(1)
		}
	}

	result := Result{
		Created:     int(created.Load()),
		Updated:     int(updated.Load()),
		Deactivated: int(deactivated.Load()),
		Failed:      int(failed.Load()),
	}
	s.recordRun(ctx, scopeID, result, started)
	s.logger.InfoContext(ctx, "roster sync completed",
		"scope_id", scopeID,
		"created", result.Created,
		"updated", result.Updated,
		"deactivated", result.Deactivated,
		"failed", result.Failed,
	)
	return result, nil
}

type rowOutcome int

const (
	rowUnchanged rowOutcome = iota
	rowCreated
	rowUpdated
)

func (s *Service) applyRosterEntry(ctx context.Context, ext authority.Member, now time.Time) (rowOutcome, error) {
	existing, err := s.members.FindByExternalID(ctx, ext.ID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return rowUnchanged, err
		}
		if _, createErr := s.resolver.ResolveOrCreate(ctx, ext); createErr != nil {
			return rowUnchanged, createErr
		}
		return rowCreated, nil
	}

	status, err := identity.MapStatus(ext.Status)
	if err != nil {
		return rowUnchanged, err
	}
	name := s.codec.Decrypt(ext.NameEnc)
	phone := s.codec.Decrypt(ext.PhoneEnc)

	if existing.Name == name && existing.Phone == phone && existing.Status == status && existing.ScopeID == ext.AcademyID {
		return rowUnchanged, nil
	}

	existing.Name = name
	existing.Phone = phone
	existing.Status = status
	existing.ScopeID = ext.AcademyID
	existing.UpdatedAt = now
	if status == models.StatusActive {
		existing.DeactivatedAt = nil
	}
	if err := s.members.Update(ctx, existing); err != nil {
		return rowUnchanged, err
	}
	return rowUpdated, nil
}

func (s *Service) recordRun(ctx context.Context, scopeID int64, result Result, started time.Time) {
	s.appendLedger(ctx, syncledger.Run{
		ID:          uuid.New(),
		Kind:        syncledger.KindRoster,
		ScopeID:     scopeID,
		Created:     result.Created,
		Updated:     result.Updated,
		Deactivated: result.Deactivated,
		Failed:      result.Failed,
		Outcome:     syncledger.OutcomeCompleted,
		StartedAt:   started,
		FinishedAt:  time.Now(),
	})
	if s.metrics != nil {
		s.metrics.RosterCreated.Add(float64(result.Created))
		s.metrics.RosterUpdated.Add(float64(result.Updated))
		s.metrics.RosterDeactivated.Add(float64(result.Deactivated))
		s.metrics.RosterRowFailures.Add(float64(result.Failed))
	}
	event := audit.Enrich(ctx, audit.Event{
		Action:      audit.ActionRosterSynced,
		ScopeID:     scopeID,
		Created:     result.Created,
		Updated:     result.Updated,
		Deactivated: result.Deactivated,
		Failed:      result.Failed,
		Outcome:     string(syncledger.OutcomeCompleted),
	})
	if err := s.publisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "error", err)
	}
}

func (s *Service) appendLedger(ctx context.Context, run syncledger.Run) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Append(ctx, run); err != nil {
		s.logger.WarnContext(ctx, "sync ledger append failed", "error", err)
	}
}
