// Package syncledger records one row per reconciliation run so operators can
// audit counts and debug non-idempotent anomalies after the fact.
package syncledger

import (
	"time"

	"github.com/google/uuid"
)

// Kind names the reconciliation operation a run belongs to.
type Kind string

const (
	KindRoster        Kind = "roster"
	KindParticipation Kind = "participation"
	KindConversion    Kind = "conversion"
)

// Outcome is the coarse result of a run. A run with per-row failures still
// completes; only a whole-batch abort is recorded as failed.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// Run is one ledger entry.
type Run struct {
	ID          uuid.UUID
	Kind        Kind
	ScopeID     int64
	GroupingID  *int64
	Created     int
	Updated     int
	Deactivated int
	Added       int
	Removed     int
	Failed      int
	Outcome     Outcome
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}
