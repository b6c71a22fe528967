package authority

import "context"

// RosterSource fetches the authoritative active roster for an academy.
// The result excludes withdrawn and graduated members by contract.
type RosterSource interface {
	FetchActiveRoster(ctx context.Context, academyID int64) ([]Member, error)
}

// Store is the full write surface against the authoritative system, used by
// the conversion pipeline. Reads share the RosterSource contract.
type Store interface {
	RosterSource

	// CreateMember inserts a new member and returns its id.
	CreateMember(ctx context.Context, m *Member) (int64, error)

	// MarkMemberPendingCleanup flags a member created by a conversion whose
	// local phase failed, so an operator (or a later retry) can reconcile it
	// instead of the pipeline deleting it blindly.
	MarkMemberPendingCleanup(ctx context.Context, memberID int64) error

	// GetApplicant returns sentinel.ErrNotFound when the applicant is absent.
	GetApplicant(ctx context.Context, applicantID int64) (*Applicant, error)

	// RegisterApplicant flips a pending applicant to registered with a
	// forward pointer to memberID. Returns sentinel.ErrInvalidState when the
	// applicant is already registered.
	RegisterApplicant(ctx context.Context, applicantID, memberID int64) error

	// CreateApplicant inserts a new applicant in pending status.
	CreateApplicant(ctx context.Context, a *Applicant) (int64, error)
}
