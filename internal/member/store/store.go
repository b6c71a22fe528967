// Package store persists mirror members. Implementations keep external_id
// unique so concurrent identity resolution can lean on the constraint
// instead of application-level locking.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"rostersync/internal/member/models"
)

// Store is the mirror member persistence contract.
type Store interface {
	// Create inserts a member; returns sentinel.ErrConflict (wrapped) when
	// another row already holds the same external_id.
	Create(ctx context.Context, m *models.Member) error

	// Update rewrites mutable fields of an existing row.
	Update(ctx context.Context, m *models.Member) error

	// FindByID returns sentinel.ErrNotFound when absent.
	FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error)

	// FindByExternalID returns sentinel.ErrNotFound when absent. Sync matches
	// only by external id, never by name.
	FindByExternalID(ctx context.Context, externalID int64) (*models.Member, error)

	// ListActiveExternal returns active, externally tracked members in scope;
	// the candidates for deactivation during roster sync.
	ListActiveExternal(ctx context.Context, scopeID int64) ([]models.Member, error)

	// Deactivate soft-deactivates a row in place. Never deletes.
	Deactivate(ctx context.Context, id uuid.UUID, at time.Time) error
}
