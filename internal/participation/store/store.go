// Package store persists membership records. Uniqueness is per
// (grouping_id, referent), which is what lets two concurrent reconciles of
// the same grouping converge instead of double-inserting.
package store

import (
	"context"

	"github.com/google/uuid"

	"rostersync/internal/participation/models"
)

// Store is the membership record persistence contract.
type Store interface {
	// Create inserts a record; returns sentinel.ErrConflict (wrapped) when
	// the grouping already holds a record for the same referent.
	Create(ctx context.Context, r *models.Record) error

	// Update rewrites a record in place; same conflict semantics as Create.
	Update(ctx context.Context, r *models.Record) error

	// Delete removes a record. Returns sentinel.ErrNotFound when absent.
	Delete(ctx context.Context, id uuid.UUID) error

	// FindByID returns sentinel.ErrNotFound when absent.
	FindByID(ctx context.Context, id uuid.UUID) (*models.Record, error)

	ListByGrouping(ctx context.Context, groupingID int64) ([]models.Record, error)

	// ListByFamily returns every record across all groupings of a family;
	// the input to cross-grouping dedup.
	ListByFamily(ctx context.Context, familyID int64) ([]models.Record, error)

	// ListByApplicant returns records referencing an applicant, across all
	// groupings; the conversion pipeline re-points these.
	ListByApplicant(ctx context.Context, applicantID int64) ([]models.Record, error)
}
