package store

import (
	"context"

	"github.com/google/uuid"

	"rostersync/internal/measurement/models"
)

// Store persists measurement history. Uniqueness is per subject on
// (metric, measured_on); Create upserts, so a re-recorded value replaces
// the earlier one.
type Store interface {
	Create(ctx context.Context, m *models.Measurement) error
	ListByMember(ctx context.Context, memberID uuid.UUID) ([]models.Measurement, error)
	ListByApplicant(ctx context.Context, applicantID int64) ([]models.Measurement, error)

	// MigrateSubject re-keys every row of applicantID onto memberID. On a
	// (metric, measured_on) collision with a row the member already has,
	// the applicant's value wins. Returns the number of rows migrated.
	MigrateSubject(ctx context.Context, applicantID int64, memberID uuid.UUID) (int, error)
}
