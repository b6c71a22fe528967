package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"rostersync/internal/measurement/models"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func applicantMeasurement(applicantID int64, metric string, value float64, on string) *models.Measurement {
	return &models.Measurement{
		ID:          uuid.New(),
		ApplicantID: &applicantID,
		Metric:      metric,
		Value:       value,
		MeasuredOn:  day(on),
		CreatedAt:   time.Now(),
	}
}

func memberMeasurement(memberID uuid.UUID, metric string, value float64, on string) *models.Measurement {
	return &models.Measurement{
		ID:         uuid.New(),
		MemberID:   &memberID,
		Metric:     metric,
		Value:      value,
		MeasuredOn: day(on),
		CreatedAt:  time.Now(),
	}
}

func TestMigrateSubject(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	memberID := uuid.New()

	require.NoError(t, store.Create(ctx, applicantMeasurement(300, "height_cm", 142.5, "2026-01-10")))
	require.NoError(t, store.Create(ctx, applicantMeasurement(300, "weight_kg", 38.0, "2026-01-10")))
	require.NoError(t, store.Create(ctx, applicantMeasurement(999, "height_cm", 150.0, "2026-01-10")))

	migrated, err := store.MigrateSubject(ctx, 300, memberID)
	require.NoError(t, err)
	require.Equal(t, 2, migrated)

	mine, err := store.ListByMember(ctx, memberID)
	require.NoError(t, err)
	require.Len(t, mine, 2)

	leftovers, err := store.ListByApplicant(ctx, 300)
	require.NoError(t, err)
	require.Empty(t, leftovers)

	others, err := store.ListByApplicant(ctx, 999)
	require.NoError(t, err)
	require.Len(t, others, 1, "other applicants untouched")
}

// TestMigrateSubjectCollisionIncomingWins: the member already has a row on
// the same (metric, measured_on) key; the applicant's value replaces it.
func TestMigrateSubjectCollisionIncomingWins(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	memberID := uuid.New()

	require.NoError(t, store.Create(ctx, memberMeasurement(memberID, "height_cm", 140.0, "2026-01-10")))
	require.NoError(t, store.Create(ctx, applicantMeasurement(300, "height_cm", 142.5, "2026-01-10")))

	migrated, err := store.MigrateSubject(ctx, 300, memberID)
	require.NoError(t, err)
	require.Equal(t, 1, migrated)

	mine, err := store.ListByMember(ctx, memberID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, 142.5, mine[0].Value)
}

func TestCreateUpsertsOnSubjectKey(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	memberID := uuid.New()

	require.NoError(t, store.Create(ctx, memberMeasurement(memberID, "height_cm", 140.0, "2026-01-10")))
	require.NoError(t, store.Create(ctx, memberMeasurement(memberID, "height_cm", 141.0, "2026-01-10")))

	mine, err := store.ListByMember(ctx, memberID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, 141.0, mine[0].Value)
}
