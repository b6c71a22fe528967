package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"rostersync/internal/measurement/models"
)

// PostgresStore persists measurement history in the mirror database.
type PostgresStore struct {
	db queryer
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx binds the store to an open transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{db: tx}
}

const measurementColumns = `id, member_id, applicant_id, metric, value, measured_on, created_at`

// Create upserts on the per-subject (metric, measured_on) key; a re-recorded
// value replaces the earlier one. Partial unique indexes carry the key, so
// the conflict target differs per subject kind.
func (s *PostgresStore) Create(ctx context.Context, m *models.Measurement) error {
	var err error
	if m.MemberID != nil {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO measurements (id, member_id, metric, value, measured_on, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (member_id, metric, measured_on) WHERE member_id IS NOT NULL
			DO UPDATE SET value = EXCLUDED.value, created_at = EXCLUDED.created_at
		`, m.ID, m.MemberID, m.Metric, m.Value, m.MeasuredOn, m.CreatedAt)
	} else {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO measurements (id, applicant_id, metric, value, measured_on, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (applicant_id, metric, measured_on) WHERE applicant_id IS NOT NULL
			DO UPDATE SET value = EXCLUDED.value, created_at = EXCLUDED.created_at
		`, m.ID, m.ApplicantID, m.Metric, m.Value, m.MeasuredOn, m.CreatedAt)
	}
	if err != nil {
		return fmt.Errorf("create measurement: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByMember(ctx context.Context, memberID uuid.UUID) ([]models.Measurement, error) {
	return s.list(ctx, `SELECT `+measurementColumns+` FROM measurements WHERE member_id = $1 ORDER BY measured_on`, memberID)
}

func (s *PostgresStore) ListByApplicant(ctx context.Context, applicantID int64) ([]models.Measurement, error) {
	return s.list(ctx, `SELECT `+measurementColumns+` FROM measurements WHERE applicant_id = $1 ORDER BY measured_on`, applicantID)
}

// MigrateSubject re-keys the applicant's rows onto the member. Colliding
// member rows are deleted first so the applicant's value wins.
func (s *PostgresStore) MigrateSubject(ctx context.Context, applicantID int64, memberID uuid.UUID) (int, error) {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM measurements m
		USING measurements a
		WHERE m.member_id = $2
		  AND a.applicant_id = $1
		  AND m.metric = a.metric
		  AND m.measured_on = a.measured_on
	`, applicantID, memberID)
	if err != nil {
		return 0, fmt.Errorf("migrate measurements: clear collisions: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE measurements
		SET member_id = $2, applicant_id = NULL
		WHERE applicant_id = $1
	`, applicantID, memberID)
	if err != nil {
		return 0, fmt.Errorf("migrate measurements: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("migrate measurements: %w", err)
	}
	return int(affected), nil
}

func (s *PostgresStore) list(ctx context.Context, query string, arg any) ([]models.Measurement, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list measurements: %w", err)
	}
	defer rows.Close()

	var out []models.Measurement
	for rows.Next() {
		var m models.Measurement
		if err := rows.Scan(&m.ID, &m.MemberID, &m.ApplicantID, &m.Metric, &m.Value, &m.MeasuredOn, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate measurements: %w", err)
	}
	return out, nil
}
