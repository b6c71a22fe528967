package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"rostersync/internal/participation/models"
	"rostersync/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists membership records in the mirror database.
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

const recordColumns = `id, grouping_id, family_id, member_id, applicant_id, participant_type, created_at`

func (s *PostgresStore) Create(ctx context.Context, r *models.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO membership_records (id, grouping_id, family_id, member_id, applicant_id, participant_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, r.ID, r.GroupingID, r.FamilyID, r.MemberID, r.ApplicantID, r.Type, r.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("create membership record: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create membership record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, r *models.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE membership_records
		SET grouping_id = $2, family_id = $3, member_id = $4, applicant_id = $5, participant_type = $6
		WHERE id = $1
	`, r.ID, r.GroupingID, r.FamilyID, r.MemberID, r.ApplicantID, r.Type)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("update membership record: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("update membership record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update membership record: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update membership record %s: %w", r.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM membership_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete membership record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete membership record: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("delete membership record %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM membership_records WHERE id = $1`, id)
	var r models.Record
	err := row.Scan(&r.ID, &r.GroupingID, &r.FamilyID, &r.MemberID, &r.ApplicantID, &r.Type, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("find membership record %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find membership record %s: %w", id, err)
	}
	return &r, nil
}

func (s *PostgresStore) ListByGrouping(ctx context.Context, groupingID int64) ([]models.Record, error) {
	return s.list(ctx, `SELECT `+recordColumns+` FROM membership_records WHERE grouping_id = $1 ORDER BY created_at, id`, groupingID)
}

func (s *PostgresStore) ListByFamily(ctx context.Context, familyID int64) ([]models.Record, error) {
	return s.list(ctx, `SELECT `+recordColumns+` FROM membership_records WHERE family_id = $1 ORDER BY created_at, id`, familyID)
}

func (s *PostgresStore) ListByApplicant(ctx context.Context, applicantID int64) ([]models.Record, error) {
	return s.list(ctx, `SELECT `+recordColumns+` FROM membership_records WHERE applicant_id = $1 ORDER BY created_at, id`, applicantID)
}

func (s *PostgresStore) list(ctx context.Context, query string, arg any) ([]models.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list membership records: %w", err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var r models.Record
		if err := rows.Scan(&r.ID, &r.GroupingID, &r.FamilyID, &r.MemberID, &r.ApplicantID, &r.Type, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan membership record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate membership records: %w", err)
	}
	return records, nil
}
