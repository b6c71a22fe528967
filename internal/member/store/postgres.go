package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"rostersync/internal/member/models"
	"rostersync/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists mirror members in PostgreSQL. Pure I/O; status
// mapping and diffing belong in the services.
type PostgresStore struct {
	db queryer
}

// queryer is satisfied by both *sql.DB and *sql.Tx, so the conversion
// pipeline can run member writes inside its local transaction.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewPostgres constructs a PostgreSQL-backed member store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx binds the store to an open transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{db: tx}
}

const memberColumns = `id, external_id, name, phone, status, scope_id, created_at, updated_at, deactivated_at`

func (s *PostgresStore) Create(ctx context.Context, m *models.Member) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (id, external_id, name, phone, status, scope_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, m.ID, m.ExternalID, m.Name, m.Phone, m.Status, m.ScopeID, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("create member: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create member: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, m *models.Member) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE members
		SET name = $2, phone = $3, status = $4, scope_id = $5, updated_at = $6, deactivated_at = $7
		WHERE id = $1
	`, m.ID, m.Name, m.Phone, m.Status, m.ScopeID, m.UpdatedAt, m.DeactivatedAt)
	if err != nil {
		return fmt.Errorf("update member: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update member: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update member %s: %w", m.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id)
	return scanMember(row, fmt.Sprintf("find member %s", id))
}

func (s *PostgresStore) FindByExternalID(ctx context.Context, externalID int64) (*models.Member, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE external_id = $1`, externalID)
	return scanMember(row, fmt.Sprintf("find member by external_id %d", externalID))
}

func (s *PostgresStore) ListActiveExternal(ctx context.Context, scopeID int64) ([]models.Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+memberColumns+`
		FROM members
		WHERE scope_id = $1 AND status = 'active' AND external_id IS NOT NULL
		ORDER BY external_id
	`, scopeID)
	if err != nil {
		return nil, fmt.Errorf("list active external members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.ID, &m.ExternalID, &m.Name, &m.Phone, &m.Status, &m.ScopeID, &m.CreatedAt, &m.UpdatedAt, &m.DeactivatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}

func (s *PostgresStore) Deactivate(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE members
		SET status = 'inactive', deactivated_at = $2, updated_at = $2
		WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("deactivate member: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate member: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("deactivate member %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

func scanMember(row *sql.Row, op string) (*models.Member, error) {
	var m models.Member
	err := row.Scan(&m.ID, &m.ExternalID, &m.Name, &m.Phone, &m.Status, &m.ScopeID, &m.CreatedAt, &m.UpdatedAt, &m.DeactivatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &m, nil
}
