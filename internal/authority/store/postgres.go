// Package store provides the pgx-backed client for the authoritative
// database. It is a separate deployment from the mirror store and uses its
// own driver and pool; nothing here shares a transaction with the mirror.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"rostersync/internal/authority"
	"rostersync/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// Postgres implements authority.Store against the authoritative database.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a pgx-backed authority store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Connect opens a pgx pool and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open authority pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping authority database: %w", err)
	}
	return pool, nil
}

func (s *Postgres) FetchActiveRoster(ctx context.Context, academyID int64) ([]authority.Member, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, academy_id, name_enc, phone_enc, status, enroll_type, start_date, pending_cleanup
		FROM ext_members
		WHERE academy_id = $1 AND status NOT IN ('withdrawn', 'graduated')
		ORDER BY id
	`, academyID)
	if err != nil {
		return nil, fmt.Errorf("fetch active roster: %w", err)
	}
	defer rows.Close()

	var members []authority.Member
	for rows.Next() {
		var m authority.Member
		if err := rows.Scan(&m.ID, &m.AcademyID, &m.NameEnc, &m.PhoneEnc, &m.Status, &m.EnrollType, &m.StartDate, &m.PendingCleanup); err != nil {
			return nil, fmt.Errorf("scan roster member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roster: %w", err)
	}
	return members, nil
}

func (s *Postgres) CreateMember(ctx context.Context, m *authority.Member) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO ext_members (academy_id, name_enc, phone_enc, status, enroll_type, start_date, pending_cleanup)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		RETURNING id
	`, m.AcademyID, m.NameEnc, m.PhoneEnc, m.Status, m.EnrollType, m.StartDate).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, fmt.Errorf("create member: %w", sentinel.ErrConflict)
		}
		return 0, fmt.Errorf("create member: %w", err)
	}
	return id, nil
}

func (s *Postgres) MarkMemberPendingCleanup(ctx context.Context, memberID int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE ext_members SET pending_cleanup = TRUE WHERE id = $1`, memberID)
	if err != nil {
		return fmt.Errorf("mark member pending cleanup: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark member pending cleanup: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *Postgres) GetApplicant(ctx context.Context, applicantID int64) (*authority.Applicant, error) {
	var a authority.Applicant
	err := s.pool.QueryRow(ctx, `
		SELECT id, academy_id, name_enc, phone_enc, status, converted_member_id
		FROM applicants
		WHERE id = $1
	`, applicantID).Scan(&a.ID, &a.AcademyID, &a.NameEnc, &a.PhoneEnc, &a.Status, &a.ConvertedMemberID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get applicant: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get applicant: %w", err)
	}
	return &a, nil
}

// RegisterApplicant flips the pending applicant atomically; the status guard
// in the WHERE clause is what makes concurrent conversions lose cleanly.
func (s *Postgres) RegisterApplicant(ctx context.Context, applicantID, memberID int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE applicants
		SET status = 'registered', converted_member_id = $2
		WHERE id = $1 AND status = 'pending'
	`, applicantID, memberID)
	if err != nil {
		return fmt.Errorf("register applicant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var status authority.ApplicantStatus
		err := s.pool.QueryRow(ctx, `SELECT status FROM applicants WHERE id = $1`, applicantID).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("register applicant: %w", sentinel.ErrNotFound)
			}
			return fmt.Errorf("register applicant: %w", err)
		}
		return fmt.Errorf("register applicant already %s: %w", status, sentinel.ErrInvalidState)
	}
	return nil
}

func (s *Postgres) CreateApplicant(ctx context.Context, a *authority.Applicant) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO applicants (academy_id, name_enc, phone_enc, status)
		VALUES ($1, $2, $3, 'pending')
		RETURNING id
	`, a.AcademyID, a.NameEnc, a.PhoneEnc).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create applicant: %w", err)
	}
	return id, nil
}
