package store

import (
	"context"
	"database/sql"
	"fmt"

	"rostersync/internal/syncledger"
)

// PostgresStore persists ledger entries in the mirror database.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, run syncledger.Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs
			(id, kind, scope_id, grouping_id, created, updated, deactivated, added, removed, failed, outcome, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, run.ID, run.Kind, run.ScopeID, run.GroupingID,
		run.Created, run.Updated, run.Deactivated, run.Added, run.Removed, run.Failed,
		run.Outcome, run.Error, run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("append sync run: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, scopeID *int64, limit int) ([]syncledger.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, scope_id, grouping_id, created, updated, deactivated, added, removed, failed, outcome, error, started_at, finished_at
		FROM sync_runs
		WHERE $1::bigint IS NULL OR scope_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`, scopeID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync runs: %w", err)
	}
	defer rows.Close()

	var runs []syncledger.Run
	for rows.Next() {
		var r syncledger.Run
		if err := rows.Scan(&r.ID, &r.Kind, &r.ScopeID, &r.GroupingID,
			&r.Created, &r.Updated, &r.Deactivated, &r.Added, &r.Removed, &r.Failed,
			&r.Outcome, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync runs: %w", err)
	}
	return runs, nil
}
