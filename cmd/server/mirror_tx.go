package main

import (
	"context"
	"database/sql"
	"time"

	"rostersync/internal/conversion"
	measurementstore "rostersync/internal/measurement/store"
	memberstore "rostersync/internal/member/store"
	recordstore "rostersync/internal/participation/store"
	dErrors "rostersync/pkg/domain-errors"
)

const defaultMirrorTxTimeout = 5 * time.Second

// mirrorPostgresTx runs the conversion pipeline's local phase in one
// mirror-database transaction.
type mirrorPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newMirrorPostgresTx(db *sql.DB) *mirrorPostgresTx {
	return &mirrorPostgresTx{db: db}
}

func (t *mirrorPostgresTx) RunInTx(ctx context.Context, fn func(stores conversion.MirrorStores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultMirrorTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stores := conversion.MirrorStores{
		Members:      memberstore.NewPostgresTx(tx),
		Records:      recordstore.NewPostgresTx(tx),
		Measurements: measurementstore.NewPostgresTx(tx),
	}
	if err := fn(stores); err != nil {
		return err
	}

	return tx.Commit()
}
