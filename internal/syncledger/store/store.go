// Package store persists sync-run ledger entries.
package store

import (
	"context"

	"rostersync/internal/syncledger"
)

// Store is the ledger persistence contract. Append-only plus a bounded read.
type Store interface {
	Append(ctx context.Context, run syncledger.Run) error
	ListRecent(ctx context.Context, scopeID *int64, limit int) ([]syncledger.Run, error)
}
