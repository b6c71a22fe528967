package store

import (
	"context"
	"sort"
	"sync"

	"rostersync/internal/syncledger"
)

// InMemory keeps ledger entries in memory for tests and local runs.
type InMemory struct {
	mu   sync.RWMutex
	runs []syncledger.Run
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(_ context.Context, run syncledger.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *InMemory) ListRecent(_ context.Context, scopeID *int64, limit int) ([]syncledger.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []syncledger.Run
	for _, r := range s.runs {
		if scopeID != nil && r.ScopeID != *scopeID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
