package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"rostersync/internal/member/models"
	"rostersync/pkg/platform/sentinel"
)

// InMemory mirrors the postgres store's constraint behavior, including the
// unique external_id guard, so service tests exercise the same conflict paths.
type InMemory struct {
	mu         sync.RWMutex
	byID       map[uuid.UUID]models.Member
	byExternal map[int64]uuid.UUID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:       make(map[uuid.UUID]models.Member),
		byExternal: make(map[int64]uuid.UUID),
	}
}

func (s *InMemory) Create(_ context.Context, m *models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ExternalID != nil {
		if _, exists := s.byExternal[*m.ExternalID]; exists {
			return fmt.Errorf("create member external_id %d: %w", *m.ExternalID, sentinel.ErrConflict)
		}
	}
	if _, exists := s.byID[m.ID]; exists {
		return fmt.Errorf("create member %s: %w", m.ID, sentinel.ErrConflict)
	}
	s.byID[m.ID] = *m
	if m.ExternalID != nil {
		s.byExternal[*m.ExternalID] = m.ID
	}
	return nil
}

func (s *InMemory) Update(_ context.Context, m *models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[m.ID]; !exists {
		return fmt.Errorf("update member %s: %w", m.ID, sentinel.ErrNotFound)
	}
	s.byID[m.ID] = *m
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("find member %s: %w", id, sentinel.ErrNotFound)
	}
	copied := m
	return &copied, nil
}

func (s *InMemory) FindByExternalID(_ context.Context, externalID int64) (*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byExternal[externalID]
	if !ok {
		return nil, fmt.Errorf("find member by external_id %d: %w", externalID, sentinel.ErrNotFound)
	}
	m := s.byID[id]
	copied := m
	return &copied, nil
}

func (s *InMemory) ListActiveExternal(_ context.Context, scopeID int64) ([]models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Member
	for _, m := range s.byID {
		if m.ScopeID == scopeID && m.Status == models.StatusActive && m.ExternalID != nil {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return *out[i].ExternalID < *out[j].ExternalID })
	return out, nil
}

func (s *InMemory) Deactivate(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("deactivate member %s: %w", id, sentinel.ErrNotFound)
	}
	m.Status = models.StatusInactive
	m.DeactivatedAt = &at
	m.UpdatedAt = at
	s.byID[id] = m
	return nil
}
