package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"rostersync/internal/participation/models"
	"rostersync/pkg/platform/sentinel"
)

// InMemory mimics the postgres store's partial unique indexes on
// (grouping_id, member_id) and (grouping_id, applicant_id).
type InMemory struct {
	mu      sync.RWMutex
	records map[uuid.UUID]models.Record
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[uuid.UUID]models.Record)}
}

func (s *InMemory) referentTaken(r *models.Record) bool {
	for _, existing := range s.records {
		if existing.ID == r.ID || existing.GroupingID != r.GroupingID {
			continue
		}
		if r.MemberID != nil && existing.MemberID != nil && *existing.MemberID == *r.MemberID {
			return true
		}
		if r.ApplicantID != nil && existing.ApplicantID != nil && *existing.ApplicantID == *r.ApplicantID {
			return true
		}
	}
	return false
}

func (s *InMemory) Create(_ context.Context, r *models.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.referentTaken(r) {
		return fmt.Errorf("create membership record: %w", sentinel.ErrConflict)
	}
	s.records[r.ID] = *r
	return nil
}

func (s *InMemory) Update(_ context.Context, r *models.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[r.ID]; !ok {
		return fmt.Errorf("update membership record %s: %w", r.ID, sentinel.ErrNotFound)
	}
	if s.referentTaken(r) {
		return fmt.Errorf("update membership record: %w", sentinel.ErrConflict)
	}
	s.records[r.ID] = *r
	return nil
}

func (s *InMemory) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("delete membership record %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.records, id)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("find membership record %s: %w", id, sentinel.ErrNotFound)
	}
	copied := r
	return &copied, nil
}

func (s *InMemory) ListByGrouping(_ context.Context, groupingID int64) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(r models.Record) bool { return r.GroupingID == groupingID }), nil
}

func (s *InMemory) ListByFamily(_ context.Context, familyID int64) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(r models.Record) bool { return r.FamilyID == familyID }), nil
}

func (s *InMemory) ListByApplicant(_ context.Context, applicantID int64) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(r models.Record) bool {
		return r.ApplicantID != nil && *r.ApplicantID == applicantID
	}), nil
}

func (s *InMemory) filter(keep func(models.Record) bool) []models.Record {
	var out []models.Record
	for _, r := range s.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
