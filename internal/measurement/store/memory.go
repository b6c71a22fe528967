package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"rostersync/internal/measurement/models"
)

// InMemory keeps measurements in a map for tests.
type InMemory struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*models.Measurement
}

func NewInMemory() *InMemory {
	return &InMemory{rows: make(map[uuid.UUID]*models.Measurement)}
}

type subjectKey struct {
	memberID    uuid.UUID
	hasMember   bool
	applicantID int64
	metric      string
	measuredOn  time.Time
}

func keyOf(m *models.Measurement) subjectKey {
	k := subjectKey{metric: m.Metric, measuredOn: m.MeasuredOn.Truncate(24 * time.Hour)}
	if m.MemberID != nil {
		k.memberID = *m.MemberID
		k.hasMember = true
	}
	if m.ApplicantID != nil {
		k.applicantID = *m.ApplicantID
	}
	return k
}

func (s *InMemory) Create(_ context.Context, m *models.Measurement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := keyOf(m)
	for id, existing := range s.rows {
		if keyOf(existing) == key {
			delete(s.rows, id)
			break
		}
	}
	cp := *m
	s.rows[m.ID] = &cp
	return nil
}

func (s *InMemory) ListByMember(_ context.Context, memberID uuid.UUID) ([]models.Measurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Measurement
	for _, m := range s.rows {
		if m.MemberID != nil && *m.MemberID == memberID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *InMemory) ListByApplicant(_ context.Context, applicantID int64) ([]models.Measurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Measurement
	for _, m := range s.rows {
		if m.ApplicantID != nil && *m.ApplicantID == applicantID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *InMemory) MigrateSubject(_ context.Context, applicantID int64, memberID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	migrated := 0
	for _, m := range s.rows {
		if m.ApplicantID == nil || *m.ApplicantID != applicantID {
			continue
		}
		incoming := *m
		incoming.ApplicantID = nil
		id := memberID
		incoming.MemberID = &id

		// Incoming wins over whatever the member already has on this key.
		key := keyOf(&incoming)
		for otherID, other := range s.rows {
			if otherID != m.ID && keyOf(other) == key {
				delete(s.rows, otherID)
				break
			}
		}
		*m = incoming
		migrated++
	}
	return migrated, nil
}
