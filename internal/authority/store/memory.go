package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"rostersync/internal/authority"
	"rostersync/pkg/platform/sentinel"
)

// InMemory is the test double for the authoritative system. It is also what
// service unit tests mutate to simulate upstream roster changes.
type InMemory struct {
	mu         sync.RWMutex
	members    map[int64]authority.Member
	applicants map[int64]authority.Applicant
	nextID     int64
}

func NewInMemory() *InMemory {
	return &InMemory{
		members:    make(map[int64]authority.Member),
		applicants: make(map[int64]authority.Applicant),
		nextID:     1,
	}
}

func (s *InMemory) FetchActiveRoster(_ context.Context, academyID int64) ([]authority.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var members []authority.Member
	for _, m := range s.members {
		if m.AcademyID == academyID && !m.Status.Terminal() {
			members = append(members, m)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members, nil
}

func (s *InMemory) CreateMember(_ context.Context, m *authority.Member) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	stored := *m
	stored.ID = id
	s.members[id] = stored
	return id, nil
}

func (s *InMemory) MarkMemberPendingCleanup(_ context.Context, memberID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[memberID]
	if !ok {
		return fmt.Errorf("mark member pending cleanup: %w", sentinel.ErrNotFound)
	}
	m.PendingCleanup = true
	s.members[memberID] = m
	return nil
}

func (s *InMemory) GetApplicant(_ context.Context, applicantID int64) (*authority.Applicant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.applicants[applicantID]
	if !ok {
		return nil, fmt.Errorf("get applicant: %w", sentinel.ErrNotFound)
	}
	copied := a
	return &copied, nil
}

func (s *InMemory) RegisterApplicant(_ context.Context, applicantID, memberID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.applicants[applicantID]
	if !ok {
		return fmt.Errorf("register applicant: %w", sentinel.ErrNotFound)
	}
	if a.Status != authority.ApplicantPending {
		return fmt.Errorf("register applicant already %s: %w", a.Status, sentinel.ErrInvalidState)
	}
	a.Status = authority.ApplicantRegistered
	a.ConvertedMemberID = &memberID
	s.applicants[applicantID] = a
	return nil
}

func (s *InMemory) CreateApplicant(_ context.Context, a *authority.Applicant) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	stored := *a
	stored.ID = id
	stored.Status = authority.ApplicantPending
	s.applicants[id] = stored
	return id, nil
}

// SetMember upserts a member row directly; test helper for simulating
// upstream lifecycle transitions.
func (s *InMemory) SetMember(m authority.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID >= s.nextID {
		s.nextID = m.ID + 1
	}
	s.members[m.ID] = m
}

// Member returns a copy of the stored member row, if present.
func (s *InMemory) Member(id int64) (authority.Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[id]
	return m, ok
}

// MemberCount reports how many member rows exist; test helper.
func (s *InMemory) MemberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members)
}

// PendingCleanupCount reports how many members are flagged for cleanup;
// test helper.
func (s *InMemory) PendingCleanupCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.members {
		if m.PendingCleanup {
			n++
		}
	}
	return n
}
