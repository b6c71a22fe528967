// Package models holds the local mirror entities.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Status is the local lifecycle vocabulary, narrower than the authoritative
// one. Rows absent from the authoritative active set become inactive; they
// are never deleted.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusPending  Status = "pending"
)

// Member is the locally owned mirror of a roster entity. A nil ExternalID
// means the row was created locally by staff and is never touched by sync.
// Display fields are stored decrypted at rest; the mirror database sits
// inside the trust boundary the field codec protects at the edge.
type Member struct {
	ID            uuid.UUID
	ExternalID    *int64
	Name          string
	Phone         string
	Status        Status
	ScopeID       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeactivatedAt *time.Time
}

// ExternallyTracked reports whether sync owns this row's lifecycle.
func (m *Member) ExternallyTracked() bool {
	return m.ExternalID != nil
}
