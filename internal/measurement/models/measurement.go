// Package models holds physical measurement history. Rows are keyed by their
// subject plus (metric, measured_on), which is what conversion merges on.
package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "rostersync/pkg/domain-errors"
)

// Measurement is one recorded value for a subject. Exactly one of MemberID
// and ApplicantID is set.
type Measurement struct {
	ID          uuid.UUID
	MemberID    *uuid.UUID
	ApplicantID *int64
	Metric      string
	Value       float64
	MeasuredOn  time.Time
	CreatedAt   time.Time
}

func (m *Measurement) Validate() error {
	if m.Metric == "" {
		return dErrors.New(dErrors.CodeValidation, "measurement metric is required")
	}
	hasMember := m.MemberID != nil
	hasApplicant := m.ApplicantID != nil
	if hasMember == hasApplicant {
		return dErrors.New(dErrors.CodeValidation, "measurement must reference exactly one subject")
	}
	return nil
}
