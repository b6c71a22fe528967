// Package models holds membership records for derived groupings (event
// sessions). A record references exactly one of a mirror member or an
// applicant, never both.
package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "rostersync/pkg/domain-errors"
)

// ParticipantType distinguishes automatically managed membership from
// manually curated membership. Only Enrolled rows are ever created or
// removed by reconciliation.
type ParticipantType string

const (
	TypeEnrolled  ParticipantType = "enrolled"
	TypeTrial     ParticipantType = "trial"
	TypeRest      ParticipantType = "rest"
	TypeApplicant ParticipantType = "applicant"
)

// Manual reports whether this type is staff-curated and therefore protected
// from reconciliation.
func (t ParticipantType) Manual() bool {
	return t != TypeEnrolled
}

// Record is one row in a grouping's membership.
type Record struct {
	ID          uuid.UUID
	GroupingID  int64
	FamilyID    int64
	MemberID    *uuid.UUID
	ApplicantID *int64
	Type        ParticipantType
	CreatedAt   time.Time
}

// Validate enforces the exactly-one-referent invariant.
func (r *Record) Validate() error {
	hasMember := r.MemberID != nil
	hasApplicant := r.ApplicantID != nil
	if hasMember == hasApplicant {
		return dErrors.New(dErrors.CodeValidation, "record must reference exactly one of member or applicant")
	}
	switch r.Type {
	case TypeEnrolled, TypeTrial, TypeRest, TypeApplicant:
	default:
		return dErrors.New(dErrors.CodeValidation, "unknown participant type "+string(r.Type))
	}
	if r.Type == TypeApplicant && !hasApplicant {
		return dErrors.New(dErrors.CodeValidation, "applicant-type record must reference an applicant")
	}
	if r.Type != TypeApplicant && hasApplicant {
		return dErrors.New(dErrors.CodeValidation, "member-type record must reference a member")
	}
	return nil
}
