// Package audit emits reconciliation outcome events. Keep events
// transport-agnostic so stores and sinks can fan out.
package audit

import "time"

// Action names what happened.
type Action string

const (
	ActionRosterSynced            Action = "roster_synced"
	ActionParticipationReconciled Action = "participation_reconciled"
	ActionApplicantConverted      Action = "applicant_converted"
	ActionConversionCompensated   Action = "conversion_compensated"
)

// Event is emitted from domain logic after each reconciliation operation.
type Event struct {
	Action      Action    `json:"action"`
	Timestamp   time.Time `json:"timestamp"`
	ScopeID     int64     `json:"scope_id"`
	GroupingID  int64     `json:"grouping_id,omitempty"`
	ApplicantID int64     `json:"applicant_id,omitempty"`
	Created     int       `json:"created,omitempty"`
	Updated     int       `json:"updated,omitempty"`
	Deactivated int       `json:"deactivated,omitempty"`
	Added       int       `json:"added,omitempty"`
	Removed     int       `json:"removed,omitempty"`
	Failed      int       `json:"failed,omitempty"`
	Outcome     string    `json:"outcome"`
	RequestID   string    `json:"request_id,omitempty"`
	StaffID     string    `json:"staff_id,omitempty"`
}
