// Package authority models the external system that owns the canonical
// roster. The mirror never writes to it except through ConversionPipeline.
package authority

import "time"

// Status is the lifecycle vocabulary of the authoritative system.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusTrial     Status = "trial"
	StatusPending   Status = "pending"
	StatusWithdrawn Status = "withdrawn"
	StatusGraduated Status = "graduated"
)

// Terminal reports whether a member in this status is excluded from the
// active roster by contract.
func (s Status) Terminal() bool {
	return s == StatusWithdrawn || s == StatusGraduated
}

// Member is a roster entity owned by the authoritative system. Name and
// Phone hold ciphertext (or legacy plaintext) exactly as stored upstream.
type Member struct {
	ID             int64
	AcademyID      int64
	NameEnc        string
	PhoneEnc       string
	Status         Status
	EnrollType     string
	StartDate      time.Time
	PendingCleanup bool
}

// ApplicantStatus is the applicant lifecycle; registered is terminal.
type ApplicantStatus string

const (
	ApplicantPending    ApplicantStatus = "pending"
	ApplicantRegistered ApplicantStatus = "registered"
)

// Applicant is a not-yet-enrolled person tracked only upstream. After
// conversion it carries a forward pointer to the member it became.
type Applicant struct {
	ID                int64
	AcademyID         int64
	NameEnc           string
	PhoneEnc          string
	Status            ApplicantStatus
	ConvertedMemberID *int64
}
