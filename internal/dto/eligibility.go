package dto

import "time"

// EligibilityPurpose selects which gate is being checked.
type EligibilityPurpose string

const (
	PurposeSchool     EligibilityPurpose = "school"
	PurposeMentor     EligibilityPurpose = "mentor"
	PurposeEvaluation EligibilityPurpose = "evaluation"
)

// Ineligibility reasons.
const (
	ReasonNoActiveObservation = "no_active_observation"
	ReasonTooNew              = "too_new"
	ReasonWindowClosed        = "window_closed"
	ReasonNeedSchoolInfo      = "need_school_info"
	ReasonNeedMentorInfo      = "need_mentor_info"
)

// ObservationBrief is the period summary returned with an eligibility decision.
type ObservationBrief struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	AcademicYear string    `json:"academicYear"`
	YearLevel    int       `json:"yearLevel"`
	StartDate    time.Time `json:"startDate"`
	EndDate      time.Time `json:"endDate"`
}

// Eligibility is the outcome of resolving a student's gate.
type Eligibility struct {
	Eligible       bool              `json:"eligible"`
	Reason         string            `json:"reason,omitempty"`
	Message        string            `json:"message,omitempty"`
	ObservationID  string            `json:"observationId,omitempty"`
	Observation    *ObservationBrief `json:"observation,omitempty"`
	SchoolID       string            `json:"schoolId,omitempty"`
	SchoolName     string            `json:"schoolName,omitempty"`
	MentorID       string            `json:"mentorId,omitempty"`
	DaysPassed     int               `json:"daysPassed"`
	DaysRemaining  int               `json:"daysRemaining"`
	NeedSchoolInfo bool              `json:"needSchoolInfo,omitempty"`
	NeedMentorInfo bool              `json:"needMentorInfo,omitempty"`
	CanChange      bool              `json:"canChangeSchool,omitempty"`
}
