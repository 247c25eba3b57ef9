package dto

import "time"

// CreateObservationRequest creates an observation period.
type CreateObservationRequest struct {
	Name         string    `json:"name" validate:"required,max=200"`
	AcademicYear string    `json:"academicYear" validate:"required,max=20"`
	YearLevel    int       `json:"yearLevel" validate:"min=1,max=4"`
	StartDate    time.Time `json:"startDate" validate:"required"`
	EndDate      time.Time `json:"endDate" validate:"required"`
	Description  *string   `json:"description" validate:"omitempty,max=1000"`
}

// UpdateObservationRequest replaces editable period fields.
type UpdateObservationRequest struct {
	Name         string    `json:"name" validate:"required,max=200"`
	AcademicYear string    `json:"academicYear" validate:"required,max=20"`
	YearLevel    int       `json:"yearLevel" validate:"min=1,max=4"`
	StartDate    time.Time `json:"startDate" validate:"required"`
	EndDate      time.Time `json:"endDate" validate:"required"`
	Description  *string   `json:"description" validate:"omitempty,max=1000"`
}

// EnrollStudentsRequest adds students to a period.
type EnrollStudentsRequest struct {
	StudentIDs []string `json:"studentIds" validate:"required,min=1,dive,required"`
	Notes      *string  `json:"notes" validate:"omitempty,max=500"`
}

// EnrollStudentsResult reports the outcome per student.
type EnrollStudentsResult struct {
	Enrolled []string          `json:"enrolled"`
	Skipped  map[string]string `json:"skipped,omitempty"`
}

// UpdateEnrollmentRequest changes an enrollment's status or notes.
type UpdateEnrollmentRequest struct {
	Status string  `json:"status" validate:"required,oneof=active inactive"`
	Notes  *string `json:"notes" validate:"omitempty,max=500"`
}
