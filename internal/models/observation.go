package models

import (
	"math"
	"time"
)

// ObservationStatus is the lifecycle state of an observation period.
type ObservationStatus string

const (
	ObservationActive    ObservationStatus = "active"
	ObservationCompleted ObservationStatus = "completed"
)

// Observation is a cohort practicum window.
type Observation struct {
	ID           string            `db:"id" json:"id"`
	Name         string            `db:"name" json:"name"`
	AcademicYear string            `db:"academic_year" json:"academicYear"`
	YearLevel    int               `db:"year_level" json:"yearLevel"`
	StartDate    time.Time         `db:"start_date" json:"startDate"`
	EndDate      time.Time         `db:"end_date" json:"endDate"`
	Status       ObservationStatus `db:"status" json:"status"`
	Description  *string           `db:"description" json:"description,omitempty"`
	CreatedBy    string            `db:"created_by" json:"createdBy"`
	CreatedAt    time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updatedAt"`
}

// DaysPassed returns floor((now - startDate) / 24h). It is negative before the start.
func (o *Observation) DaysPassed(now time.Time) int {
	return int(math.Floor(now.Sub(o.StartDate).Hours() / 24))
}

// Ended reports whether now is past the end date.
func (o *Observation) Ended(now time.Time) bool {
	return now.After(o.EndDate)
}

// ObservationFilter narrows period listings.
type ObservationFilter struct {
	Status    *ObservationStatus
	YearLevel *int
	Search    string
	Page      int
	PageSize  int
}
