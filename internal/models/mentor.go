package models

import (
	"strings"
	"time"
)

// Mentor is a mentor teacher claimed by one student for one observation period.
type Mentor struct {
	ID              string    `db:"id" json:"id"`
	ObservationID   string    `db:"observation_id" json:"observationId"`
	StudentID       string    `db:"student_id" json:"studentId"`
	SchoolID        string    `db:"school_id" json:"schoolId"`
	SchoolName      string    `db:"school_name" json:"schoolName"`
	FirstName       string    `db:"first_name" json:"firstName"`
	LastName        string    `db:"last_name" json:"lastName"`
	Title           string    `db:"title" json:"title"`
	Position        string    `db:"position" json:"position"`
	Subject         string    `db:"subject" json:"subject"`
	ExperienceYears int       `db:"experience_years" json:"experienceYears"`
	Education       string    `db:"education" json:"education"`
	Phone           string    `db:"phone" json:"phone"`
	Email           string    `db:"email" json:"email"`
	LastUpdatedBy   string    `db:"last_updated_by" json:"lastUpdatedBy"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"lastUpdatedAt"`
}

// FullName joins first and last name.
func (m *Mentor) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

// MentorClaim identifies the student holding a mentor.
type MentorClaim struct {
	MentorID         string `db:"id"`
	StudentID        string `db:"student_id"`
	StudentFirstName string `db:"first_name"`
	StudentLastName  string `db:"last_name"`
}

// StudentName joins the claiming student's names.
func (c *MentorClaim) StudentName() string {
	return strings.TrimSpace(c.StudentFirstName + " " + c.StudentLastName)
}

// MentorSuggestion is a search result at the caller's school.
type MentorSuggestion struct {
	FirstName  string `db:"first_name" json:"firstName"`
	LastName   string `db:"last_name" json:"lastName"`
	Title      string `db:"title" json:"title"`
	Position   string `db:"position" json:"position"`
	Subject    string `db:"subject" json:"subject"`
	StudentID  string `db:"student_id" json:"-"`
	Occupied   bool   `db:"-" json:"occupied"`
	OccupiedBy string `db:"occupied_by" json:"occupiedBy,omitempty"`
}
