package models

import (
	"time"

	"github.com/lib/pq"
)

// School is a school record scoped to one observation period and owned by the
// student who submitted it.
type School struct {
	ID            string         `db:"id" json:"id"`
	ObservationID string         `db:"observation_id" json:"observationId"`
	StudentID     string         `db:"student_id" json:"studentId"`
	Name          string         `db:"name" json:"name"`
	Affiliation   string         `db:"affiliation" json:"affiliation"`
	Address       string         `db:"address" json:"address"`
	District      string         `db:"district" json:"district"`
	City          string         `db:"city" json:"city"`
	Province      string         `db:"province" json:"province"`
	PostalCode    string         `db:"postal_code" json:"postalCode"`
	GradeLevels   pq.StringArray `db:"grade_levels" json:"gradeLevels"`
	Principal     string         `db:"principal" json:"principal"`
	StudentCount  int            `db:"student_count" json:"studentCount"`
	TeacherCount  int            `db:"teacher_count" json:"teacherCount"`
	StaffCount    int            `db:"staff_count" json:"staffCount"`
	Phone         string         `db:"phone" json:"phone"`
	Email         string         `db:"email" json:"email"`
	LastUpdatedBy string         `db:"last_updated_by" json:"lastUpdatedBy"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time      `db:"updated_at" json:"lastUpdatedAt"`
}

// SchoolSuggestion is an autofill candidate built from an earlier submission.
type SchoolSuggestion struct {
	Name         string         `db:"name" json:"name"`
	Affiliation  string         `db:"affiliation" json:"affiliation"`
	Address      string         `db:"address" json:"address"`
	District     string         `db:"district" json:"district"`
	City         string         `db:"city" json:"city"`
	Province     string         `db:"province" json:"province"`
	PostalCode   string         `db:"postal_code" json:"postalCode"`
	GradeLevels  pq.StringArray `db:"grade_levels" json:"gradeLevels"`
	Principal    string         `db:"principal" json:"principal"`
	StudentCount int            `db:"student_count" json:"studentCount"`
	TeacherCount int            `db:"teacher_count" json:"teacherCount"`
	StaffCount   int            `db:"staff_count" json:"staffCount"`
	Phone        string         `db:"phone" json:"phone"`
	Email        string         `db:"email" json:"email"`
}
