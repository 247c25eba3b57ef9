package models

import "time"

// EnrollmentStatus tracks whether a student is part of a period.
type EnrollmentStatus string

const (
	EnrollmentActive   EnrollmentStatus = "active"
	EnrollmentInactive EnrollmentStatus = "inactive"
)

// Enrollment links a student to an observation period (observation_students).
// EvaluationsCompleted and LessonPlanSubmitted are cached from the evaluation aggregate.
type Enrollment struct {
	ID                   string           `db:"id" json:"id"`
	ObservationID        string           `db:"observation_id" json:"observationId"`
	StudentID            string           `db:"student_id" json:"studentId"`
	Status               EnrollmentStatus `db:"status" json:"status"`
	EvaluationsCompleted int              `db:"evaluations_completed" json:"evaluationsCompleted"`
	LessonPlanSubmitted  bool             `db:"lesson_plan_submitted" json:"lessonPlanSubmitted"`
	Notes                *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt            time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time        `db:"updated_at" json:"updatedAt"`
}

// EnrollmentDetail joins an enrollment with student and progress data.
type EnrollmentDetail struct {
	Enrollment
	StudentFirstName string  `db:"first_name" json:"firstName"`
	StudentLastName  string  `db:"last_name" json:"lastName"`
	StudentEmail     string  `db:"email" json:"email"`
	SchoolName       *string `db:"school_name" json:"schoolName,omitempty"`
	MentorName       *string `db:"mentor_name" json:"mentorName,omitempty"`
	VideoSubmitted   bool    `db:"video_submitted" json:"videoSubmitted"`
}

// ActivePeriod is an active observation the student is enrolled in.
type ActivePeriod struct {
	Observation
	EnrollmentID string `db:"enrollment_id" json:"enrollmentId"`
}
