package dto

import (
	"io"
	"time"

	"github.com/noah-isme/practicum-api/internal/models"
)

// SaveWeekRequest submits one evaluation attempt.
type SaveWeekRequest struct {
	ObservationID string               `json:"observationId" validate:"required"`
	Week          int                  `json:"week" validate:"min=1,max=3"`
	EvaluationNum int                  `json:"evaluationNum" validate:"min=1,max=9"`
	Date          string               `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Answers       models.RubricAnswers `json:"answers"`
}

// SubmitVideoRequest submits the year 3 teaching video.
type SubmitVideoRequest struct {
	ObservationID string `json:"observationId" validate:"required"`
	VideoURL      string `json:"videoUrl" validate:"required,url"`
}

// LessonPlanUpload carries an uploaded lesson plan to the service.
type LessonPlanUpload struct {
	ObservationID string
	FileName      string
	Size          int64
	Content       io.Reader
}

// LessonPlanResponse describes a stored lesson plan.
type LessonPlanResponse struct {
	FileName      string    `json:"fileName"`
	FileURL       string    `json:"fileUrl"`
	SubmittedDate time.Time `json:"submittedDate"`
}

// SubmissionResult acknowledges an attempt submission.
type SubmissionResult struct {
	ObservationID string `json:"observationId"`
	EvaluationNum int    `json:"evaluationNum"`
	Week          int    `json:"week"`
	WeekCount     int    `json:"weekCount"`
	Completed     int    `json:"evaluationsCompleted"`
}
