package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/practicum-api/internal/dto"
	"github.com/noah-isme/practicum-api/internal/models"
	"github.com/noah-isme/practicum-api/pkg/database"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
)

type enrollmentRepository interface {
	ListByObservation(ctx context.Context, observationID string) ([]models.EnrollmentDetail, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindActive(ctx context.Context, observationID, studentID string) (*models.Enrollment, error)
	Create(ctx context.Context, e *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, notes *string) error
}

type studentDirectory interface {
	ExistsByIDs(ctx context.Context, ids []string) (map[string]bool, error)
}

// Reasons reported for students that were not enrolled.
const (
	SkipNotStudent      = "not_a_student"
	SkipNotFound        = "not_found"
	SkipAlreadyEnrolled = "already_enrolled"
)

// EnrollmentService manages student membership of observation periods.
type EnrollmentService struct {
	repo         enrollmentRepository
	observations observationFinder
	students     studentDirectory
	activities   activityRecorder
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, observations observationFinder, students studentDirectory, activities activityRecorder, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:         repo,
		observations: observations,
		students:     students,
		activities:   activities,
		validator:    validate,
		logger:       logger,
	}
}

// List returns the students of a period with their progress.
func (s *EnrollmentService) List(ctx context.Context, observationID string) ([]models.EnrollmentDetail, error) {
	if _, err := s.period(ctx, observationID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListByObservation(ctx, observationID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list enrollments")
	}
	if items == nil {
		items = []models.EnrollmentDetail{}
	}
	return items, nil
}

// Enroll adds students to a period. Unknown ids, non-student ids and students
// already holding an active enrollment are skipped and reported.
func (s *EnrollmentService) Enroll(ctx context.Context, actorID, observationID string, req dto.EnrollStudentsRequest, meta RequestMeta) (*dto.EnrollStudentsResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	obs, err := s.period(ctx, observationID)
	if err != nil {
		return nil, err
	}
	if obs.Status != models.ObservationActive {
		return nil, appErrors.Clone(appErrors.ErrConflict, "observation period is completed")
	}

	ids := uniqueIDs(req.StudentIDs)
	found, err := s.students.ExistsByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to look up students")
	}

	result := &dto.EnrollStudentsResult{Enrolled: []string{}, Skipped: map[string]string{}}
	for _, id := range ids {
		switch {
		case models.InferRole(id) != models.RoleStudent:
			result.Skipped[id] = SkipNotStudent
			continue
		case !found[id]:
			result.Skipped[id] = SkipNotFound
			continue
		}
		if _, err := s.repo.FindActive(ctx, observationID, id); err == nil {
			result.Skipped[id] = SkipAlreadyEnrolled
			continue
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Internal(err, "failed to check enrollment")
		}
		enrollment := &models.Enrollment{
			ObservationID: observationID,
			StudentID:     id,
			Status:        models.EnrollmentActive,
			Notes:         req.Notes,
		}
		if err := s.repo.Create(ctx, enrollment); err != nil {
			if database.IsUniqueViolation(err, "") {
				result.Skipped[id] = SkipAlreadyEnrolled
				continue
			}
			return nil, appErrors.Internal(err, "failed to create enrollment")
		}
		result.Enrolled = append(result.Enrolled, id)
	}
	if len(result.Skipped) == 0 {
		result.Skipped = nil
	}

	recordActivity(ctx, s.activities, s.logger, actorID, models.ActivityEnrollment, "students enrolled", meta, map[string]interface{}{
		"observationId": observationID,
		"enrolled":      len(result.Enrolled),
	})
	return result, nil
}

// UpdateStatus activates or deactivates an enrollment.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, actorID, observationID, enrollmentID string, req dto.UpdateEnrollmentRequest, meta RequestMeta) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Internal(err, "failed to load enrollment")
	}
	if enrollment.ObservationID != observationID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	status := models.EnrollmentStatus(req.Status)
	if status == models.EnrollmentActive && enrollment.Status != models.EnrollmentActive {
		if _, err := s.repo.FindActive(ctx, observationID, enrollment.StudentID); err == nil {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already has an active enrollment in this period")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Internal(err, "failed to check enrollment")
		}
	}
	if err := s.repo.UpdateStatus(ctx, enrollmentID, status, req.Notes); err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already has an active enrollment in this period")
		}
		return nil, appErrors.Internal(err, "failed to update enrollment")
	}
	enrollment.Status = status
	if req.Notes != nil {
		enrollment.Notes = req.Notes
	}
	recordActivity(ctx, s.activities, s.logger, actorID, models.ActivityEnrollment, "enrollment status changed", meta, map[string]interface{}{
		"observationId": observationID,
		"studentId":     enrollment.StudentID,
		"status":        status,
	})
	return enrollment, nil
}

func (s *EnrollmentService) period(ctx context.Context, id string) (*models.Observation, error) {
	obs, err := s.observations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "observation period not found")
		}
		return nil, appErrors.Internal(err, "failed to load observation period")
	}
	return obs, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
