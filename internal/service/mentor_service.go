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
	"github.com/noah-isme/practicum-api/internal/repository"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
)

type mentorStore interface {
	FindByStudent(ctx context.Context, studentID, observationID string) (*models.Mentor, error)
	FindClaim(ctx context.Context, observationID, schoolName, firstName, lastName, excludeStudentID string) (*models.MentorClaim, error)
	Create(ctx context.Context, m *models.Mentor) error
	Update(ctx context.Context, m *models.Mentor) error
	Search(ctx context.Context, observationID, schoolName, q string, limit int) ([]models.MentorSuggestion, error)
}

// MentorService manages mentor-info submissions and the one-mentor-one-student rule.
type MentorService struct {
	eligibility *EligibilityService
	mentors     mentorStore
	activities  activityRecorder
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewMentorService constructs the service.
func NewMentorService(eligibility *EligibilityService, mentors mentorStore, activities activityRecorder, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *MentorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MentorService{
		eligibility: eligibility,
		mentors:     mentors,
		activities:  activities,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// Save creates or updates the caller's mentor for the eligible period.
func (s *MentorService) Save(ctx context.Context, studentID string, req dto.SaveMentorRequest, meta RequestMeta) (*dto.SaveMentorResponse, error) {
	resp, err := s.save(ctx, studentID, req, meta)
	s.metrics.RecordSubmission(models.SubmissionMentor, submissionOutcome(err))
	return resp, err
}

func (s *MentorService) save(ctx context.Context, studentID string, req dto.SaveMentorRequest, meta RequestMeta) (*dto.SaveMentorResponse, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "mentor first and last name are required")
	}

	res, err := s.eligibility.require(ctx, studentID, dto.PurposeMentor)
	if err != nil {
		return nil, err
	}
	period, school := res.Period, res.School

	claim, err := s.mentors.FindClaim(ctx, period.ID, school.Name, req.FirstName, req.LastName, studentID)
	switch {
	case err == nil:
		return nil, mentorOccupied(claim.StudentName())
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Internal(err, "failed to check mentor availability")
	}

	mentor := &models.Mentor{
		ObservationID:   period.ID,
		StudentID:       studentID,
		SchoolID:        school.ID,
		SchoolName:      school.Name,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Title:           strings.TrimSpace(req.Title),
		Position:        strings.TrimSpace(req.Position),
		Subject:         strings.TrimSpace(req.Subject),
		ExperienceYears: req.ExperienceYears,
		Education:       strings.TrimSpace(req.Education),
		Phone:           strings.TrimSpace(req.Phone),
		Email:           strings.TrimSpace(req.Email),
		LastUpdatedBy:   studentID,
	}

	existing, err := s.mentors.FindByStudent(ctx, studentID, period.ID)
	created := false
	switch {
	case err == nil:
		mentor.ID = existing.ID
		err = s.mentors.Update(ctx, mentor)
	case errors.Is(err, sql.ErrNoRows):
		created = true
		err = s.mentors.Create(ctx, mentor)
	default:
		return nil, appErrors.Internal(err, "failed to load mentor")
	}
	if err != nil {
		if errors.Is(err, repository.ErrMentorClaimed) {
			return nil, s.occupiedAfterRace(ctx, period.ID, school.Name, mentor, studentID)
		}
		return nil, appErrors.Internal(err, "failed to save mentor")
	}

	recordActivity(ctx, s.activities, s.logger, studentID, models.ActivityMentorSave, "mentor information saved", meta, map[string]interface{}{
		"observationId": period.ID,
		"mentor":        mentor.FullName(),
		"created":       created,
	})
	return &dto.SaveMentorResponse{MentorID: mentor.ID, Created: created}, nil
}

// occupiedAfterRace resolves the occupying student after the unique index
// rejected a write that passed the pre-check.
func (s *MentorService) occupiedAfterRace(ctx context.Context, periodID, schoolName string, mentor *models.Mentor, studentID string) error {
	claim, err := s.mentors.FindClaim(ctx, periodID, schoolName, mentor.FirstName, mentor.LastName, studentID)
	if err != nil {
		s.logger.Warn("mentor claim lookup after conflict failed", zap.Error(err))
		return mentorOccupied("")
	}
	return mentorOccupied(claim.StudentName())
}

func mentorOccupied(by string) error {
	details := map[string]interface{}{"mentorOccupied": true}
	message := appErrors.ErrMentorOccupied.Message
	if by != "" {
		details["occupiedBy"] = by
		message = "mentor is already linked to " + by
	}
	return appErrors.WithDetails(appErrors.ErrMentorOccupied, message, details)
}

// MySubmission returns the caller's mentor for the current period.
func (s *MentorService) MySubmission(ctx context.Context, studentID string) (*models.Mentor, *dto.Eligibility, error) {
	res, err := s.eligibility.resolve(ctx, studentID, dto.PurposeMentor)
	if err != nil {
		return nil, nil, err
	}
	periodID := res.Eligibility.ObservationID
	if periodID == "" {
		period, err := s.eligibility.CurrentPeriod(ctx, studentID)
		if err != nil {
			return nil, nil, err
		}
		if period == nil {
			return nil, &res.Eligibility, nil
		}
		periodID = period.ID
	}
	mentor, err := s.mentors.FindByStudent(ctx, studentID, periodID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &res.Eligibility, nil
		}
		return nil, nil, appErrors.Internal(err, "failed to load mentor")
	}
	return mentor, &res.Eligibility, nil
}

// Search suggests mentors recorded at the caller's school in the current period.
func (s *MentorService) Search(ctx context.Context, studentID, q string) ([]models.MentorSuggestion, error) {
	res, err := s.eligibility.resolve(ctx, studentID, dto.PurposeMentor)
	if err != nil {
		return nil, err
	}
	if res.School == nil {
		return []models.MentorSuggestion{}, nil
	}
	items, err := s.mentors.Search(ctx, res.Period.ID, res.School.Name, strings.TrimSpace(q), 10)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to search mentors")
	}
	out := make([]models.MentorSuggestion, 0, len(items))
	for _, item := range items {
		if item.StudentID != "" && item.StudentID != studentID {
			item.Occupied = true
		} else {
			item.OccupiedBy = ""
		}
		out = append(out, item)
	}
	return out, nil
}
