package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/practicum-api/internal/dto"
	"github.com/noah-isme/practicum-api/internal/models"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
)

type observationRepository interface {
	List(ctx context.Context, filter models.ObservationFilter) ([]models.Observation, int, error)
	FindByID(ctx context.Context, id string) (*models.Observation, error)
	Create(ctx context.Context, obs *models.Observation) error
	Update(ctx context.Context, obs *models.Observation) error
	SetStatus(ctx context.Context, id string, status models.ObservationStatus) error
	CompleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ObservationService manages observation periods.
type ObservationService struct {
	repo       observationRepository
	activities activityRecorder
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewObservationService constructs the service.
func NewObservationService(repo observationRepository, activities activityRecorder, validate *validator.Validate, logger *zap.Logger) *ObservationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ObservationService{repo: repo, activities: activities, validator: validate, logger: logger, now: time.Now}
}

// List returns periods with pagination metadata.
func (s *ObservationService) List(ctx context.Context, filter models.ObservationFilter) ([]models.Observation, *models.Pagination, error) {
	if filter.Status != nil && *filter.Status != models.ObservationActive && *filter.Status != models.ObservationCompleted {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "status must be active or completed")
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list observation periods")
	}
	if items == nil {
		items = []models.Observation{}
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one period.
func (s *ObservationService) Get(ctx context.Context, id string) (*models.Observation, error) {
	obs, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "observation period not found")
		}
		return nil, appErrors.Internal(err, "failed to load observation period")
	}
	return obs, nil
}

// Create registers a new active period.
func (s *ObservationService) Create(ctx context.Context, actorID string, req dto.CreateObservationRequest, meta RequestMeta) (*models.Observation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid observation payload")
	}
	if err := validatePeriodDates(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}
	obs := &models.Observation{
		Name:         strings.TrimSpace(req.Name),
		AcademicYear: strings.TrimSpace(req.AcademicYear),
		YearLevel:    req.YearLevel,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Status:       models.ObservationActive,
		Description:  req.Description,
		CreatedBy:    actorID,
	}
	if err := s.repo.Create(ctx, obs); err != nil {
		return nil, appErrors.Internal(err, "failed to create observation period")
	}
	recordActivity(ctx, s.activities, s.logger, actorID, models.ActivityObservationEdit, "observation period created", meta, map[string]interface{}{
		"observationId": obs.ID,
		"name":          obs.Name,
	})
	return obs, nil
}

// Update replaces the editable fields of a period.
func (s *ObservationService) Update(ctx context.Context, actorID, id string, req dto.UpdateObservationRequest, meta RequestMeta) (*models.Observation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid observation payload")
	}
	if err := validatePeriodDates(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}
	obs, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	obs.Name = strings.TrimSpace(req.Name)
	obs.AcademicYear = strings.TrimSpace(req.AcademicYear)
	obs.YearLevel = req.YearLevel
	obs.StartDate = req.StartDate
	obs.EndDate = req.EndDate
	obs.Description = req.Description
	if err := s.repo.Update(ctx, obs); err != nil {
		return nil, appErrors.Internal(err, "failed to update observation period")
	}
	recordActivity(ctx, s.activities, s.logger, actorID, models.ActivityObservationEdit, "observation period updated", meta, map[string]interface{}{
		"observationId": obs.ID,
	})
	return obs, nil
}

// Complete closes a period manually.
func (s *ObservationService) Complete(ctx context.Context, actorID, id string, meta RequestMeta) (*models.Observation, error) {
	obs, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if obs.Status == models.ObservationCompleted {
		return obs, nil
	}
	if err := s.repo.SetStatus(ctx, id, models.ObservationCompleted); err != nil {
		return nil, appErrors.Internal(err, "failed to complete observation period")
	}
	obs.Status = models.ObservationCompleted
	recordActivity(ctx, s.activities, s.logger, actorID, models.ActivityObservationDone, "observation period completed", meta, map[string]interface{}{
		"observationId": obs.ID,
	})
	return obs, nil
}

// CompleteExpired marks every active period past its end date as completed.
func (s *ObservationService) CompleteExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.CompleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, appErrors.Internal(err, "failed to complete expired observation periods")
	}
	if n > 0 {
		s.logger.Info("observation periods auto-completed", zap.Int64("count", n))
	}
	return n, nil
}

func validatePeriodDates(start, end time.Time) error {
	if end.Before(start) {
		return appErrors.WithDetails(appErrors.ErrValidation, "endDate must not be before startDate", map[string]interface{}{
			"field": "endDate",
		})
	}
	return nil
}
