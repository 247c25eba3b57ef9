package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/practicum-api/internal/dto"
	"github.com/noah-isme/practicum-api/internal/models"
	"github.com/noah-isme/practicum-api/internal/repository"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
)

type schoolStore interface {
	FindByStudent(ctx context.Context, studentID, observationID string) (*models.School, error)
	Create(ctx context.Context, school *models.School) error
	Update(ctx context.Context, school *models.School) error
	ChangeSchool(ctx context.Context, change repository.SchoolChange) (*repository.SchoolChangeResult, error)
	Search(ctx context.Context, q string, limit int) ([]models.SchoolSuggestion, error)
}

type evaluationPresence interface {
	Exists(ctx context.Context, studentID, observationID string) (bool, error)
}

// SchoolService manages the school-info submission of students.
type SchoolService struct {
	eligibility *EligibilityService
	schools     schoolStore
	mentors     mentorLookup
	evaluations evaluationPresence
	activities  activityRecorder
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewSchoolService constructs the service.
func NewSchoolService(eligibility *EligibilityService, schools schoolStore, mentors mentorLookup, evaluations evaluationPresence, activities activityRecorder, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SchoolService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchoolService{
		eligibility: eligibility,
		schools:     schools,
		mentors:     mentors,
		evaluations: evaluations,
		activities:  activities,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// Save creates, updates or replaces the student's school for the eligible period.
func (s *SchoolService) Save(ctx context.Context, studentID string, req dto.SaveSchoolRequest, meta RequestMeta) (*dto.SaveSchoolResponse, error) {
	resp, err := s.save(ctx, studentID, req, meta)
	s.metrics.RecordSubmission(models.SubmissionSchool, submissionOutcome(err))
	return resp, err
}

func (s *SchoolService) save(ctx context.Context, studentID string, req dto.SaveSchoolRequest, meta RequestMeta) (*dto.SaveSchoolResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid school payload")
	}

	res, err := s.eligibility.require(ctx, studentID, dto.PurposeSchool)
	if err != nil {
		return nil, err
	}
	period := res.Period
	incoming := schoolFromRequest(studentID, period.ID, req)

	existing := res.School
	if existing == nil {
		if err := s.schools.Create(ctx, incoming); err != nil {
			return nil, appErrors.Internal(err, "failed to save school")
		}
		recordActivity(ctx, s.activities, s.logger, studentID, models.ActivitySchoolSave, "school information submitted", meta,
			map[string]interface{}{"observationId": period.ID, "schoolName": incoming.Name})
		return &dto.SaveSchoolResponse{SchoolID: incoming.ID, Created: true}, nil
	}

	incoming.ID = existing.ID
	if strings.EqualFold(existing.Name, incoming.Name) {
		if err := s.schools.Update(ctx, incoming); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrForbidden, "school belongs to another student")
			}
			return nil, appErrors.Internal(err, "failed to update school")
		}
		recordActivity(ctx, s.activities, s.logger, studentID, models.ActivitySchoolSave, "school information updated", meta,
			map[string]interface{}{"observationId": period.ID, "schoolName": incoming.Name})
		return &dto.SaveSchoolResponse{SchoolID: existing.ID}, nil
	}

	return s.change(ctx, studentID, res, existing, incoming, req, meta)
}

// change switches the student to a differently named school, cascading the
// mentor and evaluation aggregate in one transaction.
func (s *SchoolService) change(ctx context.Context, studentID string, res *resolution, existing, incoming *models.School, req dto.SaveSchoolRequest, meta RequestMeta) (*dto.SaveSchoolResponse, error) {
	if !res.Eligibility.CanChange {
		return nil, appErrors.WithDetails(appErrors.ErrChangeWindowExpired, "schools can only be changed during the first week of the period",
			map[string]interface{}{"changeWindowExpired": true, "daysPassed": res.Eligibility.DaysPassed})
	}

	periodID := res.Period.ID
	hasMentor := true
	if _, err := s.mentors.FindByStudent(ctx, studentID, periodID); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Internal(err, "failed to load mentor")
		}
		hasMentor = false
	}
	hasEvaluations, err := s.evaluations.Exists(ctx, studentID, periodID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check evaluations")
	}

	flags := map[string]interface{}{
		"requiresConfirmation": true,
		"hasMentor":            hasMentor,
		"hasEvaluations":       hasEvaluations,
		"currentSchool":        existing.Name,
	}
	if (hasMentor || hasEvaluations) && !req.ConfirmChange {
		return nil, appErrors.WithDetails(appErrors.ErrConfirmationRequired, "changing school removes your mentor and evaluations", flags)
	}
	if hasEvaluations && !req.DeleteEvaluations {
		return nil, appErrors.WithDetails(appErrors.ErrConfirmationRequired, "confirm that your submitted evaluations will be deleted", flags)
	}

	result, err := s.schools.ChangeSchool(ctx, repository.SchoolChange{
		School:           incoming,
		DeleteMentor:     hasMentor,
		DeleteEvaluation: hasEvaluations,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "school belongs to another student")
		}
		return nil, appErrors.Internal(err, "failed to change school")
	}

	s.logger.Info("student changed school",
		zap.String("student_id", studentID),
		zap.String("observation_id", periodID),
		zap.Int64("mentors_deleted", result.MentorsDeleted),
		zap.Int64("evaluations_deleted", result.EvaluationsDeleted))
	recordActivity(ctx, s.activities, s.logger, studentID, models.ActivitySchoolChange, "school changed", meta, map[string]interface{}{
		"observationId":      periodID,
		"from":               existing.Name,
		"to":                 incoming.Name,
		"mentorDeleted":      result.MentorsDeleted > 0,
		"evaluationsDeleted": result.EvaluationsDeleted > 0,
	})

	return &dto.SaveSchoolResponse{
		SchoolID:          existing.ID,
		Changed:           true,
		MentorRemoved:     result.MentorsDeleted > 0,
		EvaluationsPurged: result.EvaluationsDeleted > 0,
	}, nil
}

// MySubmission returns the school stored for the current period.
func (s *SchoolService) MySubmission(ctx context.Context, studentID string) (*models.School, *dto.Eligibility, error) {
	res, err := s.eligibility.resolve(ctx, studentID, dto.PurposeSchool)
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
	school, err := s.schools.FindByStudent(ctx, studentID, periodID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &res.Eligibility, nil
		}
		return nil, nil, appErrors.Internal(err, "failed to load school")
	}
	return school, &res.Eligibility, nil
}

// Search suggests earlier school submissions by name for autofill.
func (s *SchoolService) Search(ctx context.Context, q string) ([]models.SchoolSuggestion, error) {
	q = strings.TrimSpace(q)
	if len(q) < 2 {
		return []models.SchoolSuggestion{}, nil
	}
	items, err := s.schools.Search(ctx, q, 10)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to search schools")
	}
	if items == nil {
		items = []models.SchoolSuggestion{}
	}
	return items, nil
}

func schoolFromRequest(studentID, observationID string, req dto.SaveSchoolRequest) *models.School {
	levels := make(pq.StringArray, 0, len(req.GradeLevels))
	seen := make(map[string]struct{}, len(req.GradeLevels))
	for _, lvl := range req.GradeLevels {
		lvl = strings.TrimSpace(lvl)
		if lvl == "" {
			continue
		}
		if _, dup := seen[lvl]; dup {
			continue
		}
		seen[lvl] = struct{}{}
		levels = append(levels, lvl)
	}
	return &models.School{
		ObservationID: observationID,
		StudentID:     studentID,
		Name:          req.Name,
		Affiliation:   strings.TrimSpace(req.Affiliation),
		Address:       strings.TrimSpace(req.Address),
		District:      strings.TrimSpace(req.District),
		City:          strings.TrimSpace(req.City),
		Province:      strings.TrimSpace(req.Province),
		PostalCode:    strings.TrimSpace(req.PostalCode),
		GradeLevels:   levels,
		Principal:     strings.TrimSpace(req.Principal),
		StudentCount:  req.StudentCount,
		TeacherCount:  req.TeacherCount,
		StaffCount:    req.StaffCount,
		Phone:         strings.TrimSpace(req.Phone),
		Email:         strings.TrimSpace(req.Email),
		LastUpdatedBy: studentID,
	}
}

// submissionOutcome maps a submission error to the metrics outcome label.
func submissionOutcome(err error) string {
	if err == nil {
		return SubmissionAccepted
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) && appErr.Status < 500 {
		return SubmissionRejected
	}
	return SubmissionFailed
}
