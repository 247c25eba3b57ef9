package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/practicum-api/internal/dto"
	"github.com/noah-isme/practicum-api/internal/models"
	"github.com/noah-isme/practicum-api/internal/repository"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
)

type feedbackRepository interface {
	Create(ctx context.Context, fb *models.WebsiteFeedback) error
	FindByUser(ctx context.Context, userID string) (*models.WebsiteFeedback, error)
	List(ctx context.Context, page, pageSize int) ([]models.WebsiteFeedback, int, error)
	Summary(ctx context.Context) (*models.FeedbackSummary, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Reasons a user may not leave feedback yet.
const (
	FeedbackReasonAccountTooNew     = "account_too_new"
	FeedbackReasonProfileIncomplete = "profile_incomplete"
	FeedbackReasonAlreadySubmitted  = "already_submitted"
)

// FeedbackService collects the one-per-user website feedback.
type FeedbackService struct {
	repo          feedbackRepository
	users         userFinder
	activities    activityRecorder
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	minAccountAge time.Duration
	now           func() time.Time
}

// NewFeedbackService constructs the service. minAccountAge defaults to three days.
func NewFeedbackService(repo feedbackRepository, users userFinder, activities activityRecorder, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, minAccountAge time.Duration) *FeedbackService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if minAccountAge <= 0 {
		minAccountAge = 72 * time.Hour
	}
	return &FeedbackService{
		repo:          repo,
		users:         users,
		activities:    activities,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
		minAccountAge: minAccountAge,
		now:           time.Now,
	}
}

// Eligibility reports whether the user may submit feedback.
func (s *FeedbackService) Eligibility(ctx context.Context, userID string) (*models.FeedbackEligibility, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	age := s.now().Sub(user.CreatedAt)
	result := &models.FeedbackEligibility{
		AccountAgeDays: int(age.Hours() / 24),
		MissingFields:  user.MissingProfileFields(),
	}

	if _, err := s.repo.FindByUser(ctx, userID); err == nil {
		result.AlreadySubmitted = true
		result.Reason = FeedbackReasonAlreadySubmitted
		return result, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to load feedback")
	}

	switch {
	case age <= s.minAccountAge:
		result.Reason = FeedbackReasonAccountTooNew
	case len(result.MissingFields) > 0:
		result.Reason = FeedbackReasonProfileIncomplete
	default:
		result.Eligible = true
	}
	if len(result.MissingFields) == 0 {
		result.MissingFields = nil
	}
	return result, nil
}

// Submit stores the caller's feedback. Every aspect must be rated once.
func (s *FeedbackService) Submit(ctx context.Context, session *models.Session, req dto.SubmitFeedbackRequest, meta RequestMeta) (*models.WebsiteFeedback, error) {
	fb, err := s.submit(ctx, session, req, meta)
	s.metrics.RecordSubmission(models.SubmissionFeedback, submissionOutcome(err))
	return fb, err
}

func (s *FeedbackService) submit(ctx context.Context, session *models.Session, req dto.SubmitFeedbackRequest, meta RequestMeta) (*models.WebsiteFeedback, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "ratings must be between 1 and 5")
	}
	if err := checkAspects(req.Ratings); err != nil {
		return nil, err
	}

	eligibility, err := s.Eligibility(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if eligibility.AlreadySubmitted {
		return nil, feedbackAlreadySubmitted()
	}
	if !eligibility.Eligible {
		details := map[string]interface{}{"eligible": false, "reason": eligibility.Reason}
		if len(eligibility.MissingFields) > 0 {
			details["missingFields"] = eligibility.MissingFields
		}
		return nil, appErrors.WithDetails(appErrors.ErrNotEligible, "not eligible to submit feedback yet", details)
	}

	fb := &models.WebsiteFeedback{
		UserID:  session.UserID,
		Role:    session.Role(),
		Ratings: models.FeedbackRatings(req.Ratings),
	}
	if req.Comment != nil {
		if c := strings.TrimSpace(*req.Comment); c != "" {
			fb.Comment = &c
		}
	}
	if err := s.repo.Create(ctx, fb); err != nil {
		if errors.Is(err, repository.ErrFeedbackExists) {
			return nil, feedbackAlreadySubmitted()
		}
		return nil, appErrors.Internal(err, "failed to save feedback")
	}
	recordActivity(ctx, s.activities, s.logger, session.UserID, models.ActivityFeedback, "website feedback submitted", meta, nil)
	return fb, nil
}

// List returns all feedback for administrators.
func (s *FeedbackService) List(ctx context.Context, page, pageSize int) ([]models.WebsiteFeedback, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list feedback")
	}
	if items == nil {
		items = []models.WebsiteFeedback{}
	}
	page, pageSize = models.NormalizePage(page, pageSize)
	return items, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Summary returns per-aspect averages.
func (s *FeedbackService) Summary(ctx context.Context) (*models.FeedbackSummary, error) {
	summary, err := s.repo.Summary(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to summarise feedback")
	}
	if summary.Averages == nil {
		summary.Averages = map[string]float64{}
	}
	for _, aspect := range models.FeedbackAspects {
		summary.Averages[aspect] = round2(summary.Averages[aspect])
	}
	return summary, nil
}

func checkAspects(ratings map[string]int) error {
	known := make(map[string]struct{}, len(models.FeedbackAspects))
	var missing []string
	for _, aspect := range models.FeedbackAspects {
		known[aspect] = struct{}{}
		if _, ok := ratings[aspect]; !ok {
			missing = append(missing, aspect)
		}
	}
	var unknown []string
	for key := range ratings {
		if _, ok := known[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(missing) == 0 && len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	details := map[string]interface{}{}
	if len(missing) > 0 {
		details["missing"] = missing
	}
	if len(unknown) > 0 {
		details["unknown"] = unknown
	}
	return appErrors.WithDetails(appErrors.ErrValidation, "every aspect must be rated exactly once", details)
}

func feedbackAlreadySubmitted() error {
	return appErrors.WithDetails(appErrors.ErrAlreadySubmitted, "feedback already submitted", map[string]interface{}{
		"alreadySubmitted": true,
	})
}
