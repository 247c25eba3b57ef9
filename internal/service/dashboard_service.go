package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/practicum-api/internal/models"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
)

type dashboardCounter interface {
	DashboardCounts(ctx context.Context) (*models.DashboardCounts, error)
}

type evaluationFinder interface {
	Find(ctx context.Context, studentID, observationID string) (*models.EvaluationAggregate, error)
}

type statusReader interface {
	Status(ctx context.Context) (*models.SystemSettings, error)
}

const (
	adminDashboardCacheKey = "dash:admin"
	dashboardCachePattern  = "dash:*"
)

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Eligibility *EligibilityService
	Schools     schoolLookup
	Mentors     mentorLookup
	Evaluations evaluationFinder
	Counts      dashboardCounter
	Status      statusReader
	Metrics     *MetricsService
	Cache       *CacheService
	Logger      *zap.Logger
	Config      DashboardServiceConfig
}

// DashboardService composes the landing views.
type DashboardService struct {
	eligibility *EligibilityService
	schools     schoolLookup
	mentors     mentorLookup
	evaluations evaluationFinder
	counts      dashboardCounter
	status      statusReader
	metrics     *MetricsService
	cache       *CacheService
	logger      *zap.Logger
	now         func() time.Time
	cfg         DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		eligibility: params.Eligibility,
		schools:     params.Schools,
		mentors:     params.Mentors,
		evaluations: params.Evaluations,
		counts:      params.Counts,
		status:      params.Status,
		metrics:     params.Metrics,
		cache:       params.Cache,
		logger:      logger,
		now:         time.Now,
		cfg:         cfg,
	}
}

// Student returns the progress view of the caller's current period.
func (s *DashboardService) Student(ctx context.Context, studentID string) (*models.StudentDashboard, error) {
	dash := &models.StudentDashboard{SubmittedAttempts: []int{}, AttemptsPerWeek: map[int]int{}}
	period, err := s.eligibility.CurrentPeriod(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return dash, nil
	}
	obs := period.Observation
	dash.Observation = &obs
	dash.DaysPassed = maxInt(obs.DaysPassed(s.now()), 0)
	dash.LessonPlanRequired = obs.YearLevel == 2 || obs.YearLevel == 3
	dash.VideoRequired = obs.YearLevel == 3

	school, err := s.schools.FindByStudent(ctx, studentID, obs.ID)
	switch {
	case err == nil:
		dash.HasSchool = true
		dash.SchoolName = school.Name
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Internal(err, "failed to load school")
	}
	mentor, err := s.mentors.FindByStudent(ctx, studentID, obs.ID)
	switch {
	case err == nil:
		dash.HasMentor = true
		dash.MentorName = mentor.FullName()
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Internal(err, "failed to load mentor")
	}

	agg, err := s.evaluations.Find(ctx, studentID, obs.ID)
	switch {
	case err == nil:
		dash.SubmittedAttempts = agg.Attempts.SubmittedNumbers()
		for _, week := range agg.WeekStatus.Weeks() {
			dash.AttemptsPerWeek[week] = agg.WeekStatus[week].Count
		}
		dash.LessonPlanUploaded = agg.LessonPlan.Uploaded
		dash.VideoSubmitted = agg.VideoLink.Submitted
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Internal(err, "failed to load evaluations")
	}
	return dash, nil
}

// Admin returns platform counts and indicates whether they came from cache.
// System status and process metrics are always read fresh.
func (s *DashboardService) Admin(ctx context.Context) (*models.AdminDashboard, bool, error) {
	dash, hit := s.tryAdminCache(ctx)
	if !hit {
		var err error
		dash, err = s.composeAdmin(ctx)
		if err != nil {
			return nil, false, err
		}
		s.persistCache(ctx, adminDashboardCacheKey, dash)
	}

	if s.status != nil {
		settings, err := s.status.Status(ctx)
		if err != nil {
			return nil, false, err
		}
		dash.Status = settings.Status
	}
	dash.System = s.metrics.Snapshot()
	return dash, hit, nil
}

func (s *DashboardService) composeAdmin(ctx context.Context) (*models.AdminDashboard, error) {
	counts, err := s.counts.DashboardCounts(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load dashboard counts")
	}
	return &models.AdminDashboard{
		UsersByRole: map[models.UserRole]int{
			models.RoleAdmin:   counts.Admins,
			models.RoleTeacher: counts.Teachers,
			models.RoleStudent: counts.Students,
		},
		ActiveObservations: counts.ActiveObservations,
		ActiveEnrollments:  counts.ActiveEnrollments,
		SubmittedAttempts:  counts.SubmittedAttempts,
		LessonPlans:        counts.LessonPlans,
		VideoLinks:         counts.VideoLinks,
		Schools:            counts.Schools,
		Mentors:            counts.Mentors,
		GeneratedAt:        s.now().UTC(),
	}, nil
}

// tryAdminCache treats cache failures as misses; CacheService already logs them.
func (s *DashboardService) tryAdminCache(ctx context.Context) (*models.AdminDashboard, bool) {
	if s.cache == nil {
		return nil, false
	}
	var cached models.AdminDashboard
	hit, err := s.cache.Get(ctx, adminDashboardCacheKey, &cached)
	if err != nil || !hit {
		return nil, false
	}
	return &cached, true
}

func (s *DashboardService) persistCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}
