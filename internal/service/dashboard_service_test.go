package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/practicum-api/internal/models"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
)

type stubCacheRepo struct {
	store  map[string][]byte
	getErr error
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if s.getErr != nil {
		return s.getErr
	}
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, _ string) error {
	return nil
}

type fakeCounts struct {
	counts models.DashboardCounts
	calls  int
}

func (f *fakeCounts) DashboardCounts(context.Context) (*models.DashboardCounts, error) {
	f.calls++
	c := f.counts
	return &c, nil
}

type fakeStatus struct {
	status models.SystemStatus
}

func (f *fakeStatus) Status(context.Context) (*models.SystemSettings, error) {
	return &models.SystemSettings{Status: f.status}, nil
}

type fakeEvaluationFinder map[string]*models.EvaluationAggregate

func (f fakeEvaluationFinder) Find(ctx context.Context, studentID, observationID string) (*models.EvaluationAggregate, error) {
	if agg, ok := f[studentID+"/"+observationID]; ok {
		return agg, nil
	}
	return nil, sql.ErrNoRows
}

func TestDashboardServiceStudentWithoutPeriod(t *testing.T) {
	schools, mentors := newFakeSchoolStore(), newFakeMentorStore()
	svc := NewDashboardService(DashboardServiceParams{
		Eligibility: newTestEligibility(&fakePeriods{}, schools, mentors),
		Schools:     schools,
		Mentors:     mentors,
		Evaluations: fakeEvaluationFinder{},
	})

	dash, err := svc.Student(context.Background(), "2021001")
	require.NoError(t, err)
	assert.Nil(t, dash.Observation)
	assert.Empty(t, dash.SubmittedAttempts)
	assert.NotNil(t, dash.AttemptsPerWeek)
}

func TestDashboardServiceStudentProgress(t *testing.T) {
	schools, mentors := newFakeSchoolStore(), newFakeMentorStore()
	require.NoError(t, schools.Create(context.Background(), &models.School{StudentID: "2021001", ObservationID: "obs-1", Name: "SMA 1"}))
	require.NoError(t, mentors.Create(context.Background(), &models.Mentor{StudentID: "2021001", ObservationID: "obs-1", FirstName: "Ani", LastName: "Wijaya"}))

	agg := &models.EvaluationAggregate{
		WeekStatus: models.WeekStatus{1: {Count: 2}, 2: {Count: 1}},
		LessonPlan: models.LessonPlan{Uploaded: true},
	}
	agg.Attempts[0] = &models.EvaluationAttempt{Week: 1, Submitted: true}
	agg.Attempts[1] = &models.EvaluationAttempt{Week: 1, Submitted: true}
	agg.Attempts[3] = &models.EvaluationAttempt{Week: 2, Submitted: true}

	periods := &fakePeriods{periods: []models.ActivePeriod{periodStartedDaysAgo("obs-1", 12, 3)}}
	svc := NewDashboardService(DashboardServiceParams{
		Eligibility: newTestEligibility(periods, schools, mentors),
		Schools:     schools,
		Mentors:     mentors,
		Evaluations: fakeEvaluationFinder{"2021001/obs-1": agg},
	})
	svc.now = func() time.Time { return practicumNow }

	dash, err := svc.Student(context.Background(), "2021001")
	require.NoError(t, err)
	require.NotNil(t, dash.Observation)
	assert.Equal(t, 12, dash.DaysPassed)
	assert.True(t, dash.HasSchool)
	assert.Equal(t, "Ani Wijaya", dash.MentorName)
	assert.Equal(t, []int{1, 2, 4}, dash.SubmittedAttempts)
	assert.Equal(t, map[int]int{1: 2, 2: 1}, dash.AttemptsPerWeek)
	assert.True(t, dash.LessonPlanRequired)
	assert.True(t, dash.LessonPlanUploaded)
	assert.True(t, dash.VideoRequired)
	assert.False(t, dash.VideoSubmitted)
}

func TestDashboardServiceAdminComposesAndCaches(t *testing.T) {
	cacheRepo := &stubCacheRepo{}
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	counts := &fakeCounts{counts: models.DashboardCounts{Admins: 1, Teachers: 2, Students: 30, ActiveObservations: 1, SubmittedAttempts: 45}}
	status := &fakeStatus{status: models.SystemOnline}
	svc := NewDashboardService(DashboardServiceParams{Counts: counts, Status: status, Cache: cacheSvc})

	first, hit, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 30, first.UsersByRole[models.RoleStudent])
	assert.Equal(t, models.SystemOnline, first.Status)

	status.status = models.SystemMaintenance
	second, hit, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, counts.calls)
	assert.Equal(t, first.UsersByRole, second.UsersByRole)
	assert.Equal(t, 45, second.SubmittedAttempts)
	assert.Equal(t, models.SystemMaintenance, second.Status)
}

func TestDashboardServiceAdminFallsBackWhenCacheFails(t *testing.T) {
	cacheRepo := &stubCacheRepo{getErr: errors.New("redis down")}
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	counts := &fakeCounts{counts: models.DashboardCounts{Students: 3}}
	svc := NewDashboardService(DashboardServiceParams{Counts: counts, Cache: cacheSvc})

	dash, hit, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 3, dash.UsersByRole[models.RoleStudent])
}
