package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/practicum-api/internal/dto"
	"github.com/noah-isme/practicum-api/internal/models"
	"github.com/noah-isme/practicum-api/internal/repository"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
)

var practicumNow = time.Date(2024, 9, 20, 10, 0, 0, 0, time.UTC)

type fakePeriods struct {
	periods []models.ActivePeriod
	err     error
}

func (f *fakePeriods) ListActiveForStudent(ctx context.Context, studentID string) ([]models.ActivePeriod, error) {
	return f.periods, f.err
}

func periodStartedDaysAgo(id string, days int, yearLevel int) models.ActivePeriod {
	start := practicumNow.Add(-time.Duration(days) * 24 * time.Hour)
	return models.ActivePeriod{
		Observation: models.Observation{
			ID:        id,
			Name:      "PLP " + id,
			YearLevel: yearLevel,
			StartDate: start,
			EndDate:   start.Add(60 * 24 * time.Hour),
			Status:    models.ObservationActive,
		},
		EnrollmentID: "enr-" + id,
	}
}

type fakeSchoolStore struct {
	schools map[string]*models.School
	changes []repository.SchoolChange
	created int
	updated int
	search  []models.SchoolSuggestion
}

func newFakeSchoolStore() *fakeSchoolStore {
	return &fakeSchoolStore{schools: map[string]*models.School{}}
}

func schoolKey(studentID, observationID string) string { return studentID + "/" + observationID }

func (f *fakeSchoolStore) FindByStudent(ctx context.Context, studentID, observationID string) (*models.School, error) {
	s, ok := f.schools[schoolKey(studentID, observationID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSchoolStore) Create(ctx context.Context, school *models.School) error {
	if school.ID == "" {
		school.ID = "school-" + school.StudentID
	}
	cp := *school
	f.schools[schoolKey(school.StudentID, school.ObservationID)] = &cp
	f.created++
	return nil
}

func (f *fakeSchoolStore) Update(ctx context.Context, school *models.School) error {
	cp := *school
	f.schools[schoolKey(school.StudentID, school.ObservationID)] = &cp
	f.updated++
	return nil
}

func (f *fakeSchoolStore) ChangeSchool(ctx context.Context, change repository.SchoolChange) (*repository.SchoolChangeResult, error) {
	f.changes = append(f.changes, change)
	cp := *change.School
	f.schools[schoolKey(cp.StudentID, cp.ObservationID)] = &cp
	result := &repository.SchoolChangeResult{}
	if change.DeleteMentor {
		result.MentorsDeleted = 1
	}
	if change.DeleteEvaluation {
		result.EvaluationsDeleted = 1
	}
	return result, nil
}

func (f *fakeSchoolStore) Search(ctx context.Context, q string, limit int) ([]models.SchoolSuggestion, error) {
	return f.search, nil
}

type fakeMentorStore struct {
	mentors map[string]*models.Mentor
	created int
	updated int
	search  []models.MentorSuggestion
	// createErr is returned by Create, simulating a lost race on the unique index.
	createErr error
}

func newFakeMentorStore() *fakeMentorStore {
	return &fakeMentorStore{mentors: map[string]*models.Mentor{}}
}

func (f *fakeMentorStore) FindByStudent(ctx context.Context, studentID, observationID string) (*models.Mentor, error) {
	m, ok := f.mentors[schoolKey(studentID, observationID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMentorStore) FindClaim(ctx context.Context, observationID, schoolName, firstName, lastName, excludeStudentID string) (*models.MentorClaim, error) {
	for _, m := range f.mentors {
		if m.ObservationID != observationID || m.StudentID == excludeStudentID {
			continue
		}
		if strings.EqualFold(m.SchoolName, strings.TrimSpace(schoolName)) &&
			strings.EqualFold(m.FirstName, strings.TrimSpace(firstName)) &&
			strings.EqualFold(m.LastName, strings.TrimSpace(lastName)) {
			return &models.MentorClaim{MentorID: m.ID, StudentID: m.StudentID, StudentFirstName: "Other", StudentLastName: "Student"}, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeMentorStore) Create(ctx context.Context, m *models.Mentor) error {
	if f.createErr != nil {
		return f.createErr
	}
	if m.ID == "" {
		m.ID = "mentor-" + m.StudentID
	}
	cp := *m
	f.mentors[schoolKey(m.StudentID, m.ObservationID)] = &cp
	f.created++
	return nil
}

func (f *fakeMentorStore) Update(ctx context.Context, m *models.Mentor) error {
	cp := *m
	f.mentors[schoolKey(m.StudentID, m.ObservationID)] = &cp
	f.updated++
	return nil
}

func (f *fakeMentorStore) Search(ctx context.Context, observationID, schoolName, q string, limit int) ([]models.MentorSuggestion, error) {
	return f.search, nil
}

func newTestEligibility(periods *fakePeriods, schools *fakeSchoolStore, mentors *fakeMentorStore) *EligibilityService {
	svc := NewEligibilityService(periods, schools, mentors, EligibilityConfig{}, zap.NewNop())
	svc.now = func() time.Time { return practicumNow }
	return svc
}

func TestEligibilitySchoolWithinWindow(t *testing.T) {
	periods := &fakePeriods{periods: []models.ActivePeriod{periodStartedDaysAgo("obs-1", 5, 2)}}
	svc := newTestEligibility(periods, newFakeSchoolStore(), newFakeMentorStore())

	result, err := svc.Resolve(context.Background(), "2021001", dto.PurposeSchool)
	require.NoError(t, err)
	assert.True(t, result.Eligible)
	assert.Equal(t, "obs-1", result.ObservationID)
	assert.Equal(t, 5, result.DaysPassed)
	assert.Equal(t, 10, result.DaysRemaining)
	assert.True(t, result.CanChange)
}

func TestEligibilityRejectsPeriodStartedTwentyDaysAgo(t *testing.T) {
	periods := &fakePeriods{periods: []models.ActivePeriod{periodStartedDaysAgo("obs-1", 20, 2)}}
	svc := newTestEligibility(periods, newFakeSchoolStore(), newFakeMentorStore())

	result, err := svc.Resolve(context.Background(), "2021001", dto.PurposeSchool)
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Equal(t, dto.ReasonWindowClosed, result.Reason)
}

func TestEligibilityBoundaryDayFifteenIsOpen(t *testing.T) {
	periods := &fakePeriods{periods: []models.ActivePeriod{periodStartedDaysAgo("obs-1", 15, 1)}}
	svc := newTestEligibility(periods, newFakeSchoolStore(), newFakeMentorStore())

	result, err := svc.Resolve(context.Background(), "2021001", dto.PurposeSchool)
	require.NoError(t, err)
	assert.True(t, result.Eligible)
	assert.False(t, result.CanChange)
	assert.Equal(t, 0, result.DaysRemaining)
}

func TestEligibilityNoActivePeriod(t *testing.T) {
	svc := newTestEligibility(&fakePeriods{}, newFakeSchoolStore(), newFakeMentorStore())

	result, err := svc.Resolve(context.Background(), "2021001", dto.PurposeSchool)
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Equal(t, dto.ReasonNoActiveObservation, result.Reason)
}

func TestEligibilityPeriodNotStarted(t *testing.T) {
	periods := &fakePeriods{periods: []models.ActivePeriod{periodStartedDaysAgo("obs-1", -3, 1)}}
	svc := newTestEligibility(periods, newFakeSchoolStore(), newFakeMentorStore())

	result, err := svc.Resolve(context.Background(), "2021001", dto.PurposeSchool)
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Equal(t, dto.ReasonTooNew, result.Reason)
}

func TestEligibilityPicksFirstPeriodInsideWindow(t *testing.T) {
	periods := &fakePeriods{periods: []models.ActivePeriod{
		periodStartedDaysAgo("old", 40, 1),
		periodStartedDaysAgo("current", 2, 2),
	}}
	svc := newTestEligibility(periods, newFakeSchoolStore(), newFakeMentorStore())

	result, err := svc.Resolve(context.Background(), "2021001", dto.PurposeSchool)
	require.NoError(t, err)
	assert.True(t, result.Eligible)
	assert.Equal(t, "current", result.ObservationID)
}

func TestEligibilityMentorNeedsSchool(t *testing.T) {
	periods := &fakePeriods{periods: []models.ActivePeriod{periodStartedDaysAgo("obs-1", 3, 2)}}
	schools := newFakeSchoolStore()
	svc := newTestEligibility(periods, schools, newFakeMentorStore())

	result, err := svc.Resolve(context.Background(), "2021001", dto.PurposeMentor)
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.True(t, result.NeedSchoolInfo)
	assert.Equal(t, dto.ReasonNeedSchoolInfo, result.Reason)

	require.NoError(t, schools.Create(context.Background(), &models.School{StudentID: "2021001", ObservationID: "obs-1", Name: "SMA 1"}))
	result, err = svc.Resolve(context.Background(), "2021001", dto.PurposeMentor)
	require.NoError(t, err)
	assert.True(t, result.Eligible)
	assert.Equal(t, "SMA 1", result.SchoolName)
}

func TestEligibilityEvaluationAfterSchoolWindow(t *testing.T) {
	periods := &fakePeriods{periods: []models.ActivePeriod{periodStartedDaysAgo("obs-1", 30, 2)}}
	schools := newFakeSchoolStore()
	mentors := newFakeMentorStore()
	svc := newTestEligibility(periods, schools, mentors)

	require.NoError(t, schools.Create(context.Background(), &models.School{StudentID: "2021001", ObservationID: "obs-1", Name: "SMA 1"}))
	result, err := svc.Resolve(context.Background(), "2021001", dto.PurposeEvaluation)
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.True(t, result.NeedMentorInfo)

	require.NoError(t, mentors.Create(context.Background(), &models.Mentor{StudentID: "2021001", ObservationID: "obs-1", FirstName: "Ani"}))
	result, err = svc.Resolve(context.Background(), "2021001", dto.PurposeEvaluation)
	require.NoError(t, err)
	assert.True(t, result.Eligible)
	assert.Equal(t, 30, result.DaysRemaining)
}

func TestEligibilityEvaluationClosedAfterEndDate(t *testing.T) {
	periods := &fakePeriods{periods: []models.ActivePeriod{periodStartedDaysAgo("obs-1", 61, 2)}}
	svc := newTestEligibility(periods, newFakeSchoolStore(), newFakeMentorStore())

	result, err := svc.Resolve(context.Background(), "2021001", dto.PurposeEvaluation)
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Equal(t, dto.ReasonWindowClosed, result.Reason)
}

func TestEligibilityRequireCarriesFlags(t *testing.T) {
	periods := &fakePeriods{periods: []models.ActivePeriod{periodStartedDaysAgo("obs-1", 3, 2)}}
	svc := newTestEligibility(periods, newFakeSchoolStore(), newFakeMentorStore())

	_, err := svc.require(context.Background(), "2021001", dto.PurposeMentor)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotEligible.Code, appErr.Code)
	assert.Equal(t, true, appErr.Details["needSchoolInfo"])
	assert.Equal(t, false, appErr.Details["eligible"])
}

func TestEligibilityCurrentPeriod(t *testing.T) {
	periods := &fakePeriods{periods: []models.ActivePeriod{
		periodStartedDaysAgo("ended", 90, 1),
		periodStartedDaysAgo("running", 25, 2),
	}}
	svc := newTestEligibility(periods, newFakeSchoolStore(), newFakeMentorStore())

	current, err := svc.CurrentPeriod(context.Background(), "2021001")
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "running", current.ID)
}
