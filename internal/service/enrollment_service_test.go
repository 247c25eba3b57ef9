package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/practicum-api/internal/dto"
	"github.com/noah-isme/practicum-api/internal/models"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments map[string]*models.Enrollment
	createErr   map[string]error
	created     []string
}

func newMockEnrollmentRepo() *mockEnrollmentRepo {
	return &mockEnrollmentRepo{enrollments: map[string]*models.Enrollment{}, createErr: map[string]error{}}
}

func (m *mockEnrollmentRepo) ListByObservation(ctx context.Context, observationID string) ([]models.EnrollmentDetail, error) {
	var out []models.EnrollmentDetail
	for _, e := range m.enrollments {
		if e.ObservationID == observationID {
			out = append(out, models.EnrollmentDetail{Enrollment: *e})
		}
	}
	return out, nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindActive(ctx context.Context, observationID, studentID string) (*models.Enrollment, error) {
	for _, e := range m.enrollments {
		if e.ObservationID == observationID && e.StudentID == studentID && e.Status == models.EnrollmentActive {
			cp := *e
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, e *models.Enrollment) error {
	if err := m.createErr[e.StudentID]; err != nil {
		return err
	}
	e.ID = "enr-" + e.StudentID
	cp := *e
	m.enrollments[e.ID] = &cp
	m.created = append(m.created, e.StudentID)
	return nil
}

func (m *mockEnrollmentRepo) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, notes *string) error {
	e, ok := m.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.Status = status
	if notes != nil {
		e.Notes = notes
	}
	return nil
}

type fakeStudentDirectory struct {
	active map[string]bool
}

func (f fakeStudentDirectory) ExistsByIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	out := map[string]bool{}
	for _, id := range ids {
		if f.active[id] {
			out[id] = true
		}
	}
	return out, nil
}

func newEnrollmentFixture() (*EnrollmentService, *mockEnrollmentRepo, *recordingActivities) {
	repo := newMockEnrollmentRepo()
	observations := &fakeObservationFinder{observations: map[string]*models.Observation{
		"obs-1":  {ID: "obs-1", Status: models.ObservationActive},
		"obs-99": {ID: "obs-99", Status: models.ObservationCompleted},
	}}
	students := fakeStudentDirectory{active: map[string]bool{"2021001": true, "2021002": true, "T001": true}}
	activities := &recordingActivities{}
	return NewEnrollmentService(repo, observations, students, activities, nil, zap.NewNop()), repo, activities
}

func TestEnrollmentServiceEnrollSkipsInvalidStudents(t *testing.T) {
	svc, repo, activities := newEnrollmentFixture()
	require.NoError(t, repo.Create(context.Background(), &models.Enrollment{ObservationID: "obs-1", StudentID: "2021002", Status: models.EnrollmentActive}))
	repo.created = nil

	res, err := svc.Enroll(context.Background(), "A001", "obs-1", dto.EnrollStudentsRequest{
		StudentIDs: []string{"2021001", "2021001", "2021002", "T001", "2029999"},
	}, RequestMeta{})
	require.NoError(t, err)

	assert.Equal(t, []string{"2021001"}, res.Enrolled)
	assert.Equal(t, map[string]string{
		"2021002": SkipAlreadyEnrolled,
		"T001":    SkipNotStudent,
		"2029999": SkipNotFound,
	}, res.Skipped)
	assert.Equal(t, []string{"2021001"}, repo.created)
	assert.Contains(t, activities.actions(), models.ActivityEnrollment)
}

func TestEnrollmentServiceEnrollMapsUniqueViolation(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture()
	repo.createErr["2021001"] = &pq.Error{Code: "23505"}

	res, err := svc.Enroll(context.Background(), "A001", "obs-1", dto.EnrollStudentsRequest{StudentIDs: []string{"2021001"}}, RequestMeta{})
	require.NoError(t, err)
	assert.Empty(t, res.Enrolled)
	assert.Equal(t, SkipAlreadyEnrolled, res.Skipped["2021001"])
}

func TestEnrollmentServiceEnrollRejectsCompletedPeriod(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), "A001", "obs-99", dto.EnrollStudentsRequest{StudentIDs: []string{"2021001"}}, RequestMeta{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = svc.Enroll(context.Background(), "A001", "missing", dto.EnrollStudentsRequest{StudentIDs: []string{"2021001"}}, RequestMeta{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestEnrollmentServiceEnrollValidatesPayload(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), "A001", "obs-1", dto.EnrollStudentsRequest{}, RequestMeta{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestEnrollmentServiceUpdateStatus(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture()
	require.NoError(t, repo.Create(context.Background(), &models.Enrollment{ObservationID: "obs-1", StudentID: "2021001", Status: models.EnrollmentActive}))
	notes := "moved to next cohort"

	updated, err := svc.UpdateStatus(context.Background(), "A001", "obs-1", "enr-2021001", dto.UpdateEnrollmentRequest{Status: "inactive", Notes: &notes}, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentInactive, updated.Status)
	assert.Equal(t, models.EnrollmentInactive, repo.enrollments["enr-2021001"].Status)
	assert.Equal(t, notes, *repo.enrollments["enr-2021001"].Notes)

	_, err = svc.UpdateStatus(context.Background(), "A001", "obs-2", "enr-2021001", dto.UpdateEnrollmentRequest{Status: "active"}, RequestMeta{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestEnrollmentServiceReactivateConflicts(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture()
	repo.enrollments["old"] = &models.Enrollment{ID: "old", ObservationID: "obs-1", StudentID: "2021001", Status: models.EnrollmentInactive}
	repo.enrollments["new"] = &models.Enrollment{ID: "new", ObservationID: "obs-1", StudentID: "2021001", Status: models.EnrollmentActive}

	_, err := svc.UpdateStatus(context.Background(), "A001", "obs-1", "old", dto.UpdateEnrollmentRequest{Status: "active"}, RequestMeta{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestEnrollmentServiceList(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture()

	items, err := svc.List(context.Background(), "obs-1")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)

	require.NoError(t, repo.Create(context.Background(), &models.Enrollment{ObservationID: "obs-1", StudentID: "2021001"}))
	items, err = svc.List(context.Background(), "obs-1")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}
