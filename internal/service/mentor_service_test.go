package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/practicum-api/internal/dto"
	"github.com/noah-isme/practicum-api/internal/models"
	"github.com/noah-isme/practicum-api/internal/repository"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
)

type mentorFixture struct {
	svc     *MentorService
	schools *fakeSchoolStore
	mentors *fakeMentorStore
}

func newMentorFixture() *mentorFixture {
	f := &mentorFixture{schools: newFakeSchoolStore(), mentors: newFakeMentorStore()}
	periods := &fakePeriods{periods: []models.ActivePeriod{periodStartedDaysAgo("obs-1", 4, 2)}}
	eligibility := newTestEligibility(periods, f.schools, f.mentors)
	f.svc = NewMentorService(eligibility, f.mentors, &recordingActivities{}, nil, nil, zap.NewNop())
	return f
}

func (f *mentorFixture) withSchool(t *testing.T, studentID, name string) {
	t.Helper()
	require.NoError(t, f.schools.Create(context.Background(), &models.School{StudentID: studentID, ObservationID: "obs-1", Name: name}))
}

func TestMentorServiceSaveWithoutSchoolIsIneligible(t *testing.T) {
	f := newMentorFixture()

	_, err := f.svc.Save(context.Background(), "2021001", dto.SaveMentorRequest{FirstName: "Ani", LastName: "Wijaya"}, RequestMeta{})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotEligible.Code, appErr.Code)
	assert.Equal(t, false, appErr.Details["eligible"])
	assert.Equal(t, true, appErr.Details["needSchoolInfo"])
	assert.Zero(t, f.mentors.created)
	assert.Zero(t, f.mentors.updated)
}

func TestMentorServiceRequiresNames(t *testing.T) {
	f := newMentorFixture()
	f.withSchool(t, "2021001", "SMA Negeri 1")

	_, err := f.svc.Save(context.Background(), "2021001", dto.SaveMentorRequest{FirstName: "  ", LastName: "Wijaya"}, RequestMeta{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestMentorServiceSecondStudentCannotClaimSameMentor(t *testing.T) {
	f := newMentorFixture()
	f.withSchool(t, "2021001", "SMA Negeri 1")
	f.withSchool(t, "2021002", "SMA Negeri 1")

	resp, err := f.svc.Save(context.Background(), "2021001", dto.SaveMentorRequest{FirstName: "Ani", LastName: "Wijaya"}, RequestMeta{})
	require.NoError(t, err)
	assert.True(t, resp.Created)

	_, err = f.svc.Save(context.Background(), "2021002", dto.SaveMentorRequest{FirstName: "ani", LastName: "WIJAYA "}, RequestMeta{})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrMentorOccupied.Code, appErr.Code)
	assert.Equal(t, true, appErr.Details["mentorOccupied"])
	assert.Equal(t, "Other Student", appErr.Details["occupiedBy"])
	assert.Equal(t, 1, f.mentors.created)
}

func TestMentorServiceSameNameAtOtherSchoolIsFree(t *testing.T) {
	f := newMentorFixture()
	f.withSchool(t, "2021001", "SMA Negeri 1")
	f.withSchool(t, "2021002", "SMA Negeri 2")

	_, err := f.svc.Save(context.Background(), "2021001", dto.SaveMentorRequest{FirstName: "Ani", LastName: "Wijaya"}, RequestMeta{})
	require.NoError(t, err)
	_, err = f.svc.Save(context.Background(), "2021002", dto.SaveMentorRequest{FirstName: "Ani", LastName: "Wijaya"}, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 2, f.mentors.created)
}

func TestMentorServiceUpdatesOwnMentor(t *testing.T) {
	f := newMentorFixture()
	f.withSchool(t, "2021001", "SMA Negeri 1")

	first, err := f.svc.Save(context.Background(), "2021001", dto.SaveMentorRequest{FirstName: "Ani", LastName: "Wijaya"}, RequestMeta{})
	require.NoError(t, err)
	second, err := f.svc.Save(context.Background(), "2021001", dto.SaveMentorRequest{FirstName: "Ani", LastName: "Wijaya", Subject: "Biologi"}, RequestMeta{})
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.MentorID, second.MentorID)
	assert.Equal(t, 1, f.mentors.updated)
	assert.Equal(t, "Biologi", f.mentors.mentors["2021001/obs-1"].Subject)
}

func TestMentorServiceMapsIndexConflict(t *testing.T) {
	f := newMentorFixture()
	f.withSchool(t, "2021001", "SMA Negeri 1")
	f.mentors.createErr = repository.ErrMentorClaimed

	_, err := f.svc.Save(context.Background(), "2021001", dto.SaveMentorRequest{FirstName: "Ani", LastName: "Wijaya"}, RequestMeta{})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, true, appErr.Details["mentorOccupied"])
}

func TestMentorServiceSearchMarksOccupied(t *testing.T) {
	f := newMentorFixture()
	f.withSchool(t, "2021001", "SMA Negeri 1")
	f.mentors.search = []models.MentorSuggestion{
		{FirstName: "Ani", LastName: "Wijaya", StudentID: "2021009", OccupiedBy: "Budi"},
		{FirstName: "Rina", LastName: "Sari", StudentID: "2021001", OccupiedBy: "Siti"},
		{FirstName: "Dedi", LastName: "Kurnia"},
	}

	items, err := f.svc.Search(context.Background(), "2021001", "a")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.True(t, items[0].Occupied)
	assert.Equal(t, "Budi", items[0].OccupiedBy)
	assert.False(t, items[1].Occupied)
	assert.Empty(t, items[1].OccupiedBy)
	assert.False(t, items[2].Occupied)
}
