package service

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/practicum-api/internal/dto"
	"github.com/noah-isme/practicum-api/internal/models"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
)

// memoryEvaluationStore mimics the conditional updates of the SQL store.
type memoryEvaluationStore struct {
	aggregates map[string]*models.EvaluationAggregate
	// rejectLessonPlan makes SetLessonPlan lose the race once.
	rejectLessonPlan bool
}

func newMemoryEvaluationStore() *memoryEvaluationStore {
	return &memoryEvaluationStore{aggregates: map[string]*models.EvaluationAggregate{}}
}

func (m *memoryEvaluationStore) Ensure(ctx context.Context, studentID, observationID string) error {
	key := schoolKey(studentID, observationID)
	if _, ok := m.aggregates[key]; !ok {
		m.aggregates[key] = &models.EvaluationAggregate{ID: "agg-" + studentID, StudentID: studentID, ObservationID: observationID, WeekStatus: models.WeekStatus{}}
	}
	return nil
}

func (m *memoryEvaluationStore) Find(ctx context.Context, studentID, observationID string) (*models.EvaluationAggregate, error) {
	agg, ok := m.aggregates[schoolKey(studentID, observationID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *agg
	return &cp, nil
}

func (m *memoryEvaluationStore) SubmitAttempt(ctx context.Context, studentID, observationID string, n int, attempt models.EvaluationAttempt) (bool, error) {
	agg, ok := m.aggregates[schoolKey(studentID, observationID)]
	if !ok || agg.Attempts[n-1] != nil {
		return false, nil
	}
	at := attempt
	agg.Attempts[n-1] = &at
	progress := agg.WeekStatus[attempt.Week]
	progress.Count++
	progress.LastUpdated = attempt.SubmittedAt
	agg.WeekStatus[attempt.Week] = progress
	return true, nil
}

func (m *memoryEvaluationStore) SetLessonPlan(ctx context.Context, studentID, observationID string, plan models.LessonPlan) (bool, error) {
	if m.rejectLessonPlan {
		m.rejectLessonPlan = false
		return false, nil
	}
	agg, ok := m.aggregates[schoolKey(studentID, observationID)]
	if !ok || agg.LessonPlan.Uploaded {
		return false, nil
	}
	agg.LessonPlan = plan
	return true, nil
}

func (m *memoryEvaluationStore) SetVideoLink(ctx context.Context, studentID, observationID string, link models.VideoLink) (bool, error) {
	agg, ok := m.aggregates[schoolKey(studentID, observationID)]
	if !ok || agg.VideoLink.Submitted {
		return false, nil
	}
	agg.VideoLink = link
	return true, nil
}

type fakeProgress struct {
	calls int
}

func (f *fakeProgress) RefreshProgress(ctx context.Context, observationID, studentID string) error {
	f.calls++
	return nil
}

type memoryObjectStore struct {
	objects map[string][]byte
	deleted []string
}

func newMemoryObjectStore() *memoryObjectStore {
	return &memoryObjectStore{objects: map[string][]byte{}}
}

func (m *memoryObjectStore) PutObject(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.objects[key] = data
	return "https://cdn.test/" + key, nil
}

func (m *memoryObjectStore) DeleteObject(ctx context.Context, key string) error {
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

type evaluationFixture struct {
	svc      *EvaluationService
	store    *memoryEvaluationStore
	objects  *memoryObjectStore
	progress *fakeProgress
}

func newEvaluationFixture(t *testing.T, yearLevel int) *evaluationFixture {
	t.Helper()
	periods := &fakePeriods{periods: []models.ActivePeriod{periodStartedDaysAgo("obs-1", 20, yearLevel)}}
	schools := newFakeSchoolStore()
	mentors := newFakeMentorStore()
	require.NoError(t, schools.Create(context.Background(), &models.School{StudentID: "2021001", ObservationID: "obs-1", Name: "SMA 1"}))
	require.NoError(t, mentors.Create(context.Background(), &models.Mentor{StudentID: "2021001", ObservationID: "obs-1", FirstName: "Ani", LastName: "Wijaya"}))

	f := &evaluationFixture{
		store:    newMemoryEvaluationStore(),
		objects:  newMemoryObjectStore(),
		progress: &fakeProgress{},
	}
	eligibility := newTestEligibility(periods, schools, mentors)
	f.svc = NewEvaluationService(eligibility, f.store, f.progress, f.objects, &recordingActivities{}, nil, nil, zap.NewNop(), EvaluationConfig{LessonPlanMaxBytes: 1024})
	f.svc.now = func() time.Time { return practicumNow }
	return f
}

func fullAnswers(score int) models.RubricAnswers {
	var answers models.RubricAnswers
	for i := range answers {
		answers[i] = score
	}
	return answers
}

func assertAppError(t *testing.T, err error, target *appErrors.Error) *appErrors.Error {
	t.Helper()
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr), "expected *errors.Error, got %T", err)
	assert.Equal(t, target.Code, appErr.Code)
	return appErr
}

func TestEvaluationServiceSaveWeek(t *testing.T) {
	f := newEvaluationFixture(t, 2)

	result, err := f.svc.SaveWeek(context.Background(), "2021001", dto.SaveWeekRequest{
		ObservationID: "obs-1",
		Week:          1,
		EvaluationNum: 1,
		Answers:       fullAnswers(4),
	}, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.WeekCount)
	assert.Equal(t, 1, result.Completed)
	assert.Equal(t, 1, f.progress.calls)
}

func TestEvaluationServiceSaveWeekIsWriteOnce(t *testing.T) {
	f := newEvaluationFixture(t, 2)
	req := dto.SaveWeekRequest{ObservationID: "obs-1", Week: 1, EvaluationNum: 3, Answers: fullAnswers(4)}
	_, err := f.svc.SaveWeek(context.Background(), "2021001", req, RequestMeta{})
	require.NoError(t, err)

	req.Answers = fullAnswers(1)
	_, err = f.svc.SaveWeek(context.Background(), "2021001", req, RequestMeta{})
	appErr := assertAppError(t, err, appErrors.ErrAlreadySubmitted)
	assert.Equal(t, true, appErr.Details["alreadySubmitted"])

	agg, err := f.store.Find(context.Background(), "2021001", "obs-1")
	require.NoError(t, err)
	assert.Equal(t, fullAnswers(4), agg.Attempts.Get(3).Answers)
	assert.Equal(t, 1, agg.WeekStatus[1].Count)
}

func TestEvaluationServiceSaveWeekBounds(t *testing.T) {
	f := newEvaluationFixture(t, 2)
	cases := []dto.SaveWeekRequest{
		{ObservationID: "obs-1", Week: 0, EvaluationNum: 1, Answers: fullAnswers(4)},
		{ObservationID: "obs-1", Week: 4, EvaluationNum: 1, Answers: fullAnswers(4)},
		{ObservationID: "obs-1", Week: 1, EvaluationNum: 0, Answers: fullAnswers(4)},
		{ObservationID: "obs-1", Week: 1, EvaluationNum: 10, Answers: fullAnswers(4)},
	}
	for _, req := range cases {
		_, err := f.svc.SaveWeek(context.Background(), "2021001", req, RequestMeta{})
		assertAppError(t, err, appErrors.ErrValidation)
	}
	assert.Empty(t, f.store.aggregates)
}

func TestEvaluationServiceSaveWeekMissingAnswers(t *testing.T) {
	f := newEvaluationFixture(t, 2)
	answers := fullAnswers(4)
	answers[25] = 0
	answers[0] = 6

	_, err := f.svc.SaveWeek(context.Background(), "2021001", dto.SaveWeekRequest{
		ObservationID: "obs-1", Week: 2, EvaluationNum: 1, Answers: answers,
	}, RequestMeta{})
	appErr := assertAppError(t, err, appErrors.ErrValidation)
	assert.Equal(t, []string{"q1", "q26"}, appErr.Details["missing"])
}

func TestEvaluationServiceSaveWeekOtherPeriodForbidden(t *testing.T) {
	f := newEvaluationFixture(t, 2)
	_, err := f.svc.SaveWeek(context.Background(), "2021001", dto.SaveWeekRequest{
		ObservationID: "obs-other", Week: 1, EvaluationNum: 1, Answers: fullAnswers(4),
	}, RequestMeta{})
	assertAppError(t, err, appErrors.ErrForbidden)
}

func lessonPlanUpload(content string) dto.LessonPlanUpload {
	return dto.LessonPlanUpload{
		ObservationID: "obs-1",
		FileName:      "rpp.pdf",
		Size:          int64(len(content)),
		Content:       strings.NewReader(content),
	}
}

const pdfBody = "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n"

func TestEvaluationServiceLessonPlanWriteOnce(t *testing.T) {
	f := newEvaluationFixture(t, 2)

	resp, err := f.svc.SubmitLessonPlan(context.Background(), "2021001", lessonPlanUpload(pdfBody), RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "rpp.pdf", resp.FileName)
	assert.True(t, strings.HasPrefix(resp.FileURL, "https://cdn.test/lesson_plans/plp2_2021001_"))
	assert.True(t, strings.HasSuffix(resp.FileURL, ".pdf"))
	require.Len(t, f.objects.objects, 1)
	for _, data := range f.objects.objects {
		assert.Equal(t, pdfBody, string(data))
	}

	_, err = f.svc.SubmitLessonPlan(context.Background(), "2021001", lessonPlanUpload(pdfBody), RequestMeta{})
	assertAppError(t, err, appErrors.ErrAlreadySubmitted)
	agg, err := f.store.Find(context.Background(), "2021001", "obs-1")
	require.NoError(t, err)
	assert.Equal(t, resp.FileURL, agg.LessonPlan.FileURL)
	assert.Len(t, f.objects.objects, 1)
}

// legacyWordFile builds a compound document whose directory starts at dirSector,
// with the Word 97 root CLSID in the first directory entry.
func legacyWordFile(dirSector int) []byte {
	const sector = 512
	data := make([]byte, sector*(dirSector+2))
	copy(data, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1})
	data[26], data[27] = 0x03, 0x00
	data[28], data[29] = 0xFE, 0xFF
	data[30] = 0x09
	binary.LittleEndian.PutUint32(data[48:52], uint32(dirSector))
	clsid := []byte{0x06, 0x09, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0xc0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x46}
	copy(data[sector*(1+dirSector)+80:], clsid)
	return data
}

func TestEvaluationServiceLessonPlanLegacyWordWithLateDirectory(t *testing.T) {
	f := newEvaluationFixture(t, 2)
	f.svc.config.LessonPlanMaxBytes = 1 << 20
	doc := legacyWordFile(20)

	rejected := lessonPlanUpload(string(doc))
	rejected.FileName = "rpp.xls"
	_, err := f.svc.SubmitLessonPlan(context.Background(), "2021001", rejected, RequestMeta{})
	appErr := assertAppError(t, err, appErrors.ErrValidation)
	assert.Equal(t, "application/x-ole-storage", appErr.Details["detectedType"])

	upload := lessonPlanUpload(string(doc))
	upload.FileName = "RPP Minggu 1.DOC"
	resp, err := f.svc.SubmitLessonPlan(context.Background(), "2021001", upload, RequestMeta{})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(resp.FileURL, ".doc"))
	agg, err := f.store.Find(context.Background(), "2021001", "obs-1")
	require.NoError(t, err)
	assert.Equal(t, "application/msword", agg.LessonPlan.ContentType)
	for _, data := range f.objects.objects {
		assert.Equal(t, doc, data)
	}
}

func TestEvaluationServiceLessonPlanYearOneForbidden(t *testing.T) {
	f := newEvaluationFixture(t, 1)
	_, err := f.svc.SubmitLessonPlan(context.Background(), "2021001", lessonPlanUpload(pdfBody), RequestMeta{})
	assertAppError(t, err, appErrors.ErrForbidden)
	assert.Empty(t, f.objects.objects)
}

func TestEvaluationServiceYearChecksUseStudentYear(t *testing.T) {
	yearOne, yearTwo := 1, 2

	f := newEvaluationFixture(t, 3)
	f.svc.WithStudents(fakeUserFinder{"2021001": {ID: "2021001", YearLevel: &yearOne}})
	_, err := f.svc.SubmitLessonPlan(context.Background(), "2021001", lessonPlanUpload(pdfBody), RequestMeta{})
	assertAppError(t, err, appErrors.ErrForbidden)
	_, err = f.svc.SubmitVideo(context.Background(), "2021001", dto.SubmitVideoRequest{ObservationID: "obs-1", VideoURL: "https://youtu.be/dQw4w9WgXcQ"}, RequestMeta{})
	assertAppError(t, err, appErrors.ErrForbidden)
	assert.Empty(t, f.objects.objects)

	f = newEvaluationFixture(t, 1)
	f.svc.WithStudents(fakeUserFinder{"2021001": {ID: "2021001", YearLevel: &yearTwo}})
	resp, err := f.svc.SubmitLessonPlan(context.Background(), "2021001", lessonPlanUpload(pdfBody), RequestMeta{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.FileURL, "https://cdn.test/lesson_plans/plp2_2021001_"))

	f = newEvaluationFixture(t, 3)
	f.svc.WithStudents(fakeUserFinder{"2021001": {ID: "2021001"}})
	_, err = f.svc.SubmitVideo(context.Background(), "2021001", dto.SubmitVideoRequest{ObservationID: "obs-1", VideoURL: "https://youtu.be/dQw4w9WgXcQ"}, RequestMeta{})
	require.NoError(t, err)
}

func TestEvaluationServiceSubmissionsRequireMentor(t *testing.T) {
	periods := &fakePeriods{periods: []models.ActivePeriod{periodStartedDaysAgo("obs-1", 20, 3)}}
	schools := newFakeSchoolStore()
	require.NoError(t, schools.Create(context.Background(), &models.School{StudentID: "2021001", ObservationID: "obs-1", Name: "SMA 1"}))
	objects := newMemoryObjectStore()
	svc := NewEvaluationService(newTestEligibility(periods, schools, newFakeMentorStore()), newMemoryEvaluationStore(), &fakeProgress{}, objects, &recordingActivities{}, nil, nil, zap.NewNop(), EvaluationConfig{LessonPlanMaxBytes: 1024})
	svc.now = func() time.Time { return practicumNow }

	_, err := svc.SubmitLessonPlan(context.Background(), "2021001", lessonPlanUpload(pdfBody), RequestMeta{})
	assertAppError(t, err, appErrors.ErrNotEligible)
	_, err = svc.SubmitVideo(context.Background(), "2021001", dto.SubmitVideoRequest{ObservationID: "obs-1", VideoURL: "https://youtu.be/dQw4w9WgXcQ"}, RequestMeta{})
	assertAppError(t, err, appErrors.ErrNotEligible)
	assert.Empty(t, objects.objects)
}

func TestEvaluationServiceLessonPlanRejectedBeforeWrite(t *testing.T) {
	f := newEvaluationFixture(t, 3)

	big := lessonPlanUpload(pdfBody)
	big.Size = 4096
	_, err := f.svc.SubmitLessonPlan(context.Background(), "2021001", big, RequestMeta{})
	assertAppError(t, err, appErrors.ErrValidation)

	_, err = f.svc.SubmitLessonPlan(context.Background(), "2021001", lessonPlanUpload("just some plain text notes"), RequestMeta{})
	appErr := assertAppError(t, err, appErrors.ErrValidation)
	assert.Contains(t, appErr.Details["detectedType"], "text/plain")

	assert.Empty(t, f.objects.objects)
	assert.Empty(t, f.store.aggregates)
}

func TestEvaluationServiceLessonPlanLostRaceRemovesObject(t *testing.T) {
	f := newEvaluationFixture(t, 2)
	f.store.rejectLessonPlan = true

	_, err := f.svc.SubmitLessonPlan(context.Background(), "2021001", lessonPlanUpload(pdfBody), RequestMeta{})
	assertAppError(t, err, appErrors.ErrAlreadySubmitted)
	assert.Empty(t, f.objects.objects)
	assert.Len(t, f.objects.deleted, 1)
}

func TestEvaluationServiceVideoLink(t *testing.T) {
	f := newEvaluationFixture(t, 3)

	_, err := f.svc.SubmitVideo(context.Background(), "2021001", dto.SubmitVideoRequest{ObservationID: "obs-1", VideoURL: "https://vimeo.com/123"}, RequestMeta{})
	assertAppError(t, err, appErrors.ErrValidation)

	link, err := f.svc.SubmitVideo(context.Background(), "2021001", dto.SubmitVideoRequest{ObservationID: "obs-1", VideoURL: "https://youtu.be/dQw4w9WgXcQ"}, RequestMeta{})
	require.NoError(t, err)
	assert.True(t, link.Submitted)

	_, err = f.svc.SubmitVideo(context.Background(), "2021001", dto.SubmitVideoRequest{ObservationID: "obs-1", VideoURL: "https://www.youtube.com/watch?v=abcdefghijk"}, RequestMeta{})
	assertAppError(t, err, appErrors.ErrAlreadySubmitted)

	agg, err := f.store.Find(context.Background(), "2021001", "obs-1")
	require.NoError(t, err)
	assert.Equal(t, "https://youtu.be/dQw4w9WgXcQ", agg.VideoLink.URL)
}

func TestEvaluationServiceVideoYearTwoForbidden(t *testing.T) {
	f := newEvaluationFixture(t, 2)
	_, err := f.svc.SubmitVideo(context.Background(), "2021001", dto.SubmitVideoRequest{ObservationID: "obs-1", VideoURL: "https://youtu.be/dQw4w9WgXcQ"}, RequestMeta{})
	assertAppError(t, err, appErrors.ErrForbidden)
}

func TestYoutubePattern(t *testing.T) {
	valid := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"youtube.com/embed/dQw4w9WgXcQ",
		"https://m.youtube.com/watch?v=dQw4w9WgXcQ&t=10s",
		"https://youtube.com/shorts/dQw4w9WgXcQ",
		"http://youtu.be/dQw4w9WgXcQ",
	}
	for _, u := range valid {
		assert.True(t, youtubePattern.MatchString(u), u)
	}
	invalid := []string{
		"https://youtu.be/short",
		"https://example.com/watch?v=dQw4w9WgXcQ",
		"ftp://youtube.com/watch?v=dQw4w9WgXcQ",
	}
	for _, u := range invalid {
		assert.False(t, youtubePattern.MatchString(u), u)
	}
}

func TestEvaluationServiceMyEvaluationsEmpty(t *testing.T) {
	f := newEvaluationFixture(t, 2)
	agg, err := f.svc.MyEvaluations(context.Background(), "2021001", "")
	require.NoError(t, err)
	assert.Equal(t, "obs-1", agg.ObservationID)
	assert.Zero(t, agg.Attempts.SubmittedCount())
}

