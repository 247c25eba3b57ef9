package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/practicum-api/internal/dto"
	"github.com/noah-isme/practicum-api/internal/models"
	"github.com/noah-isme/practicum-api/internal/service"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
)

type fakeEvaluationService struct {
	filled   map[int]bool
	upload   dto.LessonPlanUpload
	uploaded []byte
}

func (f *fakeEvaluationService) SaveWeek(_ context.Context, _ string, req dto.SaveWeekRequest, _ service.RequestMeta) (*dto.SubmissionResult, error) {
	if f.filled[req.EvaluationNum] {
		return nil, appErrors.WithDetails(appErrors.ErrAlreadySubmitted, "evaluation already submitted", map[string]interface{}{"alreadySubmitted": true})
	}
	f.filled[req.EvaluationNum] = true
	return &dto.SubmissionResult{ObservationID: req.ObservationID, EvaluationNum: req.EvaluationNum, Week: req.Week, WeekCount: 1, Completed: len(f.filled)}, nil
}

func (f *fakeEvaluationService) SubmitLessonPlan(_ context.Context, _ string, upload dto.LessonPlanUpload, _ service.RequestMeta) (*dto.LessonPlanResponse, error) {
	f.upload = upload
	data, err := io.ReadAll(upload.Content)
	if err != nil {
		return nil, err
	}
	f.uploaded = data
	return &dto.LessonPlanResponse{FileName: upload.FileName, FileURL: "https://cdn.example.com/lesson_plans/x.pdf"}, nil
}

func (f *fakeEvaluationService) SubmitVideo(context.Context, string, dto.SubmitVideoRequest, service.RequestMeta) (*models.VideoLink, error) {
	return &models.VideoLink{}, nil
}

func (f *fakeEvaluationService) MyEvaluations(_ context.Context, studentID, observationID string) (*models.EvaluationAggregate, error) {
	return &models.EvaluationAggregate{StudentID: studentID, ObservationID: observationID}, nil
}

func TestEvaluationHandlerSaveWeekAlreadySubmitted(t *testing.T) {
	svc := &fakeEvaluationService{filled: map[int]bool{}}
	handler := NewEvaluationHandler(svc)
	payload := []byte(`{"observationId":"obs-1","week":1,"evaluationNum":1,"answers":{}}`)

	c, rec := newGinContext(http.MethodPost, "/api/evaluation/save-week", payload)
	withUser(c, "2021001")
	handler.SaveWeek(c)
	require.Equal(t, http.StatusCreated, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, float64(1), envelope.Data["evaluationsCompleted"])

	c, rec = newGinContext(http.MethodPost, "/api/evaluation/save-week", payload)
	withUser(c, "2021001")
	handler.SaveWeek(c)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["alreadySubmitted"])
}

func TestEvaluationHandlerSubmitLessonPlanMultipart(t *testing.T) {
	svc := &fakeEvaluationService{filled: map[int]bool{}}
	handler := NewEvaluationHandler(svc)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("observationId", "obs-1"))
	part, err := writer.CreateFormFile("lessonPlanFile", "rpp.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 lesson plan"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	c, rec := newGinContext(http.MethodPost, "/api/evaluation/submit-lesson-plan", buf.Bytes())
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())
	withUser(c, "2021001")
	handler.SubmitLessonPlan(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "obs-1", svc.upload.ObservationID)
	assert.Equal(t, "rpp.pdf", svc.upload.FileName)
	assert.Equal(t, int64(len("%PDF-1.4 lesson plan")), svc.upload.Size)
	assert.Equal(t, "%PDF-1.4 lesson plan", string(svc.uploaded))
}

func TestEvaluationHandlerSubmitLessonPlanRequiresFile(t *testing.T) {
	handler := NewEvaluationHandler(&fakeEvaluationService{filled: map[int]bool{}})

	c, rec := newGinContext(http.MethodPost, "/api/evaluation/submit-lesson-plan", nil)
	withUser(c, "2021001")
	handler.SubmitLessonPlan(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvaluationHandlerMyEvaluations(t *testing.T) {
	handler := NewEvaluationHandler(&fakeEvaluationService{filled: map[int]bool{}})

	c, rec := newGinContext(http.MethodGet, "/api/evaluation/my-evaluations?observationId=obs-1", nil)
	withUser(c, "2021001")
	handler.MyEvaluations(c)

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "obs-1", envelope.Data["observationId"])
}
