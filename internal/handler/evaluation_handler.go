package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/practicum-api/internal/dto"
	"github.com/noah-isme/practicum-api/internal/middleware"
	"github.com/noah-isme/practicum-api/internal/models"
	"github.com/noah-isme/practicum-api/internal/service"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
	"github.com/noah-isme/practicum-api/pkg/response"
)

type evaluationService interface {
	SaveWeek(ctx context.Context, studentID string, req dto.SaveWeekRequest, meta service.RequestMeta) (*dto.SubmissionResult, error)
	SubmitLessonPlan(ctx context.Context, studentID string, upload dto.LessonPlanUpload, meta service.RequestMeta) (*dto.LessonPlanResponse, error)
	SubmitVideo(ctx context.Context, studentID string, req dto.SubmitVideoRequest, meta service.RequestMeta) (*models.VideoLink, error)
	MyEvaluations(ctx context.Context, studentID, observationID string) (*models.EvaluationAggregate, error)
}

// EvaluationHandler accepts the write-once practicum submissions.
type EvaluationHandler struct {
	service evaluationService
}

// NewEvaluationHandler constructs the handler.
func NewEvaluationHandler(svc evaluationService) *EvaluationHandler {
	return &EvaluationHandler{service: svc}
}

// SaveWeek godoc
// @Summary Submit an evaluation attempt
// @Description Stores all 26 rubric answers for one attempt slot. A filled slot answers 400 with alreadySubmitted.
// @Tags Evaluations
// @Accept json
// @Produce json
// @Param payload body dto.SaveWeekRequest true "Attempt"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /evaluation/save-week [post]
func (h *EvaluationHandler) SaveWeek(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req dto.SaveWeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid evaluation payload"))
		return
	}
	res, err := h.service.SaveWeek(c.Request.Context(), session.UserID, req, middleware.RequestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "evaluation saved", res)
}

// SubmitLessonPlan godoc
// @Summary Upload lesson plan
// @Description Year 2 and 3 students only; pdf, doc, docx, ppt or pptx up to 20MB
// @Tags Evaluations
// @Accept multipart/form-data
// @Produce json
// @Param observationId formData string true "Observation period"
// @Param lessonPlanFile formData file true "Lesson plan"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /evaluation/submit-lesson-plan [post]
func (h *EvaluationHandler) SubmitLessonPlan(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	header, err := c.FormFile("lessonPlanFile")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "lesson plan file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to read upload"))
		return
	}
	defer file.Close()

	res, err := h.service.SubmitLessonPlan(c.Request.Context(), session.UserID, dto.LessonPlanUpload{
		ObservationID: c.PostForm("observationId"),
		FileName:      header.Filename,
		Size:          header.Size,
		Content:       file,
	}, middleware.RequestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "lesson plan submitted", res)
}

// SubmitVideo godoc
// @Summary Submit teaching video link
// @Description Year 3 students only; accepts YouTube watch, embed, short and youtu.be links
// @Tags Evaluations
// @Accept json
// @Produce json
// @Param payload body dto.SubmitVideoRequest true "Video link"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /evaluation/submit-video [post]
func (h *EvaluationHandler) SubmitVideo(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req dto.SubmitVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid video payload"))
		return
	}
	res, err := h.service.SubmitVideo(c.Request.Context(), session.UserID, req, middleware.RequestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "video link submitted", res)
}

// MyEvaluations godoc
// @Summary Get my evaluation record
// @Tags Evaluations
// @Produce json
// @Param observationId query string false "Observation period, defaults to the current one"
// @Success 200 {object} response.Envelope
// @Router /evaluation/my-evaluations [get]
func (h *EvaluationHandler) MyEvaluations(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	aggregate, err := h.service.MyEvaluations(c.Request.Context(), session.UserID, c.Query("observationId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, aggregate, nil)
}
