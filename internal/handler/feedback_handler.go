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

type feedbackService interface {
	Eligibility(ctx context.Context, userID string) (*models.FeedbackEligibility, error)
	Submit(ctx context.Context, session *models.Session, req dto.SubmitFeedbackRequest, meta service.RequestMeta) (*models.WebsiteFeedback, error)
	List(ctx context.Context, page, pageSize int) ([]models.WebsiteFeedback, *models.Pagination, error)
	Summary(ctx context.Context) (*models.FeedbackSummary, error)
}

// FeedbackHandler serves the website evaluation form.
type FeedbackHandler struct {
	service feedbackService
}

// NewFeedbackHandler constructs the handler.
func NewFeedbackHandler(svc feedbackService) *FeedbackHandler {
	return &FeedbackHandler{service: svc}
}

// Eligibility godoc
// @Summary Check website evaluation eligibility
// @Tags Website Evaluation
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /website-evaluation/check-eligibility [get]
func (h *FeedbackHandler) Eligibility(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	result, err := h.service.Eligibility(c.Request.Context(), session.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Submit godoc
// @Summary Submit website evaluation
// @Tags Website Evaluation
// @Accept json
// @Produce json
// @Param payload body dto.SubmitFeedbackRequest true "Ratings"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /website-evaluation/submit [post]
func (h *FeedbackHandler) Submit(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req dto.SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid feedback payload"))
		return
	}
	fb, err := h.service.Submit(c.Request.Context(), session, req, middleware.RequestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "thank you for your feedback", fb)
}

// List godoc
// @Summary List website evaluations
// @Tags Website Evaluation
// @Produce json
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /website-evaluation [get]
func (h *FeedbackHandler) List(c *gin.Context) {
	page, size := pageParams(c)
	items, pagination, err := h.service.List(c.Request.Context(), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Summary godoc
// @Summary Website evaluation averages
// @Tags Website Evaluation
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /website-evaluation/summary [get]
func (h *FeedbackHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
