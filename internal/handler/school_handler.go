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

type schoolService interface {
	Save(ctx context.Context, studentID string, req dto.SaveSchoolRequest, meta service.RequestMeta) (*dto.SaveSchoolResponse, error)
	MySubmission(ctx context.Context, studentID string) (*models.School, *dto.Eligibility, error)
	Search(ctx context.Context, q string) ([]models.SchoolSuggestion, error)
}

// SchoolHandler manages the student's practicum school.
type SchoolHandler struct {
	service schoolService
}

// NewSchoolHandler constructs the handler.
func NewSchoolHandler(svc schoolService) *SchoolHandler {
	return &SchoolHandler{service: svc}
}

// Save godoc
// @Summary Save school info
// @Description Creates or updates the caller's school. Renaming within the change window may require confirmChange and deleteEvaluations.
// @Tags Schools
// @Accept json
// @Produce json
// @Param payload body dto.SaveSchoolRequest true "School info"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /school-info/save [post]
func (h *SchoolHandler) Save(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req dto.SaveSchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid school payload"))
		return
	}
	res, err := h.service.Save(c.Request.Context(), session.UserID, req, middleware.RequestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "school info saved", res)
}

// MySubmission godoc
// @Summary Get my school info
// @Tags Schools
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /school-info/my-submission [get]
func (h *SchoolHandler) MySubmission(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	school, eligibility, err := h.service.MySubmission(c.Request.Context(), session.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"school": school, "eligibility": eligibility}, nil)
}

// Search godoc
// @Summary Autocomplete school names
// @Tags Schools
// @Produce json
// @Param q query string true "Name prefix"
// @Success 200 {object} response.Envelope
// @Router /school-info/search [get]
func (h *SchoolHandler) Search(c *gin.Context) {
	items, err := h.service.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
