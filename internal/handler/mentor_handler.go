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

type mentorService interface {
	Save(ctx context.Context, studentID string, req dto.SaveMentorRequest, meta service.RequestMeta) (*dto.SaveMentorResponse, error)
	MySubmission(ctx context.Context, studentID string) (*models.Mentor, *dto.Eligibility, error)
	Search(ctx context.Context, studentID, q string) ([]models.MentorSuggestion, error)
}

// MentorHandler manages the student's supervising teacher.
type MentorHandler struct {
	service mentorService
}

// NewMentorHandler constructs the handler.
func NewMentorHandler(svc mentorService) *MentorHandler {
	return &MentorHandler{service: svc}
}

// Save godoc
// @Summary Save mentor info
// @Description A mentor already claimed by another student at the same school answers 400 with mentorOccupied
// @Tags Mentors
// @Accept json
// @Produce json
// @Param payload body dto.SaveMentorRequest true "Mentor info"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /mentor-info/save [post]
func (h *MentorHandler) Save(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req dto.SaveMentorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid mentor payload"))
		return
	}
	res, err := h.service.Save(c.Request.Context(), session.UserID, req, middleware.RequestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "mentor info saved", res)
}

// MySubmission godoc
// @Summary Get my mentor info
// @Tags Mentors
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /mentor-info/my-submission [get]
func (h *MentorHandler) MySubmission(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	mentor, eligibility, err := h.service.MySubmission(c.Request.Context(), session.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"mentor": mentor, "eligibility": eligibility}, nil)
}

// Search godoc
// @Summary Search mentors at my school
// @Tags Mentors
// @Produce json
// @Param q query string false "Name fragment"
// @Success 200 {object} response.Envelope
// @Router /mentor-info/search [get]
func (h *MentorHandler) Search(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	items, err := h.service.Search(c.Request.Context(), session.UserID, c.Query("q"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
