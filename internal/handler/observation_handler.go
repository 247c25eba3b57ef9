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

type observationService interface {
	List(ctx context.Context, filter models.ObservationFilter) ([]models.Observation, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Observation, error)
	Create(ctx context.Context, actorID string, req dto.CreateObservationRequest, meta service.RequestMeta) (*models.Observation, error)
	Update(ctx context.Context, actorID, id string, req dto.UpdateObservationRequest, meta service.RequestMeta) (*models.Observation, error)
	Complete(ctx context.Context, actorID, id string, meta service.RequestMeta) (*models.Observation, error)
}

type enrollmentService interface {
	List(ctx context.Context, observationID string) ([]models.EnrollmentDetail, error)
	Enroll(ctx context.Context, actorID, observationID string, req dto.EnrollStudentsRequest, meta service.RequestMeta) (*dto.EnrollStudentsResult, error)
	UpdateStatus(ctx context.Context, actorID, observationID, enrollmentID string, req dto.UpdateEnrollmentRequest, meta service.RequestMeta) (*models.Enrollment, error)
}

// ObservationHandler exposes observation period and enrollment management.
type ObservationHandler struct {
	observations observationService
	enrollments  enrollmentService
}

// NewObservationHandler constructs the handler.
func NewObservationHandler(observations observationService, enrollments enrollmentService) *ObservationHandler {
	return &ObservationHandler{observations: observations, enrollments: enrollments}
}

// List godoc
// @Summary List observation periods
// @Tags Observations
// @Produce json
// @Param status query string false "active or completed"
// @Param yearLevel query int false "Year level"
// @Param search query string false "Name search"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /observations [get]
func (h *ObservationHandler) List(c *gin.Context) {
	var filter models.ObservationFilter
	filter.Page, filter.PageSize = pageParams(c)
	filter.Search = c.Query("search")
	if status := c.Query("status"); status != "" {
		s := models.ObservationStatus(status)
		filter.Status = &s
	}
	year, err := optionalInt(c, "yearLevel")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.YearLevel = year

	items, pagination, err := h.observations.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get observation period
// @Tags Observations
// @Produce json
// @Param id path string true "Observation ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /observations/{id} [get]
func (h *ObservationHandler) Get(c *gin.Context) {
	item, err := h.observations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Create observation period
// @Tags Observations
// @Accept json
// @Produce json
// @Param payload body dto.CreateObservationRequest true "Observation period"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /observations [post]
func (h *ObservationHandler) Create(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateObservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid observation payload"))
		return
	}
	item, err := h.observations.Create(c.Request.Context(), session.UserID, req, middleware.RequestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "observation created", item)
}

// Update godoc
// @Summary Update observation period
// @Tags Observations
// @Accept json
// @Produce json
// @Param id path string true "Observation ID"
// @Param payload body dto.UpdateObservationRequest true "Observation period"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /observations/{id} [put]
func (h *ObservationHandler) Update(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateObservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid observation payload"))
		return
	}
	item, err := h.observations.Update(c.Request.Context(), session.UserID, c.Param("id"), req, middleware.RequestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "observation updated", item)
}

// Complete godoc
// @Summary Complete observation period
// @Tags Observations
// @Produce json
// @Param id path string true "Observation ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /observations/{id}/complete [post]
func (h *ObservationHandler) Complete(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	item, err := h.observations.Complete(c.Request.Context(), session.UserID, c.Param("id"), middleware.RequestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "observation completed", item)
}

// Students godoc
// @Summary List enrolled students
// @Tags Observations
// @Produce json
// @Param id path string true "Observation ID"
// @Success 200 {object} response.Envelope
// @Router /observations/{id}/students [get]
func (h *ObservationHandler) Students(c *gin.Context) {
	items, err := h.enrollments.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Enroll godoc
// @Summary Enroll students
// @Tags Observations
// @Accept json
// @Produce json
// @Param id path string true "Observation ID"
// @Param payload body dto.EnrollStudentsRequest true "Students"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /observations/{id}/students [post]
func (h *ObservationHandler) Enroll(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req dto.EnrollStudentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid enrollment payload"))
		return
	}
	res, err := h.enrollments.Enroll(c.Request.Context(), session.UserID, c.Param("id"), req, middleware.RequestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "students enrolled", res)
}

// UpdateEnrollment godoc
// @Summary Update enrollment
// @Tags Observations
// @Accept json
// @Produce json
// @Param id path string true "Observation ID"
// @Param enrollmentId path string true "Enrollment ID"
// @Param payload body dto.UpdateEnrollmentRequest true "Enrollment status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /observations/{id}/students/{enrollmentId} [put]
func (h *ObservationHandler) UpdateEnrollment(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid enrollment payload"))
		return
	}
	item, err := h.enrollments.UpdateStatus(c.Request.Context(), session.UserID, c.Param("id"), c.Param("enrollmentId"), req, middleware.RequestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "enrollment updated", item)
}
