package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/practicum-api/internal/dto"
	"github.com/noah-isme/practicum-api/internal/middleware"
	"github.com/noah-isme/practicum-api/internal/models"
	"github.com/noah-isme/practicum-api/internal/service"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
	"github.com/noah-isme/practicum-api/pkg/response"
)

type systemService interface {
	Status(ctx context.Context) (*models.SystemSettings, error)
	UpdateStatus(ctx context.Context, actorID string, req dto.UpdateStatusRequest, meta service.RequestMeta) (*models.SystemSettings, error)
	Logs(ctx context.Context, filter models.LogFilter) ([]models.SystemLog, *models.Pagination, error)
	Activities(ctx context.Context, filter models.ActivityFilter) ([]models.SystemActivity, *models.Pagination, error)
	IssueResetChallenge(ctx context.Context, adminID string) (*models.ResetChallenge, error)
	ResetDatabase(ctx context.Context, actorID string, req dto.ResetDatabaseRequest, meta service.RequestMeta) (*models.ResetResult, error)
}

type backupService interface {
	Request(ctx context.Context, actorID string, meta service.RequestMeta) (*models.Backup, error)
	List(ctx context.Context) ([]models.Backup, error)
	Open(ctx context.Context, id, token string) (*service.BackupFile, error)
}

// SystemHandler exposes the system operations panel.
type SystemHandler struct {
	system  systemService
	backups backupService
}

// NewSystemHandler constructs the handler.
func NewSystemHandler(system systemService, backups backupService) *SystemHandler {
	return &SystemHandler{system: system, backups: backups}
}

// Status godoc
// @Summary Platform status
// @Tags System
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /system/status [get]
func (h *SystemHandler) Status(c *gin.Context) {
	settings, err := h.system.Status(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// UpdateStatus godoc
// @Summary Change platform status
// @Description online, maintenance or offline. Non-admin requests are refused with 503 while not online.
// @Tags System
// @Accept json
// @Produce json
// @Param payload body dto.UpdateStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /system/status [post]
func (h *SystemHandler) UpdateStatus(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	settings, err := h.system.UpdateStatus(c.Request.Context(), session.UserID, req, middleware.RequestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "system status updated", settings)
}

// Logs godoc
// @Summary System logs
// @Tags System
// @Produce json
// @Param level query string false "error, warn or info"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /system/logs [get]
func (h *SystemHandler) Logs(c *gin.Context) {
	filter := models.LogFilter{Level: c.Query("level")}
	filter.Page, filter.PageSize = pageParams(c)
	items, pagination, err := h.system.Logs(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Activities godoc
// @Summary System activities
// @Tags System
// @Produce json
// @Param action query string false "Action filter"
// @Param userId query string false "Actor filter"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /system/activities [get]
func (h *SystemHandler) Activities(c *gin.Context) {
	filter := models.ActivityFilter{Action: c.Query("action"), UserID: c.Query("userId")}
	filter.Page, filter.PageSize = pageParams(c)
	items, pagination, err := h.system.Activities(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// ResetChallenge godoc
// @Summary Issue database reset code
// @Description Returns a one-time code that must be sent back with the reset request
// @Tags System
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /system/reset-database/challenge [post]
func (h *SystemHandler) ResetChallenge(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	challenge, err := h.system.IssueResetChallenge(c.Request.Context(), session.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, challenge, nil)
}

// ResetDatabase godoc
// @Summary Reset database
// @Description Deletes all practicum data and every user except the caller and the bootstrap admin
// @Tags System
// @Accept json
// @Produce json
// @Param payload body dto.ResetDatabaseRequest true "Confirmation"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /system/reset-database [post]
func (h *SystemHandler) ResetDatabase(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req dto.ResetDatabaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reset payload"))
		return
	}
	result, err := h.system.ResetDatabase(c.Request.Context(), session.UserID, req, middleware.RequestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "database reset completed", result)
}

// RequestBackup godoc
// @Summary Request database backup
// @Tags System
// @Produce json
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /system/backup [post]
func (h *SystemHandler) RequestBackup(c *gin.Context) {
	session, ok := sessionFromContext(c)
	if !ok {
		return
	}
	backup, err := h.backups.Request(c.Request.Context(), session.UserID, middleware.RequestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, backup, nil)
}

// Backups godoc
// @Summary List backups
// @Description Completed backups carry a signed download URL
// @Tags System
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /system/backups [get]
func (h *SystemHandler) Backups(c *gin.Context) {
	items, err := h.backups.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// DownloadBackup godoc
// @Summary Download backup
// @Tags System
// @Produce application/json
// @Param id path string true "Backup ID"
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /system/backups/{id}/download [get]
func (h *SystemHandler) DownloadBackup(c *gin.Context) {
	backup, err := h.backups.Open(c.Request.Context(), c.Param("id"), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer backup.File.Close()

	info, err := backup.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to read backup"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", backup.Filename))
	c.DataFromReader(http.StatusOK, info.Size(), "application/json", backup.File, nil)
}
