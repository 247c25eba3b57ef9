package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/practicum-api/internal/models"
	"github.com/noah-isme/practicum-api/internal/service"
	"github.com/noah-isme/practicum-api/pkg/response"
)

type reportService interface {
	BuildSummary(ctx context.Context, filter models.ReportFilter) (*models.EvaluationSummary, error)
	ListStudents(ctx context.Context, observationID string) (*models.Observation, []models.EnrollmentDetail, error)
}

type reportExporter interface {
	RenderSummary(summary *models.EvaluationSummary, filter models.ReportFilter, format models.ReportFormat) (*service.ExportFile, error)
}

// ReportHandler exposes evaluation reporting endpoints.
type ReportHandler struct {
	reports  reportService
	exporter reportExporter
}

// NewReportHandler constructs handler.
func NewReportHandler(reports reportService, exporter reportExporter) *ReportHandler {
	return &ReportHandler{reports: reports, exporter: exporter}
}

// Summary godoc
// @Summary Evaluation summary
// @Description Category, per student and overall means over the stored evaluation attempts
// @Tags Reports
// @Produce json
// @Param observationId query string false "Observation period"
// @Param yearLevel query int false "Year level"
// @Param studentId query string false "Student"
// @Param evaluationNum query int false "Attempt slot 1-9"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reports/evaluation-summary [get]
func (h *ReportHandler) Summary(c *gin.Context) {
	filter, err := reportFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	summary, err := h.reports.BuildSummary(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Export godoc
// @Summary Export evaluation summary
// @Tags Reports
// @Produce octet-stream
// @Param format query string true "csv or pdf"
// @Param observationId query string false "Observation period"
// @Param yearLevel query int false "Year level"
// @Param studentId query string false "Student"
// @Param evaluationNum query int false "Attempt slot 1-9"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /reports/evaluation-summary/export [get]
func (h *ReportHandler) Export(c *gin.Context) {
	filter, err := reportFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := models.ReportFormat(strings.ToLower(c.DefaultQuery("format", string(models.ReportFormatCSV))))
	summary, err := h.reports.BuildSummary(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exporter.RenderSummary(summary, filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", file.Filename))
	c.DataFromReader(http.StatusOK, int64(len(file.Data)), file.ContentType, bytes.NewReader(file.Data), nil)
}

// Students godoc
// @Summary Students of an observation period
// @Tags Reports
// @Produce json
// @Param id path string true "Observation ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/observations/{id}/students [get]
func (h *ReportHandler) Students(c *gin.Context) {
	obs, students, err := h.reports.ListStudents(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"observation": obs, "students": students}, nil)
}

func reportFilter(c *gin.Context) (models.ReportFilter, error) {
	filter := models.ReportFilter{
		ObservationID: c.Query("observationId"),
		StudentID:     c.Query("studentId"),
	}
	year, err := optionalInt(c, "yearLevel")
	if err != nil {
		return filter, err
	}
	num, err := optionalInt(c, "evaluationNum")
	if err != nil {
		return filter, err
	}
	filter.YearLevel = year
	filter.EvaluationNum = num
	return filter, nil
}
