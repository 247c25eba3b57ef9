package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/practicum-api/internal/models"
	"github.com/noah-isme/practicum-api/internal/service"
)

type reportServiceMock struct {
	summary    *models.EvaluationSummary
	lastFilter models.ReportFilter
}

func (m *reportServiceMock) BuildSummary(_ context.Context, filter models.ReportFilter) (*models.EvaluationSummary, error) {
	m.lastFilter = filter
	return m.summary, nil
}

func (m *reportServiceMock) ListStudents(context.Context, string) (*models.Observation, []models.EnrollmentDetail, error) {
	return &models.Observation{ID: "obs-1"}, []models.EnrollmentDetail{}, nil
}

type exporterMock struct {
	format models.ReportFormat
}

func (m *exporterMock) RenderSummary(_ *models.EvaluationSummary, _ models.ReportFilter, format models.ReportFormat) (*service.ExportFile, error) {
	m.format = format
	return &service.ExportFile{Filename: "evaluation_summary.csv", ContentType: "text/csv", Data: []byte("a,b\n1,2\n")}, nil
}

func TestReportHandlerSummaryParsesFilter(t *testing.T) {
	reports := &reportServiceMock{summary: &models.EvaluationSummary{}}
	handler := NewReportHandler(reports, &exporterMock{})

	c, rec := newGinContext(http.MethodGet, "/api/reports/evaluation-summary?observationId=obs-1&yearLevel=3&evaluationNum=2", nil)
	handler.Summary(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "obs-1", reports.lastFilter.ObservationID)
	require.NotNil(t, reports.lastFilter.YearLevel)
	assert.Equal(t, 3, *reports.lastFilter.YearLevel)
	require.NotNil(t, reports.lastFilter.EvaluationNum)
	assert.Equal(t, 2, *reports.lastFilter.EvaluationNum)
}

func TestReportHandlerSummaryRejectsBadNumber(t *testing.T) {
	handler := NewReportHandler(&reportServiceMock{}, &exporterMock{})

	c, rec := newGinContext(http.MethodGet, "/api/reports/evaluation-summary?yearLevel=three", nil)
	handler.Summary(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportHandlerExportStreamsFile(t *testing.T) {
	exporter := &exporterMock{}
	handler := NewReportHandler(&reportServiceMock{summary: &models.EvaluationSummary{}}, exporter)

	c, rec := newGinContext(http.MethodGet, "/api/reports/evaluation-summary/export?format=CSV", nil)
	handler.Export(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ReportFormatCSV, exporter.format)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "evaluation_summary.csv")
	assert.Equal(t, "a,b\n1,2\n", rec.Body.String())
}
