package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/practicum-api/internal/models"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
	"github.com/noah-isme/practicum-api/pkg/export"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFile is a rendered report ready to be streamed.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders evaluation summaries as CSV or PDF.
type ExportService struct {
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// RenderSummary renders the summary in the requested format.
func (s *ExportService) RenderSummary(summary *models.EvaluationSummary, filter models.ReportFilter, format models.ReportFormat) (*ExportFile, error) {
	if summary == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "summary is required")
	}
	dataset := summaryDataset(summary, filter)
	title := summaryTitle(filter)

	var (
		payload     []byte
		contentType string
		err         error
	)
	switch format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
		contentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if err != nil {
		s.logger.Error("render evaluation summary", zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to render report")
	}
	return &ExportFile{
		Filename:    s.buildFilename(filter, format),
		ContentType: contentType,
		Data:        payload,
	}, nil
}

func (s *ExportService) buildFilename(filter models.ReportFilter, format models.ReportFormat) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	scope := "all"
	if filter.ObservationID != "" {
		scope = sanitizeFilename(filter.ObservationID)
	}
	return fmt.Sprintf("evaluation_summary_%s_%s.%s", scope, timestamp, format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func summaryTitle(filter models.ReportFilter) string {
	title := "Evaluation Summary"
	if filter.YearLevel != nil {
		title += fmt.Sprintf(" - Year %d", *filter.YearLevel)
	}
	if filter.EvaluationNum != nil {
		title += fmt.Sprintf(" - Evaluation %d", *filter.EvaluationNum)
	}
	return title
}

func summaryDataset(summary *models.EvaluationSummary, filter models.ReportFilter) export.Dataset {
	headers := []string{"Student ID", "Student Name", "Period", "Year", "Evaluations"}
	for _, cat := range models.RubricCategories {
		headers = append(headers, cat.Label)
	}
	headers = append(headers, "Overall")

	rows := make([]map[string]string, 0, len(summary.Students)+1)
	for _, st := range summary.Students {
		row := map[string]string{
			"Student ID":   st.StudentID,
			"Student Name": st.StudentName,
			"Period":       st.ObservationName,
			"Year":         strconv.Itoa(st.YearLevel),
			"Evaluations":  strconv.Itoa(st.EvaluationsIncluded),
			"Overall":      formatScore(st.Overall),
		}
		for _, cat := range models.RubricCategories {
			row[cat.Label] = formatScore(st.Categories[cat.Key])
		}
		rows = append(rows, row)
	}
	averages := map[string]string{"Student Name": "Average", "Overall": formatScore(summary.GrandAverage)}
	for _, cat := range models.RubricCategories {
		averages[cat.Label] = formatScore(summary.CategoryAverages[cat.Key])
	}
	rows = append(rows, averages)

	fields := []export.Field{
		{Label: "Total students", Value: strconv.Itoa(summary.Stats.TotalStudents)},
		{Label: "Total evaluations", Value: strconv.Itoa(summary.Stats.TotalEvaluations)},
		{Label: "Grand average", Value: formatScore(summary.GrandAverage)},
		{Label: "Lowest score", Value: formatScore(summary.Stats.MinScore)},
		{Label: "Highest score", Value: formatScore(summary.Stats.MaxScore)},
		{Label: "Excellent (>= 4.5)", Value: strconv.Itoa(summary.Stats.ExcellentCount)},
		{Label: "Needs improvement (< 3.5)", Value: strconv.Itoa(summary.Stats.NeedImprovementCount)},
	}
	if filter.ObservationID != "" {
		fields = append([]export.Field{{Label: "Observation", Value: filter.ObservationID}}, fields...)
	}
	return export.Dataset{Summary: fields, Headers: headers, Rows: rows}
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
