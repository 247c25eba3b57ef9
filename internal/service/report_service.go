package service

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"go.uber.org/zap"

	"github.com/noah-isme/practicum-api/internal/models"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
)

type reportSourceLister interface {
	ListForReport(ctx context.Context, filter models.ReportFilter) ([]models.ReportSource, error)
}

type enrollmentLister interface {
	ListByObservation(ctx context.Context, observationID string) ([]models.EnrollmentDetail, error)
}

type observationFinder interface {
	FindByID(ctx context.Context, id string) (*models.Observation, error)
}

// Score thresholds for the summary stats.
const (
	ExcellentThreshold       = 4.5
	NeedImprovementThreshold = 3.5
)

// ReportService builds evaluation summaries. Results are recomputed per request.
type ReportService struct {
	sources      reportSourceLister
	enrollments  enrollmentLister
	observations observationFinder
	logger       *zap.Logger
}

// NewReportService constructs the report service.
func NewReportService(sources reportSourceLister, enrollments enrollmentLister, observations observationFinder, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		sources:      sources,
		enrollments:  enrollments,
		observations: observations,
		logger:       logger,
	}
}

// BuildSummary loads the matching aggregates and summarises them.
func (s *ReportService) BuildSummary(ctx context.Context, filter models.ReportFilter) (*models.EvaluationSummary, error) {
	if filter.EvaluationNum != nil && (*filter.EvaluationNum < 1 || *filter.EvaluationNum > models.MaxAttempts) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "evaluationNum must be between 1 and 9")
	}
	if filter.YearLevel != nil && (*filter.YearLevel < 1 || *filter.YearLevel > 4) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "yearLevel must be between 1 and 4")
	}
	sources, err := s.sources.ListForReport(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load evaluations")
	}
	summary := Summarize(sources, filter.EvaluationNum)
	return &summary, nil
}

// ListStudents returns the enrolled students of a period with their progress.
func (s *ReportService) ListStudents(ctx context.Context, observationID string) (*models.Observation, []models.EnrollmentDetail, error) {
	obs, err := s.observations.FindByID(ctx, observationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "observation period not found")
		}
		return nil, nil, appErrors.Internal(err, "failed to load observation period")
	}
	items, err := s.enrollments.ListByObservation(ctx, observationID)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list students")
	}
	if items == nil {
		items = []models.EnrollmentDetail{}
	}
	return obs, items, nil
}

// Summarize computes the evaluation summary.
//
// Per student and category the mean runs over every answer of every included
// attempt. Category averages only count students whose value is above zero,
// and the grand average only counts categories above zero. Values are rounded
// to two decimals on output only.
func Summarize(sources []models.ReportSource, evaluationNum *int) models.EvaluationSummary {
	summary := models.EvaluationSummary{
		Students:         []models.StudentSummary{},
		CategoryAverages: make(map[string]float64, len(models.RubricCategories)),
		YearDistribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0},
	}

	categorySum := make(map[string]float64, len(models.RubricCategories))
	categoryN := make(map[string]int, len(models.RubricCategories))
	var overalls []float64

	for _, src := range sources {
		attempts := includedAttempts(src.Attempts, evaluationNum)
		if len(attempts) == 0 {
			continue
		}

		row := models.StudentSummary{
			StudentID:           src.StudentID,
			StudentName:         fullName(src.FirstName, src.LastName),
			ObservationID:       src.ObservationID,
			ObservationName:     src.ObservationName,
			YearLevel:           src.YearLevel,
			EvaluationsIncluded: len(attempts),
			Categories:          make(map[string]float64, len(models.RubricCategories)),
		}
		var overallSum float64
		var overallN int
		for _, cat := range models.RubricCategories {
			avg := categoryMean(attempts, cat)
			row.Categories[cat.Key] = round2(avg)
			if avg > 0 {
				categorySum[cat.Key] += avg
				categoryN[cat.Key]++
				overallSum += avg
				overallN++
			}
		}
		var overall float64
		if overallN > 0 {
			overall = overallSum / float64(overallN)
			overalls = append(overalls, overall)
		}
		row.Overall = round2(overall)

		summary.Students = append(summary.Students, row)
		summary.Stats.TotalEvaluations += len(attempts)
		if _, ok := summary.YearDistribution[src.YearLevel]; ok {
			summary.YearDistribution[src.YearLevel]++
		}
	}

	var grandSum float64
	var grandN int
	for _, cat := range models.RubricCategories {
		var avg float64
		if categoryN[cat.Key] > 0 {
			avg = categorySum[cat.Key] / float64(categoryN[cat.Key])
		}
		summary.CategoryAverages[cat.Key] = round2(avg)
		if avg > 0 {
			grandSum += avg
			grandN++
		}
	}
	if grandN > 0 {
		summary.GrandAverage = round2(grandSum / float64(grandN))
	}

	summary.Stats.TotalStudents = len(summary.Students)
	if len(overalls) > 0 {
		minScore, maxScore := overalls[0], overalls[0]
		for _, v := range overalls {
			minScore = math.Min(minScore, v)
			maxScore = math.Max(maxScore, v)
			switch {
			case v >= ExcellentThreshold:
				summary.Stats.ExcellentCount++
			case v < NeedImprovementThreshold:
				summary.Stats.NeedImprovementCount++
			}
		}
		summary.Stats.MinScore = round2(minScore)
		summary.Stats.MaxScore = round2(maxScore)
	}
	return summary
}

func includedAttempts(attempts models.EvaluationAttempts, evaluationNum *int) []*models.EvaluationAttempt {
	if evaluationNum != nil {
		if at := attempts.Get(*evaluationNum); at != nil && at.Submitted {
			return []*models.EvaluationAttempt{at}
		}
		return nil
	}
	out := make([]*models.EvaluationAttempt, 0, models.MaxAttempts)
	for _, at := range attempts {
		if at != nil && at.Submitted {
			out = append(out, at)
		}
	}
	return out
}

func categoryMean(attempts []*models.EvaluationAttempt, cat models.RubricCategory) float64 {
	var sum, n int
	for _, at := range attempts {
		for q := cat.From; q <= cat.To; q++ {
			if v := at.Answers.Get(q); v > 0 {
				sum += v
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func fullName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}
