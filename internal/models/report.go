package models

// ReportFormat enumerates supported export formats.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// Category keys of the rubric groups.
const (
	CategoryTeacherVerbal    = "teacherVerbal"
	CategoryTeacherNonVerbal = "teacherNonVerbal"
	CategoryStudentAcademic  = "studentAcademic"
	CategoryStudentWork      = "studentWork"
	CategoryEnvironment      = "environment"
)

// RubricCategory groups a contiguous range of rubric questions.
type RubricCategory struct {
	Key   string
	Label string
	From  int
	To    int
}

// RubricCategories is the fixed bucketing of q1..q26.
var RubricCategories = []RubricCategory{
	{Key: CategoryTeacherVerbal, Label: "Teacher verbal", From: 1, To: 4},
	{Key: CategoryTeacherNonVerbal, Label: "Teacher non-verbal", From: 5, To: 9},
	{Key: CategoryStudentAcademic, Label: "Student academic", From: 10, To: 15},
	{Key: CategoryStudentWork, Label: "Student work", From: 16, To: 18},
	{Key: CategoryEnvironment, Label: "Environment", From: 19, To: 26},
}

// ReportFilter narrows the evaluation summary.
type ReportFilter struct {
	ObservationID string
	YearLevel     *int
	StudentID     string
	EvaluationNum *int
}

// ReportSource is one evaluation aggregate joined with student and period data.
type ReportSource struct {
	EvaluationAggregate
	FirstName       string `db:"first_name"`
	LastName        string `db:"last_name"`
	ObservationName string `db:"observation_name"`
	YearLevel       int    `db:"year_level"`
}

// StudentSummary is the per-student row of the summary.
type StudentSummary struct {
	StudentID           string             `json:"studentId"`
	StudentName         string             `json:"studentName"`
	ObservationID       string             `json:"observationId"`
	ObservationName     string             `json:"observationName"`
	YearLevel           int                `json:"yearLevel"`
	EvaluationsIncluded int                `json:"evaluationsIncluded"`
	Categories          map[string]float64 `json:"categories"`
	Overall             float64            `json:"overall"`
}

// SummaryStats are headline counts.
type SummaryStats struct {
	TotalStudents        int     `json:"totalStudents"`
	TotalEvaluations     int     `json:"totalEvaluations"`
	MinScore             float64 `json:"minScore"`
	MaxScore             float64 `json:"maxScore"`
	ExcellentCount       int     `json:"excellentCount"`
	NeedImprovementCount int     `json:"needImprovementCount"`
}

// EvaluationSummary is the output of the report aggregator.
type EvaluationSummary struct {
	Students         []StudentSummary   `json:"students"`
	CategoryAverages map[string]float64 `json:"categoryAverages"`
	GrandAverage     float64            `json:"grandAverage"`
	Stats            SummaryStats       `json:"stats"`
	YearDistribution map[int]int        `json:"yearDistribution"`
}
