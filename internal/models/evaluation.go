package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// MaxAttempts is the number of evaluation slots per student and period.
	MaxAttempts = 9
	// MaxWeeks is the number of observation weeks.
	MaxWeeks = 3
	// RubricQuestions is the size of the fixed rubric.
	RubricQuestions = 26
	MinScore        = 1
	MaxScore        = 5
)

// RubricAnswers holds scores for q1..q26; index 0 is q1 and 0 means unanswered.
type RubricAnswers [RubricQuestions]int

// Get returns the score of question q (1-based).
func (a RubricAnswers) Get(q int) int {
	if q < 1 || q > RubricQuestions {
		return 0
	}
	return a[q-1]
}

// Missing lists the question keys without a score in range.
func (a RubricAnswers) Missing() []string {
	var missing []string
	for i, v := range a {
		if v < MinScore || v > MaxScore {
			missing = append(missing, questionKey(i+1))
		}
	}
	return missing
}

// MarshalJSON encodes the answers as {"q1": 4, ...}, skipping unanswered questions.
func (a RubricAnswers) MarshalJSON() ([]byte, error) {
	out := make(map[string]int, RubricQuestions)
	for i, v := range a {
		if v != 0 {
			out[questionKey(i+1)] = v
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts {"q1": 4, ...}. Unknown keys are rejected.
func (a *RubricAnswers) UnmarshalJSON(data []byte) error {
	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out RubricAnswers
	for key, v := range raw {
		q, err := parseQuestionKey(key)
		if err != nil {
			return err
		}
		out[q-1] = v
	}
	*a = out
	return nil
}

func questionKey(q int) string {
	return "q" + strconv.Itoa(q)
}

func parseQuestionKey(key string) (int, error) {
	if !strings.HasPrefix(key, "q") {
		return 0, fmt.Errorf("unknown rubric question %q", key)
	}
	q, err := strconv.Atoi(key[1:])
	if err != nil || q < 1 || q > RubricQuestions {
		return 0, fmt.Errorf("unknown rubric question %q", key)
	}
	return q, nil
}

// EvaluationAttempt is one submitted classroom observation.
type EvaluationAttempt struct {
	Week        int           `json:"week"`
	Date        string        `json:"date,omitempty"`
	Answers     RubricAnswers `json:"answers"`
	Submitted   bool          `json:"submitted"`
	SubmittedAt time.Time     `json:"submittedAt"`
}

// EvaluationAttempts holds the nine optional attempt slots; index 0 is attempt 1.
type EvaluationAttempts [MaxAttempts]*EvaluationAttempt

// Get returns attempt n (1-based) or nil.
func (a EvaluationAttempts) Get(n int) *EvaluationAttempt {
	if n < 1 || n > MaxAttempts {
		return nil
	}
	return a[n-1]
}

// SubmittedCount counts submitted slots.
func (a EvaluationAttempts) SubmittedCount() int {
	count := 0
	for _, at := range a {
		if at != nil && at.Submitted {
			count++
		}
	}
	return count
}

// SubmittedNumbers returns the submitted attempt numbers in ascending order.
func (a EvaluationAttempts) SubmittedNumbers() []int {
	nums := make([]int, 0, MaxAttempts)
	for i, at := range a {
		if at != nil && at.Submitted {
			nums = append(nums, i+1)
		}
	}
	return nums
}

// MarshalJSON encodes the slots as {"1": {...}, ...}.
func (a EvaluationAttempts) MarshalJSON() ([]byte, error) {
	out := make(map[string]*EvaluationAttempt, MaxAttempts)
	for i, at := range a {
		if at != nil {
			out[strconv.Itoa(i+1)] = at
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes {"1": {...}}; keys outside 1..9 are rejected.
func (a *EvaluationAttempts) UnmarshalJSON(data []byte) error {
	var raw map[string]*EvaluationAttempt
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out EvaluationAttempts
	for key, at := range raw {
		n, err := strconv.Atoi(key)
		if err != nil || n < 1 || n > MaxAttempts {
			return fmt.Errorf("invalid attempt number %q", key)
		}
		out[n-1] = at
	}
	*a = out
	return nil
}

// Value implements driver.Valuer.
func (a EvaluationAttempts) Value() (driver.Value, error) { return valueJSON(a) }

// Scan implements sql.Scanner.
func (a *EvaluationAttempts) Scan(src interface{}) error {
	*a = EvaluationAttempts{}
	return scanJSON(src, a)
}

// WeekProgress counts submissions in one week.
type WeekProgress struct {
	Count       int       `json:"count"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// WeekStatus maps week number to progress.
type WeekStatus map[int]WeekProgress

// Value implements driver.Valuer.
func (w WeekStatus) Value() (driver.Value, error) {
	if w == nil {
		return []byte("{}"), nil
	}
	return valueJSON(w)
}

// Scan implements sql.Scanner.
func (w *WeekStatus) Scan(src interface{}) error {
	*w = WeekStatus{}
	return scanJSON(src, w)
}

// Weeks returns the recorded week numbers in order.
func (w WeekStatus) Weeks() []int {
	weeks := make([]int, 0, len(w))
	for k := range w {
		weeks = append(weeks, k)
	}
	sort.Ints(weeks)
	return weeks
}

// LessonPlan is the write-once lesson plan slot.
type LessonPlan struct {
	Uploaded      bool       `json:"uploaded"`
	FileName      string     `json:"fileName,omitempty"`
	StoragePath   string     `json:"storagePath,omitempty"`
	FileURL       string     `json:"fileUrl,omitempty"`
	ContentType   string     `json:"contentType,omitempty"`
	SubmittedDate *time.Time `json:"submittedDate,omitempty"`
}

// Value implements driver.Valuer.
func (l LessonPlan) Value() (driver.Value, error) { return valueJSON(l) }

// Scan implements sql.Scanner.
func (l *LessonPlan) Scan(src interface{}) error {
	*l = LessonPlan{}
	return scanJSON(src, l)
}

// VideoLink is the write-once video slot for year 3 students.
type VideoLink struct {
	URL         string     `json:"url,omitempty"`
	Submitted   bool       `json:"submitted"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
}

// Value implements driver.Valuer.
func (v VideoLink) Value() (driver.Value, error) { return valueJSON(v) }

// Scan implements sql.Scanner.
func (v *VideoLink) Scan(src interface{}) error {
	*v = VideoLink{}
	return scanJSON(src, v)
}

// EvaluationAggregate is the per (student, observation) evaluation record.
type EvaluationAggregate struct {
	ID            string             `db:"id" json:"id"`
	StudentID     string             `db:"student_id" json:"studentId"`
	ObservationID string             `db:"observation_id" json:"observationId"`
	Attempts      EvaluationAttempts `db:"attempts" json:"evaluations"`
	WeekStatus    WeekStatus         `db:"week_status" json:"weekStatus"`
	LessonPlan    LessonPlan         `db:"lesson_plan" json:"lessonPlan"`
	VideoLink     VideoLink          `db:"video_link" json:"videoLink"`
	CreatedAt     time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time          `db:"updated_at" json:"updatedAt"`
}

// Submission kinds reported to metrics.
const (
	SubmissionAttempt    = "evaluation"
	SubmissionLessonPlan = "lesson_plan"
	SubmissionVideo      = "video_link"
	SubmissionSchool     = "school"
	SubmissionMentor     = "mentor"
	SubmissionFeedback   = "feedback"
)
