package models

import (
	"database/sql/driver"
	"time"
)

// Feedback rating keys.
var FeedbackAspects = []string{"usability", "design", "content", "performance", "overall"}

// FeedbackRatings maps an aspect to a 1..5 score.
type FeedbackRatings map[string]int

// Value implements driver.Valuer.
func (r FeedbackRatings) Value() (driver.Value, error) { return valueJSON(r) }

// Scan implements sql.Scanner.
func (r *FeedbackRatings) Scan(src interface{}) error {
	*r = FeedbackRatings{}
	return scanJSON(src, r)
}

// WebsiteFeedback is the single feedback entry a user may leave.
type WebsiteFeedback struct {
	ID        string          `db:"id" json:"id"`
	UserID    string          `db:"user_id" json:"userId"`
	Role      UserRole        `db:"role" json:"role"`
	Ratings   FeedbackRatings `db:"ratings" json:"ratings"`
	Comment   *string         `db:"comment" json:"comment,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
}

// FeedbackEligibility explains whether the user may leave feedback.
type FeedbackEligibility struct {
	Eligible         bool     `json:"eligible"`
	Reason           string   `json:"reason,omitempty"`
	AlreadySubmitted bool     `json:"alreadySubmitted"`
	AccountAgeDays   int      `json:"accountAgeDays"`
	MissingFields    []string `json:"missingFields,omitempty"`
}

// FeedbackSummary aggregates all feedback.
type FeedbackSummary struct {
	Total    int                `json:"total"`
	Averages map[string]float64 `json:"averages"`
}
