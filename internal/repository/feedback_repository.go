package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/practicum-api/internal/models"
	"github.com/noah-isme/practicum-api/pkg/database"
)

// ErrFeedbackExists is returned when the user already left feedback.
var ErrFeedbackExists = errors.New("feedback already submitted")

// FeedbackRepository persists website feedback.
type FeedbackRepository struct {
	db *sqlx.DB
}

// NewFeedbackRepository constructs the repository.
func NewFeedbackRepository(db *sqlx.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Create stores the single feedback entry of a user.
func (r *FeedbackRepository) Create(ctx context.Context, fb *models.WebsiteFeedback) error {
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	fb.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO website_evaluations (id, user_id, role, ratings, comment, created_at)
        VALUES (:id, :user_id, :role, :ratings, :comment, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, fb); err != nil {
		if database.IsUniqueViolation(err, "") {
			return ErrFeedbackExists
		}
		return fmt.Errorf("create feedback: %w", err)
	}
	return nil
}

// FindByUser returns the feedback a user submitted.
func (r *FeedbackRepository) FindByUser(ctx context.Context, userID string) (*models.WebsiteFeedback, error) {
	const query = `SELECT id, user_id, role, ratings, comment, created_at FROM website_evaluations WHERE user_id = $1`
	var fb models.WebsiteFeedback
	if err := r.db.GetContext(ctx, &fb, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find feedback: %w", err)
	}
	return &fb, nil
}

// List returns feedback newest first.
func (r *FeedbackRepository) List(ctx context.Context, page, pageSize int) ([]models.WebsiteFeedback, int, error) {
	page, pageSize = models.NormalizePage(page, pageSize)
	query := fmt.Sprintf(`SELECT id, user_id, role, ratings, comment, created_at FROM website_evaluations
        ORDER BY created_at DESC LIMIT %d OFFSET %d`, pageSize, (page-1)*pageSize)
	var items []models.WebsiteFeedback
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, 0, fmt.Errorf("list feedback: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM website_evaluations`); err != nil {
		return nil, 0, fmt.Errorf("count feedback: %w", err)
	}
	return items, total, nil
}

// Summary averages each rating aspect across all feedback.
func (r *FeedbackRepository) Summary(ctx context.Context) (*models.FeedbackSummary, error) {
	var rows []struct {
		Aspect  string  `db:"aspect"`
		Average float64 `db:"average"`
	}
	const query = `SELECT r.key AS aspect, ROUND(AVG(r.value::numeric), 2)::float8 AS average
        FROM website_evaluations w, jsonb_each_text(w.ratings) r
        GROUP BY r.key ORDER BY r.key`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("summarise feedback: %w", err)
	}
	summary := &models.FeedbackSummary{Averages: make(map[string]float64, len(rows))}
	for _, row := range rows {
		summary.Averages[row.Aspect] = row.Average
	}
	if err := r.db.GetContext(ctx, &summary.Total, `SELECT COUNT(*) FROM website_evaluations`); err != nil {
		return nil, fmt.Errorf("count feedback: %w", err)
	}
	return summary, nil
}
