package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/practicum-api/internal/models"
)

const evaluationColumns = `id, student_id, observation_id, attempts, week_status, lesson_plan, video_link, created_at, updated_at`

// EvaluationRepository stores evaluation aggregates. Every write to a
// write-once slot is a single conditional UPDATE; a false return means the
// slot was already taken.
type EvaluationRepository struct {
	db *sqlx.DB
}

// NewEvaluationRepository constructs the repository.
func NewEvaluationRepository(db *sqlx.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

// Ensure creates the aggregate for (student, observation) when missing.
func (r *EvaluationRepository) Ensure(ctx context.Context, studentID, observationID string) error {
	const query = `INSERT INTO evaluations (id, student_id, observation_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $4)
        ON CONFLICT (student_id, observation_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), studentID, observationID, time.Now().UTC()); err != nil {
		return fmt.Errorf("ensure evaluation aggregate: %w", err)
	}
	return nil
}

// Find returns the aggregate for (student, observation).
func (r *EvaluationRepository) Find(ctx context.Context, studentID, observationID string) (*models.EvaluationAggregate, error) {
	query := `SELECT ` + evaluationColumns + ` FROM evaluations WHERE student_id = $1 AND observation_id = $2`
	var agg models.EvaluationAggregate
	if err := r.db.GetContext(ctx, &agg, query, studentID, observationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find evaluation aggregate: %w", err)
	}
	return &agg, nil
}

// Exists reports whether an aggregate exists for (student, observation).
func (r *EvaluationRepository) Exists(ctx context.Context, studentID, observationID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM evaluations WHERE student_id = $1 AND observation_id = $2)`
	if err := r.db.GetContext(ctx, &exists, query, studentID, observationID); err != nil {
		return false, fmt.Errorf("check evaluation aggregate: %w", err)
	}
	return exists, nil
}

// SubmitAttempt stores attempt number n and bumps the week counter, only when
// slot n is still empty.
func (r *EvaluationRepository) SubmitAttempt(ctx context.Context, studentID, observationID string, n int, attempt models.EvaluationAttempt) (bool, error) {
	payload, err := json.Marshal(attempt)
	if err != nil {
		return false, fmt.Errorf("encode attempt: %w", err)
	}
	now := attempt.SubmittedAt.UTC()
	const query = `UPDATE evaluations SET
            attempts = jsonb_set(attempts, ARRAY[$3::text], $4::jsonb, true),
            week_status = jsonb_set(week_status, ARRAY[$5::text], jsonb_build_object(
                'count', COALESCE((week_status -> $5::text ->> 'count')::int, 0) + 1,
                'lastUpdated', to_jsonb($6::text)), true),
            updated_at = $7
        WHERE student_id = $1 AND observation_id = $2 AND attempts -> $3::text IS NULL`
	res, err := r.db.ExecContext(ctx, query, studentID, observationID, strconv.Itoa(n), string(payload),
		strconv.Itoa(attempt.Week), now.Format(time.RFC3339Nano), now)
	if err != nil {
		return false, fmt.Errorf("submit evaluation attempt: %w", err)
	}
	return affected(res)
}

// SetLessonPlan records the lesson plan unless one is already uploaded.
func (r *EvaluationRepository) SetLessonPlan(ctx context.Context, studentID, observationID string, plan models.LessonPlan) (bool, error) {
	const query = `UPDATE evaluations SET lesson_plan = $3, updated_at = $4
        WHERE student_id = $1 AND observation_id = $2
          AND COALESCE((lesson_plan ->> 'uploaded')::boolean, FALSE) = FALSE`
	res, err := r.db.ExecContext(ctx, query, studentID, observationID, plan, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("set lesson plan: %w", err)
	}
	return affected(res)
}

// SetVideoLink records the video link unless one is already submitted.
func (r *EvaluationRepository) SetVideoLink(ctx context.Context, studentID, observationID string, link models.VideoLink) (bool, error) {
	const query = `UPDATE evaluations SET video_link = $3, updated_at = $4
        WHERE student_id = $1 AND observation_id = $2
          AND COALESCE((video_link ->> 'submitted')::boolean, FALSE) = FALSE`
	res, err := r.db.ExecContext(ctx, query, studentID, observationID, link, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("set video link: %w", err)
	}
	return affected(res)
}

// ListForReport returns aggregates joined with student and period data.
func (r *EvaluationRepository) ListForReport(ctx context.Context, filter models.ReportFilter) ([]models.ReportSource, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.ObservationID != "" {
		conds = append(conds, "e.observation_id = ?")
		args = append(args, filter.ObservationID)
	}
	if filter.YearLevel != nil {
		conds = append(conds, "o.year_level = ?")
		args = append(args, *filter.YearLevel)
	}
	if filter.StudentID != "" {
		conds = append(conds, "e.student_id = ?")
		args = append(args, filter.StudentID)
	}
	query := `SELECT e.id, e.student_id, e.observation_id, e.attempts, e.week_status, e.lesson_plan, e.video_link,
            e.created_at, e.updated_at, u.first_name, u.last_name, o.name AS observation_name, o.year_level
        FROM evaluations e
        JOIN users u ON u.id = e.student_id
        JOIN observations o ON o.id = e.observation_id`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY u.first_name, u.last_name, e.student_id"

	var items []models.ReportSource
	if err := r.db.SelectContext(ctx, &items, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list evaluations for report: %w", err)
	}
	return items, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
