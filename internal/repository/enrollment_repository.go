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
)

const enrollmentColumns = `id, observation_id, student_id, status, evaluations_completed, lesson_plan_submitted, notes, created_at, updated_at`

// EnrollmentRepository handles persistence of observation_students.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ListByObservation returns every enrollment of a period with student progress.
func (r *EnrollmentRepository) ListByObservation(ctx context.Context, observationID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT os.id, os.observation_id, os.student_id, os.status, os.evaluations_completed, os.lesson_plan_submitted,
        os.notes, os.created_at, os.updated_at, u.first_name, u.last_name, u.email,
        s.name AS school_name, NULLIF(TRIM(m.first_name || ' ' || m.last_name), '') AS mentor_name,
        COALESCE((e.video_link->>'submitted')::boolean, FALSE) AS video_submitted
        FROM observation_students os
        JOIN users u ON u.id = os.student_id
        LEFT JOIN schools s ON s.student_id = os.student_id AND s.observation_id = os.observation_id
        LEFT JOIN mentors m ON m.student_id = os.student_id AND m.observation_id = os.observation_id
        LEFT JOIN evaluations e ON e.student_id = os.student_id AND e.observation_id = os.observation_id
        WHERE os.observation_id = $1
        ORDER BY u.first_name, u.last_name`
	var items []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &items, query, observationID); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return items, nil
}

// FindByID returns an enrollment.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM observation_students WHERE id = $1`
	var e models.Enrollment
	if err := r.db.GetContext(ctx, &e, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &e, nil
}

// FindActive returns the active enrollment of a student in a period.
func (r *EnrollmentRepository) FindActive(ctx context.Context, observationID, studentID string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM observation_students WHERE observation_id = $1 AND student_id = $2 AND status = $3 LIMIT 1`
	var e models.Enrollment
	if err := r.db.GetContext(ctx, &e, query, observationID, studentID, models.EnrollmentActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find active enrollment: %w", err)
	}
	return &e, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, e *models.Enrollment) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	if e.Status == "" {
		e.Status = models.EnrollmentActive
	}
	const query = `INSERT INTO observation_students (id, observation_id, student_id, status, evaluations_completed, lesson_plan_submitted, notes, created_at, updated_at)
        VALUES (:id, :observation_id, :student_id, :status, :evaluations_completed, :lesson_plan_submitted, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, e); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateStatus changes status and notes.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, notes *string) error {
	const query = `UPDATE observation_students SET status = $2, notes = COALESCE($3, notes), updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, notes, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// RefreshProgress recomputes the cached counters from the evaluation aggregate.
func (r *EnrollmentRepository) RefreshProgress(ctx context.Context, observationID, studentID string) error {
	const query = `UPDATE observation_students os SET
        evaluations_completed = COALESCE((
            SELECT COUNT(*) FROM evaluations e, jsonb_each(e.attempts) a
            WHERE e.student_id = os.student_id AND e.observation_id = os.observation_id
              AND COALESCE((a.value->>'submitted')::boolean, FALSE)), 0),
        lesson_plan_submitted = COALESCE((
            SELECT (e.lesson_plan->>'uploaded')::boolean FROM evaluations e
            WHERE e.student_id = os.student_id AND e.observation_id = os.observation_id), FALSE),
        updated_at = $3
        WHERE os.observation_id = $1 AND os.student_id = $2`
	if _, err := r.db.ExecContext(ctx, query, observationID, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("refresh enrollment progress: %w", err)
	}
	return nil
}
