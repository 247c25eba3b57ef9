package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/practicum-api/internal/models"
)

const schoolColumns = `id, observation_id, student_id, name, affiliation, address, district, city, province, postal_code,
        grade_levels, principal, student_count, teacher_count, staff_count, phone, email, last_updated_by, created_at, updated_at`

// SchoolChange describes the cascade applied when a student switches schools.
type SchoolChange struct {
	School           *models.School
	DeleteMentor     bool
	DeleteEvaluation bool
}

// SchoolChangeResult reports what the cascade removed.
type SchoolChangeResult struct {
	MentorsDeleted     int64
	EvaluationsDeleted int64
}

// SchoolRepository persists school submissions.
type SchoolRepository struct {
	db *sqlx.DB
}

// NewSchoolRepository constructs the repository.
func NewSchoolRepository(db *sqlx.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

// FindByStudent returns the school a student submitted for a period.
func (r *SchoolRepository) FindByStudent(ctx context.Context, studentID, observationID string) (*models.School, error) {
	query := `SELECT ` + schoolColumns + ` FROM schools WHERE student_id = $1 AND observation_id = $2`
	var school models.School
	if err := r.db.GetContext(ctx, &school, query, studentID, observationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find school: %w", err)
	}
	return &school, nil
}

// Create inserts a new school submission.
func (r *SchoolRepository) Create(ctx context.Context, school *models.School) error {
	if school.ID == "" {
		school.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	school.CreatedAt = now
	school.UpdatedAt = now
	const query = `INSERT INTO schools (id, observation_id, student_id, name, affiliation, address, district, city, province, postal_code,
        grade_levels, principal, student_count, teacher_count, staff_count, phone, email, last_updated_by, created_at, updated_at)
        VALUES (:id, :observation_id, :student_id, :name, :affiliation, :address, :district, :city, :province, :postal_code,
        :grade_levels, :principal, :student_count, :teacher_count, :staff_count, :phone, :email, :last_updated_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, school); err != nil {
		return fmt.Errorf("create school: %w", err)
	}
	return nil
}

const updateSchoolQuery = `UPDATE schools SET name = :name, affiliation = :affiliation, address = :address, district = :district,
        city = :city, province = :province, postal_code = :postal_code, grade_levels = :grade_levels, principal = :principal,
        student_count = :student_count, teacher_count = :teacher_count, staff_count = :staff_count, phone = :phone,
        email = :email, last_updated_by = :last_updated_by, updated_at = :updated_at
        WHERE id = :id AND student_id = :student_id`

// Update rewrites the owner's school record in place.
func (r *SchoolRepository) Update(ctx context.Context, school *models.School) error {
	school.UpdatedAt = time.Now().UTC()
	res, err := r.db.NamedExecContext(ctx, updateSchoolQuery, school)
	if err != nil {
		return fmt.Errorf("update school: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ChangeSchool switches a student to a different school in one transaction,
// deleting the mentor and evaluation aggregate tied to the old school when asked.
func (r *SchoolRepository) ChangeSchool(ctx context.Context, change SchoolChange) (*SchoolChangeResult, error) {
	school := change.School
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin school change: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var lockedID string
	if err := tx.GetContext(ctx, &lockedID, `SELECT id FROM schools WHERE id = $1 AND student_id = $2 FOR UPDATE`, school.ID, school.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock school: %w", err)
	}

	result := &SchoolChangeResult{}
	if change.DeleteMentor {
		res, err := tx.ExecContext(ctx, `DELETE FROM mentors WHERE student_id = $1 AND observation_id = $2`, school.StudentID, school.ObservationID)
		if err != nil {
			return nil, fmt.Errorf("delete mentor: %w", err)
		}
		result.MentorsDeleted, _ = res.RowsAffected()
	}
	if change.DeleteEvaluation {
		res, err := tx.ExecContext(ctx, `DELETE FROM evaluations WHERE student_id = $1 AND observation_id = $2`, school.StudentID, school.ObservationID)
		if err != nil {
			return nil, fmt.Errorf("delete evaluations: %w", err)
		}
		result.EvaluationsDeleted, _ = res.RowsAffected()
		if _, err := tx.ExecContext(ctx, `UPDATE observation_students SET evaluations_completed = 0, lesson_plan_submitted = FALSE, updated_at = $3
            WHERE student_id = $1 AND observation_id = $2`, school.StudentID, school.ObservationID, time.Now().UTC()); err != nil {
			return nil, fmt.Errorf("reset enrollment progress: %w", err)
		}
	}

	school.UpdatedAt = time.Now().UTC()
	if _, err := tx.NamedExecContext(ctx, updateSchoolQuery, school); err != nil {
		return nil, fmt.Errorf("update school: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit school change: %w", err)
	}
	return result, nil
}

// Search returns distinct school names matching q, most recently updated first, for autofill.
func (r *SchoolRepository) Search(ctx context.Context, q string, limit int) ([]models.SchoolSuggestion, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	query := fmt.Sprintf(`SELECT name, affiliation, address, district, city, province, postal_code, grade_levels, principal,
        student_count, teacher_count, staff_count, phone, email FROM (
            SELECT DISTINCT ON (LOWER(name)) name, affiliation, address, district, city, province, postal_code, grade_levels,
            principal, student_count, teacher_count, staff_count, phone, email, updated_at
            FROM schools WHERE LOWER(name) LIKE $1
            ORDER BY LOWER(name), updated_at DESC
        ) latest ORDER BY name LIMIT %d`, limit)
	var items []models.SchoolSuggestion
	if err := r.db.SelectContext(ctx, &items, query, "%"+strings.ToLower(strings.TrimSpace(q))+"%"); err != nil {
		return nil, fmt.Errorf("search schools: %w", err)
	}
	return items, nil
}
