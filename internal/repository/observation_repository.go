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

const observationColumns = `id, name, academic_year, year_level, start_date, end_date, status, description, created_by, created_at, updated_at`

// ObservationRepository persists observation periods.
type ObservationRepository struct {
	db *sqlx.DB
}

// NewObservationRepository constructs the repository.
func NewObservationRepository(db *sqlx.DB) *ObservationRepository {
	return &ObservationRepository{db: db}
}

// List returns periods matching the filter with a total count.
func (r *ObservationRepository) List(ctx context.Context, filter models.ObservationFilter) ([]models.Observation, int, error) {
	base := `FROM observations`
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.YearLevel != nil {
		conditions = append(conditions, fmt.Sprintf("year_level = $%d", len(args)+1))
		args = append(args, *filter.YearLevel)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		base += " WHERE " + strings.Join(conditions, " AND ")
	}

	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s %s ORDER BY start_date DESC LIMIT %d OFFSET %d", observationColumns, base, size, (page-1)*size)

	var items []models.Observation
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list observations: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count observations: %w", err)
	}
	return items, total, nil
}

// FindByID returns a period by id.
func (r *ObservationRepository) FindByID(ctx context.Context, id string) (*models.Observation, error) {
	query := `SELECT ` + observationColumns + ` FROM observations WHERE id = $1`
	var obs models.Observation
	if err := r.db.GetContext(ctx, &obs, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find observation: %w", err)
	}
	return &obs, nil
}

// Create inserts a period.
func (r *ObservationRepository) Create(ctx context.Context, obs *models.Observation) error {
	if obs.ID == "" {
		obs.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	obs.CreatedAt = now
	obs.UpdatedAt = now
	if obs.Status == "" {
		obs.Status = models.ObservationActive
	}
	const query = `INSERT INTO observations (id, name, academic_year, year_level, start_date, end_date, status, description, created_by, created_at, updated_at)
        VALUES (:id, :name, :academic_year, :year_level, :start_date, :end_date, :status, :description, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, obs); err != nil {
		return fmt.Errorf("create observation: %w", err)
	}
	return nil
}

// Update replaces the editable fields of a period.
func (r *ObservationRepository) Update(ctx context.Context, obs *models.Observation) error {
	obs.UpdatedAt = time.Now().UTC()
	const query = `UPDATE observations SET name = :name, academic_year = :academic_year, year_level = :year_level,
        start_date = :start_date, end_date = :end_date, description = :description, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, obs); err != nil {
		return fmt.Errorf("update observation: %w", err)
	}
	return nil
}

// SetStatus changes the lifecycle status of a period.
func (r *ObservationRepository) SetStatus(ctx context.Context, id string, status models.ObservationStatus) error {
	const query = `UPDATE observations SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set observation status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CompleteExpired marks every active period whose end date is before now as completed.
func (r *ObservationRepository) CompleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `UPDATE observations SET status = $1, updated_at = $2 WHERE status = $3 AND end_date < $2`
	res, err := r.db.ExecContext(ctx, query, models.ObservationCompleted, now, models.ObservationActive)
	if err != nil {
		return 0, fmt.Errorf("complete expired observations: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ListActiveForStudent returns active periods in which the student holds an
// active enrollment, oldest start first.
func (r *ObservationRepository) ListActiveForStudent(ctx context.Context, studentID string) ([]models.ActivePeriod, error) {
	const query = `SELECT o.id, o.name, o.academic_year, o.year_level, o.start_date, o.end_date, o.status, o.description,
        o.created_by, o.created_at, o.updated_at, os.id AS enrollment_id
        FROM observations o
        JOIN observation_students os ON os.observation_id = o.id
        WHERE o.status = $1 AND os.student_id = $2 AND os.status = $3
        ORDER BY o.start_date ASC`
	var periods []models.ActivePeriod
	if err := r.db.SelectContext(ctx, &periods, query, models.ObservationActive, studentID, models.EnrollmentActive); err != nil {
		return nil, fmt.Errorf("list active observations for student: %w", err)
	}
	return periods, nil
}
