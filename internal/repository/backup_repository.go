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

const backupColumns = `id, status, file_name, size_bytes, table_count, requested_by, error_message, created_at, finished_at`

// BackupRepository persists backup job metadata.
type BackupRepository struct {
	db *sqlx.DB
}

// NewBackupRepository constructs the repository.
func NewBackupRepository(db *sqlx.DB) *BackupRepository {
	return &BackupRepository{db: db}
}

// Create inserts a new backup row with generated defaults.
func (r *BackupRepository) Create(ctx context.Context, backup *models.Backup) error {
	if backup.ID == "" {
		backup.ID = uuid.NewString()
	}
	if backup.Status == "" {
		backup.Status = models.BackupQueued
	}
	if backup.CreatedAt.IsZero() {
		backup.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO system_backups (id, status, file_name, size_bytes, table_count, requested_by, error_message, created_at, finished_at)
VALUES (:id, :status, :file_name, :size_bytes, :table_count, :requested_by, :error_message, :created_at, :finished_at)`
	if _, err := r.db.NamedExecContext(ctx, query, backup); err != nil {
		return fmt.Errorf("create backup: %w", err)
	}
	return nil
}

// GetByID returns a backup row by its identifier.
func (r *BackupRepository) GetByID(ctx context.Context, id string) (*models.Backup, error) {
	query := `SELECT ` + backupColumns + ` FROM system_backups WHERE id = $1`
	var backup models.Backup
	if err := r.db.GetContext(ctx, &backup, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get backup: %w", err)
	}
	return &backup, nil
}

// UpdateBackupParams defines the mutable fields.
type UpdateBackupParams struct {
	Status       *models.BackupStatus
	FileName     *string
	SizeBytes    *int64
	TableCount   *int
	ErrorMessage *string
	FinishedAt   *time.Time
}

// Update persists the provided changes for a backup row.
func (r *BackupRepository) Update(ctx context.Context, id string, params UpdateBackupParams) error {
	set := make([]string, 0, 6)
	args := make([]interface{}, 0, 7)
	argPos := 1
	add := func(column string, value interface{}) {
		set = append(set, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}

	if params.Status != nil {
		add("status", *params.Status)
	}
	if params.FileName != nil {
		add("file_name", *params.FileName)
	}
	if params.SizeBytes != nil {
		add("size_bytes", *params.SizeBytes)
	}
	if params.TableCount != nil {
		add("table_count", *params.TableCount)
	}
	if params.ErrorMessage != nil {
		add("error_message", *params.ErrorMessage)
	}
	if params.FinishedAt != nil {
		add("finished_at", *params.FinishedAt)
	}
	if len(set) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE system_backups SET %s WHERE id = $%d", strings.Join(set, ", "), argPos)
	args = append(args, id)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update backup: %w", err)
	}
	return nil
}

// List returns the most recent backups.
func (r *BackupRepository) List(ctx context.Context, limit int) ([]models.Backup, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + backupColumns + ` FROM system_backups ORDER BY created_at DESC LIMIT $1`
	var backups []models.Backup
	if err := r.db.SelectContext(ctx, &backups, query, limit); err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	return backups, nil
}

// ListFinishedBefore retrieves completed backups prior to cutoff for cleanup.
func (r *BackupRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Backup, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + backupColumns + ` FROM system_backups
WHERE status = 'completed' AND finished_at IS NOT NULL AND finished_at < $1 ORDER BY finished_at ASC LIMIT $2`
	var backups []models.Backup
	if err := r.db.SelectContext(ctx, &backups, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list finished backups: %w", err)
	}
	return backups, nil
}

// Delete removes a backup row.
func (r *BackupRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM system_backups WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete backup: %w", err)
	}
	return nil
}
