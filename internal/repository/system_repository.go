package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/practicum-api/internal/models"
)

// SystemRepository persists system logs and the activity trail.
type SystemRepository struct {
	db *sqlx.DB
}

// NewSystemRepository constructs the repository.
func NewSystemRepository(db *sqlx.DB) *SystemRepository {
	return &SystemRepository{db: db}
}

// CreateLog inserts a system log entry.
func (r *SystemRepository) CreateLog(ctx context.Context, entry *models.SystemLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO system_logs (id, level, message, code, method, path, status_code, user_id, request_id, created_at)
VALUES (:id, :level, :message, :code, :method, :path, :status_code, :user_id, :request_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create system log: %w", err)
	}
	return nil
}

// ListLogs returns log entries newest first.
func (r *SystemRepository) ListLogs(ctx context.Context, filter models.LogFilter) ([]models.SystemLog, int, error) {
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	where := "WHERE 1=1"
	var args []interface{}
	if filter.Level != "" {
		where += " AND level = ?"
		args = append(args, strings.ToLower(filter.Level))
	}
	query := r.db.Rebind(fmt.Sprintf(`SELECT id, level, message, code, method, path, status_code, user_id, request_id, created_at
FROM system_logs %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, where, size, (page-1)*size))
	var logs []models.SystemLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list system logs: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind("SELECT COUNT(*) FROM system_logs "+where), args...); err != nil {
		return nil, 0, fmt.Errorf("count system logs: %w", err)
	}
	return logs, total, nil
}

// CreateActivity appends to the activity trail.
func (r *SystemRepository) CreateActivity(ctx context.Context, activity *models.SystemActivity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO system_activities (id, user_id, action, description, metadata, ip_address, user_agent, created_at)
VALUES (:id, :user_id, :action, :description, :metadata, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, activity); err != nil {
		return fmt.Errorf("create system activity: %w", err)
	}
	return nil
}

// ListActivities returns activities newest first.
func (r *SystemRepository) ListActivities(ctx context.Context, filter models.ActivityFilter) ([]models.SystemActivity, int, error) {
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	where := "WHERE 1=1"
	var args []interface{}
	if filter.Action != "" {
		where += " AND action = ?"
		args = append(args, strings.ToUpper(filter.Action))
	}
	if filter.UserID != "" {
		where += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	query := r.db.Rebind(fmt.Sprintf(`SELECT id, user_id, action, description, metadata, ip_address, user_agent, created_at
FROM system_activities %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, where, size, (page-1)*size))
	var items []models.SystemActivity
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list system activities: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind("SELECT COUNT(*) FROM system_activities "+where), args...); err != nil {
		return nil, 0, fmt.Errorf("count system activities: %w", err)
	}
	return items, total, nil
}
