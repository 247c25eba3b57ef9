package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/practicum-api/internal/models"
)

// ResetTables lists, in deletion order, the tables cleared by a database reset.
var ResetTables = []string{
	"evaluations",
	"mentors",
	"schools",
	"observation_students",
	"observations",
	"website_evaluations",
	"system_activities",
}

// BackupTables lists every table included in a backup dump.
var BackupTables = []string{
	"users",
	"observations",
	"observation_students",
	"schools",
	"mentors",
	"evaluations",
	"website_evaluations",
	"system_settings",
	"system_logs",
	"system_activities",
}

// TableDump is one table serialised as a JSON array.
type TableDump struct {
	Table string          `json:"table"`
	Rows  int             `json:"rows"`
	Data  json.RawMessage `json:"data"`
}

// MaintenanceRepository runs the destructive and whole-database operations.
type MaintenanceRepository struct {
	db *sqlx.DB
}

// NewMaintenanceRepository constructs the repository.
func NewMaintenanceRepository(db *sqlx.DB) *MaintenanceRepository {
	return &MaintenanceRepository{db: db}
}

// ResetDatabase clears every domain table and all users except actorID,
// recreates the bootstrap admin and puts the system back online, in one transaction.
func (r *MaintenanceRepository) ResetDatabase(ctx context.Context, actorID string, admin *models.User) (map[string]int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reset tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	deleted := make(map[string]int64, len(ResetTables)+1)
	for _, table := range ResetTables {
		res, err := tx.ExecContext(ctx, "DELETE FROM "+table)
		if err != nil {
			return nil, fmt.Errorf("reset %s: %w", table, err)
		}
		deleted[table], _ = res.RowsAffected()
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id <> $1`, actorID)
	if err != nil {
		return nil, fmt.Errorf("reset users: %w", err)
	}
	deleted["users"], _ = res.RowsAffected()

	if admin != nil {
		now := time.Now().UTC()
		admin.CreatedAt = now
		admin.UpdatedAt = now
		const insertAdmin = `INSERT INTO users (id, email, password_hash, first_name, last_name, role, active, created_at, updated_at)
VALUES (:id, :email, :password_hash, :first_name, :last_name, :role, TRUE, :created_at, :updated_at)
ON CONFLICT DO NOTHING`
		if _, err := tx.NamedExecContext(ctx, insertAdmin, admin); err != nil {
			return nil, fmt.Errorf("create bootstrap admin: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE system_settings SET status = $1, message = NULL, updated_by = $2, updated_at = $3 WHERE id = $4`,
		models.SystemOnline, actorID, time.Now().UTC(), models.SystemSettingsID); err != nil {
		return nil, fmt.Errorf("reset system settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reset tx: %w", err)
	}
	return deleted, nil
}

// DashboardCounts reads the headline counters shown on the admin dashboard.
func (r *MaintenanceRepository) DashboardCounts(ctx context.Context) (*models.DashboardCounts, error) {
	const query = `SELECT
    (SELECT COUNT(*) FROM observations WHERE status = 'active') AS active_observations,
    (SELECT COUNT(*) FROM observation_students WHERE status = 'active') AS active_enrollments,
    (SELECT COUNT(*) FROM evaluations e, jsonb_each(e.attempts) a
        WHERE COALESCE((a.value ->> 'submitted')::boolean, FALSE)) AS submitted_attempts,
    (SELECT COUNT(*) FROM evaluations WHERE COALESCE((lesson_plan ->> 'uploaded')::boolean, FALSE)) AS lesson_plans,
    (SELECT COUNT(*) FROM evaluations WHERE COALESCE((video_link ->> 'submitted')::boolean, FALSE)) AS video_links,
    (SELECT COUNT(*) FROM schools) AS schools,
    (SELECT COUNT(*) FROM mentors) AS mentors`
	var counts models.DashboardCounts
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("dashboard counts: %w", err)
	}

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, `SELECT id, role FROM users WHERE active = TRUE`); err != nil {
		return nil, fmt.Errorf("dashboard role counts: %w", err)
	}
	for i := range users {
		switch users[i].EffectiveRole() {
		case models.RoleAdmin:
			counts.Admins++
		case models.RoleTeacher:
			counts.Teachers++
		case models.RoleStudent:
			counts.Students++
		}
	}
	return &counts, nil
}

// DumpTable serialises a table listed in BackupTables as a JSON array.
func (r *MaintenanceRepository) DumpTable(ctx context.Context, table string) (*TableDump, error) {
	if !isBackupTable(table) {
		return nil, fmt.Errorf("dump table: %q is not a backup table", table)
	}
	var row struct {
		Data []byte `db:"data"`
		Rows int    `db:"row_count"`
	}
	query := fmt.Sprintf(`SELECT COALESCE(json_agg(t), '[]'::json) AS data, COUNT(*) AS row_count FROM %s t`, table)
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return nil, fmt.Errorf("dump %s: %w", table, err)
	}
	return &TableDump{Table: table, Rows: row.Rows, Data: json.RawMessage(row.Data)}, nil
}

func isBackupTable(table string) bool {
	for _, t := range BackupTables {
		if t == table {
			return true
		}
	}
	return false
}
