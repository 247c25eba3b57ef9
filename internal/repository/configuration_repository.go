package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/practicum-api/internal/models"
)

// ConfigurationRepository persists the singleton system settings row.
type ConfigurationRepository struct {
	db *sqlx.DB
}

// NewConfigurationRepository constructs the repository.
func NewConfigurationRepository(db *sqlx.DB) *ConfigurationRepository {
	return &ConfigurationRepository{db: db}
}

// GetSettings returns the settings row, defaulting to online when it is missing.
func (r *ConfigurationRepository) GetSettings(ctx context.Context) (*models.SystemSettings, error) {
	const query = `SELECT id, status, message, updated_by, updated_at FROM system_settings WHERE id = $1`
	var settings models.SystemSettings
	if err := r.db.GetContext(ctx, &settings, query, models.SystemSettingsID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.SystemSettings{ID: models.SystemSettingsID, Status: models.SystemOnline}, nil
		}
		return nil, fmt.Errorf("get system settings: %w", err)
	}
	return &settings, nil
}

// UpsertSettings stores the status, message and actor.
func (r *ConfigurationRepository) UpsertSettings(ctx context.Context, settings *models.SystemSettings) error {
	settings.ID = models.SystemSettingsID
	settings.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO system_settings (id, status, message, updated_by, updated_at)
VALUES (:id, :status, :message, :updated_by, :updated_at)
ON CONFLICT (id)
DO UPDATE SET status = EXCLUDED.status, message = EXCLUDED.message,
              updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, settings); err != nil {
		return fmt.Errorf("upsert system settings: %w", err)
	}
	return nil
}
