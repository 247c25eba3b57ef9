package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/practicum-api/internal/models"
)

func TestBackupRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBackupRepository(db)

	now := time.Now()
	status := models.BackupCompleted
	file := "backup-1.json"
	size := int64(2048)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE system_backups SET status = $1, file_name = $2, size_bytes = $3, finished_at = $4 WHERE id = $5")).
		WithArgs(status, file, size, now, "backup-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "backup-1", UpdateBackupParams{
		Status:     &status,
		FileName:   &file,
		SizeBytes:  &size,
		FinishedAt: &now,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBackupRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBackupRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO system_backups")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	backup := &models.Backup{RequestedBy: "A0001"}
	require.NoError(t, repo.Create(context.Background(), backup))
	require.NotEmpty(t, backup.ID)
	require.Equal(t, models.BackupQueued, backup.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
