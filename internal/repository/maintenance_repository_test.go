package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/practicum-api/internal/models"
)

func TestMaintenanceRepositoryResetDatabase(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMaintenanceRepository(db)

	mock.ExpectBegin()
	for i, table := range ResetTables {
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM " + table)).
			WillReturnResult(sqlmock.NewResult(0, int64(i+1)))
	}
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id <> $1")).
		WithArgs("A0001").
		WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE system_settings SET status = $1")).
		WithArgs(models.SystemOnline, "A0001", sqlmock.AnyArg(), models.SystemSettingsID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	admin := &models.User{ID: "A0000", Email: "admin@example.com", PasswordHash: "hash", Role: models.RoleAdmin}
	deleted, err := repo.ResetDatabase(context.Background(), "A0001", admin)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted["evaluations"])
	assert.Equal(t, int64(12), deleted["users"])
	assert.Len(t, deleted, len(ResetTables)+1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaintenanceRepositoryResetDatabaseRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMaintenanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM evaluations")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM mentors")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := repo.ResetDatabase(context.Background(), "A0001", nil)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaintenanceRepositoryDumpTable(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMaintenanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM schools t")).
		WillReturnRows(sqlmock.NewRows([]string{"data", "row_count"}).AddRow([]byte(`[{"id":"s1"}]`), 1))

	dump, err := repo.DumpTable(context.Background(), "schools")
	require.NoError(t, err)
	assert.Equal(t, 1, dump.Rows)
	assert.JSONEq(t, `[{"id":"s1"}]`, string(dump.Data))

	_, err = repo.DumpTable(context.Background(), "pg_authid")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaintenanceRepositoryDashboardCountsRoles(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMaintenanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT\n    (SELECT COUNT(*) FROM observations WHERE status = 'active') AS active_observations")).
		WillReturnRows(sqlmock.NewRows([]string{"active_observations", "active_enrollments", "submitted_attempts", "lesson_plans", "video_links", "schools", "mentors"}).
			AddRow(2, 5, 9, 4, 1, 3, 3))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, role FROM users WHERE active = TRUE")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "role"}).
			AddRow("A0000", "admin").
			AddRow("T1001", "teacher").
			AddRow("t1002", "").
			AddRow("2021001", "student").
			AddRow("2021002", "").
			AddRow("X99", ""))

	counts, err := repo.DashboardCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Admins)
	assert.Equal(t, 2, counts.Teachers)
	assert.Equal(t, 2, counts.Students)
	assert.Equal(t, 2, counts.ActiveObservations)
	assert.Equal(t, 9, counts.SubmittedAttempts)
	require.NoError(t, mock.ExpectationsWereMet())
}
