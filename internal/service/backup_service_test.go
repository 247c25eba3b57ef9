package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/practicum-api/internal/models"
	"github.com/noah-isme/practicum-api/internal/repository"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
	"github.com/noah-isme/practicum-api/pkg/jobs"
	"github.com/noah-isme/practicum-api/pkg/storage"
)

type memoryBackupRepo struct {
	items   map[string]*models.Backup
	order   []string
	deleted []string
}

func newMemoryBackupRepo() *memoryBackupRepo {
	return &memoryBackupRepo{items: map[string]*models.Backup{}}
}

func (m *memoryBackupRepo) Create(_ context.Context, backup *models.Backup) error {
	if backup.ID == "" {
		backup.ID = "bk-" + string(rune('a'+len(m.order)))
	}
	cp := *backup
	m.items[backup.ID] = &cp
	m.order = append(m.order, backup.ID)
	return nil
}

func (m *memoryBackupRepo) GetByID(_ context.Context, id string) (*models.Backup, error) {
	b, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *b
	return &cp, nil
}

func (m *memoryBackupRepo) Update(_ context.Context, id string, params repository.UpdateBackupParams) error {
	b, ok := m.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		b.Status = *params.Status
	}
	if params.FileName != nil {
		b.FileName = params.FileName
	}
	if params.SizeBytes != nil {
		b.SizeBytes = *params.SizeBytes
	}
	if params.TableCount != nil {
		b.TableCount = *params.TableCount
	}
	if params.ErrorMessage != nil {
		b.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		b.FinishedAt = params.FinishedAt
	}
	return nil
}

func (m *memoryBackupRepo) List(_ context.Context, limit int) ([]models.Backup, error) {
	out := make([]models.Backup, 0, len(m.order))
	for _, id := range m.order {
		if b, ok := m.items[id]; ok {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memoryBackupRepo) ListFinishedBefore(_ context.Context, cutoff time.Time, limit int) ([]models.Backup, error) {
	var out []models.Backup
	for _, id := range m.order {
		b, ok := m.items[id]
		if ok && b.Status == models.BackupCompleted && b.FinishedAt != nil && b.FinishedAt.Before(cutoff) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memoryBackupRepo) Delete(_ context.Context, id string) error {
	delete(m.items, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type fakeDumper struct {
	err error
}

func (f *fakeDumper) DumpTable(_ context.Context, table string) (*repository.TableDump, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &repository.TableDump{Table: table, Rows: 1, Data: json.RawMessage(`[{"id":"` + table + `-1"}]`)}, nil
}

type recordingQueue struct {
	jobs []jobs.Job
	err  error
}

func (q *recordingQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type backupFixture struct {
	svc    *BackupService
	worker *BackupWorker
	repo   *memoryBackupRepo
	queue  *recordingQueue
	files  *storage.LocalStorage
	dumper *fakeDumper
}

func newBackupFixture(t *testing.T) *backupFixture {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)
	f := &backupFixture{
		repo:   newMemoryBackupRepo(),
		queue:  &recordingQueue{},
		files:  files,
		dumper: &fakeDumper{},
	}
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	f.svc = NewBackupService(f.repo, f.queue, files, signer, &recordingActivities{}, zap.NewNop(), BackupServiceConfig{DownloadPath: "/api/system/backups/"})
	f.worker = NewBackupWorker(f.repo, f.dumper, files, []string{"users", "evaluations"}, zap.NewNop())
	return f
}

func TestBackupServiceRequestAndProcess(t *testing.T) {
	f := newBackupFixture(t)

	backup, err := f.svc.Request(context.Background(), "A0001", RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.BackupQueued, backup.Status)
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, BackupJobType, f.queue.jobs[0].Type)

	require.NoError(t, f.worker.Handle(context.Background(), f.queue.jobs[0]))
	stored := f.repo.items[backup.ID]
	assert.Equal(t, models.BackupCompleted, stored.Status)
	assert.Equal(t, 2, stored.TableCount)
	require.NotNil(t, stored.FileName)
	assert.True(t, strings.HasPrefix(*stored.FileName, "backup_"))

	list, err := f.svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotEmpty(t, list[0].DownloadURL)
	assert.True(t, strings.HasPrefix(list[0].DownloadURL, "/api/system/backups/"+backup.ID+"/download?token="))

	token := list[0].DownloadURL[strings.Index(list[0].DownloadURL, "token=")+len("token="):]
	file, err := f.svc.Open(context.Background(), backup.ID, token)
	require.NoError(t, err)
	defer file.File.Close() //nolint:errcheck

	raw, err := io.ReadAll(file.File)
	require.NoError(t, err)
	var doc backupDocument
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, backup.ID, doc.BackupID)
	assert.JSONEq(t, `[{"id":"users-1"}]`, string(doc.Tables["users"]))
	assert.Equal(t, 1, doc.Counts["evaluations"])
	assert.Equal(t, int64(len(raw)), stored.SizeBytes)
}

func TestBackupServiceOpenRejectsForeignToken(t *testing.T) {
	f := newBackupFixture(t)
	first, err := f.svc.Request(context.Background(), "A0001", RequestMeta{})
	require.NoError(t, err)
	second, err := f.svc.Request(context.Background(), "A0001", RequestMeta{})
	require.NoError(t, err)
	for _, job := range f.queue.jobs {
		require.NoError(t, f.worker.Handle(context.Background(), job))
	}

	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	token, _, err := signer.Generate(first.ID, *f.repo.items[first.ID].FileName)
	require.NoError(t, err)

	_, err = f.svc.Open(context.Background(), second.ID, token)
	assertAppError(t, err, appErrors.ErrForbidden)

	_, err = f.svc.Open(context.Background(), first.ID, "garbage")
	assertAppError(t, err, appErrors.ErrForbidden)
}

func TestBackupServiceEnqueueFailureMarksFailed(t *testing.T) {
	f := newBackupFixture(t)
	f.queue.err = errors.New("queue full")

	_, err := f.svc.Request(context.Background(), "A0001", RequestMeta{})
	assertAppError(t, err, appErrors.ErrServiceUnavailable)
	require.Len(t, f.repo.order, 1)
	assert.Equal(t, models.BackupFailed, f.repo.items[f.repo.order[0]].Status)
}

func TestBackupWorkerFailureHandler(t *testing.T) {
	f := newBackupFixture(t)
	f.dumper.err = errors.New("relation does not exist")
	backup, err := f.svc.Request(context.Background(), "A0001", RequestMeta{})
	require.NoError(t, err)

	jobErr := f.worker.Handle(context.Background(), f.queue.jobs[0])
	require.Error(t, jobErr)
	assert.Equal(t, models.BackupProcessing, f.repo.items[backup.ID].Status)

	f.worker.OnFailure(context.Background(), f.queue.jobs[0], jobErr)
	stored := f.repo.items[backup.ID]
	assert.Equal(t, models.BackupFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "relation does not exist")
}

func TestBackupServiceCleanup(t *testing.T) {
	f := newBackupFixture(t)
	backup, err := f.svc.Request(context.Background(), "A0001", RequestMeta{})
	require.NoError(t, err)
	require.NoError(t, f.worker.Handle(context.Background(), f.queue.jobs[0]))
	filename := *f.repo.items[backup.ID].FileName

	removed, err := f.svc.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)

	f.svc.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	removed, err = f.svc.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{backup.ID}, f.repo.deleted)

	_, err = f.files.Open(filename)
	assert.Error(t, err)
}

func TestBackupServiceCleanupSweepsOrphanFiles(t *testing.T) {
	f := newBackupFixture(t)
	name, err := f.files.Save("backup_20240101_000000_deadbeef.json", []byte("{}"))
	require.NoError(t, err)
	file, err := f.files.Open(name)
	require.NoError(t, err)
	path := file.Name()
	require.NoError(t, file.Close())
	old := time.Now().Add(-30 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	removed, err := f.svc.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Empty(t, f.repo.deleted)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
