package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/practicum-api/internal/models"
	"github.com/noah-isme/practicum-api/internal/repository"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
	"github.com/noah-isme/practicum-api/pkg/jobs"
)

// BackupJobType tags backup jobs on the queue.
const BackupJobType = "system_backup"

type backupStore interface {
	Create(ctx context.Context, backup *models.Backup) error
	GetByID(ctx context.Context, id string) (*models.Backup, error)
	Update(ctx context.Context, id string, params repository.UpdateBackupParams) error
	List(ctx context.Context, limit int) ([]models.Backup, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Backup, error)
	Delete(ctx context.Context, id string) error
}

type tableDumper interface {
	DumpTable(ctx context.Context, table string) (*repository.TableDump, error)
}

type backupFiles interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type urlSigner interface {
	Generate(resourceID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (resourceID, relPath string, expiresAt time.Time, err error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// BackupServiceConfig tunes backup links and retention.
type BackupServiceConfig struct {
	DownloadPath string
	Retention    time.Duration
	ListLimit    int
}

// BackupFile is an opened backup ready to stream.
type BackupFile struct {
	File      *os.File
	Filename  string
	ExpiresAt time.Time
}

// BackupService schedules and serves database backups.
type BackupService struct {
	repo       backupStore
	queue      jobDispatcher
	files      backupFiles
	signer     urlSigner
	activities activityRecorder
	logger     *zap.Logger
	cfg        BackupServiceConfig
	now        func() time.Time
}

// NewBackupService constructs the service.
func NewBackupService(repo backupStore, queue jobDispatcher, files backupFiles, signer urlSigner, activities activityRecorder, logger *zap.Logger, cfg BackupServiceConfig) *BackupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DownloadPath == "" {
		cfg.DownloadPath = "/api/system/backups"
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = 20
	}
	cfg.DownloadPath = strings.TrimRight(cfg.DownloadPath, "/")
	return &BackupService{
		repo:       repo,
		queue:      queue,
		files:      files,
		signer:     signer,
		activities: activities,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Request records a queued backup and hands it to the worker pool.
func (s *BackupService) Request(ctx context.Context, actorID string, meta RequestMeta) (*models.Backup, error) {
	backup := &models.Backup{
		Status:      models.BackupQueued,
		RequestedBy: actorID,
	}
	if err := s.repo.Create(ctx, backup); err != nil {
		return nil, appErrors.Internal(err, "failed to create backup")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: backup.ID, Type: BackupJobType}); err != nil {
		status := models.BackupFailed
		msg := "failed to enqueue backup"
		now := s.now().UTC()
		_ = s.repo.Update(ctx, backup.ID, repository.UpdateBackupParams{
			Status:       &status,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "backup queue is busy, try again later")
	}
	recordActivity(ctx, s.activities, s.logger, actorID, models.ActivityBackup, "database backup requested", meta, map[string]interface{}{
		"backupId": backup.ID,
	})
	return backup, nil
}

// List returns recent backups; completed ones carry a signed download link.
func (s *BackupService) List(ctx context.Context) ([]models.Backup, error) {
	backups, err := s.repo.List(ctx, s.cfg.ListLimit)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list backups")
	}
	if backups == nil {
		return []models.Backup{}, nil
	}
	for i := range backups {
		b := &backups[i]
		if b.Status != models.BackupCompleted || b.FileName == nil {
			continue
		}
		token, _, err := s.signer.Generate(b.ID, *b.FileName)
		if err != nil {
			s.logger.Warn("failed to sign backup link", zap.String("backup_id", b.ID), zap.Error(err))
			continue
		}
		b.DownloadURL = s.downloadURL(b.ID, token)
	}
	return backups, nil
}

// Open validates a signed token and opens the backup file.
func (s *BackupService) Open(ctx context.Context, id, token string) (*BackupFile, error) {
	resourceID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil || resourceID != id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	backup, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "backup not found")
		}
		return nil, appErrors.Internal(err, "failed to load backup")
	}
	if backup.Status != models.BackupCompleted || backup.FileName == nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "backup not ready")
	}
	if *backup.FileName != relPath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	file, err := s.files.Open(relPath)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to open backup file")
	}
	return &BackupFile{File: file, Filename: path.Base(relPath), ExpiresAt: expiresAt}, nil
}

// Cleanup removes completed backups older than the retention window.
func (s *BackupService) Cleanup(ctx context.Context) (int, error) {
	const batch = 50
	cutoff := s.now().Add(-s.cfg.Retention)
	removed := 0
	for {
		backups, err := s.repo.ListFinishedBefore(ctx, cutoff, batch)
		if err != nil {
			return removed, fmt.Errorf("list expired backups: %w", err)
		}
		for _, b := range backups {
			if b.FileName != nil {
				if err := s.files.Delete(*b.FileName); err != nil {
					s.logger.Warn("backup file delete failed", zap.String("backup_id", b.ID), zap.Error(err))
					continue
				}
			}
			if err := s.repo.Delete(ctx, b.ID); err != nil {
				return removed, fmt.Errorf("delete backup %s: %w", b.ID, err)
			}
			removed++
		}
		if len(backups) < batch {
			break
		}
	}
	// files from failed runs have no row pointing at them
	orphans, err := s.files.CleanupOlderThan(s.cfg.Retention)
	if err != nil {
		s.logger.Warn("backup directory sweep failed", zap.Error(err))
	}
	removed += len(orphans)
	if removed > 0 {
		s.logger.Info("expired backups removed", zap.Int("count", removed))
	}
	return removed, nil
}

func (s *BackupService) downloadURL(id, token string) string {
	return fmt.Sprintf("%s/%s/download?token=%s", s.cfg.DownloadPath, id, token)
}

type backupDocument struct {
	BackupID  string                     `json:"backupId"`
	CreatedAt time.Time                  `json:"createdAt"`
	Tables    map[string]json.RawMessage `json:"tables"`
	Counts    map[string]int             `json:"counts"`
}

// BackupWorker bridges queue jobs to the table dumper.
type BackupWorker struct {
	repo    backupStore
	dumper  tableDumper
	files   backupFiles
	tables  []string
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewBackupWorker constructs a worker dumping the given tables.
func NewBackupWorker(repo backupStore, dumper tableDumper, files backupFiles, tables []string, logger *zap.Logger) *BackupWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(tables) == 0 {
		tables = repository.BackupTables
	}
	return &BackupWorker{
		repo:   repo,
		dumper: dumper,
		files:  files,
		tables: tables,
		logger: logger,
		now:    time.Now,
	}
}

// WithMetrics reports finished jobs to m.
func (w *BackupWorker) WithMetrics(m *MetricsService) *BackupWorker {
	w.metrics = m
	return w
}

// Handle processes a queue job.
func (w *BackupWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	if record.Status == models.BackupCompleted {
		return nil
	}
	processing := models.BackupProcessing
	if err := w.repo.Update(ctx, job.ID, repository.UpdateBackupParams{Status: &processing}); err != nil {
		return err
	}

	started := w.now().UTC()
	doc := backupDocument{
		BackupID:  record.ID,
		CreatedAt: started,
		Tables:    make(map[string]json.RawMessage, len(w.tables)),
		Counts:    make(map[string]int, len(w.tables)),
	}
	for _, table := range w.tables {
		dump, err := w.dumper.DumpTable(ctx, table)
		if err != nil {
			return err
		}
		doc.Tables[dump.Table] = dump.Data
		doc.Counts[dump.Table] = dump.Rows
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}

	filename := fmt.Sprintf("backup_%s_%s.json", started.Format("20060102_150405"), shortID(record.ID))
	if _, err := w.files.Save(filename, payload); err != nil {
		return err
	}

	completed := models.BackupCompleted
	size := int64(len(payload))
	count := len(doc.Tables)
	finished := w.now().UTC()
	if err := w.repo.Update(ctx, job.ID, repository.UpdateBackupParams{
		Status:     &completed,
		FileName:   &filename,
		SizeBytes:  &size,
		TableCount: &count,
		FinishedAt: &finished,
	}); err != nil {
		_ = w.files.Delete(filename)
		return err
	}
	w.metrics.RecordBackup(finished.Sub(started), nil)
	w.logger.Info("backup completed",
		zap.String("backup_id", record.ID),
		zap.String("file", filename),
		zap.Int64("size_bytes", size),
		zap.Duration("took", finished.Sub(started)))
	return nil
}

// OnFailure marks a backup as failed once the queue gives up.
func (w *BackupWorker) OnFailure(ctx context.Context, job jobs.Job, jobErr error) {
	status := models.BackupFailed
	msg := jobErr.Error()
	now := w.now().UTC()
	w.metrics.RecordBackup(0, jobErr)
	if err := w.repo.Update(context.WithoutCancel(ctx), job.ID, repository.UpdateBackupParams{
		Status:       &status,
		ErrorMessage: &msg,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Error("failed to mark backup as failed", zap.String("backup_id", job.ID), zap.Error(err))
	}
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
