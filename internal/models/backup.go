package models

import "time"

// BackupStatus captures background backup lifecycle states.
type BackupStatus string

const (
	BackupQueued     BackupStatus = "queued"
	BackupProcessing BackupStatus = "processing"
	BackupCompleted  BackupStatus = "completed"
	BackupFailed     BackupStatus = "failed"
)

// Backup is a JSON dump of every collection produced by the backup worker.
type Backup struct {
	ID           string       `db:"id" json:"id"`
	Status       BackupStatus `db:"status" json:"status"`
	FileName     *string      `db:"file_name" json:"fileName,omitempty"`
	SizeBytes    int64        `db:"size_bytes" json:"sizeBytes"`
	TableCount   int          `db:"table_count" json:"tableCount"`
	RequestedBy  string       `db:"requested_by" json:"requestedBy"`
	ErrorMessage *string      `db:"error_message" json:"errorMessage,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
	FinishedAt   *time.Time   `db:"finished_at" json:"finishedAt,omitempty"`
	DownloadURL  string       `db:"-" json:"downloadUrl,omitempty"`
}
