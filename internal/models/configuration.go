package models

import "time"

// SystemStatus is the operating mode of the platform.
type SystemStatus string

const (
	SystemOnline      SystemStatus = "online"
	SystemMaintenance SystemStatus = "maintenance"
	SystemOffline     SystemStatus = "offline"
)

// Valid reports whether s is a known status.
func (s SystemStatus) Valid() bool {
	return s == SystemOnline || s == SystemMaintenance || s == SystemOffline
}

// SystemSettingsID is the key of the single settings row.
const SystemSettingsID = "main"

// SystemSettings is the singleton row in system_settings.
type SystemSettings struct {
	ID        string       `db:"id" json:"-"`
	Status    SystemStatus `db:"status" json:"status"`
	Message   *string      `db:"message" json:"message,omitempty"`
	UpdatedBy *string      `db:"updated_by" json:"updatedBy,omitempty"`
	UpdatedAt time.Time    `db:"updated_at" json:"updatedAt"`
}

// Log levels stored in system_logs.
const (
	LogLevelError = "error"
	LogLevelWarn  = "warn"
	LogLevelInfo  = "info"
)

// SystemLog is a persisted server-side error or notice.
type SystemLog struct {
	ID         string    `db:"id" json:"id"`
	Level      string    `db:"level" json:"level"`
	Message    string    `db:"message" json:"message"`
	Code       *string   `db:"code" json:"code,omitempty"`
	Method     *string   `db:"method" json:"method,omitempty"`
	Path       *string   `db:"path" json:"path,omitempty"`
	StatusCode *int      `db:"status_code" json:"statusCode,omitempty"`
	UserID     *string   `db:"user_id" json:"userId,omitempty"`
	RequestID  *string   `db:"request_id" json:"requestId,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// LogFilter narrows log listings.
type LogFilter struct {
	Level    string
	Page     int
	PageSize int
}

// ResetChallenge is the one-time code an operator must type back before a reset.
type ResetChallenge struct {
	Code      string    `json:"verificationCode"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ResetResult summarises a completed database reset.
type ResetResult struct {
	Deleted      map[string]int64 `json:"deleted"`
	AdminID      string           `json:"adminId"`
	CompletedAt  time.Time        `json:"completedAt"`
	PreservedIDs []string         `json:"preservedUserIds"`
}
