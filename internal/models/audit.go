package models

import "time"

// Activity actions recorded in system_activities.
const (
	ActivityLogin           = "LOGIN"
	ActivityLogout          = "LOGOUT"
	ActivityRegister        = "REGISTER"
	ActivityPasswordChange  = "PASSWORD_CHANGE"
	ActivityPasswordReset   = "PASSWORD_RESET"
	ActivityProfileUpdate   = "PROFILE_UPDATE"
	ActivitySchoolSave      = "SCHOOL_SAVE"
	ActivitySchoolChange    = "SCHOOL_CHANGE"
	ActivityMentorSave      = "MENTOR_SAVE"
	ActivityEvaluationSave  = "EVALUATION_SUBMIT"
	ActivityLessonPlan      = "LESSON_PLAN_SUBMIT"
	ActivityVideoLink       = "VIDEO_LINK_SUBMIT"
	ActivityObservationEdit = "OBSERVATION_UPDATE"
	ActivityObservationDone = "OBSERVATION_COMPLETE"
	ActivityEnrollment      = "ENROLLMENT_UPDATE"
	ActivityStatusChange    = "SYSTEM_STATUS_CHANGE"
	ActivityDatabaseReset   = "DATABASE_RESET"
	ActivityBackup          = "SYSTEM_BACKUP"
	ActivityFeedback        = "WEBSITE_FEEDBACK"
	ActivityUserCreate      = "USER_CREATE"
	ActivityUserStatus      = "USER_STATUS_CHANGE"
	ActivityReportExport    = "REPORT_EXPORT"
	ActivityBackupDownload  = "BACKUP_DOWNLOAD"
)

// SystemActivity is an audit trail entry.
type SystemActivity struct {
	ID          string    `db:"id" json:"id"`
	UserID      *string   `db:"user_id" json:"userId,omitempty"`
	Action      string    `db:"action" json:"action"`
	Description string    `db:"description" json:"description"`
	Metadata    JSONB     `db:"metadata" json:"metadata,omitempty"`
	IPAddress   string    `db:"ip_address" json:"ipAddress"`
	UserAgent   string    `db:"user_agent" json:"userAgent"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// ActivityFilter narrows activity listings.
type ActivityFilter struct {
	Action   string
	UserID   string
	Page     int
	PageSize int
}
