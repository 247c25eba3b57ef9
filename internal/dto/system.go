package dto

// UpdateStatusRequest toggles the platform status.
type UpdateStatusRequest struct {
	Status  string  `json:"status" validate:"required,oneof=online maintenance offline"`
	Message *string `json:"message" validate:"omitempty,max=500"`
	Reason  *string `json:"reason" validate:"omitempty,max=500"`
}

// Note returns the banner text, accepting either message or reason.
func (r UpdateStatusRequest) Note() *string {
	if r.Message != nil {
		return r.Message
	}
	return r.Reason
}

// ResetDatabaseRequest confirms the destructive reset.
type ResetDatabaseRequest struct {
	VerificationCode string `json:"verificationCode"`
	Confirmed        bool   `json:"confirmed"`
	Timestamp        int64  `json:"timestamp"`
}

// BackupDownload describes a signed backup link.
type BackupDownload struct {
	BackupID  string `json:"backupId"`
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expiresAt"`
}
