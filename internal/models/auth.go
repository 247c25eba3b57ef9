package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user. Either the
// institutional id or the email identifies the account.
type LoginRequest struct {
	UserID     string `json:"userId" validate:"required_without=Email"`
	Email      string `json:"email" validate:"omitempty,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"rememberMe"`
	IP         string `json:"-"`
	UserAgent  string `json:"-"`
}

// LoginResponse returns the signed session token and user info.
type LoginResponse struct {
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      UserInfo  `json:"user"`
}

// RegisterRequest creates a new account.
type RegisterRequest struct {
	UserID    string `json:"userId" validate:"required,max=32"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Phone     string `json:"phone" validate:"omitempty,max=32"`
	YearLevel *int   `json:"yearLevel" validate:"omitempty,min=1,max=4"`
}

// ChangePasswordRequest payload for updating password.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// ResetPasswordRequest payload for initiating reset flow.
type ResetPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ConfirmResetPasswordRequest completes reset flow.
type ConfirmResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// UserInfo describes the authenticated user in responses and sessions.
type UserInfo struct {
	ID              string   `json:"id"`
	Email           string   `json:"email"`
	FirstName       string   `json:"firstName"`
	LastName        string   `json:"lastName"`
	FullName        string   `json:"fullName"`
	Role            UserRole `json:"role"`
	YearLevel       *int     `json:"yearLevel,omitempty"`
	ProfileImageURL *string  `json:"profileImageUrl,omitempty"`
}

// Session is the server side session stored in Redis.
type Session struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	User          UserInfo  `json:"user"`
	CreatedAt     time.Time `json:"createdAt"`
	LastActivity  time.Time `json:"lastActivity"`
	ExpiresAt     time.Time `json:"expiresAt"`
	RememberMe    bool      `json:"rememberMe"`
	UserAgent     string    `json:"userAgent"`
	IPAddress     string    `json:"ipAddress"`
	MismatchCount int       `json:"mismatchCount"`
}

// Role returns the session role, inferring it when the stored one is empty.
func (s *Session) Role() UserRole {
	if s.User.Role.Valid() {
		return s.User.Role
	}
	return InferRole(s.UserID)
}

// SessionClaims is the JWT payload stored in the session cookie.
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}
