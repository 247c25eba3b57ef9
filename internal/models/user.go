package models

import (
	"strings"
	"time"
	"unicode"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleTeacher UserRole = "teacher"
	RoleStudent UserRole = "student"
	RoleUnknown UserRole = ""
)

// InferRole derives a role from the shape of a user id: a "T" prefix marks a
// teacher, an "A" prefix an admin and a leading digit a student number.
func InferRole(id string) UserRole {
	id = strings.TrimSpace(id)
	if id == "" {
		return RoleUnknown
	}
	first := rune(id[0])
	switch {
	case first == 'T' || first == 't':
		return RoleTeacher
	case first == 'A' || first == 'a':
		return RoleAdmin
	case unicode.IsDigit(first):
		return RoleStudent
	default:
		return RoleUnknown
	}
}

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	return r == RoleAdmin || r == RoleTeacher || r == RoleStudent
}

// User represents an application user stored in the users table.
// ID is the institutional identifier (student number, T... or A...).
type User struct {
	ID              string     `db:"id" json:"id"`
	Email           string     `db:"email" json:"email"`
	PasswordHash    string     `db:"password_hash" json:"-"`
	FirstName       string     `db:"first_name" json:"firstName"`
	LastName        string     `db:"last_name" json:"lastName"`
	Role            UserRole   `db:"role" json:"role"`
	YearLevel       *int       `db:"year_level" json:"yearLevel,omitempty"`
	Phone           *string    `db:"phone" json:"phone,omitempty"`
	ProfileImageURL *string    `db:"profile_image_url" json:"profileImageUrl,omitempty"`
	Active          bool       `db:"active" json:"active"`
	LastLogin       *time.Time `db:"last_login" json:"lastLogin,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// EffectiveRole returns the stored role, falling back to InferRole.
func (u *User) EffectiveRole() UserRole {
	if u.Role.Valid() {
		return u.Role
	}
	return InferRole(u.ID)
}

// MissingProfileFields lists the profile fields that are still empty.
func (u *User) MissingProfileFields() []string {
	missing := make([]string, 0, 4)
	if strings.TrimSpace(u.FirstName) == "" {
		missing = append(missing, "firstName")
	}
	if strings.TrimSpace(u.LastName) == "" {
		missing = append(missing, "lastName")
	}
	if strings.TrimSpace(u.Email) == "" {
		missing = append(missing, "email")
	}
	if u.Phone == nil || strings.TrimSpace(*u.Phone) == "" {
		missing = append(missing, "phone")
	}
	return missing
}

// Info returns the public projection of the user.
func (u *User) Info() UserInfo {
	return UserInfo{
		ID:              u.ID,
		Email:           u.Email,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		FullName:        u.FullName(),
		Role:            u.EffectiveRole(),
		YearLevel:       u.YearLevel,
		ProfileImageURL: u.ProfileImageURL,
	}
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role     *UserRole
	Active   *bool
	Search   string
	Page     int
	PageSize int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
}

// NormalizePage clamps page parameters to sane defaults.
func NormalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
