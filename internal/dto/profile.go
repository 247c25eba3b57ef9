package dto

import "io"

// UpdateProfileRequest changes editable profile fields.
type UpdateProfileRequest struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"omitempty,max=32"`
}

// ProfileImageUpload carries an uploaded profile picture.
type ProfileImageUpload struct {
	FileName string
	Size     int64
	Content  io.Reader
}
