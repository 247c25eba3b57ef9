package dto

// CreateUserRequest is the admin payload for provisioning an account.
// The role follows from the id: T... teacher, A... admin, digits student.
type CreateUserRequest struct {
	UserID    string `json:"userId" validate:"required,max=32"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Phone     string `json:"phone" validate:"omitempty,max=32"`
	YearLevel *int   `json:"yearLevel" validate:"omitempty,min=1,max=4"`
}

// SetUserActiveRequest toggles an account.
type SetUserActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}
