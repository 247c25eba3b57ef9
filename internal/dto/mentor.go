package dto

// SaveMentorRequest is the mentor-info form.
type SaveMentorRequest struct {
	FirstName       string `json:"firstName" validate:"required,max=100"`
	LastName        string `json:"lastName" validate:"required,max=100"`
	Title           string `json:"title" validate:"omitempty,max=50"`
	Position        string `json:"position" validate:"omitempty,max=100"`
	Subject         string `json:"subject" validate:"omitempty,max=100"`
	ExperienceYears int    `json:"experienceYears" validate:"gte=0,lte=60"`
	Education       string `json:"education" validate:"omitempty,max=200"`
	Phone           string `json:"phone" validate:"omitempty,max=32"`
	Email           string `json:"email" validate:"omitempty,email"`
}

// SaveMentorResponse reports the stored mentor.
type SaveMentorResponse struct {
	MentorID string `json:"mentorId"`
	Created  bool   `json:"created"`
}
