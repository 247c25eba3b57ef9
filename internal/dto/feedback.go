package dto

// SubmitFeedbackRequest is the website feedback form.
type SubmitFeedbackRequest struct {
	Ratings map[string]int `json:"ratings" validate:"required,min=1,dive,min=1,max=5"`
	Comment *string        `json:"comment" validate:"omitempty,max=2000"`
}
