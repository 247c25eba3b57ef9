package dto

// SaveSchoolRequest is the school-info form.
type SaveSchoolRequest struct {
	Name              string   `json:"name" validate:"required,max=200"`
	Affiliation       string   `json:"affiliation" validate:"omitempty,max=100"`
	Address           string   `json:"address" validate:"omitempty,max=500"`
	District          string   `json:"district" validate:"omitempty,max=100"`
	City              string   `json:"city" validate:"omitempty,max=100"`
	Province          string   `json:"province" validate:"omitempty,max=100"`
	PostalCode        string   `json:"postalCode" validate:"omitempty,max=16"`
	GradeLevels       []string `json:"gradeLevels" validate:"omitempty,dive,max=32"`
	Principal         string   `json:"principal" validate:"omitempty,max=200"`
	StudentCount      int      `json:"studentCount" validate:"gte=0"`
	TeacherCount      int      `json:"teacherCount" validate:"gte=0"`
	StaffCount        int      `json:"staffCount" validate:"gte=0"`
	Phone             string   `json:"phone" validate:"omitempty,max=32"`
	Email             string   `json:"email" validate:"omitempty,email"`
	ConfirmChange     bool     `json:"confirmChange"`
	DeleteEvaluations bool     `json:"deleteEvaluations"`
}

// SaveSchoolResponse reports the stored school.
type SaveSchoolResponse struct {
	SchoolID          string `json:"schoolId"`
	Created           bool   `json:"created"`
	Changed           bool   `json:"changed"`
	MentorRemoved     bool   `json:"mentorRemoved,omitempty"`
	EvaluationsPurged bool   `json:"evaluationsDeleted,omitempty"`
}
