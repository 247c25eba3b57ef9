package models

import "time"

// StudentDashboard is the landing view for a student.
type StudentDashboard struct {
	Observation        *Observation `json:"observation,omitempty"`
	DaysPassed         int          `json:"daysPassed"`
	HasSchool          bool         `json:"hasSchool"`
	SchoolName         string       `json:"schoolName,omitempty"`
	HasMentor          bool         `json:"hasMentor"`
	MentorName         string       `json:"mentorName,omitempty"`
	SubmittedAttempts  []int        `json:"submittedAttempts"`
	AttemptsPerWeek    map[int]int  `json:"attemptsPerWeek"`
	LessonPlanRequired bool         `json:"lessonPlanRequired"`
	LessonPlanUploaded bool         `json:"lessonPlanUploaded"`
	VideoRequired      bool         `json:"videoRequired"`
	VideoSubmitted     bool         `json:"videoSubmitted"`
}

// AdminDashboard summarises platform activity for admins and teachers.
type AdminDashboard struct {
	UsersByRole        map[UserRole]int `json:"usersByRole"`
	ActiveObservations int              `json:"activeObservations"`
	ActiveEnrollments  int              `json:"activeEnrollments"`
	SubmittedAttempts  int              `json:"submittedAttempts"`
	LessonPlans        int              `json:"lessonPlans"`
	VideoLinks         int              `json:"videoLinks"`
	Schools            int              `json:"schools"`
	Mentors            int              `json:"mentors"`
	Status             SystemStatus     `json:"systemStatus"`
	System             SystemMetrics    `json:"system"`
	GeneratedAt        time.Time        `json:"generatedAt"`
}

// DashboardCounts is the raw count row read from the database.
type DashboardCounts struct {
	Admins             int `db:"admins"`
	Teachers           int `db:"teachers"`
	Students           int `db:"students"`
	ActiveObservations int `db:"active_observations"`
	ActiveEnrollments  int `db:"active_enrollments"`
	SubmittedAttempts  int `db:"submitted_attempts"`
	LessonPlans        int `db:"lesson_plans"`
	VideoLinks         int `db:"video_links"`
	Schools            int `db:"schools"`
	Mentors            int `db:"mentors"`
}

// SystemMetrics is a point-in-time snapshot of process metrics.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	Submissions              uint64    `json:"submissions"`
	BackupsCompleted         uint64    `json:"backupsCompleted"`
	BackupsFailed            uint64    `json:"backupsFailed"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
