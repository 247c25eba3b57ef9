package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/practicum-api/internal/models"
	"github.com/noah-isme/practicum-api/pkg/database"
)

// ErrMentorClaimed is returned when the mentor claim index rejects a write.
var ErrMentorClaimed = errors.New("mentor already claimed in this observation")

const mentorClaimConstraint = "uq_mentors_claim"

const mentorColumns = `id, observation_id, student_id, school_id, school_name, first_name, last_name, title, position, subject,
        experience_years, education, phone, email, last_updated_by, created_at, updated_at`

// MentorRepository persists mentor submissions.
type MentorRepository struct {
	db *sqlx.DB
}

// NewMentorRepository constructs the repository.
func NewMentorRepository(db *sqlx.DB) *MentorRepository {
	return &MentorRepository{db: db}
}

// FindByStudent returns the mentor a student claimed for a period.
func (r *MentorRepository) FindByStudent(ctx context.Context, studentID, observationID string) (*models.Mentor, error) {
	query := `SELECT ` + mentorColumns + ` FROM mentors WHERE student_id = $1 AND observation_id = $2`
	var m models.Mentor
	if err := r.db.GetContext(ctx, &m, query, studentID, observationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find mentor: %w", err)
	}
	return &m, nil
}

// FindClaim returns the claim on (school, first, last) in a period held by a
// student other than excludeStudentID.
func (r *MentorRepository) FindClaim(ctx context.Context, observationID, schoolName, firstName, lastName, excludeStudentID string) (*models.MentorClaim, error) {
	const query = `SELECT m.id, m.student_id, u.first_name, u.last_name
        FROM mentors m JOIN users u ON u.id = m.student_id
        WHERE m.observation_id = $1 AND LOWER(m.school_name) = LOWER($2)
          AND LOWER(m.first_name) = LOWER($3) AND LOWER(m.last_name) = LOWER($4)
          AND m.student_id <> $5
        LIMIT 1`
	var claim models.MentorClaim
	err := r.db.GetContext(ctx, &claim, query, observationID, strings.TrimSpace(schoolName),
		strings.TrimSpace(firstName), strings.TrimSpace(lastName), excludeStudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find mentor claim: %w", err)
	}
	return &claim, nil
}

// Create inserts a mentor claim.
func (r *MentorRepository) Create(ctx context.Context, m *models.Mentor) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	const query = `INSERT INTO mentors (id, observation_id, student_id, school_id, school_name, first_name, last_name, title, position,
        subject, experience_years, education, phone, email, last_updated_by, created_at, updated_at)
        VALUES (:id, :observation_id, :student_id, :school_id, :school_name, :first_name, :last_name, :title, :position,
        :subject, :experience_years, :education, :phone, :email, :last_updated_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		if database.IsUniqueViolation(err, mentorClaimConstraint) {
			return ErrMentorClaimed
		}
		return fmt.Errorf("create mentor: %w", err)
	}
	return nil
}

// Update rewrites the caller's own mentor record.
func (r *MentorRepository) Update(ctx context.Context, m *models.Mentor) error {
	m.UpdatedAt = time.Now().UTC()
	const query = `UPDATE mentors SET school_id = :school_id, school_name = :school_name, first_name = :first_name, last_name = :last_name,
        title = :title, position = :position, subject = :subject, experience_years = :experience_years, education = :education,
        phone = :phone, email = :email, last_updated_by = :last_updated_by, updated_at = :updated_at
        WHERE id = :id AND student_id = :student_id`
	res, err := r.db.NamedExecContext(ctx, query, m)
	if err != nil {
		if database.IsUniqueViolation(err, mentorClaimConstraint) {
			return ErrMentorClaimed
		}
		return fmt.Errorf("update mentor: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Search returns mentor names known at a school, flagging the student who
// holds each one in the given period.
func (r *MentorRepository) Search(ctx context.Context, observationID, schoolName, q string, limit int) ([]models.MentorSuggestion, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	query := fmt.Sprintf(`SELECT DISTINCT ON (LOWER(m.first_name), LOWER(m.last_name))
            m.first_name, m.last_name, m.title, m.position, m.subject,
            COALESCE(c.student_id, '') AS student_id,
            COALESCE(TRIM(u.first_name || ' ' || u.last_name), '') AS occupied_by
        FROM mentors m
        LEFT JOIN mentors c ON c.observation_id = $1 AND LOWER(c.school_name) = LOWER(m.school_name)
            AND LOWER(c.first_name) = LOWER(m.first_name) AND LOWER(c.last_name) = LOWER(m.last_name)
        LEFT JOIN users u ON u.id = c.student_id
        WHERE LOWER(m.school_name) = LOWER($2) AND LOWER(m.first_name || ' ' || m.last_name) LIKE $3
        ORDER BY LOWER(m.first_name), LOWER(m.last_name), m.updated_at DESC
        LIMIT %d`, limit)
	var items []models.MentorSuggestion
	if err := r.db.SelectContext(ctx, &items, query, observationID, strings.TrimSpace(schoolName),
		"%"+strings.ToLower(strings.TrimSpace(q))+"%"); err != nil {
		return nil, fmt.Errorf("search mentors: %w", err)
	}
	return items, nil
}
