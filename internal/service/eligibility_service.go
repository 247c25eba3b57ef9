package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/practicum-api/internal/dto"
	"github.com/noah-isme/practicum-api/internal/models"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
)

type activePeriodLister interface {
	ListActiveForStudent(ctx context.Context, studentID string) ([]models.ActivePeriod, error)
}

type schoolLookup interface {
	FindByStudent(ctx context.Context, studentID, observationID string) (*models.School, error)
}

type mentorLookup interface {
	FindByStudent(ctx context.Context, studentID, observationID string) (*models.Mentor, error)
}

// EligibilityConfig holds the practicum windows measured in days since a period start.
type EligibilityConfig struct {
	SchoolWindowDays       int
	SchoolChangeWindowDays int
}

// EligibilityService decides which active period a student may submit into.
// It never writes.
type EligibilityService struct {
	periods activePeriodLister
	schools schoolLookup
	mentors mentorLookup
	config  EligibilityConfig
	logger  *zap.Logger
	now     func() time.Time
}

// resolution is an eligibility decision plus the records it was based on.
type resolution struct {
	Eligibility dto.Eligibility
	Period      *models.ActivePeriod
	School      *models.School
	Mentor      *models.Mentor
}

// NewEligibilityService constructs the resolver.
func NewEligibilityService(periods activePeriodLister, schools schoolLookup, mentors mentorLookup, config EligibilityConfig, logger *zap.Logger) *EligibilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.SchoolWindowDays <= 0 {
		config.SchoolWindowDays = 15
	}
	if config.SchoolChangeWindowDays <= 0 {
		config.SchoolChangeWindowDays = 7
	}
	return &EligibilityService{
		periods: periods,
		schools: schools,
		mentors: mentors,
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// Resolve returns the eligibility decision for the purpose.
func (s *EligibilityService) Resolve(ctx context.Context, studentID string, purpose dto.EligibilityPurpose) (*dto.Eligibility, error) {
	res, err := s.resolve(ctx, studentID, purpose)
	if err != nil {
		return nil, err
	}
	return &res.Eligibility, nil
}

// CurrentPeriod returns the period a student is currently working in, or nil.
// The school gate is tried first, then the evaluation gate so late-period
// dashboards still find their cohort.
func (s *EligibilityService) CurrentPeriod(ctx context.Context, studentID string) (*models.ActivePeriod, error) {
	periods, err := s.periods.ListActiveForStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load observation periods")
	}
	now := s.now()
	var upcoming *models.ActivePeriod
	for i := range periods {
		p := &periods[i]
		days := p.DaysPassed(now)
		if days >= 0 && !p.Ended(now) {
			return p, nil
		}
		if days < 0 && upcoming == nil {
			upcoming = p
		}
	}
	return upcoming, nil
}

// require resolves the gate and turns an ineligible decision into ErrNotEligible
// carrying the decision flags.
func (s *EligibilityService) require(ctx context.Context, studentID string, purpose dto.EligibilityPurpose) (*resolution, error) {
	res, err := s.resolve(ctx, studentID, purpose)
	if err != nil {
		return nil, err
	}
	if res.Eligibility.Eligible {
		return res, nil
	}
	e := res.Eligibility
	details := map[string]interface{}{
		"eligible": false,
		"reason":   e.Reason,
	}
	if e.NeedSchoolInfo {
		details["needSchoolInfo"] = true
	}
	if e.NeedMentorInfo {
		details["needMentorInfo"] = true
	}
	return nil, appErrors.WithDetails(appErrors.ErrNotEligible, e.Message, details)
}

func (s *EligibilityService) resolve(ctx context.Context, studentID string, purpose dto.EligibilityPurpose) (*resolution, error) {
	periods, err := s.periods.ListActiveForStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load observation periods")
	}
	if len(periods) == 0 {
		return ineligible(dto.ReasonNoActiveObservation, "you are not enrolled in an active observation period"), nil
	}

	now := s.now()
	var (
		chosen  *models.ActivePeriod
		tooNew  bool
		elapsed bool
	)
	for i := range periods {
		p := &periods[i]
		days := p.DaysPassed(now)
		if days < 0 {
			tooNew = true
			continue
		}
		if purpose == dto.PurposeEvaluation {
			if p.Ended(now) {
				elapsed = true
				continue
			}
		} else if days > s.config.SchoolWindowDays {
			elapsed = true
			continue
		}
		chosen = p
		break
	}

	if chosen == nil {
		switch {
		case tooNew && !elapsed:
			return ineligible(dto.ReasonTooNew, "the observation period has not started yet"), nil
		case purpose == dto.PurposeEvaluation:
			return ineligible(dto.ReasonWindowClosed, "the observation period has ended"), nil
		default:
			return ineligible(dto.ReasonWindowClosed, "the school and mentor submission window has closed"), nil
		}
	}

	days := chosen.DaysPassed(now)
	res := &resolution{
		Period: chosen,
		Eligibility: dto.Eligibility{
			ObservationID: chosen.ID,
			Observation:   briefOf(&chosen.Observation),
			DaysPassed:    days,
		},
	}
	if purpose == dto.PurposeEvaluation {
		res.Eligibility.DaysRemaining = maxInt(0, int(chosen.EndDate.Sub(now).Hours()/24))
	} else {
		res.Eligibility.DaysRemaining = maxInt(0, s.config.SchoolWindowDays-days)
		res.Eligibility.CanChange = days <= s.config.SchoolChangeWindowDays
	}

	school, err := s.schools.FindByStudent(ctx, studentID, chosen.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to load school")
	}
	if err == nil {
		res.School = school
		res.Eligibility.SchoolID = school.ID
		res.Eligibility.SchoolName = school.Name
	}

	if purpose == dto.PurposeSchool {
		res.Eligibility.Eligible = true
		return res, nil
	}

	if res.School == nil {
		res.Eligibility.Reason = dto.ReasonNeedSchoolInfo
		res.Eligibility.Message = "submit your school information first"
		res.Eligibility.NeedSchoolInfo = true
		return res, nil
	}

	if purpose == dto.PurposeEvaluation {
		mentor, err := s.mentors.FindByStudent(ctx, studentID, chosen.ID)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Internal(err, "failed to load mentor")
			}
			res.Eligibility.Reason = dto.ReasonNeedMentorInfo
			res.Eligibility.Message = "submit your mentor information first"
			res.Eligibility.NeedMentorInfo = true
			return res, nil
		}
		res.Mentor = mentor
		res.Eligibility.MentorID = mentor.ID
	}

	res.Eligibility.Eligible = true
	return res, nil
}

func ineligible(reason, message string) *resolution {
	return &resolution{Eligibility: dto.Eligibility{Reason: reason, Message: message}}
}

func briefOf(o *models.Observation) *dto.ObservationBrief {
	return &dto.ObservationBrief{
		ID:           o.ID,
		Name:         o.Name,
		AcademicYear: o.AcademicYear,
		YearLevel:    o.YearLevel,
		StartDate:    o.StartDate,
		EndDate:      o.EndDate,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
