package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/practicum-api/internal/dto"
	"github.com/noah-isme/practicum-api/internal/models"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
	"github.com/noah-isme/practicum-api/pkg/storage"
)

type evaluationStore interface {
	Ensure(ctx context.Context, studentID, observationID string) error
	Find(ctx context.Context, studentID, observationID string) (*models.EvaluationAggregate, error)
	SubmitAttempt(ctx context.Context, studentID, observationID string, n int, attempt models.EvaluationAttempt) (bool, error)
	SetLessonPlan(ctx context.Context, studentID, observationID string, plan models.LessonPlan) (bool, error)
	SetVideoLink(ctx context.Context, studentID, observationID string, link models.VideoLink) (bool, error)
}

type studentFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type progressRefresher interface {
	RefreshProgress(ctx context.Context, observationID, studentID string) error
}

// DefaultLessonPlanMIMEs lists PDF, DOC, DOCX, PPT and PPTX.
var DefaultLessonPlanMIMEs = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-powerpoint",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

var youtubePattern = regexp.MustCompile(`^(https?://)?(www\.|m\.)?(youtube\.com/(watch\?v=|embed/|shorts/)|youtu\.be/)[A-Za-z0-9_-]{11}([?&#].*)?$`)

// sniffLen is the number of leading bytes inspected for MIME detection.
const sniffLen = 3072

const oleStorageMIME = "application/x-ole-storage"

// oleByExtension resolves legacy Office files whose directory sector lies
// beyond the sniffed prefix, which mimetype can only report as OLE storage.
var oleByExtension = map[string]string{
	".doc": "application/msword",
	".ppt": "application/vnd.ms-powerpoint",
}

// EvaluationConfig bounds lesson plan uploads.
type EvaluationConfig struct {
	LessonPlanMaxBytes int64
	LessonPlanMIMEs    []string
}

// EvaluationService is the submission gatekeeper for evaluation attempts,
// lesson plans and video links. Every slot is write-once.
type EvaluationService struct {
	eligibility *EligibilityService
	store       evaluationStore
	progress    progressRefresher
	students    studentFinder
	objects     storage.ObjectStore
	activities  activityRecorder
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	config      EvaluationConfig
	now         func() time.Time
}

// NewEvaluationService constructs the gatekeeper.
func NewEvaluationService(eligibility *EligibilityService, store evaluationStore, progress progressRefresher, objects storage.ObjectStore, activities activityRecorder, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config EvaluationConfig) *EvaluationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.LessonPlanMaxBytes <= 0 {
		config.LessonPlanMaxBytes = 20 * 1024 * 1024
	}
	if len(config.LessonPlanMIMEs) == 0 {
		config.LessonPlanMIMEs = DefaultLessonPlanMIMEs
	}
	return &EvaluationService{
		eligibility: eligibility,
		store:       store,
		progress:    progress,
		objects:     objects,
		activities:  activities,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		config:      config,
		now:         time.Now,
	}
}

// SaveWeek submits one evaluation attempt.
func (s *EvaluationService) SaveWeek(ctx context.Context, studentID string, req dto.SaveWeekRequest, meta RequestMeta) (*dto.SubmissionResult, error) {
	result, err := s.saveWeek(ctx, studentID, req, meta)
	s.metrics.RecordSubmission(models.SubmissionAttempt, submissionOutcome(err))
	return result, err
}

func (s *EvaluationService) saveWeek(ctx context.Context, studentID string, req dto.SaveWeekRequest, meta RequestMeta) (*dto.SubmissionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "week must be 1-3 and evaluation number 1-9")
	}
	if missing := req.Answers.Missing(); len(missing) > 0 {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "all 26 questions must be answered with a score from 1 to 5",
			map[string]interface{}{"missing": missing})
	}

	period, err := s.openPeriod(ctx, studentID, req.ObservationID)
	if err != nil {
		return nil, err
	}

	if err := s.store.Ensure(ctx, studentID, period.ID); err != nil {
		return nil, appErrors.Internal(err, "failed to prepare evaluation record")
	}
	attempt := models.EvaluationAttempt{
		Week:        req.Week,
		Date:        req.Date,
		Answers:     req.Answers,
		Submitted:   true,
		SubmittedAt: s.now().UTC(),
	}
	ok, err := s.store.SubmitAttempt(ctx, studentID, period.ID, req.EvaluationNum, attempt)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to save evaluation")
	}
	if !ok {
		return nil, alreadySubmitted(fmt.Sprintf("evaluation %d has already been submitted", req.EvaluationNum),
			map[string]interface{}{"evaluationNum": req.EvaluationNum})
	}

	s.refresh(ctx, period.ID, studentID)
	recordActivity(ctx, s.activities, s.logger, studentID, models.ActivityEvaluationSave, "evaluation submitted", meta, map[string]interface{}{
		"observationId": period.ID,
		"evaluationNum": req.EvaluationNum,
		"week":          req.Week,
	})

	result := &dto.SubmissionResult{ObservationID: period.ID, EvaluationNum: req.EvaluationNum, Week: req.Week}
	if agg, err := s.store.Find(ctx, studentID, period.ID); err == nil {
		result.WeekCount = agg.WeekStatus[req.Week].Count
		result.Completed = agg.Attempts.SubmittedCount()
	} else {
		s.logger.Warn("failed to reload evaluation record", zap.Error(err))
	}
	return result, nil
}

// SubmitLessonPlan stores the lesson plan file for year 2 and 3 students.
func (s *EvaluationService) SubmitLessonPlan(ctx context.Context, studentID string, upload dto.LessonPlanUpload, meta RequestMeta) (*dto.LessonPlanResponse, error) {
	resp, err := s.submitLessonPlan(ctx, studentID, upload, meta)
	s.metrics.RecordSubmission(models.SubmissionLessonPlan, submissionOutcome(err))
	return resp, err
}

func (s *EvaluationService) submitLessonPlan(ctx context.Context, studentID string, upload dto.LessonPlanUpload, meta RequestMeta) (*dto.LessonPlanResponse, error) {
	if strings.TrimSpace(upload.ObservationID) == "" || upload.Content == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "observationId and lessonPlanFile are required")
	}
	period, err := s.openPeriod(ctx, studentID, upload.ObservationID)
	if err != nil {
		return nil, err
	}
	year, err := s.studentYear(ctx, studentID, period)
	if err != nil {
		return nil, err
	}
	if year != 2 && year != 3 {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "lesson plans are only collected from year 2 and year 3 students")
	}
	if upload.Size > s.config.LessonPlanMaxBytes {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "lesson plan exceeds the maximum file size",
			map[string]interface{}{"maxBytes": s.config.LessonPlanMaxBytes})
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(upload.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read lesson plan")
	}
	head = head[:n]
	if n == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lesson plan file is empty")
	}
	mt := detectLessonPlanType(head, upload.FileName)
	if !s.allowedMIME(mt) {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "lesson plan must be a PDF, Word or PowerPoint file",
			map[string]interface{}{"detectedType": mt.String()})
	}

	agg, err := s.store.Find(ctx, studentID, period.ID)
	switch {
	case err == nil && agg.LessonPlan.Uploaded:
		return nil, alreadySubmitted("lesson plan has already been submitted", nil)
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Internal(err, "failed to load evaluation record")
	}
	if err := s.store.Ensure(ctx, studentID, period.ID); err != nil {
		return nil, appErrors.Internal(err, "failed to prepare evaluation record")
	}

	now := s.now().UTC()
	key := fmt.Sprintf("lesson_plans/plp%d_%s_%d%s", year, studentID, now.UnixMilli(), mt.Extension())
	body := io.LimitReader(io.MultiReader(bytes.NewReader(head), upload.Content), s.config.LessonPlanMaxBytes)
	url, err := s.objects.PutObject(ctx, key, body, mt.String())
	if err != nil {
		return nil, appErrors.Internal(err, "failed to store lesson plan")
	}

	fileName := strings.TrimSpace(upload.FileName)
	if fileName == "" {
		fileName = key[strings.LastIndex(key, "/")+1:]
	}
	plan := models.LessonPlan{
		Uploaded:      true,
		FileName:      fileName,
		StoragePath:   key,
		FileURL:       url,
		ContentType:   mt.String(),
		SubmittedDate: &now,
	}
	ok, err := s.store.SetLessonPlan(ctx, studentID, period.ID, plan)
	if err != nil || !ok {
		if delErr := s.objects.DeleteObject(ctx, key); delErr != nil {
			s.logger.Warn("failed to remove orphaned lesson plan", zap.String("key", key), zap.Error(delErr))
		}
		if err != nil {
			return nil, appErrors.Internal(err, "failed to record lesson plan")
		}
		return nil, alreadySubmitted("lesson plan has already been submitted", nil)
	}

	s.refresh(ctx, period.ID, studentID)
	recordActivity(ctx, s.activities, s.logger, studentID, models.ActivityLessonPlan, "lesson plan submitted", meta, map[string]interface{}{
		"observationId": period.ID,
		"fileName":      fileName,
	})
	return &dto.LessonPlanResponse{FileName: fileName, FileURL: url, SubmittedDate: now}, nil
}

// WithStudents makes year checks use the year level stored on the student.
func (s *EvaluationService) WithStudents(students studentFinder) *EvaluationService {
	s.students = students
	return s
}

// studentYear returns the student's own year level, or the period's cohort
// year when the account has none recorded.
func (s *EvaluationService) studentYear(ctx context.Context, studentID string, period *models.ActivePeriod) (int, error) {
	if s.students == nil {
		return period.YearLevel, nil
	}
	user, err := s.students.FindByID(ctx, studentID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	case err != nil:
		return 0, appErrors.Internal(err, "failed to load student")
	case user.YearLevel != nil:
		return *user.YearLevel, nil
	}
	return period.YearLevel, nil
}

func detectLessonPlanType(head []byte, fileName string) *mimetype.MIME {
	mt := mimetype.Detect(head)
	if !mt.Is(oleStorageMIME) {
		return mt
	}
	if name, ok := oleByExtension[strings.ToLower(filepath.Ext(fileName))]; ok {
		if resolved := mimetype.Lookup(name); resolved != nil {
			return resolved
		}
	}
	return mt
}

func (s *EvaluationService) allowedMIME(mt *mimetype.MIME) bool {
	for _, allowed := range s.config.LessonPlanMIMEs {
		if mt.Is(allowed) {
			return true
		}
	}
	return false
}

// SubmitVideo records the YouTube link of a year 3 student's teaching video.
func (s *EvaluationService) SubmitVideo(ctx context.Context, studentID string, req dto.SubmitVideoRequest, meta RequestMeta) (*models.VideoLink, error) {
	link, err := s.submitVideo(ctx, studentID, req, meta)
	s.metrics.RecordSubmission(models.SubmissionVideo, submissionOutcome(err))
	return link, err
}

func (s *EvaluationService) submitVideo(ctx context.Context, studentID string, req dto.SubmitVideoRequest, meta RequestMeta) (*models.VideoLink, error) {
	req.VideoURL = strings.TrimSpace(req.VideoURL)
	if strings.TrimSpace(req.ObservationID) == "" || req.VideoURL == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "observationId and videoUrl are required")
	}
	period, err := s.openPeriod(ctx, studentID, req.ObservationID)
	if err != nil {
		return nil, err
	}
	year, err := s.studentYear(ctx, studentID, period)
	if err != nil {
		return nil, err
	}
	if year != 3 {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "video links are only collected from year 3 students")
	}
	if !youtubePattern.MatchString(req.VideoURL) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "video must be a YouTube link")
	}

	if err := s.store.Ensure(ctx, studentID, period.ID); err != nil {
		return nil, appErrors.Internal(err, "failed to prepare evaluation record")
	}
	now := s.now().UTC()
	link := models.VideoLink{URL: req.VideoURL, Submitted: true, SubmittedAt: &now}
	ok, err := s.store.SetVideoLink(ctx, studentID, period.ID, link)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to record video link")
	}
	if !ok {
		return nil, alreadySubmitted("video link has already been submitted", nil)
	}

	recordActivity(ctx, s.activities, s.logger, studentID, models.ActivityVideoLink, "video link submitted", meta, map[string]interface{}{
		"observationId": period.ID,
	})
	return &link, nil
}

// MyEvaluations returns the caller's aggregate. An empty aggregate is
// returned when nothing has been submitted yet.
func (s *EvaluationService) MyEvaluations(ctx context.Context, studentID, observationID string) (*models.EvaluationAggregate, error) {
	if observationID == "" {
		period, err := s.eligibility.CurrentPeriod(ctx, studentID)
		if err != nil {
			return nil, err
		}
		if period == nil {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active observation period")
		}
		observationID = period.ID
	}
	agg, err := s.store.Find(ctx, studentID, observationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.EvaluationAggregate{
				StudentID:     studentID,
				ObservationID: observationID,
				WeekStatus:    models.WeekStatus{},
			}, nil
		}
		return nil, appErrors.Internal(err, "failed to load evaluations")
	}
	return agg, nil
}

// openPeriod runs the evaluation gate and checks that it points at the requested period.
func (s *EvaluationService) openPeriod(ctx context.Context, studentID, observationID string) (*models.ActivePeriod, error) {
	res, err := s.eligibility.require(ctx, studentID, dto.PurposeEvaluation)
	if err != nil {
		return nil, err
	}
	if res.Period.ID != observationID {
		return nil, appErrors.WithDetails(appErrors.ErrForbidden, "submissions are not open for this observation period",
			map[string]interface{}{"observationId": res.Period.ID})
	}
	return res.Period, nil
}

func (s *EvaluationService) refresh(ctx context.Context, observationID, studentID string) {
	if s.progress == nil {
		return
	}
	if err := s.progress.RefreshProgress(ctx, observationID, studentID); err != nil {
		s.logger.Warn("failed to refresh enrollment progress", zap.String("student_id", studentID), zap.Error(err))
	}
}

func alreadySubmitted(message string, extra map[string]interface{}) error {
	details := map[string]interface{}{"alreadySubmitted": true}
	for k, v := range extra {
		details[k] = v
	}
	return appErrors.WithDetails(appErrors.ErrAlreadySubmitted, message, details)
}
