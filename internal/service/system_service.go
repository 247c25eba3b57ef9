package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/practicum-api/internal/dto"
	"github.com/noah-isme/practicum-api/internal/models"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
)

type settingsStore interface {
	GetSettings(ctx context.Context) (*models.SystemSettings, error)
	UpsertSettings(ctx context.Context, settings *models.SystemSettings) error
}

type systemJournal interface {
	CreateLog(ctx context.Context, entry *models.SystemLog) error
	ListLogs(ctx context.Context, filter models.LogFilter) ([]models.SystemLog, int, error)
	CreateActivity(ctx context.Context, activity *models.SystemActivity) error
	ListActivities(ctx context.Context, filter models.ActivityFilter) ([]models.SystemActivity, int, error)
}

type resetChallengeStore interface {
	SaveResetChallenge(ctx context.Context, adminID string, challenge models.ResetChallenge, ttl time.Duration) error
	ConsumeResetChallenge(ctx context.Context, adminID string) (*models.ResetChallenge, error)
}

type databaseResetter interface {
	ResetDatabase(ctx context.Context, actorID string, admin *models.User) (map[string]int64, error)
}

type sessionPurger interface {
	DeleteAllExceptUser(ctx context.Context, userID string) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

const (
	resetCodeLength   = 16
	resetCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	resetCodeGrace    = time.Minute
)

var logLevels = map[string]bool{
	models.LogLevelError: true,
	models.LogLevelWarn:  true,
	models.LogLevelInfo:  true,
}

// SystemServiceConfig tunes the operations panel.
type SystemServiceConfig struct {
	StatusCacheTTL        time.Duration
	ResetChallengeTTL     time.Duration
	RequireResetChallenge bool
	BootstrapAdminID      string
	BootstrapAdminEmail   string
	BootstrapAdminPass    string
}

// SystemServiceParams groups constructor dependencies.
type SystemServiceParams struct {
	Settings   settingsStore
	Journal    systemJournal
	Challenges resetChallengeStore
	Resetter   databaseResetter
	Sessions   sessionPurger
	Cache      cacheInvalidator
	Validator  *validator.Validate
	Logger     *zap.Logger
	Config     SystemServiceConfig
}

// SystemService implements the admin operations panel.
type SystemService struct {
	settings   settingsStore
	journal    systemJournal
	challenges resetChallengeStore
	resetter   databaseResetter
	sessions   sessionPurger
	cache      cacheInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        SystemServiceConfig
	now        func() time.Time

	mu       sync.RWMutex
	cached   *models.SystemSettings
	cachedAt time.Time
}

// NewSystemService constructs the service.
func NewSystemService(params SystemServiceParams) *SystemService {
	cfg := params.Config
	if cfg.StatusCacheTTL <= 0 {
		cfg.StatusCacheTTL = 15 * time.Second
	}
	if cfg.ResetChallengeTTL <= 0 {
		cfg.ResetChallengeTTL = 10 * time.Minute
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SystemService{
		settings:   params.Settings,
		journal:    params.Journal,
		challenges: params.Challenges,
		resetter:   params.Resetter,
		sessions:   params.Sessions,
		cache:      params.Cache,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Status returns the current platform status, served from memory for StatusCacheTTL.
func (s *SystemService) Status(ctx context.Context) (*models.SystemSettings, error) {
	s.mu.RLock()
	if s.cached != nil && s.now().Sub(s.cachedAt) < s.cfg.StatusCacheTTL {
		cp := *s.cached
		s.mu.RUnlock()
		return &cp, nil
	}
	s.mu.RUnlock()

	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load system status")
	}
	s.storeStatus(settings)
	cp := *settings
	return &cp, nil
}

// UpdateStatus switches the platform status and records who did it.
func (s *SystemService) UpdateStatus(ctx context.Context, actorID string, req dto.UpdateStatusRequest, meta RequestMeta) (*models.SystemSettings, error) {
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "status must be online, maintenance or offline")
	}
	previous, err := s.Status(ctx)
	if err != nil {
		return nil, err
	}

	settings := &models.SystemSettings{
		Status:    models.SystemStatus(req.Status),
		UpdatedBy: &actorID,
	}
	if note := req.Note(); note != nil {
		if msg := strings.TrimSpace(*note); msg != "" {
			settings.Message = &msg
		}
	}
	if err := s.settings.UpsertSettings(ctx, settings); err != nil {
		return nil, appErrors.Internal(err, "failed to update system status")
	}
	s.storeStatus(settings)

	recordActivity(ctx, s.journal, s.logger, actorID, models.ActivityStatusChange,
		"system status changed to "+req.Status, meta, map[string]interface{}{
			"from":    previous.Status,
			"to":      settings.Status,
			"message": settings.Message,
		})
	s.logger.Info("system status changed",
		zap.String("actor_id", actorID),
		zap.String("from", string(previous.Status)),
		zap.String("to", req.Status))
	return settings, nil
}

// Logs pages through persisted server logs.
func (s *SystemService) Logs(ctx context.Context, filter models.LogFilter) ([]models.SystemLog, *models.Pagination, error) {
	filter.Level = strings.ToLower(strings.TrimSpace(filter.Level))
	if filter.Level != "" && !logLevels[filter.Level] {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "level must be error, warn or info")
	}
	items, total, err := s.journal.ListLogs(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list system logs")
	}
	if items == nil {
		items = []models.SystemLog{}
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Activities pages through the activity trail.
func (s *SystemService) Activities(ctx context.Context, filter models.ActivityFilter) ([]models.SystemActivity, *models.Pagination, error) {
	items, total, err := s.journal.ListActivities(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list system activities")
	}
	if items == nil {
		items = []models.SystemActivity{}
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// RecordLog persists a log entry; failures are only logged.
func (s *SystemService) RecordLog(ctx context.Context, entry *models.SystemLog) {
	if s.journal == nil || entry == nil {
		return
	}
	if entry.Level == "" {
		entry.Level = models.LogLevelError
	}
	if err := s.journal.CreateLog(ctx, entry); err != nil {
		s.logger.Warn("failed to persist system log", zap.String("message", entry.Message), zap.Error(err))
	}
}

// IssueResetChallenge creates the one-time code the admin must echo back to reset.
func (s *SystemService) IssueResetChallenge(ctx context.Context, adminID string) (*models.ResetChallenge, error) {
	code, err := randomCode(resetCodeLength)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to generate verification code")
	}
	challenge := models.ResetChallenge{
		Code:      code,
		ExpiresAt: s.now().UTC().Add(s.cfg.ResetChallengeTTL),
	}
	if err := s.challenges.SaveResetChallenge(ctx, adminID, challenge, s.cfg.ResetChallengeTTL+resetCodeGrace); err != nil {
		return nil, appErrors.Internal(err, "failed to store verification code")
	}
	return &challenge, nil
}

// ResetDatabase wipes domain data after explicit confirmation.
func (s *SystemService) ResetDatabase(ctx context.Context, actorID string, req dto.ResetDatabaseRequest, meta RequestMeta) (*models.ResetResult, error) {
	if !req.Confirmed {
		return nil, appErrors.WithDetails(appErrors.ErrConfirmationRequired, "database reset must be confirmed", map[string]interface{}{
			"requiresConfirmation": true,
		})
	}
	if s.cfg.RequireResetChallenge {
		if err := s.verifyChallenge(ctx, actorID, req); err != nil {
			return nil, err
		}
	}

	admin, err := s.bootstrapAdmin(actorID)
	if err != nil {
		return nil, err
	}
	deleted, err := s.resetter.ResetDatabase(ctx, actorID, admin)
	if err != nil {
		s.RecordLog(ctx, &models.SystemLog{Level: models.LogLevelError, Message: "database reset failed: " + err.Error(), UserID: &actorID})
		return nil, appErrors.Internal(err, "failed to reset database")
	}
	s.invalidateStatus()
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, dashboardCachePattern); err != nil {
			s.logger.Warn("failed to drop cached dashboards after reset", zap.Error(err))
		}
	}

	if s.sessions != nil {
		if err := s.sessions.DeleteAllExceptUser(ctx, actorID); err != nil {
			s.logger.Warn("failed to purge sessions after reset", zap.Error(err))
		}
	}

	preserved := []string{actorID}
	if admin != nil && admin.ID != actorID {
		preserved = append(preserved, admin.ID)
	}
	result := &models.ResetResult{
		Deleted:      deleted,
		AdminID:      actorID,
		CompletedAt:  s.now().UTC(),
		PreservedIDs: preserved,
	}
	recordActivity(ctx, s.journal, s.logger, actorID, models.ActivityDatabaseReset, "database reset", meta, map[string]interface{}{
		"deleted": deleted,
	})
	s.RecordLog(ctx, &models.SystemLog{Level: models.LogLevelWarn, Message: "database reset by " + actorID, UserID: &actorID})
	s.logger.Warn("database reset", zap.String("actor_id", actorID), zap.Any("deleted", deleted))
	return result, nil
}

func (s *SystemService) verifyChallenge(ctx context.Context, actorID string, req dto.ResetDatabaseRequest) error {
	code := strings.ToUpper(strings.TrimSpace(req.VerificationCode))
	if code == "" {
		return appErrors.Clone(appErrors.ErrValidation, "verificationCode is required")
	}
	if req.Timestamp > 0 {
		issued := time.UnixMilli(req.Timestamp)
		if s.now().Sub(issued) > s.cfg.ResetChallengeTTL+resetCodeGrace {
			return appErrors.Clone(appErrors.ErrValidation, "reset request has expired")
		}
	}
	challenge, err := s.challenges.ConsumeResetChallenge(ctx, actorID)
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return appErrors.Clone(appErrors.ErrValidation, "verification code expired, request a new one")
		}
		return appErrors.Internal(err, "failed to verify reset code")
	}
	if challenge.Code != code {
		return appErrors.Clone(appErrors.ErrValidation, "verification code does not match")
	}
	return nil
}

func (s *SystemService) bootstrapAdmin(actorID string) (*models.User, error) {
	id := strings.TrimSpace(s.cfg.BootstrapAdminID)
	if id == "" || id == actorID || s.cfg.BootstrapAdminPass == "" {
		return nil, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(s.cfg.BootstrapAdminPass), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash bootstrap password")
	}
	return &models.User{
		ID:           id,
		Email:        strings.ToLower(s.cfg.BootstrapAdminEmail),
		PasswordHash: string(hash),
		FirstName:    "System",
		LastName:     "Administrator",
		Role:         models.RoleAdmin,
		Active:       true,
	}, nil
}

func (s *SystemService) storeStatus(settings *models.SystemSettings) {
	cp := *settings
	s.mu.Lock()
	s.cached = &cp
	s.cachedAt = s.now()
	s.mu.Unlock()
}

func (s *SystemService) invalidateStatus() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

func randomCode(n int) (string, error) {
	limit := big.NewInt(int64(len(resetCodeAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		out[i] = resetCodeAlphabet[idx.Int64()]
	}
	return string(out), nil
}
