package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/practicum-api/internal/dto"
	"github.com/noah-isme/practicum-api/internal/models"
	"github.com/noah-isme/practicum-api/pkg/database"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
	"github.com/noah-isme/practicum-api/pkg/imaging"
	"github.com/noah-isme/practicum-api/pkg/storage"
)

type profileRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdateProfileImage(ctx context.Context, id, url string) error
}

// ProfileConfig bounds profile picture uploads.
type ProfileConfig struct {
	ImageMaxBytes  int64
	ImageDimension int
}

// ProfileService lets users maintain their own profile.
type ProfileService struct {
	users      profileRepository
	objects    storage.ObjectStore
	activities activityRecorder
	validator  *validator.Validate
	logger     *zap.Logger
	config     ProfileConfig
	now        func() time.Time
}

// NewProfileService constructs the service.
func NewProfileService(users profileRepository, objects storage.ObjectStore, activities activityRecorder, validate *validator.Validate, logger *zap.Logger, config ProfileConfig) *ProfileService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ImageMaxBytes <= 0 {
		config.ImageMaxBytes = 5 << 20
	}
	if config.ImageDimension <= 0 {
		config.ImageDimension = 512
	}
	return &ProfileService{
		users:      users,
		objects:    objects,
		activities: activities,
		validator:  validate,
		logger:     logger,
		config:     config,
		now:        time.Now,
	}
}

// Get returns the caller's profile.
func (s *ProfileService) Get(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to load profile")
	}
	return user, nil
}

// Update changes names, email and phone.
func (s *ProfileService) Update(ctx context.Context, userID string, req dto.UpdateProfileRequest, meta RequestMeta) (*models.User, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.FirstName = req.FirstName
	user.LastName = req.LastName
	user.Email = req.Email
	if phone := strings.TrimSpace(req.Phone); phone != "" {
		user.Phone = &phone
	} else {
		user.Phone = nil
	}
	if err := s.users.UpdateProfile(ctx, user); err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already in use")
		}
		return nil, appErrors.Internal(err, "failed to update profile")
	}
	recordActivity(ctx, s.activities, s.logger, userID, models.ActivityProfileUpdate, "profile updated", meta, nil)
	return user, nil
}

// UploadImage resizes the picture, stores it publicly and records its URL.
func (s *ProfileService) UploadImage(ctx context.Context, userID string, upload dto.ProfileImageUpload, meta RequestMeta) (string, error) {
	if upload.Content == nil || upload.Size == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "profile image is required")
	}
	if upload.Size > s.config.ImageMaxBytes {
		return "", appErrors.WithDetails(appErrors.ErrValidation, "profile image is too large", map[string]interface{}{
			"maxBytes": s.config.ImageMaxBytes,
		})
	}
	data, err := imaging.Thumbnail(io.LimitReader(upload.Content, s.config.ImageMaxBytes+1), s.config.ImageDimension)
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupported) {
			return "", appErrors.Clone(appErrors.ErrValidation, "profile image must be a JPEG or PNG")
		}
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "profile image could not be processed")
	}

	key := fmt.Sprintf("profile_images/%s_%d.jpg", userID, s.now().UnixMilli())
	url, err := s.objects.PutObject(ctx, key, bytes.NewReader(data), "image/jpeg")
	if err != nil {
		return "", appErrors.Internal(err, "failed to store profile image")
	}
	if err := s.users.UpdateProfileImage(ctx, userID, url); err != nil {
		if delErr := s.objects.DeleteObject(ctx, key); delErr != nil {
			s.logger.Warn("failed to remove orphaned profile image", zap.String("key", key), zap.Error(delErr))
		}
		return "", appErrors.Internal(err, "failed to save profile image")
	}
	recordActivity(ctx, s.activities, s.logger, userID, models.ActivityProfileUpdate, "profile image updated", meta, map[string]interface{}{
		"key": key,
	})
	return url, nil
}
