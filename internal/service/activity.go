package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/practicum-api/internal/models"
)

type activityRecorder interface {
	CreateActivity(ctx context.Context, activity *models.SystemActivity) error
}

// RequestMeta carries caller details recorded on the activity trail.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// recordActivity appends to the activity trail; failures are logged, never returned.
func recordActivity(ctx context.Context, recorder activityRecorder, logger *zap.Logger, userID, action, description string, meta RequestMeta, metadata interface{}) {
	if recorder == nil {
		return
	}
	activity := &models.SystemActivity{
		Action:      action,
		Description: description,
		IPAddress:   meta.IP,
		UserAgent:   meta.UserAgent,
	}
	if userID != "" {
		activity.UserID = &userID
	}
	if metadata != nil {
		activity.Metadata = models.NewJSONB(metadata)
	}
	if err := recorder.CreateActivity(ctx, activity); err != nil {
		logger.Warn("failed to record activity", zap.String("action", action), zap.Error(err))
	}
}
