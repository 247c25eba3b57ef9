package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/practicum-api/internal/models"
)

type activityWriter interface {
	CreateActivity(ctx context.Context, activity *models.SystemActivity) error
}

// Audit records an activity after successful requests to routes whose
// services do not record one themselves (exports, downloads).
func Audit(writer activityWriter, action, description string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 || writer == nil {
			return
		}

		activity := &models.SystemActivity{
			Action:      action,
			Description: description,
			Metadata: models.NewJSONB(map[string]interface{}{
				"path":    c.FullPath(),
				"method":  c.Request.Method,
				"status":  c.Writer.Status(),
				"query":   c.Request.URL.RawQuery,
				"latency": time.Since(start).Milliseconds(),
			}),
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		}
		if session := CurrentSession(c); session != nil {
			userID := session.UserID
			activity.UserID = &userID
		}
		if err := writer.CreateActivity(context.WithoutCancel(c.Request.Context()), activity); err != nil {
			logger.Warn("failed to record activity", zap.String("action", action), zap.Error(err))
		}
	}
}
