package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/practicum-api/internal/models"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
	"github.com/noah-isme/practicum-api/pkg/response"
)

type statusReader interface {
	Status(ctx context.Context) (*models.SystemSettings, error)
}

// Maintenance rejects non-admin requests with 503 while the platform is not
// online. It must run after Session. A failing status read lets requests through.
func Maintenance(status statusReader, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if session := CurrentSession(c); session != nil && session.Role() == models.RoleAdmin {
			c.Next()
			return
		}
		settings, err := status.Status(c.Request.Context())
		if err != nil {
			logger.Warn("system status unavailable", zap.Error(err))
			c.Next()
			return
		}
		if settings.Status == models.SystemOnline {
			c.Next()
			return
		}

		details := map[string]interface{}{"systemStatus": settings.Status}
		message := "the system is under maintenance, please try again later"
		if settings.Status == models.SystemOffline {
			message = "the system is offline"
		}
		if settings.Message != nil {
			details["statusMessage"] = *settings.Message
		}
		response.Error(c, appErrors.WithDetails(appErrors.ErrServiceUnavailable, message, details))
		c.Abort()
	}
}
