package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/practicum-api/internal/models"
	"github.com/noah-isme/practicum-api/internal/service"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
	"github.com/noah-isme/practicum-api/pkg/logger"
	"github.com/noah-isme/practicum-api/pkg/response"
)

// ContextSessionKey is the gin context key storing the authenticated session.
const ContextSessionKey = "currentSession"

// SecurityAlertHeader is set when the request comes from a different client than the session's.
const SecurityAlertHeader = "X-Security-Alert"

type sessionAuthenticator interface {
	Authenticate(ctx context.Context, token string, meta service.RequestMeta) (*service.AuthResult, error)
}

// Session protects routes by requiring a live session. The signed session
// token is read from cookieName, falling back to a Bearer header.
func Session(auth sessionAuthenticator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c, cookieName)
		if token == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
			c.Abort()
			return
		}

		result, err := auth.Authenticate(c.Request.Context(), token, RequestMeta(c))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		if result.Alert {
			c.Header(SecurityAlertHeader, "client-changed")
		}

		c.Set(ContextSessionKey, result.Session)
		c.Set(logger.ContextUserIDKey, result.Session.UserID)
		c.Next()
	}
}

// CurrentSession returns the session stored by Session, or nil.
func CurrentSession(c *gin.Context) *models.Session {
	value, exists := c.Get(ContextSessionKey)
	if !exists {
		return nil
	}
	session, ok := value.(*models.Session)
	if !ok {
		return nil
	}
	return session
}

// RequestMeta extracts the caller details recorded on activities.
func RequestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

func sessionToken(c *gin.Context, cookieName string) string {
	if cookieName != "" {
		if value, err := c.Cookie(cookieName); err == nil && value != "" {
			return value
		}
	}
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
