package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/practicum-api/internal/models"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
	"github.com/noah-isme/practicum-api/pkg/middleware/requestid"
)

type systemLogRecorder interface {
	RecordLog(ctx context.Context, entry *models.SystemLog)
}

// SystemLog persists every response with a 5xx status to system_logs.
func SystemLog(recorder systemLogRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < http.StatusInternalServerError || recorder == nil {
			return
		}

		entry := &models.SystemLog{
			Level:      models.LogLevelError,
			Message:    http.StatusText(status),
			StatusCode: &status,
		}
		if last := c.Errors.Last(); last != nil {
			entry.Message = last.Error()
			var appErr *appErrors.Error
			if errors.As(last.Err, &appErr) {
				code := appErr.Code
				entry.Code = &code
			}
		}
		method := c.Request.Method
		entry.Method = &method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		entry.Path = &path
		if session := CurrentSession(c); session != nil {
			userID := session.UserID
			entry.UserID = &userID
		}
		if reqID := requestid.Value(c); reqID != "" {
			entry.RequestID = &reqID
		}
		recorder.RecordLog(context.WithoutCancel(c.Request.Context()), entry)
	}
}
