package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/practicum-api/internal/middleware"
	"github.com/noah-isme/practicum-api/internal/models"
)

type fakeDashboardSrv struct {
	adminResp   *models.AdminDashboard
	adminHit    bool
	adminErr    error
	studentResp *models.StudentDashboard
	lastStudent string
}

func (f *fakeDashboardSrv) Admin(context.Context) (*models.AdminDashboard, bool, error) {
	return f.adminResp, f.adminHit, f.adminErr
}

func (f *fakeDashboardSrv) Student(_ context.Context, studentID string) (*models.StudentDashboard, error) {
	f.lastStudent = studentID
	return f.studentResp, nil
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func withUser(c *gin.Context, userID string) {
	c.Set(middleware.ContextSessionKey, &models.Session{ID: "sess-" + userID, UserID: userID})
}

type responseEnvelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
	Meta    map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestDashboardHandlerAdminReportsCacheHit(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{
		adminResp: &models.AdminDashboard{},
		adminHit:  true,
	})

	c, rec := newGinContext(http.MethodGet, "/api/dashboard/admin", nil)
	handler.Admin(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Contains(t, envelope.Meta, "processing_time_ms")
}

func TestDashboardHandlerStudentUsesSession(t *testing.T) {
	service := &fakeDashboardSrv{studentResp: &models.StudentDashboard{}}
	handler := NewDashboardHandler(service)

	c, rec := newGinContext(http.MethodGet, "/api/dashboard/student", nil)
	handler.Student(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c, rec = newGinContext(http.MethodGet, "/api/dashboard/student", nil)
	withUser(c, "2021001")
	handler.Student(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2021001", service.lastStudent)
}
