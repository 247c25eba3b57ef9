package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/practicum-api/internal/models"
	"github.com/noah-isme/practicum-api/internal/service"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
	"github.com/noah-isme/practicum-api/pkg/logger"
)

type fakeAuthenticator struct {
	sessions map[string]*models.Session
	alert    bool
	meta     service.RequestMeta
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, token string, meta service.RequestMeta) (*service.AuthResult, error) {
	f.meta = meta
	session, ok := f.sessions[token]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session expired")
	}
	return &service.AuthResult{Session: session, Alert: f.alert}, nil
}

func newSessionRouter(auth *fakeAuthenticator, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handlers := append([]gin.HandlerFunc{Session(auth, "practicum_session")}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		session := CurrentSession(c)
		c.JSON(http.StatusOK, gin.H{"userId": session.UserID, "logUser": c.GetString(logger.ContextUserIDKey)})
	})
	router.GET("/private/:id", handlers...)
	return router
}

func TestSessionReadsCookieAndBearer(t *testing.T) {
	auth := &fakeAuthenticator{sessions: map[string]*models.Session{
		"cookie-token": {ID: "s1", UserID: "2021001"},
		"bearer-token": {ID: "s2", UserID: "T0001"},
	}}
	router := newSessionRouter(auth)

	req := httptest.NewRequest(http.MethodGet, "/private/x", nil)
	req.AddCookie(&http.Cookie{Name: "practicum_session", Value: "cookie-token"})
	req.Header.Set("User-Agent", "test-agent")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"userId":"2021001","logUser":"2021001"}`, rec.Body.String())
	assert.Equal(t, "test-agent", auth.meta.UserAgent)
	assert.Empty(t, rec.Header().Get(SecurityAlertHeader))

	req = httptest.NewRequest(http.MethodGet, "/private/x", nil)
	req.Header.Set("Authorization", "Bearer bearer-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "T0001")
}

func TestSessionRejectsMissingOrInvalidToken(t *testing.T) {
	router := newSessionRouter(&fakeAuthenticator{sessions: map[string]*models.Session{}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/private/x", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/private/x", nil)
	req.Header.Set("Authorization", "Bearer stale")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestSessionSetsSecurityAlertHeader(t *testing.T) {
	auth := &fakeAuthenticator{alert: true, sessions: map[string]*models.Session{"t": {ID: "s1", UserID: "2021001"}}}
	router := newSessionRouter(auth)

	req := httptest.NewRequest(http.MethodGet, "/private/x", nil)
	req.Header.Set("Authorization", "Bearer t")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "client-changed", rec.Header().Get(SecurityAlertHeader))
}

func TestRequireRoles(t *testing.T) {
	auth := &fakeAuthenticator{sessions: map[string]*models.Session{
		"student": {ID: "s1", UserID: "2021001"},
		"teacher": {ID: "s2", UserID: "T0001", User: models.UserInfo{Role: models.RoleTeacher}},
	}}
	router := newSessionRouter(auth, RequireRolesOrSelf(models.RoleAdmin, models.RoleTeacher))

	cases := []struct {
		token string
		path  string
		code  int
	}{
		{"teacher", "/private/2021009", http.StatusOK},
		{"student", "/private/2021001", http.StatusOK},
		{"student", "/private/2021009", http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		req.Header.Set("Authorization", "Bearer "+tc.token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, tc.code, rec.Code, "%s %s", tc.token, tc.path)
	}
}
