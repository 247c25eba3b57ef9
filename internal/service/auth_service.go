package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/practicum-api/internal/models"
	"github.com/noah-isme/practicum-api/pkg/database"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
	"github.com/noah-isme/practicum-api/pkg/mail"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	Create(ctx context.Context, user *models.User) error
}

type sessionStore interface {
	Save(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, session *models.Session) error
	DeleteForUser(ctx context.Context, userID, keepID string) error
}

type resetTokenStore interface {
	SavePasswordReset(ctx context.Context, token, userID string, ttl time.Duration) error
	ConsumePasswordReset(ctx context.Context, token string) (string, error)
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	Secret        string
	Issuer        string
	TTL           time.Duration
	RememberTTL   time.Duration
	IdleTimeout   time.Duration
	MismatchLimit int
	ResetTokenTTL time.Duration
	ResetURLBase  string
}

// AuthResult is the outcome of authenticating a request.
type AuthResult struct {
	Session *models.Session
	// Alert is set when the request's user agent or IP differs from the session's.
	Alert bool
}

// AuthService provides login, session and password flows.
type AuthService struct {
	users      authUserRepository
	sessions   sessionStore
	tokens     resetTokenStore
	mailer     mail.Mailer
	activities activityRecorder
	validator  *validator.Validate
	logger     *zap.Logger
	config     AuthConfig
	now        func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users authUserRepository, sessions sessionStore, tokens resetTokenStore, mailer mail.Mailer, activities activityRecorder, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.TTL <= 0 {
		config.TTL = 48 * time.Hour
	}
	if config.RememberTTL <= 0 {
		config.RememberTTL = 15 * 24 * time.Hour
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 2 * time.Hour
	}
	if config.MismatchLimit <= 0 {
		config.MismatchLimit = 3
	}
	if config.ResetTokenTTL <= 0 {
		config.ResetTokenTTL = time.Hour
	}
	if mailer == nil {
		mailer = mail.NewLogMailer(logger)
	}
	return &AuthService{
		users:      users,
		sessions:   sessions,
		tokens:     tokens,
		mailer:     mailer,
		activities: activities,
		validator:  validate,
		logger:     logger,
		config:     config,
		now:        time.Now,
	}
}

// Login authenticates a user, opens a session and returns the signed cookie token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	var (
		user *models.User
		err  error
	)
	if id := strings.TrimSpace(req.UserID); id != "" {
		user, err = s.users.FindByID(ctx, id)
	} else {
		user, err = s.users.FindByEmail(ctx, strings.TrimSpace(req.Email))
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Internal(err, "failed to fetch user")
	}

	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.ErrInvalidCredentials
	}

	now := s.now().UTC()
	ttl := s.config.TTL
	if req.RememberMe {
		ttl = s.config.RememberTTL
	}
	session := &models.Session{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		User:         user.Info(),
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(ttl),
		RememberMe:   req.RememberMe,
		UserAgent:    req.UserAgent,
		IPAddress:    req.IP,
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, appErrors.Internal(err, "failed to create session")
	}

	token, err := s.signSession(session)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sign session")
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}
	recordActivity(ctx, s.activities, s.logger, user.ID, models.ActivityLogin, "user logged in",
		RequestMeta{IP: req.IP, UserAgent: req.UserAgent}, map[string]interface{}{"rememberMe": req.RememberMe})

	return &models.LoginResponse{Token: token, ExpiresAt: session.ExpiresAt, User: session.User}, nil
}

// Authenticate resolves the session behind a cookie token and enforces
// absolute expiry, the idle timeout and the client-drift policy.
func (s *AuthService) Authenticate(ctx context.Context, token string, meta RequestMeta) (*AuthResult, error) {
	sessionID, err := s.parseSessionToken(token)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session expired")
		}
		return nil, appErrors.Internal(err, "failed to load session")
	}

	now := s.now().UTC()
	if !now.Before(session.ExpiresAt) || now.Sub(session.LastActivity) > s.config.IdleTimeout {
		s.destroy(ctx, session)
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session expired")
	}

	alert := false
	if (session.UserAgent != "" && meta.UserAgent != session.UserAgent) || (session.IPAddress != "" && meta.IP != session.IPAddress) {
		alert = true
		session.MismatchCount++
		s.logger.Warn("session client drift",
			zap.String("user_id", session.UserID),
			zap.String("ip", meta.IP),
			zap.Int("mismatches", session.MismatchCount))
		if session.MismatchCount >= s.config.MismatchLimit {
			s.destroy(ctx, session)
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session terminated after repeated security alerts")
		}
	}

	session.LastActivity = now
	if err := s.sessions.Save(ctx, session); err != nil {
		s.logger.Warn("failed to touch session", zap.String("session_id", session.ID), zap.Error(err))
	}
	return &AuthResult{Session: session, Alert: alert}, nil
}

// Logout destroys the session.
func (s *AuthService) Logout(ctx context.Context, session *models.Session, meta RequestMeta) error {
	if session == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.sessions.Delete(ctx, session); err != nil {
		return appErrors.Internal(err, "failed to destroy session")
	}
	recordActivity(ctx, s.activities, s.logger, session.UserID, models.ActivityLogout, "user logged out", meta, nil)
	return nil
}

// Me returns fresh account details for the session user.
func (s *AuthService) Me(ctx context.Context, session *models.Session) (*models.UserInfo, error) {
	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	info := user.Info()
	return &info, nil
}

// Register creates a student account. Only student ids may self-register.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest, meta RequestMeta) (*models.UserInfo, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	id := strings.TrimSpace(req.UserID)
	if models.InferRole(id) != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user id must be a student number")
	}

	if _, err := s.users.FindByID(ctx, id); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "user id already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to check user id")
	}
	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}
	user := &models.User{
		ID:           id,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Role:         models.RoleStudent,
		YearLevel:    req.YearLevel,
		Active:       true,
	}
	if phone := strings.TrimSpace(req.Phone); phone != "" {
		user.Phone = &phone
	}
	if err := s.users.Create(ctx, user); err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrConflict, "account already registered")
		}
		return nil, appErrors.Internal(err, "failed to create user")
	}

	recordActivity(ctx, s.activities, s.logger, user.ID, models.ActivityRegister, "student registered", meta, nil)
	info := user.Info()
	return &info, nil
}

// ChangePassword updates the password and revokes the user's other sessions.
func (s *AuthService) ChangePassword(ctx context.Context, session *models.Session, req models.ChangePasswordRequest, meta RequestMeta) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change password payload")
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Internal(err, "failed to load user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return appErrors.Clone(appErrors.ErrForbidden, "old password does not match")
	}

	if err := s.setPassword(ctx, user.ID, req.NewPassword); err != nil {
		return err
	}
	if err := s.sessions.DeleteForUser(ctx, user.ID, session.ID); err != nil {
		s.logger.Warn("failed to revoke sessions after password change", zap.Error(err))
	}
	recordActivity(ctx, s.activities, s.logger, user.ID, models.ActivityPasswordChange, "password changed", meta, nil)
	return nil
}

// ForgotPassword mails a single-use reset link. Unknown emails succeed silently.
func (s *AuthService) ForgotPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid forgot password payload")
	}

	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		return appErrors.Internal(err, "failed to fetch user")
	}
	if !user.Active {
		return nil
	}

	token, err := randomToken(32)
	if err != nil {
		return appErrors.Internal(err, "failed to create reset token")
	}
	if err := s.tokens.SavePasswordReset(ctx, token, user.ID, s.config.ResetTokenTTL); err != nil {
		return appErrors.Internal(err, "failed to store reset token")
	}

	link := fmt.Sprintf("%s?token=%s", strings.TrimRight(s.config.ResetURLBase, "?"), token)
	msg := mail.Message{
		ToName:  user.FullName(),
		ToEmail: user.Email,
		Subject: "Password reset",
		Text: fmt.Sprintf("Hello %s,\n\nUse the link below to choose a new password. It expires in %s.\n\n%s\n",
			user.FullName(), s.config.ResetTokenTTL, link),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return appErrors.Internal(err, "failed to send reset email")
	}
	return nil
}

// ResetPassword consumes a reset token and sets the new password.
func (s *AuthService) ResetPassword(ctx context.Context, req models.ConfirmResetPasswordRequest, meta RequestMeta) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset password payload")
	}

	userID, err := s.tokens.ConsumePasswordReset(ctx, req.Token)
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return appErrors.Clone(appErrors.ErrValidation, "reset link is invalid or has expired")
		}
		return appErrors.Internal(err, "failed to read reset token")
	}

	if err := s.setPassword(ctx, userID, req.NewPassword); err != nil {
		return err
	}
	if err := s.sessions.DeleteForUser(ctx, userID, ""); err != nil {
		s.logger.Warn("failed to revoke sessions after password reset", zap.Error(err))
	}
	recordActivity(ctx, s.activities, s.logger, userID, models.ActivityPasswordReset, "password reset via email", meta, nil)
	return nil
}

func (s *AuthService) setPassword(ctx context.Context, userID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Internal(err, "failed to hash password")
	}
	if err := s.users.UpdatePassword(ctx, userID, string(hash), s.now().UTC()); err != nil {
		return appErrors.Internal(err, "failed to update password")
	}
	return nil
}

func (s *AuthService) destroy(ctx context.Context, session *models.Session) {
	if err := s.sessions.Delete(ctx, session); err != nil {
		s.logger.Warn("failed to destroy session", zap.String("session_id", session.ID), zap.Error(err))
	}
}

func (s *AuthService) signSession(session *models.Session) (string, error) {
	claims := &models.SessionClaims{
		SessionID: session.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   session.UserID,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Secret))
}

func (s *AuthService) parseSessionToken(tokenString string) (string, error) {
	if tokenString == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "login required")
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid session")
	}
	claims, ok := token.Claims.(*models.SessionClaims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid session")
	}
	return claims.SessionID, nil
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
