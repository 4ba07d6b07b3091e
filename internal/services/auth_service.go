package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ewhitmore/driveline/internal/auth"
	"github.com/ewhitmore/driveline/internal/metrics"
	"github.com/ewhitmore/driveline/internal/models"
	"github.com/ewhitmore/driveline/internal/security"
	pkgauth "github.com/ewhitmore/driveline/pkg/auth"
	pkglogger "github.com/ewhitmore/driveline/pkg/logger"
	"github.com/google/uuid"
)

// UserRepository defines the identity lookups the auth service needs
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// AuthService composes the sign-in rate limiter, CSRF issuance, and the
// identity store into a single sign-in/sign-out flow. A locked-out key
// never reaches the identity store.
type AuthService struct {
	repo        UserRepository
	limiter     *security.Limiter
	csrf        *security.CSRFManager
	sessions    *security.SessionTracker
	tm          *auth.TokenManager
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger

	// sleep is swapped out in tests so progressive delay doesn't stall them
	sleep func(ctx context.Context, d time.Duration) error
}

// NewAuthService creates an AuthService
func NewAuthService(
	repo UserRepository,
	limiter *security.Limiter,
	csrf *security.CSRFManager,
	sessions *security.SessionTracker,
	tm *auth.TokenManager,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		repo:        repo,
		limiter:     limiter,
		csrf:        csrf,
		sessions:    sessions,
		tm:          tm,
		logger:      logger,
		auditLogger: auditLogger,
		sleep:       sleepCtx,
	}
}

// SetSleep overrides the progressive-delay wait. Intended for tests.
func (s *AuthService) SetSleep(sleep func(ctx context.Context, d time.Duration) error) {
	s.sleep = sleep
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// AuthResponse is the result of a successful sign-in
type AuthResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	CSRFToken    string        `json:"csrf_token"`
	SessionID    string        `json:"session_id"`
	User         *UserResponse `json:"user"`
}

// LockoutError carries the remaining wait so the UI can render it
type LockoutError struct {
	Reason     string
	RetryAfter time.Duration
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("sign-in locked (%s), retry after %s", e.Reason, e.RetryAfter.Round(time.Second))
}

func (e *LockoutError) Unwrap() error {
	if e.Reason == security.ReasonMaxAttempts {
		return models.ErrAccountLockedBySystem
	}
	return models.ErrRateLimitExceeded
}

// Login gates the attempt through the rate limiter, awaits any
// progressive delay, then verifies credentials. On success the limiter
// state for the key resets, a session is established, and a CSRF token
// is issued for subsequent mutating requests.
func (s *AuthService) Login(ctx context.Context, email, password, ipAddress, userAgent string) (*AuthResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		s.logger.Warn("login attempt with empty email")
		return nil, models.ErrUnauthorized
	}

	decision := s.limiter.Check(email)
	if !decision.Allowed {
		metrics.LoginAttemptsTotal.WithLabelValues("rate_limited").Inc()
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_blocked",
			IPAddress:     ipAddress,
			UserAgent:     userAgent,
			FailureReason: decision.Reason,
			Success:       false,
		})
		return nil, &LockoutError{Reason: decision.Reason, RetryAfter: decision.Delay}
	}

	if decision.Delay > 0 {
		if err := s.sleep(ctx, decision.Delay); err != nil {
			return nil, err
		}
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.recordFailure(email, ipAddress, userAgent, "invalid_credentials")
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if user.Status != "active" {
		s.recordFailure(email, ipAddress, userAgent, "account_disabled")
		return nil, models.ErrAccountDisabled
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		s.recordFailure(email, ipAddress, userAgent, "invalid_credentials")
		return nil, models.ErrUnauthorized
	}

	s.limiter.RecordSuccess(email)

	sessionID := uuid.New().String()
	s.sessions.Touch(sessionID)

	accessToken, err := s.tm.GenerateAccessToken(user.ID, user.Email, sessionID)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	refreshToken, err := s.tm.GenerateRefreshToken(user.ID, user.Email, sessionID)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	csrfToken, err := s.csrf.Generate(sessionID)
	if err != nil {
		s.logger.Error("failed to generate csrf token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   true,
	})

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		CSRFToken:    csrfToken,
		SessionID:    sessionID,
		User:         userModelToResponse(user),
	}, nil
}

// Refresh exchanges a valid refresh token for a new token pair, keeping
// the session alive.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	if refreshToken = strings.TrimSpace(refreshToken); refreshToken == "" {
		return nil, models.ErrUnauthorized
	}

	claims, err := s.tm.ValidateToken(refreshToken)
	if err != nil {
		s.logger.Info("refresh token validation failed", slog.Any("error", err))
		return nil, models.ErrUnauthorized
	}

	if claims.Type != "refresh" {
		s.logger.Warn("refresh attempt with non-refresh token", slog.String("user_id", claims.UserID))
		return nil, models.ErrUnauthorized
	}

	if s.sessions.Expired(claims.SessionID) {
		s.logger.Info("refresh blocked: session idle past timeout", slog.String("user_id", claims.UserID))
		return nil, models.ErrUnauthorized
	}

	user, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user for token refresh", slog.String("user_id", claims.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if user.Status != "active" {
		return nil, models.ErrUnauthorized
	}

	accessToken, err := s.tm.GenerateAccessToken(user.ID, user.Email, claims.SessionID)
	if err != nil {
		return nil, models.ErrInternalServer
	}

	newRefreshToken, err := s.tm.GenerateRefreshToken(user.ID, user.Email, claims.SessionID)
	if err != nil {
		return nil, models.ErrInternalServer
	}

	csrfToken, err := s.csrf.Generate(claims.SessionID)
	if err != nil {
		return nil, models.ErrInternalServer
	}

	s.sessions.Touch(claims.SessionID)
	s.logger.Info("token refreshed", slog.String("user_id", user.ID))

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		CSRFToken:    csrfToken,
		SessionID:    claims.SessionID,
		User:         userModelToResponse(user),
	}, nil
}

// Logout tears down session state. Local cleanup always happens: a
// client-side sign-out is best-effort final even when token validation
// fails.
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.tm.ValidateToken(accessToken)
	if err != nil {
		// Still nothing to clean up we can identify; report but don't fail hard
		s.logger.Info("logout with invalid token", slog.Any("error", err))
		return models.ErrUnauthorized
	}

	s.sessions.Remove(claims.SessionID)
	s.csrf.Revoke(claims.SessionID)

	s.logger.Info("user logged out", slog.String("user_id", claims.UserID))
	s.auditLogger.LogAccountAction("logout", claims.UserID, "", nil)
	return nil
}

// SessionExpired reports whether a session has gone idle past the
// configured timeout.
func (s *AuthService) SessionExpired(sessionID string) bool {
	return s.sessions.Expired(sessionID)
}

// TouchSession refreshes session activity; called on authenticated
// requests.
func (s *AuthService) TouchSession(sessionID string) {
	s.sessions.Touch(sessionID)
}

func (s *AuthService) recordFailure(email, ipAddress, userAgent, reason string) {
	s.limiter.RecordFailure(email)
	metrics.LoginAttemptsTotal.WithLabelValues("failure").Inc()
	s.logger.Info("login failed: " + reason)
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login_failed",
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
		FailureReason: reason,
		Success:       false,
	})
}

func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	}
}
