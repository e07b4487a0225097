package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/serenvoice/gateway/internal/auth"
	"github.com/serenvoice/gateway/internal/clock"
	"github.com/serenvoice/gateway/internal/models"
	pkglogger "github.com/serenvoice/gateway/pkg/logger"
)

// AuthBackend is the part of the backend API the auth flows need
type AuthBackend interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.TokenBundle, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.TokenBundle, error)
	GoogleLogin(ctx context.Context, req models.GoogleLoginRequest) (*models.TokenBundle, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenBundle, error)
	RequestPasswordReset(ctx context.Context, req models.PasswordResetRequest) (string, error)
}

// DefaultPasswordResetMessage is returned when the backend sends no message
const DefaultPasswordResetMessage = "If the email is registered, a reset link has been sent."

// AuthService runs the login, logout and refresh flows of a session
type AuthService struct {
	backend   AuthBackend
	inspector *auth.TokenInspector
	clock     clock.Clock
	logger    *slog.Logger
	audit     *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(backend AuthBackend, inspector *auth.TokenInspector, clk clock.Clock, logger *slog.Logger, audit *pkglogger.AuditLogger) *AuthService {
	if clk == nil {
		clk = clock.New()
	}
	if inspector == nil {
		inspector = auth.NewTokenInspector("")
	}
	return &AuthService{
		backend:   backend,
		inspector: inspector,
		clock:     clk,
		logger:    logger,
		audit:     audit,
	}
}

// Login authenticates with email and password, guarded by the login limiter.
// A successful login resets the limiter.
func (s *AuthService) Login(ctx context.Context, session *AuthSession, req models.LoginRequest, ipAddress string) (*models.SessionSnapshot, error) {
	req.Normalize()

	bundle, err := s.limited(ctx, session, ProfileLogin, ipAddress, func(ctx context.Context) (*models.TokenBundle, error) {
		return s.backend.Login(ctx, req)
	})
	if err != nil {
		s.auditFailure(ctx, pkglogger.EventLogin, session, req.Email, ipAddress, err)
		return nil, err
	}

	return s.establish(ctx, session, bundle, pkglogger.EventLogin, req.Email, ipAddress, true)
}

// Register creates an account and signs the session in
func (s *AuthService) Register(ctx context.Context, session *AuthSession, req models.RegisterRequest, ipAddress string) (*models.SessionSnapshot, error) {
	req.Normalize()

	bundle, err := s.limited(ctx, session, ProfileRegister, ipAddress, func(ctx context.Context) (*models.TokenBundle, error) {
		return s.backend.Register(ctx, req)
	})
	if err != nil {
		s.auditFailure(ctx, pkglogger.EventRegister, session, req.Email, ipAddress, err)
		return nil, err
	}

	return s.establish(ctx, session, bundle, pkglogger.EventRegister, req.Email, ipAddress, false)
}

// GoogleLogin signs the session in with a Google credential. It shares the
// login limiter with the password flow.
func (s *AuthService) GoogleLogin(ctx context.Context, session *AuthSession, req models.GoogleLoginRequest, ipAddress string) (*models.SessionSnapshot, error) {
	bundle, err := s.limited(ctx, session, ProfileLogin, ipAddress, func(ctx context.Context) (*models.TokenBundle, error) {
		return s.backend.GoogleLogin(ctx, req)
	})
	if err != nil {
		s.auditFailure(ctx, pkglogger.EventGoogleLogin, session, "", ipAddress, err)
		return nil, err
	}

	return s.establish(ctx, session, bundle, pkglogger.EventGoogleLogin, "", ipAddress, true)
}

// Refresh trades the stored refresh token for a new access token
func (s *AuthService) Refresh(ctx context.Context, session *AuthSession, ipAddress string) (*models.SessionSnapshot, error) {
	refreshToken := session.RefreshToken()
	if refreshToken == "" {
		return nil, models.ErrNoRefreshToken
	}

	bundle, err := s.backend.Refresh(ctx, refreshToken)
	if err != nil {
		s.auditFailure(ctx, pkglogger.EventRefresh, session, "", ipAddress, err)
		// a rejected refresh token cannot be reused
		if errors.Is(err, models.ErrUnauthorized) {
			session.PerformLogout(ctx, models.LogoutManual)
		}
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	if bundle.AccessToken == "" {
		return nil, fmt.Errorf("token refresh failed: %w", models.ErrBadRequest)
	}

	s.inspector.Enrich(bundle, s.clock.Now())
	session.ApplyRefresh(bundle)

	s.audit.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventRefresh,
		SessionID: session.ID(),
		UserID:    userID(session.User()),
		IPAddress: ipAddress,
		Success:   true,
	})

	snap := session.Snapshot()
	return &snap, nil
}

// Logout ends the session locally; the backend call is best effort
func (s *AuthService) Logout(ctx context.Context, session *AuthSession) models.SessionSnapshot {
	wasAuthenticated := session.IsAuthenticated()
	session.PerformLogout(ctx, models.LogoutManual)

	if wasAuthenticated {
		s.audit.LogSessionEvent(ctx, pkglogger.EventLogout, session.ID(), string(models.LogoutManual))
	}
	return session.Snapshot()
}

// RequestPasswordReset asks the backend to send a reset email, guarded by
// the password_reset limiter.
func (s *AuthService) RequestPasswordReset(ctx context.Context, session *AuthSession, req models.PasswordResetRequest, ipAddress string) (string, error) {
	req.Normalize()

	limiter, err := session.Limiter(ctx, ProfilePasswordReset)
	if err != nil {
		return "", err
	}

	message, err := WithRateLimit(ctx, limiter, func(ctx context.Context) (string, error) {
		return s.backend.RequestPasswordReset(ctx, req)
	})
	if err != nil {
		s.auditRateLimit(ctx, ProfilePasswordReset, session, ipAddress, err)
		s.auditFailure(ctx, pkglogger.EventPasswordReset, session, req.Email, ipAddress, err)
		return "", err
	}

	s.audit.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventPasswordReset,
		SessionID: session.ID(),
		Email:     req.Email,
		IPAddress: ipAddress,
		Success:   true,
	})

	if message == "" {
		message = DefaultPasswordResetMessage
	}
	return message, nil
}

func (s *AuthService) limited(ctx context.Context, session *AuthSession, profile Profile, ipAddress string, fn func(context.Context) (*models.TokenBundle, error)) (*models.TokenBundle, error) {
	limiter, err := session.Limiter(ctx, profile)
	if err != nil {
		return nil, err
	}

	bundle, err := WithRateLimit(ctx, limiter, fn)
	if err != nil {
		s.auditRateLimit(ctx, profile, session, ipAddress, err)
		return nil, err
	}
	if bundle == nil || bundle.AccessToken == "" {
		return nil, fmt.Errorf("backend returned no access token: %w", models.ErrBackendUnavailable)
	}
	return bundle, nil
}

func (s *AuthService) establish(ctx context.Context, session *AuthSession, bundle *models.TokenBundle, event, email, ipAddress string, resetLogin bool) (*models.SessionSnapshot, error) {
	s.inspector.Enrich(bundle, s.clock.Now())
	session.Login(bundle)

	if resetLogin {
		limiter, err := session.Limiter(ctx, ProfileLogin)
		if err == nil {
			limiter.Reset(ctx)
		}
	}

	s.audit.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType: event,
		SessionID: session.ID(),
		UserID:    userID(bundle.User),
		Email:     email,
		IPAddress: ipAddress,
		Success:   true,
	})

	snap := session.Snapshot()
	return &snap, nil
}

func (s *AuthService) auditFailure(ctx context.Context, event string, session *AuthSession, email, ipAddress string, err error) {
	s.audit.LogAuthAttempt(ctx, pkglogger.AuditEvent{
		EventType:     event,
		SessionID:     session.ID(),
		Email:         email,
		IPAddress:     ipAddress,
		Success:       false,
		FailureReason: failureReason(err),
	})
}

func (s *AuthService) auditRateLimit(ctx context.Context, profile Profile, session *AuthSession, ipAddress string, err error) {
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		s.audit.LogRateLimited(ctx, string(profile), session.ID(), ipAddress, rlErr.Result.RetryAfter)
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, models.ErrRateLimitExceeded):
		return "rate_limited"
	case errors.Is(err, models.ErrUnauthorized):
		return "invalid_credentials"
	case errors.Is(err, models.ErrConflict):
		return "conflict"
	case errors.Is(err, models.ErrBackendUnavailable):
		return "backend_unavailable"
	default:
		return "rejected"
	}
}

func userID(u *models.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}
