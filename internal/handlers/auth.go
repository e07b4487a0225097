package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/serenvoice/gateway/internal/auth"
	"github.com/serenvoice/gateway/internal/middleware"
	"github.com/serenvoice/gateway/internal/models"
	"github.com/serenvoice/gateway/internal/services"
	pkghttp "github.com/serenvoice/gateway/pkg/http"
)

// AuthServiceInterface defines the auth flows the handler drives
type AuthServiceInterface interface {
	Login(ctx context.Context, session *services.AuthSession, req models.LoginRequest, ipAddress string) (*models.SessionSnapshot, error)
	Register(ctx context.Context, session *services.AuthSession, req models.RegisterRequest, ipAddress string) (*models.SessionSnapshot, error)
	GoogleLogin(ctx context.Context, session *services.AuthSession, req models.GoogleLoginRequest, ipAddress string) (*models.SessionSnapshot, error)
	Refresh(ctx context.Context, session *services.AuthSession, ipAddress string) (*models.SessionSnapshot, error)
	Logout(ctx context.Context, session *services.AuthSession) models.SessionSnapshot
	RequestPasswordReset(ctx context.Context, session *services.AuthSession, req models.PasswordResetRequest, ipAddress string) (string, error)
}

// SessionRotator moves a session to a fresh id
type SessionRotator interface {
	Rotate(session *services.AuthSession) string
}

// AuthHandler handles the /auth endpoints
type AuthHandler struct {
	service  AuthServiceInterface
	sessions SessionRotator
	cookie   auth.CookieConfig
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

func NewAuthHandler(service AuthServiceInterface, sessions SessionRotator, cookie auth.CookieConfig, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:  service,
		sessions: sessions,
		cookie:   cookie,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// rotateSession moves a freshly signed-in session to a new id and cookie
func (h *AuthHandler) rotateSession(w http.ResponseWriter, session *services.AuthSession) {
	id := h.sessions.Rotate(session)
	if err := auth.SetSessionCookie(w, id, h.cookie); err != nil {
		h.logger.Error("failed to set session cookie", slog.Any("error", err))
	}
}

// Login handles email/password login
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	session := middleware.SessionFromContext(r.Context())
	snap, err := h.service.Login(r.Context(), session, req, pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		writeServiceError(w, h.logger, err, "Invalid email or password")
		return
	}
	h.rotateSession(w, session)
	pkghttp.WriteSuccess(w, http.StatusOK, snap, "Login successful")
}

// Register creates an account and signs the session in
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	session := middleware.SessionFromContext(r.Context())
	snap, err := h.service.Register(r.Context(), session, req, pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		writeServiceError(w, h.logger, err, "Registration failed")
		return
	}
	h.rotateSession(w, session)
	pkghttp.WriteSuccess(w, http.StatusCreated, snap, "Registration successful")
}

// GoogleLogin signs in with a Google identity credential
// @Router /auth/google [post]
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.GoogleLoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	session := middleware.SessionFromContext(r.Context())
	snap, err := h.service.GoogleLogin(r.Context(), session, req, pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		writeServiceError(w, h.logger, err, "Google sign-in failed")
		return
	}
	h.rotateSession(w, session)
	pkghttp.WriteSuccess(w, http.StatusOK, snap, "Login successful")
}

// Refresh trades the session's refresh token for a new access token
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Refresh(r.Context(), middleware.SessionFromContext(r.Context()), pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		writeServiceError(w, h.logger, err, "Session expired. Please sign in again.")
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, snap, "")
}

// Logout always succeeds; the backend call is best effort
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	snap := h.service.Logout(r.Context(), middleware.SessionFromContext(r.Context()))
	pkghttp.WriteSuccess(w, http.StatusOK, snap, "Logged out")
}

// RequestPasswordReset asks the backend to email a reset link
// @Router /auth/password-reset [post]
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req models.PasswordResetRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	message, err := h.service.RequestPasswordReset(r.Context(), middleware.SessionFromContext(r.Context()), req, pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		writeServiceError(w, h.logger, err, "Request rejected")
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, nil, message)
}
