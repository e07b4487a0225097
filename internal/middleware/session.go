package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/serenvoice/gateway/internal/auth"
	"github.com/serenvoice/gateway/internal/models"
	"github.com/serenvoice/gateway/internal/services"
	pkghttp "github.com/serenvoice/gateway/pkg/http"
)

type contextKey string

const SessionContextKey contextKey = "session"

// Sessions resolves the AuthSession named by the signed session cookie,
// creating one on first contact or for a cookie that fails verification,
// and stores it in the request context.
func Sessions(registry *services.SessionRegistry, cookie auth.CookieConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var session *services.AuthSession

			id, err := auth.GetSessionCookie(r, cookie)
			if err == nil && id != "" {
				session = registry.Restore(id)
			} else {
				session = registry.Create()
			}

			if session.ID() != id {
				logger.Debug("session created", slog.String("session_id", session.ID()))
				if err := auth.SetSessionCookie(w, session.ID(), cookie); err != nil {
					logger.Error("failed to set session cookie", slog.Any("error", err))
				}
			}

			ctx := context.WithValue(r.Context(), SessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the session stored by Sessions, or nil
func SessionFromContext(ctx context.Context) *services.AuthSession {
	session, _ := ctx.Value(SessionContextKey).(*services.AuthSession)
	return session
}

// RequireAuthenticated rejects requests whose session holds no valid token
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := SessionFromContext(r.Context())
		if session == nil || !session.IsAuthenticated() {
			pkghttp.WriteUnauthorized(w, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects authenticated sessions lacking role
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return RequireAuthenticated(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !models.HasRole(SessionFromContext(r.Context()).Roles(), role) {
				pkghttp.WriteForbidden(w, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
