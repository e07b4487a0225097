package routes

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/serenvoice/gateway/internal/auth"
	"github.com/serenvoice/gateway/internal/handlers"
	"github.com/serenvoice/gateway/internal/middleware"
	"github.com/serenvoice/gateway/internal/models"
	"github.com/serenvoice/gateway/internal/services"
	pkghttp "github.com/serenvoice/gateway/pkg/http"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes
type Handlers struct {
	Auth    *handlers.AuthHandler
	Session *handlers.SessionHandler
	Contact *handlers.ContactHandler
	Proxy   *handlers.ProxyHandler
	Health  *handlers.HealthHandler
}

// Options holds what the route middleware needs
type Options struct {
	Registry       *services.SessionRegistry
	Cookie         auth.CookieConfig
	IPConfig       *pkghttp.IPConfig
	IPRateLimit    int // requests per minute per IP on auth and contact routes
	AllowedOrigins []string
	Logger         *slog.Logger
}

// RegisterRoutes registers all gateway routes
func RegisterRoutes(router chi.Router, h Handlers, opts Options) {
	router.Get("/health", h.Health.Health)

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireTrustedOrigin(opts.AllowedOrigins, opts.Logger))
		r.Use(middleware.Sessions(opts.Registry, opts.Cookie, opts.Logger))

		// Public routes, throttled per IP ahead of the per-session limiters
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(opts.IPRateLimit, opts.IPConfig))

			r.Post("/auth/login", h.Auth.Login)
			r.Post("/auth/register", h.Auth.Register)
			r.Post("/auth/google", h.Auth.GoogleLogin)
			r.Post("/auth/refresh", h.Auth.Refresh)
			r.Post("/auth/password-reset", h.Auth.RequestPasswordReset)
			r.Post("/contact", h.Contact.Submit)
		})

		r.Post("/auth/logout", h.Auth.Logout)

		r.Get("/session/status", h.Session.Status)
		r.Post("/session/extend", h.Session.Extend)
		r.Post("/session/activity", h.Session.Activity)
		r.Post("/session/visibility", h.Session.Visibility)

		// Backend API, authenticated
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuthenticated)

			r.Post("/audio/analyze", h.Proxy.Limited(services.ProfileAudioAnalysis))
			r.Get("/analisis/{id}", h.Proxy.Forward)
			r.Get("/notificaciones", h.Proxy.Forward)
			r.HandleFunc("/sesiones-juego", h.Proxy.Forward)
			r.HandleFunc("/sesiones-juego/*", h.Proxy.Forward)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleAdmin))
				r.Get("/usuarios", h.Proxy.Forward)
				r.Get("/usuarios/statistics", h.Proxy.Forward)
			})
		})
	})
}
