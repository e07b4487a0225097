package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/serenvoice/gateway/internal/middleware"
	"github.com/serenvoice/gateway/internal/services"
	pkghttp "github.com/serenvoice/gateway/pkg/http"
	pkglogger "github.com/serenvoice/gateway/pkg/logger"
)

// Forwarder relays a request to the backend API with the session's token
type Forwarder interface {
	Forward(ctx context.Context, method, path, rawQuery string, body io.Reader, header http.Header, accessToken string) (*http.Response, error)
}

// response headers passed back to the client
var forwardedResponseHeaders = []string{
	"Content-Type",
	"Content-Disposition",
	"Cache-Control",
	"ETag",
	"Last-Modified",
	"Retry-After",
}

// ProxyHandler forwards authenticated API calls to the backend. The
// backend path equals the gateway path, which must be clean so a wildcard
// route cannot reach outside its prefix.
type ProxyHandler struct {
	backend  Forwarder
	ipConfig *pkghttp.IPConfig
	audit    *pkglogger.AuditLogger
	logger   *slog.Logger
	maxBody  int64
}

func NewProxyHandler(backend Forwarder, ipConfig *pkghttp.IPConfig, audit *pkglogger.AuditLogger, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		backend:  backend,
		ipConfig: ipConfig,
		audit:    audit,
		logger:   logger,
		maxBody:  32 << 20, // audio uploads
	}
}

// Forward relays the request as is
func (h *ProxyHandler) Forward(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())
	token := session.AccessToken()
	if token == "" {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	if !pkghttp.IsCleanPath(r.URL.Path) {
		h.logger.Warn("rejected unclean proxy path",
			slog.String("session_id", session.ID()),
			slog.String("path", r.URL.Path))
		pkghttp.WriteBadRequest(w, "Invalid path")
		return
	}

	body := http.MaxBytesReader(w, r.Body, h.maxBody)
	resp, err := h.backend.Forward(r.Context(), r.Method, r.URL.Path, r.URL.RawQuery, body, r.Header, token)
	if err != nil {
		writeServiceError(w, h.logger, err, "")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		h.logger.Info("backend rejected session token",
			slog.String("session_id", session.ID()),
			slog.String("path", r.URL.Path))
	}

	for _, name := range forwardedResponseHeaders {
		if v := resp.Header.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Warn("failed to relay backend response",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}
}

// Limited relays the request only if the session's limiter for profile
// allows another attempt.
func (h *ProxyHandler) Limited(profile services.Profile) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := middleware.SessionFromContext(r.Context())

		limiter, err := session.Limiter(r.Context(), profile)
		if err != nil {
			writeServiceError(w, h.logger, err, "")
			return
		}

		result := limiter.CheckLimit(r.Context())
		if !result.Allowed {
			h.audit.LogRateLimited(r.Context(), string(profile), session.ID(),
				pkghttp.ExtractClientIP(r, h.ipConfig), result.RetryAfter)
			pkghttp.WriteTooManyRequests(w, result.Message, result.RetryAfter)
			return
		}

		h.Forward(w, r)
	}
}
