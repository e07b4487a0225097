package handlers

import (
	"context"
	"net/http"
	"time"

	pkghttp "github.com/serenvoice/gateway/pkg/http"
)

// HealthChecker is a dependency probed by the health endpoint
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	checks   map[string]HealthChecker
	sessions func() int
}

// NewHealthHandler creates a health handler. checks may be empty when the
// gateway runs without external storage.
func NewHealthHandler(checks map[string]HealthChecker, sessions func() int) *HealthHandler {
	return &HealthHandler{checks: checks, sessions: sessions}
}

// Health reports liveness and the state of each storage dependency
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check.HealthCheck(ctx); err != nil {
			deps[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	data := map[string]any{"status": "ok", "dependencies": deps}
	if h.sessions != nil {
		data["sessions"] = h.sessions()
	}
	if status != http.StatusOK {
		data["status"] = "degraded"
	}
	pkghttp.WriteJSON(w, status, pkghttp.Envelope{Success: status == http.StatusOK, Data: data})
}
