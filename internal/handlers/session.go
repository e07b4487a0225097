package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/serenvoice/gateway/internal/middleware"
	"github.com/serenvoice/gateway/internal/models"
	"github.com/serenvoice/gateway/internal/services"
	pkghttp "github.com/serenvoice/gateway/pkg/http"
)

// SessionHandler exposes the idle tracker of the caller's session
type SessionHandler struct {
	logger *slog.Logger
}

func NewSessionHandler(logger *slog.Logger) *SessionHandler {
	return &SessionHandler{logger: logger}
}

type ActivityRequest struct {
	Event string `json:"event" validate:"required,max=32"`
}

type VisibilityRequest struct {
	Visible *bool `json:"visible" validate:"required"`
}

// Status returns the session snapshot. A pending redirect notice (set by an
// idle timeout) is delivered once.
// @Router /session/status [get]
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())
	snap := session.Snapshot()
	snap.Redirect = session.TakeRedirect()
	pkghttp.WriteSuccess(w, http.StatusOK, snap, "")
}

// Extend is the "stay signed in" action of the warning dialog
// @Router /session/extend [post]
func (h *SessionHandler) Extend(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())
	if err := session.ExtendSession(); err != nil {
		if errors.Is(err, models.ErrNotAuthenticated) {
			pkghttp.WriteUnauthorized(w, "Session expired. Please sign in again.")
			return
		}
		writeServiceError(w, h.logger, err, "")
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, session.Snapshot(), "Session extended")
}

// Activity forwards a client interaction event to the idle tracker.
// Throttled and unknown events are accepted but do not reset the timer.
// @Router /session/activity [post]
func (h *SessionHandler) Activity(w http.ResponseWriter, r *http.Request) {
	var req ActivityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	session := middleware.SessionFromContext(r.Context())
	reset := session.RecordActivity(services.ActivityEvent(req.Event))
	pkghttp.WriteSuccess(w, http.StatusOK, map[string]any{
		"reset":   reset,
		"session": session.Snapshot(),
	}, "")
}

// Visibility reports that the client tab was hidden or shown again
// @Router /session/visibility [post]
func (h *SessionHandler) Visibility(w http.ResponseWriter, r *http.Request) {
	var req VisibilityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	session := middleware.SessionFromContext(r.Context())
	session.HandleVisibilityChange(*req.Visible)

	snap := session.Snapshot()
	snap.Redirect = session.TakeRedirect()
	pkghttp.WriteSuccess(w, http.StatusOK, snap, "")
}
