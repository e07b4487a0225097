package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/serenvoice/gateway/internal/middleware"
	"github.com/serenvoice/gateway/internal/models"
	"github.com/serenvoice/gateway/internal/services"
	pkghttp "github.com/serenvoice/gateway/pkg/http"
)

type ContactServiceInterface interface {
	Submit(ctx context.Context, session *services.AuthSession, msg models.ContactMessage, ipAddress string) (models.RateLimitResult, error)
}

type ContactHandler struct {
	service  ContactServiceInterface
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

func NewContactHandler(service ContactServiceInterface, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{service: service, ipConfig: ipConfig, logger: logger}
}

// Submit relays a contact form message
// @Router /contact [post]
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var msg models.ContactMessage
	if !decodeAndValidate(w, r, &msg) {
		return
	}

	result, err := h.service.Submit(r.Context(), middleware.SessionFromContext(r.Context()), msg, pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		writeServiceError(w, h.logger, err, "")
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, map[string]int{"remaining": result.Remaining}, "Message sent. We will get back to you soon.")
}
