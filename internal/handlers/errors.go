package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/serenvoice/gateway/internal/client"
	"github.com/serenvoice/gateway/internal/models"
	"github.com/serenvoice/gateway/internal/services"
	pkghttp "github.com/serenvoice/gateway/pkg/http"
)

// writeServiceError maps service and backend errors onto the JSON envelope.
// fallback is the message used for 401s, so login can stay generic.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error, fallback string) {
	if fallback == "" {
		fallback = "Authentication required"
	}

	var rlErr *services.RateLimitError
	var apiErr *client.APIError

	switch {
	case errors.As(err, &rlErr):
		pkghttp.WriteTooManyRequests(w, rlErr.Result.Message, rlErr.Result.RetryAfter)
	case errors.Is(err, models.ErrRateLimitExceeded):
		// the backend's own limiter refused
		pkghttp.WriteTooManyRequests(w, "Too many requests. Please try again later.", 0)
	case errors.Is(err, models.ErrUnauthorized), errors.Is(err, models.ErrNotAuthenticated),
		errors.Is(err, models.ErrNoRefreshToken):
		pkghttp.WriteUnauthorized(w, fallback)
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "Insufficient permissions")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, backendMessage(apiErr, err, "Resource already exists"))
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, backendMessage(apiErr, err, "Invalid request"))
	case errors.Is(err, models.ErrBackendUnavailable):
		logger.Warn("backend unavailable", slog.Any("error", err))
		pkghttp.WriteBadGateway(w, "The service is temporarily unavailable")
	default:
		logger.Error("request failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

func backendMessage(apiErr *client.APIError, err error, fallback string) string {
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

type normalizer interface {
	Normalize()
}

// decodeAndValidate reads a JSON body into req, normalizes it and runs its
// validate tags. It writes the 400 itself and returns false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := pkghttp.DecodeJSON(w, r, req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return false
	}
	if n, ok := req.(normalizer); ok {
		n.Normalize()
	}
	if err := ValidateRequest(req); err != nil {
		var valErr *ValidationError
		if errors.As(err, &valErr) {
			pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "validation_error", valErr.Error(), valErr.Fields)
			return false
		}
		pkghttp.WriteBadRequest(w, err.Error())
		return false
	}
	return true
}
