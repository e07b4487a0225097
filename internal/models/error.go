package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Session state errors
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrNoSession         = errors.New("session not found")
	ErrNotAuthenticated  = errors.New("session is not authenticated")
	ErrNoRefreshToken    = errors.New("no refresh token available")

	// Upstream errors
	ErrBackendUnavailable = errors.New("backend unavailable")
)
