package models

import "time"

// SessionStatus is the position of a session in the auth state machine
type SessionStatus string

const (
	SessionAnonymous     SessionStatus = "anonymous"
	SessionAuthenticated SessionStatus = "authenticated"
	SessionWarning       SessionStatus = "warning"
)

// LogoutReason records why a session ended
type LogoutReason string

const (
	LogoutManual  LogoutReason = "manual"
	LogoutTimeout LogoutReason = "timeout"
)

// Redirect is a one-shot navigation notice for the client
type Redirect struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// SessionSnapshot is the client-visible view of a session
type SessionSnapshot struct {
	Status             SessionStatus `json:"status"`
	User               *User         `json:"user,omitempty"`
	Roles              []string      `json:"roles,omitempty"`
	WarningMinutesLeft int           `json:"warning_minutes_left,omitempty"`
	TokenExpiringSoon  bool          `json:"token_expiring_soon"`
	LastActivity       time.Time     `json:"last_activity"`
	Redirect           *Redirect     `json:"redirect,omitempty"`
}
