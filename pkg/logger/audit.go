package logger

import (
	"context"
	"log/slog"
	"time"
)

// Audit event types
const (
	EventLogin         = "login"
	EventRegister      = "register"
	EventGoogleLogin   = "google_login"
	EventRefresh       = "token_refresh"
	EventLogout        = "logout"
	EventPasswordReset = "password_reset_request"
	EventRateLimited   = "rate_limited"
	EventContact       = "contact_message"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	SessionID     string
	UserID        string
	Email         string // masked before logging
	IPAddress     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger: logger,
		now:    time.Now,
	}
}

// LogAuthAttempt logs authentication flows (login, register, refresh, reset)
func (al *AuditLogger) LogAuthAttempt(ctx context.Context, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}
	attrs = append(attrs, event.attrs()...)

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}

// LogSessionEvent logs session lifecycle changes such as logout and idle timeout
func (al *AuditLogger) LogSessionEvent(ctx context.Context, eventType, sessionID, reason string) {
	attrs := []slog.Attr{
		slog.String("audit_type", "session"),
		slog.String("event_type", eventType),
		slog.String("session_id", sessionID),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}
	if reason != "" {
		attrs = append(attrs, slog.String("reason", reason))
	}

	al.logger.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
}

// LogRateLimited logs a refused attempt
func (al *AuditLogger) LogRateLimited(ctx context.Context, profile, sessionID, ipAddress string, retryAfter int) {
	attrs := []slog.Attr{
		slog.String("audit_type", "rate_limit"),
		slog.String("event_type", EventRateLimited),
		slog.String("profile", profile),
		slog.String("session_id", sessionID),
		slog.Int("retry_after", retryAfter),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}
	if ipAddress != "" {
		attrs = append(attrs, slog.String("ip_address", ipAddress))
	}

	al.logger.LogAttrs(ctx, slog.LevelWarn, "audit", attrs...)
}

func (e AuditEvent) attrs() []slog.Attr {
	var attrs []slog.Attr
	if e.SessionID != "" {
		attrs = append(attrs, slog.String("session_id", e.SessionID))
	}
	if e.UserID != "" {
		attrs = append(attrs, slog.String("user_id", e.UserID))
	}
	if e.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(e.Email)))
	}
	if e.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", e.IPAddress))
	}
	if e.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", e.FailureReason))
	}
	for key, val := range e.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}
	return attrs
}
