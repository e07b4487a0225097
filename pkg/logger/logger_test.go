package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizedEmail(t *testing.T) {
	assert.Equal(t, "a**@*******.com", SanitizedEmail("ana@example.com"))
	assert.Equal(t, "x@host", SanitizedEmail("x@host"))
	assert.Equal(t, "[invalid-email]", SanitizedEmail("nope"))
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("refresh_token=abc"))
	assert.True(t, SanitizeQueryString("Email=a@b.co"))
	assert.False(t, SanitizeQueryString("page=2&limit=10"))
}

func TestAuditLogger_MasksEmailAndSetsLevel(t *testing.T) {
	var buf bytes.Buffer
	audit := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	audit.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	audit.LogAuthAttempt(context.Background(), AuditEvent{
		EventType:     EventLogin,
		SessionID:     "abc",
		Email:         "ana@example.com",
		Success:       false,
		FailureReason: "invalid credentials",
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "login", entry["event_type"])
	assert.Equal(t, "a**@*******.com", entry["email"])
	assert.Equal(t, "2024-01-02T03:04:05Z", entry["timestamp"])
	assert.Equal(t, "invalid credentials", entry["failure_reason"])
}
