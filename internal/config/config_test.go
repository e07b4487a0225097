package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BACKEND_URL", "http://localhost:5000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Session.WarningBefore)
	assert.True(t, cfg.Session.TimeoutEnabled)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "log", cfg.Mail.Provider)
	assert.Equal(t, "sv_session", cfg.Cookie.Name)
	assert.Contains(t, cfg.Server.AllowedOrigins, "http://localhost:5173")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BACKEND_URL", "http://localhost:5000")
	t.Setenv("PORT", "9090")
	t.Setenv("SESSION_IDLE_TIMEOUT", "15m")
	t.Setenv("SESSION_WARNING_BEFORE", "2m")
	t.Setenv("ALLOWED_ORIGINS", "https://app.serenvoice.app, https://serenvoice.app")
	t.Setenv("ATTEMPT_STORE", "redis")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Session.WarningBefore)
	assert.Equal(t, []string{"https://app.serenvoice.app", "https://serenvoice.app"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "redis", cfg.Storage.Backend)
}

func TestLoadRequiresBackendURL(t *testing.T) {
	t.Setenv("BACKEND_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without url", map[string]string{"ATTEMPT_STORE": "postgres"}},
		{"unknown store", map[string]string{"ATTEMPT_STORE": "etcd"}},
		{"smtp without host", map[string]string{"MAIL_PROVIDER": "smtp"}},
		{"warning longer than timeout", map[string]string{"SESSION_WARNING_BEFORE": "45m"}},
		{"bad samesite", map[string]string{"COOKIE_SAMESITE": "sometimes"}},
		{"insecure cookie in production", map[string]string{"ENV": "production", "COOKIE_SECURE": "false"}},
		{"short secret in production", map[string]string{"ENV": "production", "TOKEN_SECRET": "short", "SESSION_SECRET": strings.Repeat("s", 32)}},
		{"no session secret in production", map[string]string{"ENV": "production"}},
		{"invalid duration", map[string]string{"SESSION_IDLE_TIMEOUT": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BACKEND_URL", "http://localhost:5000")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
