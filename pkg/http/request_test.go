package http_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	pkghttp "github.com/serenvoice/gateway/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustIPConfig(t *testing.T, cidrs ...string) *pkghttp.IPConfig {
	t.Helper()
	cfg, err := pkghttp.NewIPConfig(cidrs)
	require.NoError(t, err)
	return cfg
}

func TestExtractClientIP_DirectConnection_IgnoresHeaders(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.10:54321"
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	req.Header.Set("X-Real-IP", "192.168.1.1")

	ip := pkghttp.ExtractClientIP(req, mustIPConfig(t, "10.0.0.0/8", "127.0.0.1/32"))
	assert.Equal(t, "203.0.113.10", ip)
}

func TestExtractClientIP_TrustedProxy_UsesXForwardedFor(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.5:54321"
	req.Header.Set("X-Forwarded-For", "203.0.113.42, 203.0.113.43, 10.0.0.5")

	ip := pkghttp.ExtractClientIP(req, mustIPConfig(t, "10.0.0.0/8"))
	assert.Equal(t, "203.0.113.42", ip, "first valid address is the client")
}

func TestExtractClientIP_TrustedProxy_FallsBackToXRealIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "[::1]:54321"
	req.Header.Set("X-Real-IP", "2001:db8::1")

	ip := pkghttp.ExtractClientIP(req, mustIPConfig(t, "::1/128"))
	assert.Equal(t, "2001:db8::1", ip)
}

func TestExtractClientIP_NoConfig_DefaultsSecurely(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.10:54321"
	req.Header.Set("X-Forwarded-For", "127.0.0.1")

	assert.Equal(t, "203.0.113.10", pkghttp.ExtractClientIP(req, nil))
	assert.Equal(t, "203.0.113.10", pkghttp.ExtractClientIP(req, mustIPConfig(t)))
}

func TestNewIPConfig_RejectsInvalidCIDR(t *testing.T) {
	_, err := pkghttp.NewIPConfig([]string{"invalid-cidr-range"})
	assert.Error(t, err)
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Email string `json:"email"`
	}

	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"a@b.co"}`))
	require.NoError(t, pkghttp.DecodeJSON(httptest.NewRecorder(), req, &v))
	assert.Equal(t, "a@b.co", v.Email)

	req = httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"a@b.co"}{"x":1}`))
	assert.Error(t, pkghttp.DecodeJSON(httptest.NewRecorder(), req, &v))

	req = httptest.NewRequest("POST", "/", strings.NewReader(`not json`))
	assert.Error(t, pkghttp.DecodeJSON(httptest.NewRecorder(), req, &v))
}

func TestIsCleanPath(t *testing.T) {
	tests := []struct {
		path  string
		clean bool
	}{
		{"/", true},
		{"/sesiones-juego", true},
		{"/sesiones-juego/", true},
		{"/sesiones-juego/activas/3", true},
		{"/sesiones-juego/../usuarios", false},
		{"/sesiones-juego/./activas", false},
		{"/sesiones-juego//usuarios", false},
		{"/sesiones-juego/..", false},
		{"sesiones-juego", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.clean, pkghttp.IsCleanPath(tt.path))
		})
	}
}
