package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieConfig_SignedValueRoundTrip(t *testing.T) {
	config := CookieConfig{Secret: []byte("0123456789abcdef0123456789abcdef")}

	value, err := config.SignedValue("6f1c2b0e-3a4d-4e5f-8a9b-0c1d2e3f4a5b")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(value, "6f1c2b0e-3a4d-4e5f-8a9b-0c1d2e3f4a5b."))

	id, err := config.ParseValue(value)
	require.NoError(t, err)
	assert.Equal(t, "6f1c2b0e-3a4d-4e5f-8a9b-0c1d2e3f4a5b", id)
}

func TestCookieConfig_ParseValueRejectsForgeries(t *testing.T) {
	config := CookieConfig{Secret: []byte("0123456789abcdef0123456789abcdef")}
	other := CookieConfig{Secret: []byte("fedcba9876543210fedcba9876543210")}

	signed, err := config.SignedValue("11111111-2222-4333-8444-555555555555")
	require.NoError(t, err)
	foreign, err := other.SignedValue("11111111-2222-4333-8444-555555555555")
	require.NoError(t, err)

	tests := []struct {
		name  string
		value string
	}{
		{"bare id", "11111111-2222-4333-8444-555555555555"},
		{"empty", ""},
		{"signature only", signed[strings.LastIndexByte(signed, '.'):]},
		{"other id with copied signature", "99999999-2222-4333-8444-555555555555" + signed[strings.LastIndexByte(signed, '.'):]},
		{"signed with another key", foreign},
		{"bad encoding", "11111111-2222-4333-8444-555555555555.!!!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.ParseValue(tt.value)
			assert.ErrorIs(t, err, ErrInvalidSessionCookie)
		})
	}
}

func TestSetSessionCookie(t *testing.T) {
	config := CookieConfig{Name: "sv_session", Secure: true, SameSite: "lax", Secret: []byte("0123456789abcdef0123456789abcdef")}

	w := httptest.NewRecorder()
	require.NoError(t, SetSessionCookie(w, "abc", config))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	id, err := GetSessionCookie(req, config)
	require.NoError(t, err)
	assert.Equal(t, "abc", id)
}
