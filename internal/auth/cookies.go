package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidSessionCookie is returned for cookie values this server did not sign
var ErrInvalidSessionCookie = errors.New("invalid session cookie")

// DefaultSessionCookieName is used when no cookie name is configured
const DefaultSessionCookieName = "sv_session"

// CookieConfig holds cookie configuration settings
type CookieConfig struct {
	Name     string
	Domain   string // Empty string = current host only
	Secure   bool   // HTTPS only
	SameSite string // "strict", "lax", or "none"
	MaxAge   time.Duration
	Secret   []byte // signs the session id, required
}

func (c CookieConfig) name() string {
	if c.Name == "" {
		return DefaultSessionCookieName
	}
	return c.Name
}

// SignedValue returns the cookie value for sessionID: the id and its
// HMAC-SHA256 signature, separated by a dot.
func (c CookieConfig) SignedValue(sessionID string) (string, error) {
	sig, err := jwt.SigningMethodHS256.Sign(sessionID, c.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session id: %w", err)
	}
	return sessionID + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// ParseValue verifies a cookie value produced by SignedValue and returns
// the session id.
func (c CookieConfig) ParseValue(value string) (string, error) {
	i := strings.LastIndexByte(value, '.')
	if i <= 0 {
		return "", ErrInvalidSessionCookie
	}
	id := value[:i]
	sig, err := base64.RawURLEncoding.DecodeString(value[i+1:])
	if err != nil {
		return "", ErrInvalidSessionCookie
	}
	if err := jwt.SigningMethodHS256.Verify(id, sig, c.Secret); err != nil {
		return "", ErrInvalidSessionCookie
	}
	return id, nil
}

// SetSessionCookie sets the signed session id in an httpOnly cookie
func SetSessionCookie(w http.ResponseWriter, sessionID string, config CookieConfig) error {
	value, err := config.SignedValue(sessionID)
	if err != nil {
		return err
	}

	cookie := &http.Cookie{
		Name:     config.name(),
		Value:    value,
		Path:     "/",
		Domain:   config.Domain,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	}
	if config.MaxAge > 0 {
		cookie.MaxAge = int(config.MaxAge / time.Second)
		cookie.Expires = time.Now().Add(config.MaxAge)
	}
	http.SetCookie(w, cookie)
	return nil
}

// GetSessionCookie retrieves and verifies the session id from cookies
func GetSessionCookie(r *http.Request, config CookieConfig) (string, error) {
	cookie, err := r.Cookie(config.name())
	if err != nil {
		return "", err
	}
	return config.ParseValue(cookie.Value)
}

// parseSameSite converts string to http.SameSite constant
func parseSameSite(sameSite string) http.SameSite {
	switch sameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
