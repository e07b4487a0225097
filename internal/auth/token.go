package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/serenvoice/gateway/internal/models"
)

// TokenInspector reads claims from access tokens issued by the SerenVoice backend.
// With a shared secret the HS256 signature is verified; without one the
// claims are only decoded, since the backend remains the authority.
type TokenInspector struct {
	secret string
	parser *jwt.Parser
}

// NewTokenInspector creates a TokenInspector. secret may be empty.
func NewTokenInspector(secret string) *TokenInspector {
	return &TokenInspector{
		secret: secret,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// Inspect returns the claims of tokenString
func (ti *TokenInspector) Inspect(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	if ti.secret == "" {
		if _, _, err := ti.parser.ParseUnverified(tokenString, claims); err != nil {
			return nil, fmt.Errorf("failed to decode token: %w", err)
		}
		return claims, nil
	}

	token, err := ti.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(ti.secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	return claims, nil
}

// Enrich fills the gaps in bundle from the access token claims:
// expiry when expires_in is missing, and roles when the backend sent none.
// Tokens that cannot be read leave the bundle unchanged.
func (ti *TokenInspector) Enrich(bundle *models.TokenBundle, now time.Time) {
	if bundle == nil || bundle.AccessToken == "" {
		return
	}

	claims, err := ti.Inspect(bundle.AccessToken)
	if err != nil {
		return
	}

	if bundle.ExpiresIn <= 0 && claims.ExpiresAt != nil {
		if remaining := claims.ExpiresAt.Time.Sub(now); remaining > 0 {
			bundle.ExpiresIn = int64(remaining / time.Second)
		}
	}

	if len(bundle.Roles) == 0 {
		switch {
		case len(claims.Roles) > 0:
			bundle.Roles = claims.Roles
		case claims.Role != "":
			bundle.Roles = []string{claims.Role}
		}
	}

	if bundle.User == nil && claims.UserID != "" {
		bundle.User = &models.User{ID: claims.UserID, Email: claims.Email}
	}
}
