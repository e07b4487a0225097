package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/serenvoice/gateway/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signTestToken(t *testing.T, secret string, claims *models.TokenClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestTokenInspector_VerifiesWithSecret(t *testing.T) {
	secret := "serenvoice-shared-secret"
	tokenString := signTestToken(t, secret, &models.TokenClaims{
		UserID: "42",
		Email:  "ana@example.com",
		Roles:  []string{models.RoleAdmin},
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := NewTokenInspector(secret).Inspect(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.UserID)
	assert.Equal(t, []string{models.RoleAdmin}, claims.Roles)

	_, err = NewTokenInspector("another-secret-value").Inspect(tokenString)
	assert.Error(t, err)
}

func TestTokenInspector_DecodesWithoutSecret(t *testing.T) {
	tokenString := signTestToken(t, "whatever-the-backend-uses", &models.TokenClaims{
		UserID: "7",
		Role:   models.RoleUser,
	})

	claims, err := NewTokenInspector("").Inspect(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "7", claims.UserID)
	assert.Equal(t, models.RoleUser, claims.Role)
}

func TestTokenInspector_RejectsGarbage(t *testing.T) {
	_, err := NewTokenInspector("").Inspect("not-a-jwt")
	assert.Error(t, err)
}

func TestTokenInspector_EnrichFillsMissingFields(t *testing.T) {
	now := time.Now()
	tokenString := signTestToken(t, "k", &models.TokenClaims{
		UserID: "9",
		Email:  "luis@example.com",
		Role:   models.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(30 * time.Minute)),
		},
	})

	bundle := &models.TokenBundle{AccessToken: tokenString}
	NewTokenInspector("").Enrich(bundle, now)

	assert.InDelta(t, 1800, bundle.ExpiresIn, 2)
	assert.Equal(t, []string{models.RoleUser}, bundle.Roles)
	require.NotNil(t, bundle.User)
	assert.Equal(t, "9", bundle.User.ID)
}

func TestTokenInspector_EnrichKeepsBackendValues(t *testing.T) {
	tokenString := signTestToken(t, "k", &models.TokenClaims{
		UserID: "9",
		Role:   models.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(30 * time.Minute)),
		},
	})

	bundle := &models.TokenBundle{
		AccessToken: tokenString,
		ExpiresIn:   60,
		Roles:       []string{models.RoleAdmin},
		User:        &models.User{ID: "9", Name: "Ana"},
	}
	NewTokenInspector("").Enrich(bundle, time.Now())

	assert.Equal(t, int64(60), bundle.ExpiresIn)
	assert.Equal(t, []string{models.RoleAdmin}, bundle.Roles)
	assert.Equal(t, "Ana", bundle.User.Name)
}
