package models

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the claims the SerenVoice backend places in access tokens
type TokenClaims struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email,omitempty"`
	Roles  []string `json:"roles,omitempty"`
	Role   string   `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// User is the profile returned by the backend alongside a token bundle
type User struct {
	ID       string `json:"id"`
	Name     string `json:"nombre,omitempty"`
	LastName string `json:"apellido,omitempty"`
	Email    string `json:"email"`
}

// TokenBundle is the payload of a successful login, register or refresh call
type TokenBundle struct {
	AccessToken  string   `json:"token"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	ExpiresIn    int64    `json:"expires_in,omitempty"` // seconds
	SessionID    string   `json:"session_id,omitempty"` // backend-side session, closed on logout
	User         *User    `json:"user,omitempty"`
	Roles        []string `json:"roles,omitempty"`
}

// Role names used by the backend
const (
	RoleAdmin = "admin"
	RoleUser  = "usuario"
)

// HasRole reports whether roles contains role
func HasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// LoginRequest is the email/password login payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

// RegisterRequest is the account registration payload
type RegisterRequest struct {
	Name     string `json:"nombre" validate:"required,max=100"`
	LastName string `json:"apellido" validate:"omitempty,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// GoogleLoginRequest carries the Google identity credential
type GoogleLoginRequest struct {
	Credential string `json:"credential" validate:"required"`
}

// PasswordResetRequest asks the backend to send a reset email
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

// NormalizeEmail trims and lowercases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *LoginRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
}

func (r *RegisterRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
	r.Name = strings.TrimSpace(r.Name)
	r.LastName = strings.TrimSpace(r.LastName)
}

func (r *PasswordResetRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
}
