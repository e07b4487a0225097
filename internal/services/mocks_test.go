package services_test

import (
	"context"

	"github.com/serenvoice/gateway/internal/models"
)

// MockAuthBackend implements AuthBackend for testing
type MockAuthBackend struct {
	LoginFunc                func(ctx context.Context, req models.LoginRequest) (*models.TokenBundle, error)
	RegisterFunc             func(ctx context.Context, req models.RegisterRequest) (*models.TokenBundle, error)
	GoogleLoginFunc          func(ctx context.Context, req models.GoogleLoginRequest) (*models.TokenBundle, error)
	RefreshFunc              func(ctx context.Context, refreshToken string) (*models.TokenBundle, error)
	RequestPasswordResetFunc func(ctx context.Context, req models.PasswordResetRequest) (string, error)

	LoginCalls int
}

func (m *MockAuthBackend) Login(ctx context.Context, req models.LoginRequest) (*models.TokenBundle, error) {
	m.LoginCalls++
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, req)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockAuthBackend) Register(ctx context.Context, req models.RegisterRequest) (*models.TokenBundle, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, req)
	}
	return nil, models.ErrBadRequest
}

func (m *MockAuthBackend) GoogleLogin(ctx context.Context, req models.GoogleLoginRequest) (*models.TokenBundle, error) {
	if m.GoogleLoginFunc != nil {
		return m.GoogleLoginFunc(ctx, req)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockAuthBackend) Refresh(ctx context.Context, refreshToken string) (*models.TokenBundle, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockAuthBackend) RequestPasswordReset(ctx context.Context, req models.PasswordResetRequest) (string, error) {
	if m.RequestPasswordResetFunc != nil {
		return m.RequestPasswordResetFunc(ctx, req)
	}
	return "", nil
}
