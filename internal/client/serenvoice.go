// Package client talks to the SerenVoice REST backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/serenvoice/gateway/internal/models"
	pkghttp "github.com/serenvoice/gateway/pkg/http"
	"golang.org/x/time/rate"
)

// Config holds backend client settings
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64 // outbound throttle, 0 disables it
	Burst             int
}

// APIError is a non-success reply from the backend. It unwraps to the
// models sentinel matching the status code.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// envelope is the backend response shape {success, data|error, message}
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

// Client is safe for concurrent use
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// New creates a backend client
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c, nil
}

// Login exchanges credentials for a token bundle
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.TokenBundle, error) {
	var bundle models.TokenBundle
	if err := c.call(ctx, http.MethodPost, "/auth/login", "", req, &bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}

// Register creates an account and returns its token bundle
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.TokenBundle, error) {
	var bundle models.TokenBundle
	if err := c.call(ctx, http.MethodPost, "/auth/register", "", req, &bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}

// GoogleLogin exchanges a Google credential for a token bundle
func (c *Client) GoogleLogin(ctx context.Context, req models.GoogleLoginRequest) (*models.TokenBundle, error) {
	var bundle models.TokenBundle
	if err := c.call(ctx, http.MethodPost, "/auth/google", "", req, &bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}

// Refresh exchanges a refresh token for a new access token
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*models.TokenBundle, error) {
	body := map[string]string{"refresh_token": refreshToken}

	var bundle models.TokenBundle
	if err := c.call(ctx, http.MethodPost, "/auth/refresh", "", body, &bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}

// Logout closes the backend session
func (c *Client) Logout(ctx context.Context, accessToken, sessionID string) error {
	var body any
	if sessionID != "" {
		body = map[string]string{"session_id": sessionID}
	}
	return c.call(ctx, http.MethodPost, "/auth/logout", accessToken, body, nil)
}

// RequestPasswordReset asks the backend to email a reset link and returns its message
func (c *Client) RequestPasswordReset(ctx context.Context, req models.PasswordResetRequest) (string, error) {
	var reply struct {
		Message string `json:"message"`
	}
	if err := c.call(ctx, http.MethodPost, "/auth/password-reset", "", req, &reply); err != nil {
		return "", err
	}
	return reply.Message, nil
}

// Forward relays a request to the backend with the bearer token attached.
// The caller owns the returned response body.
func (c *Client) Forward(ctx context.Context, method, path, rawQuery string, body io.Reader, header http.Header, accessToken string) (*http.Response, error) {
	if !pkghttp.IsCleanPath(path) {
		return nil, fmt.Errorf("invalid backend path %q: %w", path, models.ErrBadRequest)
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, rawQuery), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for _, name := range []string{"Content-Type", "Accept", "Accept-Language", "X-Request-Id"} {
		if v := header.Get(name); v != "" {
			req.Header.Set(name, v)
		}
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("backend request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Any("error", err))
		return nil, fmt.Errorf("%s %s: %w", method, path, models.ErrBackendUnavailable)
	}
	return resp, nil
}

func (c *Client) call(ctx context.Context, method, path, accessToken string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	header := http.Header{}
	header.Set("Accept", "application/json")
	if body != nil {
		header.Set("Content-Type", "application/json")
	}

	resp, err := c.Forward(ctx, method, path, "", body, header, accessToken)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeEnvelope(resp, out)
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("backend throttle: %w", err)
	}
	return nil
}

func (c *Client) endpoint(path, rawQuery string) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = rawQuery
	return u.String()
}

func decodeEnvelope(resp *http.Response, out any) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read backend response: %w", err)
	}

	var env envelope
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &env); err != nil {
			if resp.StatusCode >= 400 {
				return &APIError{StatusCode: resp.StatusCode, Err: statusError(resp.StatusCode)}
			}
			return fmt.Errorf("failed to decode backend response: %w", err)
		}
	}

	if resp.StatusCode >= 400 || !env.Success {
		status := resp.StatusCode
		if status < 400 {
			status = http.StatusBadRequest
		}
		return &APIError{
			StatusCode: status,
			Message:    env.message(),
			Err:        statusError(status),
		}
	}

	if out == nil {
		return nil
	}
	// some endpoints put their payload at the top level
	payload := env.Data
	if len(payload) == 0 || string(payload) == "null" {
		payload = data
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("failed to decode backend data: %w", err)
	}
	return nil
}

func (e envelope) message() string {
	if len(e.Error) > 0 {
		var s string
		if err := json.Unmarshal(e.Error, &s); err == nil && s != "" {
			return s
		}
		var obj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(e.Error, &obj); err == nil && obj.Message != "" {
			return obj.Message
		}
	}
	return e.Message
}

// statusError maps a backend status code to a models sentinel
func statusError(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return models.ErrUnauthorized
	case status == http.StatusForbidden:
		return models.ErrForbidden
	case status == http.StatusNotFound:
		return models.ErrNotFound
	case status == http.StatusConflict:
		return models.ErrConflict
	case status == http.StatusTooManyRequests:
		return models.ErrRateLimitExceeded
	case status >= 500:
		return models.ErrBackendUnavailable
	default:
		return models.ErrBadRequest
	}
}

// IsUnavailable reports whether err means the backend could not be reached
func IsUnavailable(err error) bool {
	return errors.Is(err, models.ErrBackendUnavailable)
}
