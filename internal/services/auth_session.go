package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/serenvoice/gateway/internal/auth"
	"github.com/serenvoice/gateway/internal/clock"
	"github.com/serenvoice/gateway/internal/models"
)

// TimeoutRedirectMessage is shown on the login page after an idle timeout
const TimeoutRedirectMessage = "Your session expired due to inactivity. Please sign in again."

// LogoutFunc invalidates a session on the backend
type LogoutFunc func(ctx context.Context, accessToken, backendSessionID string) error

// Navigator sends the client to a route with an explanatory message
type Navigator func(to, message string)

// AuthSessionConfig configures one AuthSession
type AuthSessionConfig struct {
	ID             string
	IdleTimeout    time.Duration
	WarningBefore  time.Duration
	TimeoutEnabled bool
	Profiles       map[Profile]RateLimitConfig // defaults to DefaultProfiles
	RemoteLogout   LogoutFunc
	LogoutTimeout  time.Duration // bound on the remote logout call, default 5s
}

// AuthSession is the server-side auth state of one client. It composes the
// client's token storage, local markers, idle tracker and rate limiters.
type AuthSession struct {
	storage      *auth.SecureStorage
	markers      *auth.LocalMarkers
	tracker      *SessionTimeout
	store        AttemptStore
	profiles     map[Profile]RateLimitConfig
	remoteLogout LogoutFunc
	logoutWait   time.Duration
	clock        clock.Clock
	logger       *slog.Logger

	mu               sync.Mutex
	id               string
	user             *models.User
	roles            []string
	backendSessionID string
	lastToken        string // survives the tracker clearing storage on timeout
	warningMinutes   int
	navigate         Navigator
	redirect         *models.Redirect
	limiters         map[Profile]*RateLimiter
	lastSeen         time.Time
	closed           bool
}

// NewAuthSession creates an anonymous session and starts its idle tracker.
// store may be nil, in which case limiter state is not persisted.
func NewAuthSession(config AuthSessionConfig, store AttemptStore, clk clock.Clock, logger *slog.Logger) *AuthSession {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.Profiles == nil {
		config.Profiles = DefaultProfiles
	}
	if config.LogoutTimeout <= 0 {
		config.LogoutTimeout = 5 * time.Second
	}

	s := &AuthSession{
		id:           config.ID,
		storage:      auth.NewSecureStorage(clk),
		markers:      auth.NewLocalMarkers(),
		store:        store,
		profiles:     config.Profiles,
		remoteLogout: config.RemoteLogout,
		logoutWait:   config.LogoutTimeout,
		clock:        clk,
		logger:       logger.With(slog.String("session_id", config.ID)),
		limiters:     make(map[Profile]*RateLimiter),
		lastSeen:     clk.Now(),
	}

	s.tracker = NewSessionTimeout(SessionTimeoutConfig{
		Timeout:   config.IdleTimeout,
		Warning:   config.WarningBefore,
		Enabled:   config.TimeoutEnabled,
		OnWarning: s.onWarning,
		OnTimeout: s.onTimeout,
	}, s.storage, s.markers, clk, s.logger)
	s.tracker.Start()

	return s
}

// ID returns the opaque session id
func (s *AuthSession) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *AuthSession) setID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
}

// Login stores the token bundle, updates user and roles, writes the
// legacy markers and restarts the idle timer with the warning cleared.
func (s *AuthSession) Login(bundle *models.TokenBundle) {
	s.storage.SetAccessToken(bundle.AccessToken, time.Duration(bundle.ExpiresIn)*time.Second)
	if bundle.RefreshToken != "" {
		s.storage.SetRefreshToken(bundle.RefreshToken)
	}

	s.mu.Lock()
	s.user = bundle.User
	s.roles = append([]string(nil), bundle.Roles...)
	s.backendSessionID = bundle.SessionID
	s.lastToken = bundle.AccessToken
	s.warningMinutes = 0
	s.mu.Unlock()

	s.writeMarkers(bundle)
	s.tracker.ResetTimer()
}

// ApplyRefresh replaces the tokens after a refresh. User and roles are
// kept unless the bundle carries new ones.
func (s *AuthSession) ApplyRefresh(bundle *models.TokenBundle) {
	s.storage.SetAccessToken(bundle.AccessToken, time.Duration(bundle.ExpiresIn)*time.Second)
	if bundle.RefreshToken != "" {
		s.storage.SetRefreshToken(bundle.RefreshToken)
	}
	s.markers.Set(auth.MarkerToken, bundle.AccessToken)

	s.mu.Lock()
	s.lastToken = bundle.AccessToken
	if bundle.User != nil {
		s.user = bundle.User
	}
	if len(bundle.Roles) > 0 {
		s.roles = append([]string(nil), bundle.Roles...)
	}
	s.mu.Unlock()
}

// ExtendSession clears the warning and restarts the idle timer
func (s *AuthSession) ExtendSession() error {
	if !s.storage.HasValidToken() {
		return models.ErrNotAuthenticated
	}

	s.mu.Lock()
	s.warningMinutes = 0
	s.mu.Unlock()

	s.tracker.ResetTimer()
	return nil
}

// RecordActivity forwards a client interaction to the idle tracker
func (s *AuthSession) RecordActivity(event ActivityEvent) bool {
	if !s.tracker.RecordActivity(event) {
		return false
	}

	s.mu.Lock()
	s.warningMinutes = 0
	s.mu.Unlock()
	return true
}

// HandleVisibilityChange forwards a client visibility change to the idle tracker
func (s *AuthSession) HandleVisibilityChange(visible bool) {
	s.tracker.HandleVisibilityChange(visible)
}

// PerformLogout ends the authenticated session. The remote call is best
// effort: its failure is logged and local state is cleared regardless.
func (s *AuthSession) PerformLogout(ctx context.Context, reason models.LogoutReason) {
	s.mu.Lock()
	token := s.lastToken
	backendSID := s.backendSessionID
	s.mu.Unlock()

	if token != "" && s.remoteLogout != nil {
		callCtx, cancel := context.WithTimeout(ctx, s.logoutWait)
		if err := s.remoteLogout(callCtx, token, backendSID); err != nil {
			s.logger.Warn("remote logout failed",
				slog.String("reason", string(reason)),
				slog.Any("error", err))
		}
		cancel()
	}

	s.storage.ClearTokens()
	s.markers.Clear()

	s.mu.Lock()
	s.user = nil
	s.roles = nil
	s.backendSessionID = ""
	s.lastToken = ""
	s.warningMinutes = 0
	navigate := s.navigate
	s.mu.Unlock()

	// no token is left, so this only cancels pending timers
	s.tracker.ResetTimer()

	s.logger.Info("session logged out", slog.String("reason", string(reason)))

	if reason == models.LogoutTimeout && navigate != nil {
		navigate("/login", TimeoutRedirectMessage)
	}
}

// SetNavigator registers the function used to redirect after a timeout
func (s *AuthSession) SetNavigator(navigate Navigator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigate = navigate
}

// SetRedirect stores a redirect notice for the next status read
func (s *AuthSession) SetRedirect(to, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redirect = &models.Redirect{To: to, Message: message}
}

// TakeRedirect returns the pending redirect notice once
func (s *AuthSession) TakeRedirect() *models.Redirect {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.redirect
	s.redirect = nil
	return r
}

// Status returns the position in the auth state machine
func (s *AuthSession) Status() models.SessionStatus {
	if !s.storage.HasValidToken() {
		return models.SessionAnonymous
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.warningMinutes > 0 {
		return models.SessionWarning
	}
	return models.SessionAuthenticated
}

// Snapshot returns the client-visible view of the session
func (s *AuthSession) Snapshot() models.SessionSnapshot {
	status := s.Status()
	expiringSoon := s.storage.IsTokenExpiringSoon()

	snap := models.SessionSnapshot{
		Status:            status,
		TokenExpiringSoon: status != models.SessionAnonymous && expiringSoon,
		LastActivity:      s.tracker.LastActivity(),
	}

	if status == models.SessionAnonymous {
		return snap
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	snap.User = s.user
	snap.Roles = append([]string(nil), s.roles...)
	if status == models.SessionWarning {
		snap.WarningMinutesLeft = s.warningMinutes
	}
	return snap
}

// AccessToken returns the current access token, "" when absent or expired
func (s *AuthSession) AccessToken() string {
	return s.storage.AccessToken()
}

// RefreshToken returns the stored refresh token
func (s *AuthSession) RefreshToken() string {
	return s.storage.RefreshToken()
}

// IsAuthenticated reports whether the session holds a valid access token
func (s *AuthSession) IsAuthenticated() bool {
	return s.storage.HasValidToken()
}

// Roles returns the roles of the logged-in user
func (s *AuthSession) Roles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.roles...)
}

// User returns the logged-in user, nil when anonymous
func (s *AuthSession) User() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Marker reads a legacy session marker
func (s *AuthSession) Marker(key string) (string, bool) {
	return s.markers.Get(key)
}

// Limiter returns the session's rate limiter for profile, creating it on
// first use. Logout does not reset limiters.
func (s *AuthSession) Limiter(ctx context.Context, profile Profile) (*RateLimiter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limiter, ok := s.limiters[profile]; ok {
		return limiter, nil
	}
	if s.closed {
		return nil, models.ErrNoSession
	}

	config, ok := s.profiles[profile]
	if !ok {
		return nil, fmt.Errorf("unknown rate limit profile %q: %w", profile, models.ErrBadRequest)
	}
	config.StorageKey = s.id + ":" + StorageKeyFor(profile)

	limiter := NewRateLimiter(ctx, config, s.store, s.clock, s.logger)
	s.limiters[profile] = limiter
	return limiter, nil
}

// Touch records that the client used the session
func (s *AuthSession) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = s.clock.Now()
}

// LastSeen returns the last time the client used the session
func (s *AuthSession) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Close stops the idle tracker and every limiter timer
func (s *AuthSession) Close() {
	s.tracker.Stop()

	s.mu.Lock()
	limiters := make([]*RateLimiter, 0, len(s.limiters))
	for _, l := range s.limiters {
		limiters = append(limiters, l)
	}
	s.closed = true
	s.mu.Unlock()

	for _, l := range limiters {
		l.Close()
	}
}

func (s *AuthSession) onWarning(minutesLeft int) {
	s.mu.Lock()
	s.warningMinutes = minutesLeft
	s.mu.Unlock()

	s.logger.Info("session idle warning", slog.Int("minutes_left", minutesLeft))
}

func (s *AuthSession) onTimeout() {
	ctx, cancel := context.WithTimeout(context.Background(), s.logoutWait)
	defer cancel()
	s.PerformLogout(ctx, models.LogoutTimeout)
}

func (s *AuthSession) writeMarkers(bundle *models.TokenBundle) {
	s.markers.Set(auth.MarkerToken, bundle.AccessToken)

	if bundle.User != nil {
		if data, err := json.Marshal(bundle.User); err == nil {
			s.markers.Set(auth.MarkerUser, string(data))
		}
	}
	if len(bundle.Roles) > 0 {
		if data, err := json.Marshal(bundle.Roles); err == nil {
			s.markers.Set(auth.MarkerRoles, string(data))
		}
		s.markers.Set(auth.MarkerUserRole, primaryRole(bundle.Roles))
	}
	if bundle.SessionID != "" {
		s.markers.Set(auth.MarkerSessionID, bundle.SessionID)
	}
}

// primaryRole picks admin over any other role
func primaryRole(roles []string) string {
	for _, r := range roles {
		if strings.EqualFold(r, models.RoleAdmin) {
			return models.RoleAdmin
		}
	}
	return roles[0]
}
