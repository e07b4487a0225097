package services

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/serenvoice/gateway/internal/clock"
	"github.com/serenvoice/gateway/internal/models"
)

// SessionRegistryConfig holds the settings applied to every new session
type SessionRegistryConfig struct {
	IdleTimeout    time.Duration
	WarningBefore  time.Duration
	TimeoutEnabled bool
	Profiles       map[Profile]RateLimitConfig
	RemoteLogout   LogoutFunc
}

// SessionRegistry owns the AuthSessions of all connected clients
type SessionRegistry struct {
	config SessionRegistryConfig
	store  AttemptStore
	clock  clock.Clock
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*AuthSession
}

// NewSessionRegistry creates an empty registry. store may be nil.
func NewSessionRegistry(config SessionRegistryConfig, store AttemptStore, clk clock.Clock, logger *slog.Logger) *SessionRegistry {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionRegistry{
		config:   config,
		store:    store,
		clock:    clk,
		logger:   logger,
		sessions: make(map[string]*AuthSession),
	}
}

// Create starts a new anonymous session under a fresh id
func (r *SessionRegistry) Create() *AuthSession {
	return r.create(uuid.NewString())
}

// Restore returns the session for id, recreating it under the same id when
// the registry has forgotten it. Limiter state persisted under that id is
// picked up again. Ids that are not UUIDs get a fresh session instead.
// Callers pass only ids read from a verified session cookie.
func (r *SessionRegistry) Restore(id string) *AuthSession {
	if s, err := r.Get(id); err == nil {
		return s
	}
	if _, err := uuid.Parse(id); err != nil {
		return r.Create()
	}
	return r.create(id)
}

func (r *SessionRegistry) create(id string) *AuthSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[id]; ok {
		return existing
	}

	s := NewAuthSession(AuthSessionConfig{
		ID:             id,
		IdleTimeout:    r.config.IdleTimeout,
		WarningBefore:  r.config.WarningBefore,
		TimeoutEnabled: r.config.TimeoutEnabled,
		Profiles:       r.config.Profiles,
		RemoteLogout:   r.config.RemoteLogout,
	}, r.store, r.clock, r.logger)

	s.SetNavigator(func(to, message string) {
		r.logger.Info("session redirect queued",
			slog.String("session_id", s.ID()),
			slog.String("to", to))
		s.SetRedirect(to, message)
	})

	r.sessions[id] = s
	return s
}

// Get returns the session for id and marks it as seen
func (r *SessionRegistry) Get(id string) (*AuthSession, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return nil, models.ErrNoSession
	}
	s.Touch()
	return s, nil
}

// Rotate moves s to a fresh id and returns it. The old id no longer
// resolves to s.
func (r *SessionRegistry) Rotate(s *AuthSession) string {
	newID := uuid.NewString()

	r.mu.Lock()
	oldID := s.ID()
	if current, ok := r.sessions[oldID]; ok && current == s {
		delete(r.sessions, oldID)
	}
	s.setID(newID)
	r.sessions[newID] = s
	r.mu.Unlock()

	r.logger.Info("session id rotated",
		slog.String("old_session_id", oldID),
		slog.String("session_id", newID))
	return newID
}

// Remove closes and forgets the session
func (r *SessionRegistry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		s.Close()
	}
}

// Len returns the number of live sessions
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep removes anonymous sessions not seen for idleFor and returns how
// many were removed. Authenticated sessions end through their idle timer.
func (r *SessionRegistry) Sweep(idleFor time.Duration) int {
	cutoff := r.clock.Now().Add(-idleFor)

	r.mu.Lock()
	var stale []*AuthSession
	for id, s := range r.sessions {
		if s.IsAuthenticated() || s.LastSeen().After(cutoff) {
			continue
		}
		stale = append(stale, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	return len(stale)
}

// CloseAll closes every session, used on shutdown
func (r *SessionRegistry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*AuthSession)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
