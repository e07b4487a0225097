package auth

import (
	"sync"
	"time"

	"github.com/serenvoice/gateway/internal/clock"
)

// ExpiringSoonWindow is how close to expiry a token counts as expiring soon
const ExpiringSoonWindow = 5 * time.Minute

// TokenListener receives the current access token after every mutation ("" when cleared)
type TokenListener func(accessToken string)

// SecureStorage holds a session's access and refresh tokens in memory only.
// Expiry is checked lazily on read; there is no background timer.
type SecureStorage struct {
	clock clock.Clock

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    *time.Time

	listenersMu sync.Mutex
	listeners   map[uint64]TokenListener
	nextID      uint64
}

// NewSecureStorage creates an empty token store
func NewSecureStorage(c clock.Clock) *SecureStorage {
	if c == nil {
		c = clock.New()
	}
	return &SecureStorage{
		clock:     c,
		listeners: make(map[uint64]TokenListener),
	}
}

// SetAccessToken stores token. A zero expiresIn leaves the token without expiry.
func (s *SecureStorage) SetAccessToken(token string, expiresIn time.Duration) {
	s.mu.Lock()
	s.accessToken = token
	if expiresIn > 0 {
		expiry := s.clock.Now().Add(expiresIn)
		s.expiresAt = &expiry
	} else {
		s.expiresAt = nil
	}
	s.mu.Unlock()

	s.notify(token)
}

// AccessToken returns the stored token, or "" once it has expired.
// Reading an expired token clears the access token state.
func (s *SecureStorage) AccessToken() string {
	s.mu.Lock()
	if s.expiresAt != nil && !s.clock.Now().Before(*s.expiresAt) {
		s.accessToken = ""
		s.expiresAt = nil
		s.mu.Unlock()
		s.notify("")
		return ""
	}
	token := s.accessToken
	s.mu.Unlock()
	return token
}

// SetRefreshToken stores the refresh token. Its lifetime is owned by the backend.
func (s *SecureStorage) SetRefreshToken(token string) {
	s.mu.Lock()
	s.refreshToken = token
	current := s.accessToken
	s.mu.Unlock()

	s.notify(current)
}

func (s *SecureStorage) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshToken
}

// HasValidToken reports whether an unexpired access token is stored
func (s *SecureStorage) HasValidToken() bool {
	return s.AccessToken() != ""
}

// IsTokenExpiringSoon reports whether the access token expires within ExpiringSoonWindow
func (s *SecureStorage) IsTokenExpiringSoon() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.expiresAt == nil {
		return false
	}
	return s.clock.Now().Add(ExpiringSoonWindow).After(*s.expiresAt)
}

// ExpiresAt returns the access token expiry, or nil when none is tracked
func (s *SecureStorage) ExpiresAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.expiresAt == nil {
		return nil
	}
	expiry := *s.expiresAt
	return &expiry
}

// ClearTokens removes every stored credential
func (s *SecureStorage) ClearTokens() {
	s.mu.Lock()
	s.accessToken = ""
	s.refreshToken = ""
	s.expiresAt = nil
	s.mu.Unlock()

	s.notify("")
}

// Subscribe registers listener and returns a function that removes it
func (s *SecureStorage) Subscribe(listener TokenListener) func() {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			delete(s.listeners, id)
			s.listenersMu.Unlock()
		})
	}
}

func (s *SecureStorage) notify(token string) {
	s.listenersMu.Lock()
	listeners := make([]TokenListener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.listenersMu.Unlock()

	for _, l := range listeners {
		l(token)
	}
}
