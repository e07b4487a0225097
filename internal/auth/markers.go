package auth

import (
	"sort"
	"sync"
)

// Legacy session marker keys kept for clients on the compatibility path
const (
	MarkerToken     = "token"
	MarkerUser      = "user"
	MarkerRoles     = "roles"
	MarkerUserRole  = "userRole"
	MarkerSessionID = "session_id"
)

// LocalMarkers is the per-session key/value area that mirrors the
// client's local session markers. It is separate from SecureStorage.
type LocalMarkers struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewLocalMarkers() *LocalMarkers {
	return &LocalMarkers{values: make(map[string]string)}
}

func (m *LocalMarkers) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

func (m *LocalMarkers) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the stored keys in sorted order
func (m *LocalMarkers) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clear removes every marker
func (m *LocalMarkers) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string]string)
}
