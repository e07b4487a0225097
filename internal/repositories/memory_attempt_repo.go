package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/serenvoice/gateway/internal/clock"
	"github.com/serenvoice/gateway/internal/models"
)

type memoryAttemptEntry struct {
	state     models.AttemptState
	expiresAt time.Time
}

// MemoryAttemptRepository keeps rate limiter state in process memory.
// State survives a client reload but not a gateway restart.
type MemoryAttemptRepository struct {
	mu      sync.Mutex
	clock   clock.Clock
	entries map[string]memoryAttemptEntry
}

// NewMemoryAttemptRepository creates an empty MemoryAttemptRepository
func NewMemoryAttemptRepository(c clock.Clock) *MemoryAttemptRepository {
	if c == nil {
		c = clock.New()
	}
	return &MemoryAttemptRepository{
		clock:   c,
		entries: make(map[string]memoryAttemptEntry),
	}
}

// Load returns the state stored under key, or nil if absent or expired
func (r *MemoryAttemptRepository) Load(ctx context.Context, key string) (*models.AttemptState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok {
		return nil, nil
	}
	if !r.clock.Now().Before(entry.expiresAt) {
		delete(r.entries, key)
		return nil, nil
	}

	return copyAttemptState(&entry.state), nil
}

// Save stores state under key until ttl elapses
func (r *MemoryAttemptRepository) Save(ctx context.Context, key string, state *models.AttemptState, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[key] = memoryAttemptEntry{
		state:     *copyAttemptState(state),
		expiresAt: r.clock.Now().Add(ttl),
	}
	return nil
}

// Delete removes the state stored under key
func (r *MemoryAttemptRepository) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, key)
	return nil
}

// DeleteExpired drops expired entries and returns how many were removed
func (r *MemoryAttemptRepository) DeleteExpired(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	var removed int64
	for key, entry := range r.entries {
		if !now.Before(entry.expiresAt) {
			delete(r.entries, key)
			removed++
		}
	}
	return removed, nil
}

func copyAttemptState(state *models.AttemptState) *models.AttemptState {
	out := &models.AttemptState{Attempts: append([]int64(nil), state.Attempts...)}
	if state.LockoutEnd != nil {
		end := *state.LockoutEnd
		out.LockoutEnd = &end
	}
	return out
}
