package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/serenvoice/gateway/internal/clock"
	"github.com/serenvoice/gateway/internal/models"
)

// AttemptStore persists rate limiter state between gateway restarts.
// Load returns (nil, nil) when nothing is stored under key.
type AttemptStore interface {
	Load(ctx context.Context, key string) (*models.AttemptState, error)
	Save(ctx context.Context, key string, state *models.AttemptState, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RateLimitConfig holds the thresholds of one limiter
type RateLimitConfig struct {
	MaxAttempts int
	Window      time.Duration
	Lockout     time.Duration
	StorageKey  string // empty disables persistence
}

// Profile names a predefined limiter configuration
type Profile string

const (
	ProfileLogin         Profile = "login"
	ProfileRegister      Profile = "register"
	ProfilePasswordReset Profile = "password_reset"
	ProfileContact       Profile = "contact"
	ProfileAudioAnalysis Profile = "audio_analysis"
)

// DefaultProfiles differ only in thresholds; the algorithm is shared
var DefaultProfiles = map[Profile]RateLimitConfig{
	ProfileLogin:         {MaxAttempts: 5, Window: time.Minute, Lockout: 5 * time.Minute},
	ProfileRegister:      {MaxAttempts: 3, Window: 10 * time.Minute, Lockout: 15 * time.Minute},
	ProfilePasswordReset: {MaxAttempts: 3, Window: 15 * time.Minute, Lockout: 30 * time.Minute},
	ProfileContact:       {MaxAttempts: 5, Window: time.Hour, Lockout: time.Hour},
	ProfileAudioAnalysis: {MaxAttempts: 10, Window: time.Minute, Lockout: 2 * time.Minute},
}

// StorageKeyFor returns the persisted key of a profile
func StorageKeyFor(p Profile) string {
	return "rl_" + string(p)
}

// RateLimitError is returned by WithRateLimit when the wrapped call was refused
type RateLimitError struct {
	Result models.RateLimitResult
}

func (e *RateLimitError) Error() string {
	return e.Result.Message
}

func (e *RateLimitError) Unwrap() error {
	return models.ErrRateLimitExceeded
}

// RateLimiter is a sliding-window attempt counter with lockout
type RateLimiter struct {
	config RateLimitConfig
	store  AttemptStore
	clock  clock.Clock
	logger *slog.Logger

	mu          sync.Mutex
	attempts    []int64 // epoch ms, oldest first
	lockoutEnd  *time.Time
	unlockTimer clock.Timer
	unlockGen   uint64
}

// NewRateLimiter creates a limiter and restores any persisted state.
// store may be nil for a purely in-memory limiter.
func NewRateLimiter(ctx context.Context, config RateLimitConfig, store AttemptStore, clk clock.Clock, logger *slog.Logger) *RateLimiter {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}

	l := &RateLimiter{
		config: config,
		store:  store,
		clock:  clk,
		logger: logger,
	}
	l.restore(ctx)
	return l
}

// CheckLimit counts one attempt if allowed. Refusals are reported in the result.
func (l *RateLimiter) CheckLimit(ctx context.Context) models.RateLimitResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()

	if l.lockoutEnd != nil {
		if now.Before(*l.lockoutEnd) {
			remaining := l.lockoutEnd.Sub(now)
			return models.RateLimitResult{
				Allowed:    false,
				RetryAfter: ceilSeconds(remaining),
				Message:    lockoutMessage(remaining),
			}
		}
		l.unlockLocked(ctx)
	}

	l.pruneLocked(now)

	if len(l.attempts) >= l.config.MaxAttempts {
		end := now.Add(l.config.Lockout)
		l.lockoutEnd = &end
		l.armUnlockLocked(l.config.Lockout)
		l.persistLocked(ctx)

		l.logger.Warn("rate limit lockout",
			slog.String("key", l.config.StorageKey),
			slog.Int("attempts", len(l.attempts)),
			slog.Duration("lockout", l.config.Lockout))

		return models.RateLimitResult{
			Allowed:    false,
			RetryAfter: ceilSeconds(l.config.Lockout),
			Message:    lockoutMessage(l.config.Lockout),
		}
	}

	l.attempts = append(l.attempts, now.UnixMilli())
	l.persistLocked(ctx)

	return models.RateLimitResult{
		Allowed:   true,
		Remaining: l.config.MaxAttempts - len(l.attempts),
	}
}

// Reset clears attempts and lockout immediately
func (l *RateLimiter) Reset(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unlockLocked(ctx)
}

// RemainingLockoutTime formats the lockout remainder as "Xm Ys" or "Ys".
// Returns "" when the limiter is not locked.
func (l *RateLimiter) RemainingLockoutTime() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.lockoutEnd == nil {
		return ""
	}
	remaining := l.lockoutEnd.Sub(l.clock.Now())
	if remaining <= 0 {
		return ""
	}
	return formatRemaining(remaining)
}

// IsLocked reports whether a lockout is active
func (l *RateLimiter) IsLocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lockoutEnd != nil && l.clock.Now().Before(*l.lockoutEnd)
}

// AttemptCount returns the attempts recorded within the current window
func (l *RateLimiter) AttemptCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked(l.clock.Now())
	return len(l.attempts)
}

// Close cancels the auto-unlock timer
func (l *RateLimiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopUnlockLocked()
}

// WithRateLimit runs fn only when the limiter allows it. A refused call
// returns a *RateLimitError without invoking fn.
func WithRateLimit[T any](ctx context.Context, l *RateLimiter, fn func(context.Context) (T, error)) (T, error) {
	result := l.CheckLimit(ctx)
	if !result.Allowed {
		var zero T
		return zero, &RateLimitError{Result: result}
	}
	return fn(ctx)
}

func (l *RateLimiter) restore(ctx context.Context) {
	if l.store == nil || l.config.StorageKey == "" {
		return
	}

	state, err := l.store.Load(ctx, l.config.StorageKey)
	if err != nil {
		l.logger.Error("failed to restore rate limit state",
			slog.String("key", l.config.StorageKey),
			slog.Any("error", err))
		return
	}
	if state == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.attempts = append([]int64(nil), state.Attempts...)
	l.pruneLocked(now)

	if state.LockoutEnd != nil {
		end := time.UnixMilli(*state.LockoutEnd)
		if now.Before(end) {
			l.lockoutEnd = &end
			l.armUnlockLocked(end.Sub(now))
			return
		}
		// lockout elapsed while nobody was looking
		l.unlockLocked(ctx)
	}
}

func (l *RateLimiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.config.Window).UnixMilli()
	kept := l.attempts[:0]
	for _, ts := range l.attempts {
		if ts > cutoff {
			kept = append(kept, ts)
		}
	}
	l.attempts = kept
}

func (l *RateLimiter) armUnlockLocked(d time.Duration) {
	l.stopUnlockLocked()
	gen := l.unlockGen
	l.unlockTimer = l.clock.AfterFunc(d, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if gen != l.unlockGen {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		l.unlockLocked(ctx)
	})
}

func (l *RateLimiter) stopUnlockLocked() {
	l.unlockGen++
	if l.unlockTimer != nil {
		l.unlockTimer.Stop()
		l.unlockTimer = nil
	}
}

func (l *RateLimiter) unlockLocked(ctx context.Context) {
	l.stopUnlockLocked()
	l.attempts = nil
	l.lockoutEnd = nil

	if l.store == nil || l.config.StorageKey == "" {
		return
	}
	if err := l.store.Delete(ctx, l.config.StorageKey); err != nil {
		l.logger.Error("failed to clear rate limit state",
			slog.String("key", l.config.StorageKey),
			slog.Any("error", err))
	}
}

func (l *RateLimiter) persistLocked(ctx context.Context) {
	if l.store == nil || l.config.StorageKey == "" {
		return
	}

	state := &models.AttemptState{Attempts: append([]int64(nil), l.attempts...)}
	ttl := l.config.Window
	if l.lockoutEnd != nil {
		end := l.lockoutEnd.UnixMilli()
		state.LockoutEnd = &end
		if remaining := l.lockoutEnd.Sub(l.clock.Now()); remaining > ttl {
			ttl = remaining
		}
	}

	if err := l.store.Save(ctx, l.config.StorageKey, state, ttl); err != nil {
		l.logger.Error("failed to persist rate limit state",
			slog.String("key", l.config.StorageKey),
			slog.Any("error", err))
	}
}

func ceilSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

func formatRemaining(d time.Duration) string {
	secs := ceilSeconds(d)
	minutes := secs / 60
	seconds := secs % 60
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

func lockoutMessage(remaining time.Duration) string {
	return fmt.Sprintf("Too many attempts. Try again in %s.", formatRemaining(remaining))
}
