package models

// AttemptState is the persisted form of a rate limiter.
// Attempts are epoch milliseconds; LockoutEnd is nil when not locked.
type AttemptState struct {
	Attempts   []int64 `json:"attempts"`
	LockoutEnd *int64  `json:"lockoutEnd"`
}

// RateLimitResult is returned by every limit check. Refusals are values, not errors.
type RateLimitResult struct {
	Allowed    bool   `json:"allowed"`
	Remaining  int    `json:"remaining"`
	RetryAfter int    `json:"retry_after,omitempty"` // seconds
	Message    string `json:"message,omitempty"`
}
