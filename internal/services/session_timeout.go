package services

import (
	"log/slog"
	"sync"
	"time"

	"github.com/serenvoice/gateway/internal/auth"
	"github.com/serenvoice/gateway/internal/clock"
)

// TokenSource is the token state the idle tracker watches and clears
type TokenSource interface {
	HasValidToken() bool
	ClearTokens()
}

// ActivityEvent is a client interaction type forwarded to the tracker
type ActivityEvent string

const (
	ActivityMouseDown  ActivityEvent = "mousedown"
	ActivityMouseMove  ActivityEvent = "mousemove"
	ActivityKeyPress   ActivityEvent = "keypress"
	ActivityKeyDown    ActivityEvent = "keydown"
	ActivityScroll     ActivityEvent = "scroll"
	ActivityTouchStart ActivityEvent = "touchstart"
	ActivityClick      ActivityEvent = "click"
	ActivityFocus      ActivityEvent = "focus"
)

var activityEvents = map[ActivityEvent]bool{
	ActivityMouseDown:  true,
	ActivityMouseMove:  true,
	ActivityKeyPress:   true,
	ActivityKeyDown:    true,
	ActivityScroll:     true,
	ActivityTouchStart: true,
	ActivityClick:      true,
	ActivityFocus:      true,
}

// IsActivityEvent reports whether event resets the idle timer
func IsActivityEvent(event ActivityEvent) bool {
	return activityEvents[event]
}

// SessionTimeoutConfig configures the idle watchdog
type SessionTimeoutConfig struct {
	Timeout   time.Duration
	Warning   time.Duration // how long before Timeout the warning fires
	OnTimeout func()
	OnWarning func(minutesLeft int)
	Enabled   bool
	Throttle  time.Duration // minimum spacing between activity resets, default 1s
}

// SessionTimeout is the idle-time watchdog of one session. It arms a
// warning timer and a timeout timer; every reset supersedes both.
type SessionTimeout struct {
	config  SessionTimeoutConfig
	tokens  TokenSource
	markers *auth.LocalMarkers
	clock   clock.Clock
	logger  *slog.Logger

	mu           sync.Mutex
	running      bool
	armed        bool
	lastActivity time.Time
	lastReset    time.Time
	warningShown bool
	warnTimer    clock.Timer
	timeoutTimer clock.Timer
	gen          uint64
}

// NewSessionTimeout creates a stopped tracker. markers may be nil.
func NewSessionTimeout(config SessionTimeoutConfig, tokens TokenSource, markers *auth.LocalMarkers, clk clock.Clock, logger *slog.Logger) *SessionTimeout {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.Throttle <= 0 {
		config.Throttle = time.Second
	}
	return &SessionTimeout{
		config:       config,
		tokens:       tokens,
		markers:      markers,
		clock:        clk,
		logger:       logger,
		lastActivity: clk.Now(),
	}
}

// Start enables the tracker if configured and arms the timers
func (st *SessionTimeout) Start() {
	st.mu.Lock()
	st.running = st.config.Enabled
	st.mu.Unlock()

	st.ResetTimer()
}

// Stop cancels every pending timer and ignores further activity
func (st *SessionTimeout) Stop() {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.running = false
	st.cancelLocked()
}

// RecordActivity resets the timers for a known interaction event, at most
// once per throttle interval. Returns true when the event caused a reset.
func (st *SessionTimeout) RecordActivity(event ActivityEvent) bool {
	if !IsActivityEvent(event) {
		return false
	}

	st.mu.Lock()
	if !st.running || st.clock.Now().Sub(st.lastReset) < st.config.Throttle {
		st.mu.Unlock()
		return false
	}
	st.mu.Unlock()

	st.ResetTimer()
	return true
}

// ResetTimer clears any scheduled warning and timeout, then re-arms both
// when a valid token is present. The warning flag resets with it.
func (st *SessionTimeout) ResetTimer() {
	hasToken := st.tokens != nil && st.tokens.HasValidToken()

	st.mu.Lock()
	defer st.mu.Unlock()

	st.cancelLocked()
	now := st.clock.Now()
	st.lastActivity = now
	st.lastReset = now
	st.warningShown = false

	if !st.running || !hasToken {
		return
	}
	st.armLocked(0)
}

// HandleVisibilityChange re-checks idle time when the client becomes
// visible again, since timers may not have run while it was hidden.
func (st *SessionTimeout) HandleVisibilityChange(visible bool) {
	if !visible {
		return
	}

	st.mu.Lock()
	if !st.running || !st.armed {
		st.mu.Unlock()
		return
	}
	elapsed := st.clock.Now().Sub(st.lastActivity)
	if elapsed >= st.config.Timeout {
		st.mu.Unlock()
		st.logger.Info("session idle limit passed while hidden",
			slog.Duration("elapsed", elapsed))
		st.HandleTimeout()
		return
	}

	st.cancelLocked()
	st.armLocked(elapsed)

	var onWarning func(int)
	minutesLeft := 0
	if st.config.Warning > 0 && elapsed >= st.config.Timeout-st.config.Warning && !st.warningShown {
		st.warningShown = true
		onWarning = st.config.OnWarning
		minutesLeft = ceilMinutes(st.config.Timeout - elapsed)
	}
	st.mu.Unlock()

	if onWarning != nil {
		onWarning(minutesLeft)
	}
}

// HandleTimeout ends the session: tokens and local markers are cleared
// and the timeout callback runs.
func (st *SessionTimeout) HandleTimeout() {
	st.mu.Lock()
	st.cancelLocked()
	st.mu.Unlock()

	st.finishTimeout()
}

func (st *SessionTimeout) finishTimeout() {
	if st.tokens != nil {
		st.tokens.ClearTokens()
	}
	if st.markers != nil {
		st.markers.Clear()
	}

	st.logger.Info("session timed out")

	if st.config.OnTimeout != nil {
		st.config.OnTimeout()
	}
}

// LastActivity returns the time of the last accepted reset
func (st *SessionTimeout) LastActivity() time.Time {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.lastActivity
}

// WarningShown reports whether the warning fired in the current cycle
func (st *SessionTimeout) WarningShown() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.warningShown
}

// armLocked schedules both timers as if elapsed idle time had already passed
func (st *SessionTimeout) armLocked(elapsed time.Duration) {
	gen := st.gen
	st.armed = true

	warnAt := st.config.Timeout - st.config.Warning
	if st.config.Warning > 0 && warnAt > elapsed {
		st.warnTimer = st.clock.AfterFunc(warnAt-elapsed, func() { st.fireWarning(gen) })
	}
	st.timeoutTimer = st.clock.AfterFunc(st.config.Timeout-elapsed, func() { st.fireTimeout(gen) })
}

func (st *SessionTimeout) cancelLocked() {
	st.gen++
	st.armed = false
	if st.warnTimer != nil {
		st.warnTimer.Stop()
		st.warnTimer = nil
	}
	if st.timeoutTimer != nil {
		st.timeoutTimer.Stop()
		st.timeoutTimer = nil
	}
}

func (st *SessionTimeout) fireWarning(gen uint64) {
	st.mu.Lock()
	if gen != st.gen || st.warningShown {
		st.mu.Unlock()
		return
	}
	st.warningShown = true
	onWarning := st.config.OnWarning
	minutesLeft := ceilMinutes(st.config.Warning)
	st.mu.Unlock()

	if onWarning != nil {
		onWarning(minutesLeft)
	}
}

func (st *SessionTimeout) fireTimeout(gen uint64) {
	st.mu.Lock()
	if gen != st.gen {
		st.mu.Unlock()
		return
	}
	st.cancelLocked()
	st.mu.Unlock()

	st.finishTimeout()
}

func ceilMinutes(d time.Duration) int {
	return int((d + time.Minute - 1) / time.Minute)
}
