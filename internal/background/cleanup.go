package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ExpiredDeleter removes persisted attempt state whose TTL has passed
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// SessionSweeper drops idle anonymous sessions
type SessionSweeper interface {
	Sweep(idleFor time.Duration) int
}

// CleanupManager periodically sweeps idle anonymous sessions and expired
// attempt state
type CleanupManager struct {
	sessions SessionSweeper
	store    ExpiredDeleter // nil when the store expires entries itself
	idleFor  time.Duration
	interval time.Duration
	logger   *slog.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewCleanupManager(sessions SessionSweeper, store ExpiredDeleter, idleFor, interval time.Duration, logger *slog.Logger) *CleanupManager {
	return &CleanupManager{
		sessions: sessions,
		store:    store,
		idleFor:  idleFor,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start runs cleanup immediately and then every interval until Stop or ctx ends
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce performs a single cleanup pass
func (cm *CleanupManager) RunOnce(ctx context.Context) {
	if removed := cm.sessions.Sweep(cm.idleFor); removed > 0 {
		cm.logger.Info("idle sessions swept", slog.Int("removed", removed))
	}

	if cm.store == nil {
		return
	}

	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rowsDeleted, err := cm.store.DeleteExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to delete expired attempt state", slog.Any("error", err))
		return
	}
	if rowsDeleted > 0 {
		cm.logger.Info("expired attempt state deleted", slog.Int64("rows_deleted", rowsDeleted))
	}
}

// Stop signals the cleanup loop to exit. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
