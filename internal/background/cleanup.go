package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/ewhitmore/driveline/internal/security"
)

// CleanupManager periodically sweeps expired in-memory security state:
// stale sign-in attempt windows, expired lockouts, dead CSRF tokens, and
// idle sessions
type CleanupManager struct {
	limiter  *security.Limiter
	csrf     *security.CSRFManager
	sessions *security.SessionTracker
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	limiter *security.Limiter,
	csrf *security.CSRFManager,
	sessions *security.SessionTracker,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		limiter:  limiter,
		csrf:     csrf,
		sessions: sessions,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup task. Blocks until Stop is called or
// ctx is cancelled; run it on its own goroutine.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup()

	for {
		select {
		case <-ticker.C:
			cm.runCleanup()
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup() {
	cm.limiter.Cleanup()
	cm.csrf.Cleanup()
	removed := cm.sessions.Cleanup()

	if removed > 0 {
		cm.logger.Info("security state cleanup completed", slog.Int("sessions_removed", removed))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
