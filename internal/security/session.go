package security

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultIdleTimeout is how long a session may sit without activity
// before it is considered expired.
const DefaultIdleTimeout = 30 * time.Minute

// SessionTracker records last-activity timestamps per session and
// decides idle expiry. Activity is refreshed by handlers on each
// authenticated request; the background sweep evicts idle sessions.
type SessionTracker struct {
	mu          sync.Mutex
	activity    map[string]time.Time
	idleTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewSessionTracker creates a session activity tracker
func NewSessionTracker(idleTimeout time.Duration, logger *slog.Logger) *SessionTracker {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &SessionTracker{
		activity:    make(map[string]time.Time),
		idleTimeout: idleTimeout,
		logger:      logger,
		now:         time.Now,
	}
}

// SetClock overrides the tracker's clock. Intended for tests.
func (t *SessionTracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// Touch stamps sessionID as active now.
func (t *SessionTracker) Touch(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activity[sessionID] = t.now()
}

// Expired reports whether sessionID has been idle past the timeout.
// Unknown sessions are expired: there is nothing to keep alive.
func (t *SessionTracker) Expired(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.activity[sessionID]
	if !ok {
		return true
	}
	return t.now().Sub(last) > t.idleTimeout
}

// Remove drops all activity state for sessionID (sign-out).
func (t *SessionTracker) Remove(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.activity, sessionID)
}

// Cleanup evicts sessions idle past the timeout and returns how many
// were dropped.
func (t *SessionTracker) Cleanup() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	evicted := 0
	for sessionID, last := range t.activity {
		if now.Sub(last) > t.idleTimeout {
			delete(t.activity, sessionID)
			evicted++
		}
	}
	if evicted > 0 {
		t.logger.Info("idle sessions evicted", slog.Int("count", evicted))
	}
	return evicted
}
