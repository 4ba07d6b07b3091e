package security

import (
	"log/slog"
	"sync"
	"time"
)

// Lock reasons reported by Decision and Status
const (
	ReasonLocked      = "LOCKED"
	ReasonMaxAttempts = "MAX_ATTEMPTS_EXCEEDED"
	ReasonManualLock  = "MANUAL_LOCK"
)

// LimiterConfig holds configuration for sign-in rate limiting behavior
type LimiterConfig struct {
	MaxAttempts      int
	Window           time.Duration
	LockoutDuration  time.Duration
	ProgressiveDelay bool
	MaxDelay         time.Duration
}

// DefaultLimiterConfig returns the default sign-in limiter configuration
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		MaxAttempts:      5,
		Window:           15 * time.Minute,
		LockoutDuration:  30 * time.Minute,
		ProgressiveDelay: true,
		MaxDelay:         5 * time.Minute,
	}
}

// attemptRecord tracks failed attempts for a key within a sliding window
type attemptRecord struct {
	attempts    int
	windowStart time.Time
	lastAttempt time.Time
}

// lockRecord marks a key as denied until a deadline
type lockRecord struct {
	until    time.Time
	duration time.Duration
	reason   string
}

// Decision is the outcome of evaluating a sign-in attempt for a key
type Decision struct {
	Allowed           bool
	RemainingAttempts int
	ResetTime         time.Time
	Delay             time.Duration
	Reason            string
}

// Status is a non-mutating snapshot of limiter state for a key
type Status struct {
	Attempts    int
	Locked      bool
	LockedUntil time.Time
	LockReason  string
	WindowEnds  time.Time
}

// Limiter tracks per-key failed sign-in attempts, escalating from
// progressive delay to a full lockout. State is owned by the instance so
// tests can construct isolated limiters with a fake clock.
type Limiter struct {
	mu       sync.Mutex
	attempts map[string]*attemptRecord
	locks    map[string]*lockRecord
	config   LimiterConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewLimiter creates a sign-in rate limiter
func NewLimiter(config LimiterConfig, logger *slog.Logger) *Limiter {
	return &Limiter{
		attempts: make(map[string]*attemptRecord),
		locks:    make(map[string]*lockRecord),
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the limiter's clock. Intended for tests.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Check evaluates whether an attempt for key should proceed. Expired
// lock and window state is lazily evicted. When the failure count has
// reached MaxAttempts the key transitions to locked and the decision
// reports MAX_ATTEMPTS_EXCEEDED; otherwise the decision carries the
// progressive-delay backoff for the current failure count.
func (l *Limiter) Check(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if lock, ok := l.locks[key]; ok {
		if now.Before(lock.until) {
			return Decision{
				Allowed: false,
				Reason:  ReasonLocked,
				Delay:   lock.until.Sub(now),
			}
		}
		// Lock expired: evict it and start a clean window
		delete(l.locks, key)
		delete(l.attempts, key)
	}

	rec, ok := l.attempts[key]
	if ok && now.Sub(rec.windowStart) > l.config.Window {
		delete(l.attempts, key)
		rec = nil
	}

	if rec == nil {
		return Decision{
			Allowed:           true,
			RemainingAttempts: l.config.MaxAttempts,
		}
	}

	if rec.attempts >= l.config.MaxAttempts {
		lock := &lockRecord{
			until:    now.Add(l.config.LockoutDuration),
			duration: l.config.LockoutDuration,
			reason:   ReasonMaxAttempts,
		}
		l.locks[key] = lock
		l.logger.Warn("sign-in key locked out",
			slog.String("key", key),
			slog.Int("attempts", rec.attempts),
			slog.Duration("lockout", lock.duration))
		return Decision{
			Allowed: false,
			Reason:  ReasonMaxAttempts,
			Delay:   lock.duration,
		}
	}

	return Decision{
		Allowed:           true,
		RemainingAttempts: l.config.MaxAttempts - rec.attempts,
		ResetTime:         rec.windowStart.Add(l.config.Window),
		Delay:             l.backoffDelay(rec.attempts),
	}
}

// RecordFailure increments the failed-attempt counter for key,
// initializing or restarting the window as needed.
func (l *Limiter) RecordFailure(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec, ok := l.attempts[key]
	if !ok || now.Sub(rec.windowStart) > l.config.Window {
		l.attempts[key] = &attemptRecord{attempts: 1, windowStart: now, lastAttempt: now}
		return
	}
	rec.attempts++
	rec.lastAttempt = now
}

// RecordSuccess clears all limiter state for key. A successful sign-in
// always resets the slate, no matter how many failures preceded it.
func (l *Limiter) RecordSuccess(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.attempts, key)
	delete(l.locks, key)
}

// Status returns a snapshot of limiter state for key without mutating it.
func (l *Limiter) Status(key string) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var st Status
	if lock, ok := l.locks[key]; ok && now.Before(lock.until) {
		st.Locked = true
		st.LockedUntil = lock.until
		st.LockReason = lock.reason
	}
	if rec, ok := l.attempts[key]; ok && now.Sub(rec.windowStart) <= l.config.Window {
		st.Attempts = rec.attempts
		st.WindowEnds = rec.windowStart.Add(l.config.Window)
	}
	return st
}

// Lock force-locks a key for the given duration (administrative override).
func (l *Limiter) Lock(key string, d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.locks[key] = &lockRecord{
		until:    l.now().Add(d),
		duration: d,
		reason:   ReasonManualLock,
	}
	l.logger.Info("sign-in key manually locked", slog.String("key", key), slog.Duration("duration", d))
}

// Unlock force-clears any lock and attempt state for a key.
func (l *Limiter) Unlock(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.locks, key)
	delete(l.attempts, key)
	l.logger.Info("sign-in key manually unlocked", slog.String("key", key))
}

// Cleanup sweeps all keys, dropping expired locks and attempt windows.
// Safe to call on already-clean state; run periodically for memory hygiene.
func (l *Limiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, lock := range l.locks {
		if !now.Before(lock.until) {
			delete(l.locks, key)
		}
	}
	for key, rec := range l.attempts {
		if now.Sub(rec.windowStart) > l.config.Window {
			delete(l.attempts, key)
		}
	}
}

// backoffDelay computes the progressive delay before the next permitted
// attempt: min(2^(attempts-1) * 1s, MaxDelay). Zero when no failures yet
// or progressive delay is disabled. Caller holds l.mu.
func (l *Limiter) backoffDelay(attempts int) time.Duration {
	if !l.config.ProgressiveDelay || attempts <= 0 {
		return 0
	}
	delay := time.Second << uint(attempts-1)
	if delay > l.config.MaxDelay || delay <= 0 {
		return l.config.MaxDelay
	}
	return delay
}
