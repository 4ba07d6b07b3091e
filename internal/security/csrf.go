package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// CSRF validation failure reasons
const (
	CSRFReasonNotFound    = "NOT_FOUND"
	CSRFReasonExpired     = "EXPIRED"
	CSRFReasonAlreadyUsed = "ALREADY_USED"
	CSRFReasonMismatch    = "MISMATCH"
)

// csrfTokenBytes yields 64 hex characters per token
const csrfTokenBytes = 32

// DefaultCSRFTokenTTL is how long an issued token stays valid
const DefaultCSRFTokenTTL = 15 * time.Minute

// csrfToken stores per-session token state
type csrfToken struct {
	value     string
	createdAt time.Time
	expiresAt time.Time
	used      bool
}

// CSRFValidation is the structured outcome of a token check
type CSRFValidation struct {
	Valid  bool
	Reason string
}

// CSRFManager issues and validates per-session single-use CSRF tokens.
// A session holds at most one live token: regeneration orphans the prior
// one. Consumption is a one-way transition resolved under the manager
// mutex, so a double submit deterministically fails with ALREADY_USED.
type CSRFManager struct {
	mu       sync.Mutex
	tokens   map[string]*csrfToken // sessionID -> current token
	spent    map[string]string     // sessionID -> last consumed value
	tokenTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewCSRFManager creates a CSRF token manager
func NewCSRFManager(tokenTTL time.Duration, logger *slog.Logger) *CSRFManager {
	if tokenTTL <= 0 {
		tokenTTL = DefaultCSRFTokenTTL
	}
	return &CSRFManager{
		tokens:   make(map[string]*csrfToken),
		spent:    make(map[string]string),
		tokenTTL: tokenTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the manager's clock. Intended for tests.
func (m *CSRFManager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Generate issues a new token for sessionID, replacing any prior one.
// Only the most recently issued token is valid going forward.
func (m *CSRFManager) Generate(sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generateLocked(sessionID)
}

func (m *CSRFManager) generateLocked(sessionID string) (string, error) {
	raw := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate csrf token: %w", err)
	}

	value := hex.EncodeToString(raw)
	now := m.now()
	m.tokens[sessionID] = &csrfToken{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(m.tokenTTL),
	}
	return value, nil
}

// Validate checks token against the live token for sessionID without
// consuming it. Token comparison is constant-time.
func (m *CSRFManager) Validate(token, sessionID string) CSRFValidation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validateLocked(token, sessionID)
}

func (m *CSRFManager) validateLocked(token, sessionID string) CSRFValidation {
	stored, ok := m.tokens[sessionID]
	if !ok {
		return CSRFValidation{Reason: CSRFReasonNotFound}
	}
	if stored.used {
		return CSRFValidation{Reason: CSRFReasonAlreadyUsed}
	}
	if !m.now().Before(stored.expiresAt) {
		return CSRFValidation{Reason: CSRFReasonExpired}
	}
	if subtle.ConstantTimeCompare([]byte(stored.value), []byte(token)) != 1 {
		// A replayed token that was consumed and rotated away is a
		// double submit, not a forgery: report it as already used.
		if prev, ok := m.spent[sessionID]; ok &&
			subtle.ConstantTimeCompare([]byte(prev), []byte(token)) == 1 {
			return CSRFValidation{Reason: CSRFReasonAlreadyUsed}
		}
		return CSRFValidation{Reason: CSRFReasonMismatch}
	}
	return CSRFValidation{Valid: true}
}

// Use consumes the live token for sessionID if token matches and is
// currently valid. The used flip is irreversible; returns false when the
// token is missing, expired, mismatched, or already spent.
func (m *CSRFManager) Use(token, sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v := m.validateLocked(token, sessionID); !v.Valid {
		return false
	}
	m.tokens[sessionID].used = true
	m.spent[sessionID] = token
	return true
}

// ValidateAndUse validates token, and when valid consumes it and issues
// a replacement for the next submission. The whole sequence runs under
// the manager mutex: of two near-simultaneous submissions with the same
// token, exactly one succeeds and the other observes ALREADY_USED.
func (m *CSRFManager) ValidateAndUse(token, sessionID string) (CSRFValidation, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.validateLocked(token, sessionID)
	if !v.Valid {
		m.logger.Warn("csrf validation failed",
			slog.String("session_id", sessionID),
			slog.String("reason", v.Reason))
		return v, "", nil
	}

	m.tokens[sessionID].used = true
	m.spent[sessionID] = token
	next, err := m.generateLocked(sessionID)
	if err != nil {
		return v, "", err
	}
	return v, next, nil
}

// Revoke drops any token held for sessionID (session teardown).
func (m *CSRFManager) Revoke(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, sessionID)
	delete(m.spent, sessionID)
}

// Cleanup removes expired and spent tokens. Run periodically.
func (m *CSRFManager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for sessionID, tok := range m.tokens {
		if tok.used || !now.Before(tok.expiresAt) {
			delete(m.tokens, sessionID)
			delete(m.spent, sessionID)
		}
	}
}
