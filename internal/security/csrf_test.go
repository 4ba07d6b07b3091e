package security_test

import (
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ewhitmore/driveline/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCSRFManager(t *testing.T) (*security.CSRFManager, *fakeClock) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	manager := security.NewCSRFManager(security.DefaultCSRFTokenTTL, logger)
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	manager.SetClock(clock.Now)
	return manager, clock
}

func TestCSRFGenerate_TokenShape(t *testing.T) {
	manager, _ := newTestCSRFManager(t)

	token, err := manager.Generate("session-1")
	require.NoError(t, err)
	assert.Len(t, token, 64)

	second, err := manager.Generate("session-1")
	require.NoError(t, err)
	assert.NotEqual(t, token, second)
}

func TestCSRFValidate_HappyPath(t *testing.T) {
	manager, _ := newTestCSRFManager(t)

	token, err := manager.Generate("session-1")
	require.NoError(t, err)

	v := manager.Validate(token, "session-1")
	assert.True(t, v.Valid)
	assert.Empty(t, v.Reason)
}

func TestCSRFValidate_UnknownSession(t *testing.T) {
	manager, _ := newTestCSRFManager(t)

	v := manager.Validate("whatever", "no-such-session")
	assert.False(t, v.Valid)
	assert.Equal(t, security.CSRFReasonNotFound, v.Reason)
}

func TestCSRFValidate_Mismatch(t *testing.T) {
	manager, _ := newTestCSRFManager(t)

	_, err := manager.Generate("session-1")
	require.NoError(t, err)

	v := manager.Validate("0000000000000000000000000000000000000000000000000000000000000000", "session-1")
	assert.False(t, v.Valid)
	assert.Equal(t, security.CSRFReasonMismatch, v.Reason)
}

func TestCSRFValidate_Expired(t *testing.T) {
	manager, clock := newTestCSRFManager(t)

	token, err := manager.Generate("session-1")
	require.NoError(t, err)

	clock.Advance(16 * time.Minute)

	v := manager.Validate(token, "session-1")
	assert.False(t, v.Valid)
	assert.Equal(t, security.CSRFReasonExpired, v.Reason)
}

func TestCSRFUse_IsOneWay(t *testing.T) {
	manager, _ := newTestCSRFManager(t)

	token, err := manager.Generate("session-1")
	require.NoError(t, err)

	assert.True(t, manager.Use(token, "session-1"))
	assert.False(t, manager.Use(token, "session-1"))

	v := manager.Validate(token, "session-1")
	assert.False(t, v.Valid)
	assert.Equal(t, security.CSRFReasonAlreadyUsed, v.Reason)
}

func TestCSRFGenerate_ReplacesPriorToken(t *testing.T) {
	manager, _ := newTestCSRFManager(t)

	old, err := manager.Generate("session-1")
	require.NoError(t, err)
	fresh, err := manager.Generate("session-1")
	require.NoError(t, err)

	assert.False(t, manager.Validate(old, "session-1").Valid)
	assert.True(t, manager.Validate(fresh, "session-1").Valid)
}

func TestCSRFValidateAndUse_IssuesReplacement(t *testing.T) {
	manager, _ := newTestCSRFManager(t)

	token, err := manager.Generate("session-1")
	require.NoError(t, err)

	v, next, err := manager.ValidateAndUse(token, "session-1")
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.NotEmpty(t, next)
	assert.NotEqual(t, token, next)

	// Replacement is live, original is gone
	assert.True(t, manager.Validate(next, "session-1").Valid)
	assert.False(t, manager.Validate(token, "session-1").Valid)
}

func TestCSRFValidateAndUse_DoubleSubmitLosesDeterministically(t *testing.T) {
	manager, _ := newTestCSRFManager(t)

	token, err := manager.Generate("session-1")
	require.NoError(t, err)

	var mu sync.Mutex
	wins, alreadyUsed := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := manager.ValidateAndUse(token, "session-1")
			require.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			if v.Valid {
				wins++
			} else if v.Reason == security.CSRFReasonAlreadyUsed {
				alreadyUsed++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, alreadyUsed)
}

func TestCSRFRevoke(t *testing.T) {
	manager, _ := newTestCSRFManager(t)

	token, err := manager.Generate("session-1")
	require.NoError(t, err)

	manager.Revoke("session-1")

	v := manager.Validate(token, "session-1")
	assert.Equal(t, security.CSRFReasonNotFound, v.Reason)
}

func TestCSRFCleanup_RemovesExpiredAndSpent(t *testing.T) {
	manager, clock := newTestCSRFManager(t)

	spent, err := manager.Generate("spent")
	require.NoError(t, err)
	require.True(t, manager.Use(spent, "spent"))

	stale, err := manager.Generate("stale")
	require.NoError(t, err)
	_ = stale

	clock.Advance(20 * time.Minute)

	live, err := manager.Generate("live")
	require.NoError(t, err)

	manager.Cleanup()

	assert.Equal(t, security.CSRFReasonNotFound, manager.Validate(spent, "spent").Reason)
	assert.Equal(t, security.CSRFReasonNotFound, manager.Validate(stale, "stale").Reason)
	assert.True(t, manager.Validate(live, "live").Valid)
}
