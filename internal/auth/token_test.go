package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret-value-123"

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 24*time.Hour)

	token, err := tm.GenerateAccessToken("user-1", "ada@example.com", "session-1")
	require.NoError(t, err)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)

	assert.Equal(t, "access", claims.Type)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, "session-1", claims.SessionID)
	assert.NotEmpty(t, claims.ID, "tokens carry a JTI")
}

func TestRefreshTokenType(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 24*time.Hour)

	token, err := tm.GenerateRefreshToken("user-1", "ada@example.com", "session-1")
	require.NoError(t, err)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "refresh", claims.Type)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 24*time.Hour)
	other := NewTokenManager("a-different-secret-value", 15*time.Minute, 24*time.Hour)

	token, err := tm.GenerateAccessToken("user-1", "ada@example.com", "session-1")
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	tm := NewTokenManager(testSecret, -time.Minute, 24*time.Hour)

	token, err := tm.GenerateAccessToken("user-1", "ada@example.com", "session-1")
	require.NoError(t, err)

	_, err = tm.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 24*time.Hour)

	_, err := tm.ValidateToken("not.a.token")
	assert.Error(t, err)
}
