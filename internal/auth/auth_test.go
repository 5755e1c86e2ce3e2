package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 30)

	tok, exp, err := tm.GenerateToken("acct-1", "a@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), exp, 5*time.Second)

	claims, err := tm.ParseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", claims.AccountID())
	assert.Equal(t, "a@example.com", claims.Email)
}

func TestTokenManager_RejectsForeignAndExpired(t *testing.T) {
	tm := NewTokenManager("secret", 1)
	other := NewTokenManager("other", 1)

	tok, _, err := other.GenerateToken("acct-1", "a@example.com")
	require.NoError(t, err)
	_, err = tm.ParseToken(tok)
	assert.Error(t, err)

	tok, _, err = tm.GenerateToken("acct-1", "a@example.com")
	require.NoError(t, err)
	tm.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = tm.ParseToken(tok)
	assert.Error(t, err)

	_, err = tm.ParseToken("not-a-jwt")
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2hunter2", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "hunter2hunter2"))
	assert.Error(t, ComparePassword(hash, "hunter3hunter3"))

	_, err = HashPassword("short", bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrWeakPassword)
}
