package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	auth := NewAuthService("test-secret-key-that-is-long-enough!", time.Hour)

	token, err := auth.GenerateToken("42")
	require.NoError(t, err)

	sub, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", sub)
}

func TestValidateToken_RejectsWrongSecret(t *testing.T) {
	auth := NewAuthService("test-secret-key-that-is-long-enough!", time.Hour)
	other := NewAuthService("a-completely-different-signing-secret", time.Hour)

	token, err := auth.GenerateToken("42")
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_RejectsExpired(t *testing.T) {
	auth := NewAuthService("test-secret-key-that-is-long-enough!", -time.Minute)

	token, err := auth.GenerateToken("42")
	require.NoError(t, err)

	_, err = auth.ValidateToken(token)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	auth := NewAuthService("secret", time.Hour)

	hash, err := auth.HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)

	assert.NoError(t, auth.CompareHashAndPassword(hash, "hunter2"))
	assert.Error(t, auth.CompareHashAndPassword(hash, "hunter3"))
}
