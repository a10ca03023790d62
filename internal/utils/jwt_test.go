package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	now := time.Now()
	tok, err := NewAccessToken("secret", 42, "DOOR", 15*time.Minute, now)
	require.NoError(t, err)

	claims, err := ParseAccessToken("secret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "DOOR", claims.Role)
}

func TestParseAccessToken_WrongSecret(t *testing.T) {
	tok, err := NewAccessToken("secret", 1, "ORGANIZER", time.Minute, time.Now())
	require.NoError(t, err)

	_, err = ParseAccessToken("other", tok.Token)
	assert.Error(t, err)
}

func TestParseAccessToken_Expired(t *testing.T) {
	tok, err := NewAccessToken("secret", 1, "ORGANIZER", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = ParseAccessToken("secret", tok.Token)
	assert.Error(t, err)
}

func TestRefreshTokenHash(t *testing.T) {
	rt, err := NewRefreshToken(24*time.Hour, time.Now())
	require.NoError(t, err)
	assert.Len(t, rt.Raw, 96)
	assert.Len(t, HashRefreshRaw(rt.Raw), 64)
	assert.Equal(t, HashRefreshRaw(rt.Raw), HashRefreshRaw(rt.Raw))
}

func TestPasswordHash(t *testing.T) {
	h, err := HashPassword("door-pass", 4)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(h, "door-pass"))
	assert.False(t, VerifyPassword(h, "wrong"))
}
