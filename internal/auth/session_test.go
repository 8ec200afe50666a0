package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

func TestNewSessionRejectsEmptyToken(t *testing.T) {
	_, err := NewSession("")
	assert.Error(t, err)
}

func TestSessionExpiry(t *testing.T) {
	now := time.Now()

	s, err := NewSession(signedToken(t, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}))
	require.NoError(t, err)
	assert.False(t, s.Expired(now))
	assert.True(t, s.Expired(now.Add(2*time.Hour)))
	assert.Equal(t, "user-1", s.Subject())
}

func TestExpiredTokenDetected(t *testing.T) {
	s, err := NewSession(signedToken(t, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}))
	require.NoError(t, err)
	assert.True(t, s.Expired(time.Now()))
}

func TestOpaqueTokenNeverExpiresLocally(t *testing.T) {
	// Tokens the device cannot parse as JWTs are passed through untouched
	// and expiry is left to the backend.
	s, err := NewSession("opaque-api-key-123")
	require.NoError(t, err)
	assert.False(t, s.Expired(time.Now()))
	assert.Equal(t, "opaque-api-key-123", s.Bearer())
	assert.Empty(t, s.Subject())
}

func TestNoExpiryClaimNeverExpiresLocally(t *testing.T) {
	s, err := NewSession(signedToken(t, jwt.RegisteredClaims{Subject: "user-2"}))
	require.NoError(t, err)
	assert.False(t, s.Expired(time.Now().Add(24 * time.Hour)))
}
