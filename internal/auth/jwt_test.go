package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	tok, err := NewToken("secret", 42, 60)
	require.NoError(t, err)

	claims, err := ParseToken("secret", tok)
	require.NoError(t, err)
	require.Equal(t, int64(42), claims.UserId)
	require.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestTokenWrongSecret(t *testing.T) {
	tok, err := NewToken("secret", 42, 60)
	require.NoError(t, err)

	_, err = ParseToken("other", tok)
	require.Error(t, err)
}

func TestTokenExpired(t *testing.T) {
	tok, err := NewToken("secret", 42, -1)
	require.NoError(t, err)

	_, err = ParseToken("secret", tok)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	require.NotEqual(t, "hunter22", hash)

	require.NoError(t, CheckPassword(hash, "hunter22"))
	require.Error(t, CheckPassword(hash, "hunter23"))
}
