package actor_test

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dissonance-oracle/oracle/internal/actor"
)

func TestParseClaims_EmptyReturnsNil(t *testing.T) {
	claims, err := actor.ParseClaims("", nil)
	require.NoError(t, err)
	assert.Nil(t, claims)
}

func TestParseClaims_PlainActorStringUnverified(t *testing.T) {
	claims, err := actor.ParseClaims("alice", nil)
	require.NoError(t, err)
	require.NotNil(t, claims)
	assert.Equal(t, "alice", claims.Subject)
	assert.False(t, claims.Verified)
}

func TestParseClaims_ValidSignatureVerifies(t *testing.T) {
	secret := []byte("test-secret")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "bob"})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	claims, err := actor.ParseClaims(signed, secret)
	require.NoError(t, err)
	require.NotNil(t, claims)
	assert.Equal(t, "bob", claims.Subject)
	assert.True(t, claims.Verified)
}

func TestParseClaims_WrongSecretFailsVerification(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "bob"})
	signed, err := token.SignedString([]byte("real-secret"))
	require.NoError(t, err)

	claims, err := actor.ParseClaims(signed, []byte("wrong-secret"))
	assert.Error(t, err)
	require.NotNil(t, claims)
	assert.Equal(t, signed, claims.Subject) // falls back to raw token
}

func TestParseClaims_UnverifiedParseWithoutSecret(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "carol"})
	signed, err := token.SignedString([]byte("whatever"))
	require.NoError(t, err)

	claims, err := actor.ParseClaims(signed, nil)
	require.NoError(t, err)
	require.NotNil(t, claims)
	assert.Equal(t, "carol", claims.Subject)
	assert.False(t, claims.Verified)
}
