package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	assert.True(t, VerifyPassword(hash, "correct horse battery staple"))
	assert.False(t, VerifyPassword(hash, "wrong password"))
	assert.False(t, VerifyPassword(hash, ""))
}

func TestHashIsSalted(t *testing.T) {
	first, err := HashPassword("same password")
	require.NoError(t, err)
	second, err := HashPassword("same password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, VerifyPassword(first, "same password"))
	assert.True(t, VerifyPassword(second, "same password"))
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	assert.False(t, VerifyPassword("", "password"))
	assert.False(t, VerifyPassword("not-a-hash", "password"))
	assert.False(t, VerifyPassword("$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA", "password"))
}

func TestHasher(t *testing.T) {
	hasher := NewHasher()
	hash, err := hasher.Hash("secret")
	require.NoError(t, err)
	assert.True(t, hasher.Verify(hash, "secret"))
	assert.False(t, hasher.Verify(hash, "Secret"))
}
