package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret-password", 4)
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "s3cret-password", hash)

	assert.True(t, VerifyPassword(hash, "s3cret-password"))
	assert.False(t, VerifyPassword(hash, "wrong-password"))
}

func TestHashPasswordDistinctSalts(t *testing.T) {
	a, err := HashPassword("same-input", 4)
	require.NoError(t, err)
	b, err := HashPassword("same-input", 4)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	assert.False(t, VerifyPassword("not-a-bcrypt-digest", "whatever"))
	assert.False(t, VerifyPassword("", "whatever"))
}
