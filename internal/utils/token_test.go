package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer() *TokenIssuer {
	return NewTokenIssuer("unit-test-secret", 15, 5)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	iss := newTestIssuer()

	st, err := iss.IssueAccess(42)
	require.NoError(t, err)
	require.NotEmpty(t, st.Token)

	claims, err := iss.Verify(st.Token, TokenTypeAccess)
	require.NoError(t, err)

	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
}

func TestResetTokenRoundTrip(t *testing.T) {
	iss := newTestIssuer()

	st, err := iss.IssueReset(7)
	require.NoError(t, err)

	claims, err := iss.Verify(st.Token, TokenTypeReset)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)
}

func TestVerifyRejectsWrongType(t *testing.T) {
	iss := newTestIssuer()

	reset, err := iss.IssueReset(1)
	require.NoError(t, err)
	access, err := iss.IssueAccess(1)
	require.NoError(t, err)

	_, err = iss.Verify(reset.Token, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrTokenWrongType)

	_, err = iss.Verify(access.Token, TokenTypeReset)
	assert.ErrorIs(t, err, ErrTokenWrongType)
}

func TestVerifyRejectsExpired(t *testing.T) {
	// Negative TTL puts exp in the past at issue time.
	iss := NewTokenIssuer("unit-test-secret", -1, -1)

	st, err := iss.IssueAccess(1)
	require.NoError(t, err)

	_, err = iss.Verify(st.Token, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	iss := newTestIssuer()
	other := NewTokenIssuer("a-different-secret", 15, 5)

	st, err := other.IssueAccess(1)
	require.NoError(t, err)

	_, err = iss.Verify(st.Token, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrTokenSignature)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	iss := newTestIssuer()

	for _, tok := range []string{"", "not.a.jwt", "aaaa.bbbb"} {
		_, err := iss.Verify(tok, TokenTypeAccess)
		assert.ErrorIs(t, err, ErrTokenMalformed, "token %q", tok)
	}
}

func TestHashResetRaw(t *testing.T) {
	a := HashResetRaw("token-one")
	b := HashResetRaw("token-one")
	c := HashResetRaw("token-two")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64) // sha256 hex
}
