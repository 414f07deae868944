package session

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/drivegate/internal/apierr"
)

func TestTokens_IssueAndResolve(t *testing.T) {
	tok := NewTokens([]byte("secret"), 0)

	token, err := tok.Issue("key-a", "abc…", "")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."), "token is a compact JWT")

	key, err := tok.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, "key-a", key)
}

func TestTokens_RequestedID(t *testing.T) {
	tok := NewTokens([]byte("secret"), 0)

	token, err := tok.Issue("key-a", "", "my-session_1")
	require.NoError(t, err)
	claims, err := tok.parse(token)
	require.NoError(t, err)
	assert.Equal(t, "my-session_1", claims.ID)

	_, err = tok.Issue("key-a", "", "bad id with spaces")
	assert.ErrorIs(t, err, apierr.ErrInvalidParameter)

	// The same id cannot be claimed for a different credential.
	_, err = tok.Issue("key-b", "", "my-session_1")
	assert.ErrorIs(t, err, apierr.ErrInvalidParameter)

	key, err := tok.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, "key-a", key)
}

func TestTokens_Tampered(t *testing.T) {
	tok := NewTokens([]byte("secret"), 0)
	token, err := tok.Issue("key-a", "", "")
	require.NoError(t, err)

	forged := NewTokens([]byte("other-secret"), 0)
	bad, err := forged.Issue("key-a", "", "")
	require.NoError(t, err)

	for _, candidate := range []string{bad, token[:len(token)-2] + "xx", "not-a-jwt"} {
		_, err := tok.Resolve(candidate)
		assert.ErrorIs(t, err, apierr.ErrSessionExpired)
	}

	_, err = tok.Resolve("")
	assert.ErrorIs(t, err, apierr.ErrMissingCredential)
}

func TestTokens_Expiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tok := NewTokens([]byte("secret"), time.Minute)
	tok.now = func() time.Time { return now }

	token, err := tok.Issue("key-a", "", "")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = tok.Resolve(token)
	assert.ErrorIs(t, err, apierr.ErrSessionExpired)
}

func TestTokens_RevokeAndForget(t *testing.T) {
	tok := NewTokens(nil, 0)

	t1, err := tok.Issue("key-a", "", "")
	require.NoError(t, err)
	t2, err := tok.Issue("key-a", "", "")
	require.NoError(t, err)
	t3, err := tok.Issue("key-b", "", "")
	require.NoError(t, err)
	assert.Equal(t, 3, tok.Len())

	key, ok := tok.Revoke(t1)
	assert.True(t, ok)
	assert.Equal(t, "key-a", key)
	_, ok = tok.Revoke(t1)
	assert.False(t, ok, "revoke is idempotent")

	_, err = tok.Resolve(t1)
	assert.ErrorIs(t, err, apierr.ErrSessionExpired)

	assert.Equal(t, 1, tok.ForgetKey("key-a"))
	_, err = tok.Resolve(t2)
	assert.ErrorIs(t, err, apierr.ErrSessionExpired)

	key, err = tok.Resolve(t3)
	require.NoError(t, err)
	assert.Equal(t, "key-b", key)
}

func TestTokens_CheckBeforeIssue(t *testing.T) {
	tok := NewTokens([]byte("secret"), 0)

	require.NoError(t, tok.Check("key-a", ""))
	require.NoError(t, tok.Check("key-a", "desk"))
	assert.ErrorIs(t, tok.Check("key-a", "no spaces allowed"), apierr.ErrInvalidParameter)
	assert.Zero(t, tok.Bound("key-a"))

	_, err := tok.Issue("key-a", "", "desk")
	require.NoError(t, err)
	assert.Equal(t, 1, tok.Bound("key-a"))

	assert.NoError(t, tok.Check("key-a", "desk"), "the owner may reuse its id")
	assert.ErrorIs(t, tok.Check("key-b", "desk"), apierr.ErrInvalidParameter)
	assert.Zero(t, tok.Bound("key-b"))
}
