package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticResolver is a UserResolver backed by a fixed id set.
type staticResolver map[string]bool

func (r staticResolver) UserExists(id string) bool { return r[id] }

func TestIssueAndVerifyToken(t *testing.T) {
	ti := NewTokenIssuer("test-secret-key-12345")

	identity := Identity{ID: "u1", Username: "alice", Role: RoleAdmin}
	token, err := ti.Issue(identity)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	got, err := ti.Verify(token, staticResolver{"u1": true})
	require.NoError(t, err)
	assert.Equal(t, identity, got)
}

func TestVerifyTokenInvalidSignature(t *testing.T) {
	ti1 := NewTokenIssuer("secret-key-1")
	ti2 := NewTokenIssuer("secret-key-2")

	token, err := ti1.Issue(Identity{ID: "u1", Username: "alice", Role: RoleUser})
	require.NoError(t, err)

	_, err = ti2.Verify(token, staticResolver{"u1": true})
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyTokenMalformed(t *testing.T) {
	ti := NewTokenIssuer("test-secret-key")

	_, err := ti.Verify("not-a-token", staticResolver{})
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = ti.Verify("", staticResolver{})
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyTokenExpired(t *testing.T) {
	ti := NewTokenIssuer("test-secret-key")
	ti.expiry = -time.Hour

	token, err := ti.Issue(Identity{ID: "u1", Username: "alice", Role: RoleUser})
	require.NoError(t, err)

	_, err = ti.Verify(token, staticResolver{"u1": true})
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyTokenIdentityRevoked(t *testing.T) {
	ti := NewTokenIssuer("test-secret-key")

	token, err := ti.Issue(Identity{ID: "u1", Username: "alice", Role: RoleUser})
	require.NoError(t, err)

	// Token is structurally valid, but the backing user is gone.
	_, err = ti.Verify(token, staticResolver{})
	assert.ErrorIs(t, err, ErrIdentityRevoked)
}

func TestTokenExpiry(t *testing.T) {
	// Tokens stay valid for a week.
	assert.Equal(t, 7*24*time.Hour, TokenExpiry)
}
