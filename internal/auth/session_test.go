package auth

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claimsFor(sub, jti string) Claims {
	return Claims{Email: sub + "@example.com", RegisteredClaims: jwt.RegisteredClaims{Subject: sub, ID: jti}}
}

func TestTokenSessionEndRunsHooksOnce(t *testing.T) {
	s := NewTokenSession(claimsFor("user-1", "jti-1"))
	user, ok := s.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "user-1", user.ID)

	var calls []int
	s.OnSessionEnd(func() { calls = append(calls, 1) })
	s.OnSessionEnd(func() { calls = append(calls, 2) })

	s.End()
	s.End()
	assert.Equal(t, []int{1, 2}, calls)

	_, ok = s.CurrentUser()
	assert.False(t, ok)

	// Late hooks run right away.
	s.OnSessionEnd(func() { calls = append(calls, 3) })
	assert.Equal(t, []int{1, 2, 3}, calls)
}

func TestUserFromContext(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithClaims(context.Background(), claimsFor("user-1", "jti-1"))
	user, ok := UserFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "user-1@example.com", user.Email)
}

func TestRegistryEndAll(t *testing.T) {
	r := NewRegistry()
	a := NewTokenSession(claimsFor("user-1", "jti-1"))
	b := NewTokenSession(claimsFor("user-1", "jti-1"))
	other := NewTokenSession(claimsFor("user-2", "jti-2"))
	r.Track(a)
	r.Track(b)
	r.Track(other)
	assert.Equal(t, 3, r.Len())

	assert.Equal(t, 2, r.EndAll("jti-1"))
	_, ok := a.CurrentUser()
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())

	other.End()
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, r.EndAll("jti-2"))
}
