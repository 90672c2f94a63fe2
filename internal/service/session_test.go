package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_IssueParseRevoke(t *testing.T) {
	ctx := context.Background()
	m := NewSessionManager("test-secret", time.Hour, nil)

	token, issued, err := m.Issue("u1")
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)

	claims, err := m.Parse(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, issued.ID, claims.ID)

	require.NoError(t, m.Revoke(ctx, claims))
	_, err = m.Parse(ctx, token)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	// other sessions of the same user stay valid
	other, _, err := m.Issue("u1")
	require.NoError(t, err)
	_, err = m.Parse(ctx, other)
	assert.NoError(t, err)
}

func TestSession_RejectsBadTokens(t *testing.T) {
	ctx := context.Background()
	m := NewSessionManager("test-secret", time.Hour, nil)

	_, err := m.Parse(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	forged, _, err := NewSessionManager("other-secret", time.Hour, nil).Issue("u1")
	require.NoError(t, err)
	_, err = m.Parse(ctx, forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// expired
	past := NewSessionManager("test-secret", time.Hour, nil)
	past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := past.Issue("u1")
	require.NoError(t, err)
	_, err = m.Parse(ctx, old)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// no exp claim
	bare := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "u1", "jti": "x"})
	s, err := bare.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = m.Parse(ctx, s)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMemoryRevocations_Expire(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRevocations()
	now := time.Now()
	r.now = func() time.Time { return now }

	require.NoError(t, r.Revoke(ctx, "a", now.Add(time.Minute)))
	revoked, err := r.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.True(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, err = r.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.False(t, revoked)

	// pruned on the next revoke
	require.NoError(t, r.Revoke(ctx, "b", now.Add(time.Minute)))
	assert.Len(t, r.entries, 1)
}
