package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neliaxa/backend/internal/authz"
	"github.com/neliaxa/backend/internal/models"
)

func testManager() *TokenManager {
	return NewTokenManager("test-secret", "neliaxa-test", 7*24*time.Hour, 10*time.Minute)
}

func testUser() models.User {
	return models.User{ID: 42, Email: "a@x.com", Role: authz.RoleUser}
}

func TestSessionRoundTrip(t *testing.T) {
	tm := testManager()

	raw, err := tm.IssueSession(testUser())
	require.NoError(t, err)

	claims, err := tm.ParseSession(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID())
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, authz.RoleUser, claims.Role)
	assert.Equal(t, KindSession, claims.Kind)
}

func TestKindCrossRejection(t *testing.T) {
	tm := testManager()

	session, err := tm.IssueSession(testUser())
	require.NoError(t, err)
	challenge, err := tm.IssueChallenge(testUser())
	require.NoError(t, err)

	// A challenge token is never a session token, and vice versa.
	_, err = tm.ParseSession(challenge)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = tm.ParseChallenge(session)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tm.ParseChallenge(challenge)
	assert.NoError(t, err)
}

func TestExpiry(t *testing.T) {
	tm := testManager()

	session, err := tm.IssueSession(testUser())
	require.NoError(t, err)
	challenge, err := tm.IssueChallenge(testUser())
	require.NoError(t, err)

	// Move past the challenge TTL but inside the session TTL.
	tm.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	_, err = tm.ParseChallenge(challenge)
	assert.ErrorIs(t, err, ErrExpiredToken)
	_, err = tm.ParseSession(session)
	assert.NoError(t, err)

	// Move past the session TTL.
	tm.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	_, err = tm.ParseSession(session)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTamperedToken(t *testing.T) {
	tm := testManager()

	raw, err := tm.IssueSession(testUser())
	require.NoError(t, err)

	_, err = tm.ParseSession(raw + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewTokenManager("other-secret", "neliaxa-test", time.Hour, time.Minute)
	_, err = other.ParseSession(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tm.ParseSession("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
