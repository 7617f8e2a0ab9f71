package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neliaxa/backend/internal/auth"
	"github.com/neliaxa/backend/internal/authz"
	"github.com/neliaxa/backend/internal/storage/memory"
	"github.com/neliaxa/backend/internal/twofactor"
)

func newService(t *testing.T) (*auth.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	tokens := auth.NewTokenManager("test-secret", "neliaxa-test", 7*24*time.Hour, 10*time.Minute)
	return auth.NewService(store, tokens, twofactor.New("Neliaxa", 1)), store
}

func currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	return code
}

func TestRegisterDefaultsToLowestRole(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	user, token, err := svc.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, authz.RoleUser, user.Role)
	assert.NotEmpty(t, token)

	_, _, err = svc.Register(ctx, "a@x.com", "other-password")
	assert.Error(t, err)
}

func TestLoginCollapsesFailureModes(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, _, err := svc.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	// Unknown email and wrong password yield the same error.
	_, err = svc.Login(ctx, "nobody@x.com", "secret1")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = svc.Login(ctx, "a@x.com", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	result, err := svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.False(t, result.Requires2FA)
	assert.NotEmpty(t, result.Token)
}

func TestSecondFactorLifecycle(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	user, _, err := svc.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	// Enroll stores a pending secret; login still goes straight through.
	enrollment, err := svc.EnrollSecondFactor(ctx, user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, enrollment.Secret)
	result, err := svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.False(t, result.Requires2FA)

	// Confirm with a bad code leaves the pending secret for retry.
	err = svc.ConfirmSecondFactor(ctx, user.ID, "000000")
	assert.ErrorIs(t, err, auth.ErrInvalidCode)
	stored, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, enrollment.Secret, stored.TwoFactorSecret)
	assert.False(t, stored.TwoFactorEnabled)

	// Confirm with the current code flips the flag.
	err = svc.ConfirmSecondFactor(ctx, user.ID, currentCode(t, enrollment.Secret))
	require.NoError(t, err)
	stored, err = store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.TwoFactorEnabled)

	// Login now opens a challenge instead of a session.
	result, err = svc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.True(t, result.Requires2FA)
	require.NotEmpty(t, result.Token)

	// The wrong code does not close it; the right one does.
	_, _, err = svc.VerifySecondFactor(ctx, result.Token, "000000")
	assert.ErrorIs(t, err, auth.ErrInvalidCode)
	_, session, err := svc.VerifySecondFactor(ctx, result.Token, currentCode(t, enrollment.Secret))
	require.NoError(t, err)
	assert.NotEmpty(t, session)

	// A session token is not accepted as a challenge token.
	_, _, err = svc.VerifySecondFactor(ctx, session, currentCode(t, enrollment.Secret))
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestDisableSecondFactor(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	user, _, err := svc.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	enrollment, err := svc.EnrollSecondFactor(ctx, user.ID)
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmSecondFactor(ctx, user.ID, currentCode(t, enrollment.Secret)))

	// Disabling needs proof of possession.
	err = svc.DisableSecondFactor(ctx, user.ID, "000000")
	assert.ErrorIs(t, err, auth.ErrInvalidCode)

	require.NoError(t, svc.DisableSecondFactor(ctx, user.ID, currentCode(t, enrollment.Secret)))
	stored, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, stored.TwoFactorEnabled)
	assert.Empty(t, stored.TwoFactorSecret)

	// A code for the old, cleared secret no longer confirms anything.
	err = svc.ConfirmSecondFactor(ctx, user.ID, currentCode(t, enrollment.Secret))
	assert.ErrorIs(t, err, auth.ErrInvalidCode)
}

func TestReEnrollOverwritesPendingSecret(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	user, _, err := svc.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	first, err := svc.EnrollSecondFactor(ctx, user.ID)
	require.NoError(t, err)
	second, err := svc.EnrollSecondFactor(ctx, user.ID)
	require.NoError(t, err)
	require.NotEqual(t, first.Secret, second.Secret)

	// Only the latest pending secret confirms.
	err = svc.ConfirmSecondFactor(ctx, user.ID, currentCode(t, first.Secret))
	assert.ErrorIs(t, err, auth.ErrInvalidCode)
	require.NoError(t, svc.ConfirmSecondFactor(ctx, user.ID, currentCode(t, second.Secret)))
}
