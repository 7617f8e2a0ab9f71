package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/neliaxa/backend/internal/authz"
	"github.com/neliaxa/backend/internal/storage/memory"
)

func TestRunIsIdempotent(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	accounts := Accounts{
		AdminEmail:    "admin@neliaxa.com",
		AdminPassword: "admin1234",
		DemoEmail:     "demo@neliaxa.com",
		DemoPassword:  "demo1234",
	}

	require.NoError(t, Run(ctx, store, accounts, zaptest.NewLogger(t)))
	require.NoError(t, Run(ctx, store, accounts, zaptest.NewLogger(t)))

	investments, err := store.ListInvestments(ctx)
	require.NoError(t, err)
	assert.Len(t, investments, 4)

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	admin, err := store.FindByEmail(ctx, "admin@neliaxa.com")
	require.NoError(t, err)
	assert.Equal(t, authz.RoleAdmin, admin.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("admin1234")))

	demo, err := store.FindByEmail(ctx, "demo@neliaxa.com")
	require.NoError(t, err)
	assert.Equal(t, authz.RoleUser, demo.Role)

	for _, user := range []int64{admin.ID, demo.ID} {
		positions, err := store.PortfolioByUser(ctx, user)
		require.NoError(t, err)
		assert.Len(t, positions, 3)

		points, err := store.PerformanceByUser(ctx, user)
		require.NoError(t, err)
		assert.Len(t, points, 6)

		wallet, err := store.GetWallet(ctx, user)
		require.NoError(t, err)
		assert.Zero(t, wallet.Balance)
	}
}
