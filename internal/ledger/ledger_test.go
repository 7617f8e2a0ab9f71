package ledger_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/neliaxa/backend/internal/ledger"
	"github.com/neliaxa/backend/internal/models"
	"github.com/neliaxa/backend/internal/storage"
	"github.com/neliaxa/backend/internal/storage/memory"
)

func newEngine(t *testing.T) *ledger.Engine {
	t.Helper()
	return ledger.NewEngine(memory.New(), zaptest.NewLogger(t))
}

func TestLazyWalletCreation(t *testing.T) {
	engine := newEngine(t)

	snapshot, err := engine.GetWallet(context.Background(), 7, 10)
	require.NoError(t, err)
	assert.Zero(t, snapshot.Balance)
	assert.Empty(t, snapshot.Transactions)
}

func TestInvalidAmounts(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()

	for _, amount := range []int64{0, -1, -500} {
		_, err := engine.Apply(ctx, 1, models.DirectionDeposit, amount, "bank_transfer")
		assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
		_, err = engine.Apply(ctx, 1, models.DirectionWithdraw, amount, "bank_account")
		assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	}

	_, err := engine.Apply(ctx, 1, models.Direction("transfer"), 100, "x")
	assert.ErrorIs(t, err, ledger.ErrUnknownDirection)

	// Nothing was written.
	snapshot, err := engine.GetWallet(ctx, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, snapshot.Balance)
	assert.Empty(t, snapshot.Transactions)
}

func TestBalanceEqualsTransactionSum(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()

	steps := []struct {
		direction models.Direction
		amount    int64
	}{
		{models.DirectionDeposit, 500},
		{models.DirectionDeposit, 250},
		{models.DirectionWithdraw, 100},
		{models.DirectionDeposit, 25},
		{models.DirectionWithdraw, 675},
	}
	for _, step := range steps {
		_, err := engine.Apply(ctx, 1, step.direction, step.amount, "test")
		require.NoError(t, err)
	}

	snapshot, err := engine.GetWallet(ctx, 1, 100)
	require.NoError(t, err)

	var sum int64
	for _, tx := range snapshot.Transactions {
		switch tx.Direction {
		case models.DirectionDeposit:
			sum += tx.Amount
		case models.DirectionWithdraw:
			sum -= tx.Amount
		}
	}
	assert.Equal(t, sum, snapshot.Balance)
	assert.Equal(t, int64(0), snapshot.Balance)
	assert.Len(t, snapshot.Transactions, len(steps))
}

func TestOverdraftRejectedWithoutSideEffects(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()

	_, err := engine.Apply(ctx, 1, models.DirectionDeposit, 500, "bank_transfer")
	require.NoError(t, err)

	_, err = engine.Apply(ctx, 1, models.DirectionWithdraw, 600, "bank_account")
	assert.ErrorIs(t, err, storage.ErrInsufficientFunds)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	snapshot, err := engine.GetWallet(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(500), snapshot.Balance)
	assert.Len(t, snapshot.Transactions, 1)
}

func TestHistoryNewestFirstAndBounded(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		_, err := engine.Apply(ctx, 1, models.DirectionDeposit, i, "test")
		require.NoError(t, err)
	}

	snapshot, err := engine.GetWallet(ctx, 1, 3)
	require.NoError(t, err)
	require.Len(t, snapshot.Transactions, 3)
	assert.Equal(t, int64(5), snapshot.Transactions[0].Amount)
	assert.Equal(t, int64(4), snapshot.Transactions[1].Amount)
	assert.Equal(t, int64(3), snapshot.Transactions[2].Amount)
}

func TestConcurrentWithdrawalsSerialize(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()

	_, err := engine.Apply(ctx, 1, models.DirectionDeposit, 100, "bank_transfer")
	require.NoError(t, err)

	// Two concurrent withdrawals of 80 against a balance of 100: exactly one
	// may succeed.
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.Apply(ctx, 1, models.DirectionWithdraw, 80, "bank_account")
		}(i)
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorIs(t, err, storage.ErrInsufficientFunds):
			rejected++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)

	snapshot, err := engine.GetWallet(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(20), snapshot.Balance)
	assert.Len(t, snapshot.Transactions, 2)
}

func TestConcurrentMixedTrafficKeepsInvariant(t *testing.T) {
	engine := newEngine(t)
	ctx := context.Background()

	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if w%2 == 0 {
					_, err := engine.Apply(ctx, 1, models.DirectionDeposit, 10, "bank_transfer")
					assert.NoError(t, err)
				} else {
					// Withdrawals may legitimately bounce; they must never
					// corrupt the balance.
					_, _ = engine.Apply(ctx, 1, models.DirectionWithdraw, 10, "bank_account")
				}
			}
		}(w)
	}
	wg.Wait()

	snapshot, err := engine.GetWallet(ctx, 1, workers*perWorker)
	require.NoError(t, err)

	var sum int64
	for _, tx := range snapshot.Transactions {
		switch tx.Direction {
		case models.DirectionDeposit:
			sum += tx.Amount
		case models.DirectionWithdraw:
			sum -= tx.Amount
		}
	}
	assert.Equal(t, sum, snapshot.Balance)
	assert.GreaterOrEqual(t, snapshot.Balance, int64(0))
}
