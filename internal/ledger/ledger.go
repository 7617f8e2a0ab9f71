// Package ledger maintains one balance per account and an append-only
// transaction history. The correctness property it defends: every account's
// balance equals the sum of its deposits minus the sum of its withdrawals,
// at all times, under concurrent requests.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neliaxa/backend/internal/models"
	"github.com/neliaxa/backend/internal/storage"
)

// ErrInvalidAmount rejects non-positive transaction amounts.
var ErrInvalidAmount = errors.New("amount must be a positive integer")

// ErrUnknownDirection rejects directions outside deposit/withdraw.
var ErrUnknownDirection = errors.New("unknown transaction direction")

// ErrInsufficientFunds mirrors the store-level sentinel so callers only need
// the ledger package to classify failures.
var ErrInsufficientFunds = storage.ErrInsufficientFunds

// Engine validates and applies ledger mutations. Atomicity and per-account
// serialization live in the WalletStore implementation; the engine constructs
// the immutable entry and delegates the atomic write.
type Engine struct {
	wallets storage.WalletStore
	log     *zap.Logger
	now     func() time.Time
}

// Snapshot is a wallet's state plus its most recent history.
type Snapshot struct {
	Balance      int64
	UpdatedAt    time.Time
	Transactions []models.WalletTransaction
}

// NewEngine creates a ledger engine over the given wallet store.
func NewEngine(wallets storage.WalletStore, log *zap.Logger) *Engine {
	return &Engine{wallets: wallets, log: log, now: time.Now}
}

// GetWallet returns the balance and the newest-first transaction history,
// bounded by limit. A wallet is lazily created at zero on first access.
func (e *Engine) GetWallet(ctx context.Context, userID int64, limit int) (Snapshot, error) {
	wallet, err := e.wallets.GetWallet(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("get wallet: %w", err)
	}
	txs, err := e.wallets.ListTransactions(ctx, userID, limit)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list transactions: %w", err)
	}
	return Snapshot{Balance: wallet.Balance, UpdatedAt: wallet.UpdatedAt, Transactions: txs}, nil
}

// Apply records a deposit or withdrawal. Withdrawals re-check the balance at
// the moment of application inside the store's atomic scope; on any failure
// neither the balance nor the history changes.
func (e *Engine) Apply(ctx context.Context, userID int64, direction models.Direction, amount int64, method string) (models.Wallet, error) {
	if amount <= 0 {
		return models.Wallet{}, ErrInvalidAmount
	}
	if direction != models.DirectionDeposit && direction != models.DirectionWithdraw {
		return models.Wallet{}, ErrUnknownDirection
	}

	entry := models.WalletTransaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Direction: direction,
		Amount:    amount,
		Method:    method,
		Status:    models.TransactionCompleted,
		CreatedAt: e.now().UTC(),
	}

	wallet, err := e.wallets.ApplyTransaction(ctx, entry)
	if err != nil {
		if errors.Is(err, storage.ErrInsufficientFunds) || errors.Is(err, storage.ErrBalanceOverflow) {
			e.log.Info("transaction rejected",
				zap.Int64("user_id", userID),
				zap.String("direction", string(direction)),
				zap.Int64("amount", amount),
				zap.String("reason", err.Error()))
			return models.Wallet{}, err
		}
		return models.Wallet{}, fmt.Errorf("apply transaction: %w", err)
	}

	e.log.Info("transaction applied",
		zap.Int64("user_id", userID),
		zap.String("direction", string(direction)),
		zap.Int64("amount", amount),
		zap.Int64("balance", wallet.Balance))
	return wallet, nil
}
