package storage

import (
	"context"
	"errors"

	"github.com/neliaxa/backend/internal/authz"
	"github.com/neliaxa/backend/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateEmail indicates a uniqueness conflict on the email column.
var ErrDuplicateEmail = errors.New("email already registered")

// ErrInsufficientFunds is returned by ApplyTransaction when a withdrawal
// exceeds the balance at the moment of application. Nothing is written.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrBalanceOverflow is returned by ApplyTransaction when a deposit would
// push the balance past the int64 range. Nothing is written.
var ErrBalanceOverflow = errors.New("balance overflow")

// UserStore owns identity records. Password hashing happens in the auth
// layer; stores persist the hash as given.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id int64) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUserRole(ctx context.Context, id int64, role authz.Role) (models.User, error)

	// Second-factor fields mutate only through these three; DisableTwoFactor
	// clears the secret and the flag in one step so no half-enrolled state is
	// ever observable.
	SetTwoFactorSecret(ctx context.Context, id int64, secret string) error
	EnableTwoFactor(ctx context.Context, id int64) error
	DisableTwoFactor(ctx context.Context, id int64) error
}

// WalletStore owns the ledger: one balance row per user plus an append-only
// transaction history. ApplyTransaction must write the balance update and the
// history row as one atomic unit, serialized per wallet.
type WalletStore interface {
	GetWallet(ctx context.Context, userID int64) (models.Wallet, error)
	// ListTransactions returns the newest-first history, at most limit rows.
	// A limit <= 0 returns no rows.
	ListTransactions(ctx context.Context, userID int64, limit int) ([]models.WalletTransaction, error)
	ApplyTransaction(ctx context.Context, entry models.WalletTransaction) (models.Wallet, error)
}

// CatalogStore covers the investment catalog and the read-only projections
// built on it.
type CatalogStore interface {
	ListInvestments(ctx context.Context) ([]models.Investment, error)
	GetInvestment(ctx context.Context, id string) (models.Investment, error)
	CreateInvestment(ctx context.Context, inv models.Investment) (models.Investment, error)
	UpdateInvestment(ctx context.Context, inv models.Investment) (models.Investment, error)
	DeleteInvestment(ctx context.Context, id string) error

	PortfolioByUser(ctx context.Context, userID int64) ([]models.Position, error)
	CreatePosition(ctx context.Context, userID int64, investmentID string, amount int64) error
	PerformanceByUser(ctx context.Context, userID int64) ([]models.PerformancePoint, error)
	UpsertPerformance(ctx context.Context, userID int64, month string, value int64) error

	Metrics(ctx context.Context) (models.Metrics, error)
	ListWallets(ctx context.Context) ([]models.WalletSummary, error)
}

// Store is the full persistence surface the server needs.
type Store interface {
	UserStore
	WalletStore
	CatalogStore
}
