// Package memory is an in-process implementation of the full storage
// surface. It backs the server when no DATABASE_URL is configured and keeps
// the handler and ledger tests hermetic.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/neliaxa/backend/internal/authz"
	"github.com/neliaxa/backend/internal/models"
	"github.com/neliaxa/backend/internal/storage"
)

// Ensure Store satisfies the full storage surface at compile time.
var _ storage.Store = (*Store)(nil)

type wallet struct {
	// mu serializes balance reads-then-writes for one account; the ledger's
	// check-then-apply happens entirely under it.
	mu      sync.Mutex
	balance int64
	updated time.Time
	history []models.WalletTransaction
}

type position struct {
	id           int64
	userID       int64
	investmentID string
	amount       int64
	createdAt    time.Time
}

type perfPoint struct {
	userID int64
	month  string
	value  int64
}

// Store keeps everything in maps guarded by one RWMutex, except wallet
// mutations which additionally take the per-wallet lock.
type Store struct {
	mu          sync.RWMutex
	users       map[int64]models.User
	byEmail     map[string]int64
	wallets     map[int64]*wallet
	investments map[string]models.Investment
	positions   []position
	performance []perfPoint
	nextUserID  int64
	nextPosID   int64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:       make(map[int64]models.User),
		byEmail:     make(map[string]int64),
		wallets:     make(map[int64]*wallet),
		investments: make(map[string]models.Investment),
		nextUserID:  1,
		nextPosID:   1,
	}
}

// CreateUser inserts a user and materializes its zero-balance wallet.
func (s *Store) CreateUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[user.Email]; exists {
		return models.User{}, storage.ErrDuplicateEmail
	}
	user.ID = s.nextUserID
	s.nextUserID++
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[user.ID] = user
	s.byEmail[user.Email] = user.ID
	if _, ok := s.wallets[user.ID]; !ok {
		s.wallets[user.ID] = &wallet{updated: user.CreatedAt}
	}
	return user, nil
}

// FindByEmail fetches a user by exact email.
func (s *Store) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return s.users[id], nil
}

// FindByID fetches a user by id.
func (s *Store) FindByID(_ context.Context, id int64) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return user, nil
}

// ListUsers returns all users, newest first.
func (s *Store) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.User, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateUserRole changes the role of an existing user.
func (s *Store) UpdateUserRole(_ context.Context, id int64, role authz.Role) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	user.Role = role
	s.users[id] = user
	return user, nil
}

// SetTwoFactorSecret stores a pending secret without touching the flag.
func (s *Store) SetTwoFactorSecret(_ context.Context, id int64, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	user.TwoFactorSecret = secret
	s.users[id] = user
	return nil
}

// EnableTwoFactor flips the flag on a previously stored secret.
func (s *Store) EnableTwoFactor(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok || user.TwoFactorSecret == "" {
		return storage.ErrNotFound
	}
	user.TwoFactorEnabled = true
	s.users[id] = user
	return nil
}

// DisableTwoFactor clears the secret and the flag in one step.
func (s *Store) DisableTwoFactor(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	user.TwoFactorSecret = ""
	user.TwoFactorEnabled = false
	s.users[id] = user
	return nil
}

func (s *Store) walletFor(userID int64) *wallet {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[userID]
	if !ok {
		w = &wallet{updated: time.Now().UTC()}
		s.wallets[userID] = w
	}
	return w
}

// GetWallet returns the wallet, creating it at zero if absent.
func (s *Store) GetWallet(_ context.Context, userID int64) (models.Wallet, error) {
	w := s.walletFor(userID)
	w.mu.Lock()
	defer w.mu.Unlock()
	return models.Wallet{UserID: userID, Balance: w.balance, UpdatedAt: w.updated}, nil
}

// ListTransactions returns the newest-first history bounded by limit, with
// limit <= 0 yielding no rows per the WalletStore contract.
func (s *Store) ListTransactions(_ context.Context, userID int64, limit int) ([]models.WalletTransaction, error) {
	w := s.walletFor(userID)
	w.mu.Lock()
	defer w.mu.Unlock()

	if limit <= 0 {
		return nil, nil
	}
	n := len(w.history)
	if limit < n {
		n = limit
	}
	out := make([]models.WalletTransaction, 0, n)
	for i := len(w.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, w.history[i])
	}
	return out, nil
}

// ApplyTransaction adjusts the balance and appends the history row under the
// wallet lock, so the insufficient-funds check holds at the moment of
// application.
func (s *Store) ApplyTransaction(_ context.Context, entry models.WalletTransaction) (models.Wallet, error) {
	w := s.walletFor(entry.UserID)
	w.mu.Lock()
	defer w.mu.Unlock()

	next := w.balance
	switch entry.Direction {
	case models.DirectionDeposit:
		if entry.Amount > math.MaxInt64-w.balance {
			return models.Wallet{}, storage.ErrBalanceOverflow
		}
		next += entry.Amount
	case models.DirectionWithdraw:
		if entry.Amount > w.balance {
			return models.Wallet{}, storage.ErrInsufficientFunds
		}
		next -= entry.Amount
	}

	w.balance = next
	w.updated = entry.CreatedAt
	w.history = append(w.history, entry)
	return models.Wallet{UserID: entry.UserID, Balance: w.balance, UpdatedAt: w.updated}, nil
}

// ListInvestments returns the catalog sorted by name.
func (s *Store) ListInvestments(_ context.Context) ([]models.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Investment, 0, len(s.investments))
	for _, inv := range s.investments {
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetInvestment fetches one catalog entry.
func (s *Store) GetInvestment(_ context.Context, id string) (models.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.investments[id]
	if !ok {
		return models.Investment{}, storage.ErrNotFound
	}
	return inv, nil
}

// CreateInvestment adds a catalog entry.
func (s *Store) CreateInvestment(_ context.Context, inv models.Investment) (models.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.investments[inv.ID] = inv
	return inv, nil
}

// UpdateInvestment replaces an existing catalog entry.
func (s *Store) UpdateInvestment(_ context.Context, inv models.Investment) (models.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.investments[inv.ID]; !ok {
		return models.Investment{}, storage.ErrNotFound
	}
	s.investments[inv.ID] = inv
	return inv, nil
}

// DeleteInvestment removes a catalog entry.
func (s *Store) DeleteInvestment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.investments[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.investments, id)
	return nil
}

// PortfolioByUser returns a user's positions, newest first, with their
// investments joined in.
func (s *Store) PortfolioByUser(_ context.Context, userID int64) ([]models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Position
	for _, pos := range s.positions {
		if pos.userID != userID {
			continue
		}
		inv, ok := s.investments[pos.investmentID]
		if !ok {
			continue
		}
		out = append(out, models.Position{
			ID:         pos.id,
			Amount:     pos.amount,
			CreatedAt:  pos.createdAt,
			Investment: inv,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// CreatePosition records a stake for seeding and future purchases.
func (s *Store) CreatePosition(_ context.Context, userID int64, investmentID string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.investments[investmentID]; !ok {
		return storage.ErrNotFound
	}
	s.positions = append(s.positions, position{
		id:           s.nextPosID,
		userID:       userID,
		investmentID: investmentID,
		amount:       amount,
		createdAt:    time.Now().UTC(),
	})
	s.nextPosID++
	return nil
}

// PerformanceByUser returns the month-ordered valuation history.
func (s *Store) PerformanceByUser(_ context.Context, userID int64) ([]models.PerformancePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.PerformancePoint
	for _, point := range s.performance {
		if point.userID == userID {
			out = append(out, models.PerformancePoint{Month: point.month, Value: point.value})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

// UpsertPerformance records one month's value, idempotently.
func (s *Store) UpsertPerformance(_ context.Context, userID int64, month string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, point := range s.performance {
		if point.userID == userID && point.month == month {
			s.performance[i].value = value
			return nil
		}
	}
	s.performance = append(s.performance, perfPoint{userID: userID, month: month, value: value})
	return nil
}

// Metrics aggregates platform-wide counters.
func (s *Store) Metrics(_ context.Context) (models.Metrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var assets int64
	for _, pos := range s.positions {
		assets += pos.amount
	}
	alerts := len(s.users) * 15 / 100
	if alerts < 300 {
		alerts = 300
	}
	return models.Metrics{
		InvestorsActive: len(s.users),
		AssetsTracked:   assets,
		AlertsTriggered: alerts,
	}, nil
}

// ListWallets joins every wallet to its owner for the admin view.
func (s *Store) ListWallets(_ context.Context) ([]models.WalletSummary, error) {
	s.mu.RLock()
	users := make([]models.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	wallets := make(map[int64]*wallet, len(s.wallets))
	for id, w := range s.wallets {
		wallets[id] = w
	}
	s.mu.RUnlock()

	out := make([]models.WalletSummary, 0, len(users))
	for _, user := range users {
		summary := models.WalletSummary{UserID: user.ID, Email: user.Email, Role: string(user.Role)}
		if w, ok := wallets[user.ID]; ok {
			w.mu.Lock()
			summary.Balance = w.balance
			summary.UpdatedAt = w.updated
			w.mu.Unlock()
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
