package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neliaxa/backend/internal/authz"
	"github.com/neliaxa/backend/internal/models"
	"github.com/neliaxa/backend/internal/storage"
)

// Ensure Store satisfies the full storage surface at compile time.
var _ storage.Store = (*Store)(nil)

// Store provides Postgres-backed persistence.
type Store struct {
	pool *pgxpool.Pool
}

// New connects a pool and runs migrations.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			totp_secret TEXT NOT NULL DEFAULT '',
			totp_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS wallets (
			user_id BIGINT PRIMARY KEY REFERENCES users(id),
			balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS wallet_transactions (
			id TEXT PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			direction TEXT NOT NULL CHECK (direction IN ('deposit', 'withdraw')),
			amount BIGINT NOT NULL CHECK (amount > 0),
			method TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'completed',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS wallet_transactions_user_idx
			ON wallet_transactions (user_id, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS investments (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			min_amount BIGINT NOT NULL,
			term_months INT NOT NULL,
			roi_min DOUBLE PRECISION NOT NULL,
			roi_max DOUBLE PRECISION NOT NULL,
			risk TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS positions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			investment_id TEXT NOT NULL REFERENCES investments(id),
			amount BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS performance (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			month TEXT NOT NULL,
			value BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, month)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

const userColumns = `id, email, password_hash, role, totp_secret, totp_enabled, created_at`

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Role,
		&user.TwoFactorSecret, &user.TwoFactorEnabled, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

// CreateUser inserts a user row and its zero-balance wallet in one
// transaction, so every identity has exactly one wallet.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.User{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns+`;`,
		user.Email, user.PasswordHash, user.Role)
	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.User{}, storage.ErrDuplicateEmail
		}
		return models.User{}, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING;`,
		created.ID); err != nil {
		return models.User{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return models.User{}, err
	}
	return created, nil
}

// FindByEmail fetches a user by exact email.
func (s *Store) FindByEmail(ctx context.Context, email string) (models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1;`, email)
	return scanUser(row)
}

// FindByID fetches a user by id.
func (s *Store) FindByID(ctx context.Context, id int64) (models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1;`, id)
	return scanUser(row)
}

// ListUsers returns all users, newest first.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

// UpdateUserRole changes the role of an existing user.
func (s *Store) UpdateUserRole(ctx context.Context, id int64, role authz.Role) (models.User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users SET role = $2 WHERE id = $1
		RETURNING `+userColumns+`;`, id, role)
	return scanUser(row)
}

// SetTwoFactorSecret stores a pending secret without touching the flag.
func (s *Store) SetTwoFactorSecret(ctx context.Context, id int64, secret string) error {
	return s.execUser(ctx, `UPDATE users SET totp_secret = $2 WHERE id = $1;`, id, secret)
}

// EnableTwoFactor flips the flag on a previously stored secret.
func (s *Store) EnableTwoFactor(ctx context.Context, id int64) error {
	return s.execUser(ctx, `UPDATE users SET totp_enabled = TRUE WHERE id = $1 AND totp_secret <> '';`, id)
}

// DisableTwoFactor clears the secret and the flag in one statement.
func (s *Store) DisableTwoFactor(ctx context.Context, id int64) error {
	return s.execUser(ctx, `UPDATE users SET totp_secret = '', totp_enabled = FALSE WHERE id = $1;`, id)
}

func (s *Store) execUser(ctx context.Context, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetWallet returns the wallet, creating it at zero if absent.
func (s *Store) GetWallet(ctx context.Context, userID int64) (models.Wallet, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO wallets (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING user_id, balance, updated_at;`, userID)
	var w models.Wallet
	if err := row.Scan(&w.UserID, &w.Balance, &w.UpdatedAt); err != nil {
		return models.Wallet{}, err
	}
	return w, nil
}

// ListTransactions returns the newest-first history bounded by limit, with
// limit <= 0 yielding no rows per the WalletStore contract. The short-circuit
// also keeps a negative limit from reaching Postgres, which rejects it.
func (s *Store) ListTransactions(ctx context.Context, userID int64, limit int) ([]models.WalletTransaction, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, direction, amount, method, status, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2;`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.WalletTransaction
	for rows.Next() {
		var tx models.WalletTransaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Direction, &tx.Amount,
			&tx.Method, &tx.Status, &tx.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// ApplyTransaction updates the balance and appends the history row in one
// transaction, holding a row lock on the wallet so concurrent requests for
// the same account serialize and the insufficient-funds check is evaluated
// against the balance at the moment of application.
func (s *Store) ApplyTransaction(ctx context.Context, entry models.WalletTransaction) (models.Wallet, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.Wallet{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING;`,
		entry.UserID); err != nil {
		return models.Wallet{}, err
	}

	var balance int64
	if err := tx.QueryRow(ctx, `
		SELECT balance FROM wallets WHERE user_id = $1 FOR UPDATE;`,
		entry.UserID).Scan(&balance); err != nil {
		return models.Wallet{}, err
	}

	switch entry.Direction {
	case models.DirectionDeposit:
		if entry.Amount > math.MaxInt64-balance {
			return models.Wallet{}, storage.ErrBalanceOverflow
		}
		balance += entry.Amount
	case models.DirectionWithdraw:
		if entry.Amount > balance {
			return models.Wallet{}, storage.ErrInsufficientFunds
		}
		balance -= entry.Amount
	}

	var w models.Wallet
	if err := tx.QueryRow(ctx, `
		UPDATE wallets SET balance = $2, updated_at = $3 WHERE user_id = $1
		RETURNING user_id, balance, updated_at;`,
		entry.UserID, balance, entry.CreatedAt).Scan(&w.UserID, &w.Balance, &w.UpdatedAt); err != nil {
		return models.Wallet{}, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO wallet_transactions (id, user_id, direction, amount, method, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);`,
		entry.ID, entry.UserID, entry.Direction, entry.Amount, entry.Method, entry.Status, entry.CreatedAt); err != nil {
		return models.Wallet{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Wallet{}, err
	}
	return w, nil
}

// ListInvestments returns the catalog sorted by name.
func (s *Store) ListInvestments(ctx context.Context) ([]models.Investment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, category, min_amount, term_months, roi_min, roi_max, risk
		FROM investments ORDER BY name;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Investment
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func scanInvestment(row pgx.Row) (models.Investment, error) {
	var inv models.Investment
	if err := row.Scan(&inv.ID, &inv.Name, &inv.Category, &inv.MinAmount,
		&inv.TermMonths, &inv.ROIMin, &inv.ROIMax, &inv.Risk); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Investment{}, storage.ErrNotFound
		}
		return models.Investment{}, err
	}
	return inv, nil
}

// GetInvestment fetches one catalog entry.
func (s *Store) GetInvestment(ctx context.Context, id string) (models.Investment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, category, min_amount, term_months, roi_min, roi_max, risk
		FROM investments WHERE id = $1;`, id)
	return scanInvestment(row)
}

// CreateInvestment adds a catalog entry.
func (s *Store) CreateInvestment(ctx context.Context, inv models.Investment) (models.Investment, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO investments (id, name, category, min_amount, term_months, roi_min, roi_max, risk)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, category = EXCLUDED.category,
			min_amount = EXCLUDED.min_amount, term_months = EXCLUDED.term_months,
			roi_min = EXCLUDED.roi_min, roi_max = EXCLUDED.roi_max, risk = EXCLUDED.risk
		RETURNING id, name, category, min_amount, term_months, roi_min, roi_max, risk;`,
		inv.ID, inv.Name, inv.Category, inv.MinAmount, inv.TermMonths, inv.ROIMin, inv.ROIMax, inv.Risk)
	return scanInvestment(row)
}

// UpdateInvestment replaces an existing catalog entry.
func (s *Store) UpdateInvestment(ctx context.Context, inv models.Investment) (models.Investment, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE investments SET
			name = $2, category = $3, min_amount = $4, term_months = $5,
			roi_min = $6, roi_max = $7, risk = $8
		WHERE id = $1
		RETURNING id, name, category, min_amount, term_months, roi_min, roi_max, risk;`,
		inv.ID, inv.Name, inv.Category, inv.MinAmount, inv.TermMonths, inv.ROIMin, inv.ROIMax, inv.Risk)
	return scanInvestment(row)
}

// DeleteInvestment removes a catalog entry.
func (s *Store) DeleteInvestment(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM investments WHERE id = $1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// PortfolioByUser returns positions joined to their investments, newest first.
func (s *Store) PortfolioByUser(ctx context.Context, userID int64) ([]models.Position, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.amount, p.created_at,
			i.id, i.name, i.category, i.min_amount, i.term_months, i.roi_min, i.roi_max, i.risk
		FROM positions p
		JOIN investments i ON i.id = p.investment_id
		WHERE p.user_id = $1
		ORDER BY p.created_at DESC;`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Position
	for rows.Next() {
		var pos models.Position
		if err := rows.Scan(&pos.ID, &pos.Amount, &pos.CreatedAt,
			&pos.Investment.ID, &pos.Investment.Name, &pos.Investment.Category,
			&pos.Investment.MinAmount, &pos.Investment.TermMonths,
			&pos.Investment.ROIMin, &pos.Investment.ROIMax, &pos.Investment.Risk); err != nil {
			return nil, err
		}
		out = append(out, pos)
	}
	return out, rows.Err()
}

// CreatePosition records a stake.
func (s *Store) CreatePosition(ctx context.Context, userID int64, investmentID string, amount int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO positions (user_id, investment_id, amount) VALUES ($1, $2, $3);`,
		userID, investmentID, amount)
	return err
}

// PerformanceByUser returns the month-ordered valuation history.
func (s *Store) PerformanceByUser(ctx context.Context, userID int64) ([]models.PerformancePoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT month, value FROM performance WHERE user_id = $1 ORDER BY month;`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PerformancePoint
	for rows.Next() {
		var point models.PerformancePoint
		if err := rows.Scan(&point.Month, &point.Value); err != nil {
			return nil, err
		}
		out = append(out, point)
	}
	return out, rows.Err()
}

// UpsertPerformance records one month's value, idempotently.
func (s *Store) UpsertPerformance(ctx context.Context, userID int64, month string, value int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO performance (user_id, month, value) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, month) DO UPDATE SET value = EXCLUDED.value;`,
		userID, month, value)
	return err
}

// Metrics aggregates platform-wide counters.
func (s *Store) Metrics(ctx context.Context) (models.Metrics, error) {
	var m models.Metrics
	if err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COALESCE(SUM(amount), 0) FROM positions);`).
		Scan(&m.InvestorsActive, &m.AssetsTracked); err != nil {
		return models.Metrics{}, err
	}
	m.AlertsTriggered = m.InvestorsActive * 15 / 100
	if m.AlertsTriggered < 300 {
		m.AlertsTriggered = 300
	}
	return m, nil
}

// ListWallets joins every wallet to its owner for the admin view.
func (s *Store) ListWallets(ctx context.Context) ([]models.WalletSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT u.id, u.email, u.role, COALESCE(w.balance, 0), COALESCE(w.updated_at, u.created_at)
		FROM users u
		LEFT JOIN wallets w ON w.user_id = u.id
		ORDER BY u.id;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.WalletSummary
	for rows.Next() {
		var summary models.WalletSummary
		if err := rows.Scan(&summary.UserID, &summary.Email, &summary.Role,
			&summary.Balance, &summary.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}
