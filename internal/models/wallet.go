package models

import "time"

// Direction marks whether a ledger entry adds to or subtracts from a balance.
type Direction string

const (
	DirectionDeposit  Direction = "deposit"
	DirectionWithdraw Direction = "withdraw"
)

// TransactionCompleted is the only transaction status modeled; deposits and
// withdrawals apply synchronously, so there are no pending or failed states.
const TransactionCompleted = "completed"

// Wallet holds one balance per user in the smallest currency unit.
type Wallet struct {
	UserID    int64     `json:"userId"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// WalletTransaction is an immutable ledger entry.
type WalletTransaction struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"-"`
	Direction Direction `json:"direction"`
	Amount    int64     `json:"amount"`
	Method    string    `json:"method"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// WalletSummary is the admin-facing view of a wallet joined to its owner.
type WalletSummary struct {
	UserID    int64     `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updatedAt"`
}
