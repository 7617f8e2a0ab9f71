package dto

import (
	"time"

	"github.com/neliaxa/backend/internal/models"
)

// TransactionRequest covers both deposit and withdraw bodies. Deposits label
// the entry with "method", withdrawals with "destination"; whichever is
// present becomes the ledger entry's metadata label.
type TransactionRequest struct {
	Amount      int64  `json:"amount"`
	Method      string `json:"method,omitempty"`
	Destination string `json:"destination,omitempty"`
}

func (r TransactionRequest) Label() string {
	if r.Method != "" {
		return r.Method
	}
	return r.Destination
}

type WalletResponse struct {
	Balance      int64                      `json:"balance"`
	UpdatedAt    time.Time                  `json:"updatedAt"`
	Transactions []models.WalletTransaction `json:"transactions"`
}

type BalanceResponse struct {
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type RoleUpdateRequest struct {
	Role string `json:"role"`
}
