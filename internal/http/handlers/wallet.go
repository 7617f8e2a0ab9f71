package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/neliaxa/backend/internal/auth"
	"github.com/neliaxa/backend/internal/http/respond"
	"github.com/neliaxa/backend/internal/ledger"
	"github.com/neliaxa/backend/internal/middleware"
	"github.com/neliaxa/backend/internal/models"
	"github.com/neliaxa/backend/internal/models/dto"
	"github.com/neliaxa/backend/internal/storage"
)

// historyLimit bounds the transaction list returned with the wallet.
const historyLimit = 50

// WalletHandler owns the per-user wallet and portfolio read endpoints.
type WalletHandler struct {
	engine  *ledger.Engine
	catalog storage.CatalogStore
	tokens  *auth.TokenManager
	log     *zap.Logger
}

// NewWalletHandler constructs the handler.
func NewWalletHandler(engine *ledger.Engine, catalog storage.CatalogStore, tokens *auth.TokenManager, log *zap.Logger) *WalletHandler {
	return &WalletHandler{engine: engine, catalog: catalog, tokens: tokens, log: log}
}

// Register attaches wallet and portfolio routes to the mux.
func (h *WalletHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/wallet", middleware.RequireSession(h.tokens, h.handleGet))
	mux.HandleFunc("POST /api/wallet/deposit", middleware.RequireSession(h.tokens, h.handleDeposit))
	mux.HandleFunc("POST /api/wallet/withdraw", middleware.RequireSession(h.tokens, h.handleWithdraw))
	mux.HandleFunc("GET /api/portfolio", middleware.RequireSession(h.tokens, h.handlePortfolio))
	mux.HandleFunc("GET /api/performance", middleware.RequireSession(h.tokens, h.handlePerformance))
	mux.HandleFunc("GET /api/dashboard/summary", middleware.RequireSession(h.tokens, h.handleSummary))
}

func (h *WalletHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFrom(r.Context())

	snapshot, err := h.engine.GetWallet(r.Context(), claims.UserID(), historyLimit)
	if err != nil {
		h.log.Error("get wallet", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal_error")
		return
	}

	txs := snapshot.Transactions
	if txs == nil {
		txs = []models.WalletTransaction{}
	}
	respond.JSON(w, http.StatusOK, dto.WalletResponse{
		Balance:      snapshot.Balance,
		UpdatedAt:    snapshot.UpdatedAt,
		Transactions: txs,
	})
}

func (h *WalletHandler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, models.DirectionDeposit)
}

func (h *WalletHandler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, models.DirectionWithdraw)
}

func (h *WalletHandler) apply(w http.ResponseWriter, r *http.Request, direction models.Direction) {
	claims, _ := middleware.ClaimsFrom(r.Context())

	var req dto.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_payload")
		return
	}

	wallet, err := h.engine.Apply(r.Context(), claims.UserID(), direction, req.Amount, req.Label())
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, storage.ErrBalanceOverflow):
			respond.Error(w, http.StatusBadRequest, "invalid_amount")
		case errors.Is(err, storage.ErrInsufficientFunds):
			respond.Error(w, http.StatusUnprocessableEntity, "insufficient_funds")
		default:
			h.log.Error("apply transaction", zap.Error(err))
			respond.Error(w, http.StatusInternalServerError, "internal_error")
		}
		return
	}

	respond.JSON(w, http.StatusOK, dto.BalanceResponse{Balance: wallet.Balance, UpdatedAt: wallet.UpdatedAt})
}

func (h *WalletHandler) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFrom(r.Context())

	positions, err := h.catalog.PortfolioByUser(r.Context(), claims.UserID())
	if err != nil {
		h.log.Error("portfolio", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal_error")
		return
	}
	if positions == nil {
		positions = []models.Position{}
	}
	respond.JSON(w, http.StatusOK, map[string]any{"items": positions})
}

func (h *WalletHandler) handlePerformance(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFrom(r.Context())

	points, err := h.catalog.PerformanceByUser(r.Context(), claims.UserID())
	if err != nil {
		h.log.Error("performance", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal_error")
		return
	}
	if points == nil {
		points = []models.PerformancePoint{}
	}
	respond.JSON(w, http.StatusOK, map[string]any{"points": points})
}

func (h *WalletHandler) handleSummary(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFrom(r.Context())

	positions, err := h.catalog.PortfolioByUser(r.Context(), claims.UserID())
	if err != nil {
		h.log.Error("summary", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal_error")
		return
	}

	var invested, projected float64
	for _, pos := range positions {
		invested += float64(pos.Amount)
		projected += float64(pos.Amount) * pos.Investment.ROIMax * float64(pos.Investment.TermMonths) / 12
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"totalInvested": int64(invested + 0.5),
		"projectedRoi":  int64(projected + 0.5),
		"positions":     len(positions),
	})
}
