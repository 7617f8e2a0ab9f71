package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/neliaxa/backend/internal/auth"
	"github.com/neliaxa/backend/internal/authz"
	"github.com/neliaxa/backend/internal/http/respond"
	"github.com/neliaxa/backend/internal/middleware"
	"github.com/neliaxa/backend/internal/models"
	"github.com/neliaxa/backend/internal/models/dto"
	"github.com/neliaxa/backend/internal/storage"
)

// AdminHandler owns the permission-gated management routes.
type AdminHandler struct {
	store  storage.Store
	tokens *auth.TokenManager
	log    *zap.Logger
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(store storage.Store, tokens *auth.TokenManager, log *zap.Logger) *AdminHandler {
	return &AdminHandler{store: store, tokens: tokens, log: log}
}

// Register attaches admin routes, each behind its declared permission.
func (h *AdminHandler) Register(mux *http.ServeMux) {
	gate := func(perm authz.Permission, next http.HandlerFunc) http.HandlerFunc {
		return middleware.RequireSession(h.tokens, middleware.RequirePermission(perm, next))
	}

	mux.HandleFunc("GET /api/admin/users", gate(authz.PermUsersRead, h.handleListUsers))
	mux.HandleFunc("PUT /api/admin/users/{id}/role", gate(authz.PermUsersWrite, h.handleUpdateRole))
	mux.HandleFunc("GET /api/admin/wallets", gate(authz.PermWalletsRead, h.handleListWallets))
	mux.HandleFunc("GET /api/admin/overview", gate(authz.PermMetricsRead, h.handleOverview))
	mux.HandleFunc("GET /api/admin/investments", gate(authz.PermInvestmentsRead, h.handleListInvestments))
	mux.HandleFunc("POST /api/admin/investments", gate(authz.PermInvestmentsWrite, h.handleCreateInvestment))
	mux.HandleFunc("PUT /api/admin/investments/{id}", gate(authz.PermInvestmentsWrite, h.handleUpdateInvestment))
	mux.HandleFunc("DELETE /api/admin/investments/{id}", gate(authz.PermInvestmentsWrite, h.handleDeleteInvestment))
}

func (h *AdminHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		h.log.Error("list users", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal_error")
		return
	}
	if users == nil {
		users = []models.User{}
	}
	respond.JSON(w, http.StatusOK, map[string]any{"items": users})
}

func (h *AdminHandler) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_payload")
		return
	}

	var req dto.RoleUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	role := authz.Role(req.Role)
	if !role.Valid() {
		respond.Error(w, http.StatusBadRequest, "invalid_role")
		return
	}

	user, err := h.store.UpdateUserRole(r.Context(), id, role)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "user_not_found")
			return
		}
		h.log.Error("update role", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal_error")
		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *AdminHandler) handleListWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := h.store.ListWallets(r.Context())
	if err != nil {
		h.log.Error("list wallets", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal_error")
		return
	}
	if wallets == nil {
		wallets = []models.WalletSummary{}
	}
	respond.JSON(w, http.StatusOK, map[string]any{"items": wallets})
}

func (h *AdminHandler) handleOverview(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.store.Metrics(r.Context())
	if err != nil {
		h.log.Error("overview metrics", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal_error")
		return
	}
	investments, err := h.store.ListInvestments(r.Context())
	if err != nil {
		h.log.Error("overview investments", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal_error")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"metrics":     metrics,
		"investments": len(investments),
	})
}

func (h *AdminHandler) handleListInvestments(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListInvestments(r.Context())
	if err != nil {
		h.log.Error("admin list investments", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal_error")
		return
	}
	if items == nil {
		items = []models.Investment{}
	}
	respond.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func decodeInvestment(r *http.Request) (models.Investment, bool) {
	var inv models.Investment
	if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
		return models.Investment{}, false
	}
	if inv.Name == "" || inv.MinAmount <= 0 || inv.TermMonths <= 0 {
		return models.Investment{}, false
	}
	return inv, true
}

func (h *AdminHandler) handleCreateInvestment(w http.ResponseWriter, r *http.Request) {
	inv, ok := decodeInvestment(r)
	if !ok || inv.ID == "" {
		respond.Error(w, http.StatusBadRequest, "invalid_payload")
		return
	}

	created, err := h.store.CreateInvestment(r.Context(), inv)
	if err != nil {
		h.log.Error("create investment", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal_error")
		return
	}
	respond.JSON(w, http.StatusCreated, created)
}

func (h *AdminHandler) handleUpdateInvestment(w http.ResponseWriter, r *http.Request) {
	inv, ok := decodeInvestment(r)
	if !ok {
		respond.Error(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	inv.ID = r.PathValue("id")

	updated, err := h.store.UpdateInvestment(r.Context(), inv)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "not_found")
			return
		}
		h.log.Error("update investment", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal_error")
		return
	}
	respond.JSON(w, http.StatusOK, updated)
}

func (h *AdminHandler) handleDeleteInvestment(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteInvestment(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "not_found")
			return
		}
		h.log.Error("delete investment", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
