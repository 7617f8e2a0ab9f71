package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/neliaxa/backend/internal/auth"
	"github.com/neliaxa/backend/internal/http/respond"
	"github.com/neliaxa/backend/internal/middleware"
	"github.com/neliaxa/backend/internal/models/dto"
)

// TwoFactorHandler owns enrollment: setup, confirm, disable. All three run
// behind a full session token; possession of the account is proven by the
// submitted code, not by the token alone.
type TwoFactorHandler struct {
	service *auth.Service
	tokens  *auth.TokenManager
	log     *zap.Logger
}

// NewTwoFactorHandler constructs the handler.
func NewTwoFactorHandler(service *auth.Service, tokens *auth.TokenManager, log *zap.Logger) *TwoFactorHandler {
	return &TwoFactorHandler{service: service, tokens: tokens, log: log}
}

// Register attaches enrollment routes to the mux.
func (h *TwoFactorHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/2fa/setup", middleware.RequireSession(h.tokens, h.handleSetup))
	mux.HandleFunc("POST /api/2fa/confirm", middleware.RequireSession(h.tokens, h.handleConfirm))
	mux.HandleFunc("POST /api/2fa/disable", middleware.RequireSession(h.tokens, h.handleDisable))
}

func (h *TwoFactorHandler) handleSetup(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFrom(r.Context())

	enrollment, err := h.service.EnrollSecondFactor(r.Context(), claims.UserID())
	if err != nil {
		if errors.Is(err, auth.ErrAccountNotFound) {
			respond.Error(w, http.StatusNotFound, "user_not_found")
			return
		}
		h.log.Error("2fa setup", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal_error")
		return
	}

	respond.JSON(w, http.StatusOK, dto.TwoFactorSetupResponse{
		Secret:        enrollment.Secret,
		EnrollmentURI: enrollment.EnrollmentURI,
	})
}

func (h *TwoFactorHandler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.ConfirmSecondFactor, true)
}

func (h *TwoFactorHandler) handleDisable(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.service.DisableSecondFactor, false)
}

func (h *TwoFactorHandler) mutate(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID int64, code string) error, enabled bool) {
	claims, _ := middleware.ClaimsFrom(r.Context())

	var req dto.TwoFactorCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		respond.Error(w, http.StatusBadRequest, "invalid_payload")
		return
	}

	if err := op(r.Context(), claims.UserID(), req.Code); err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCode):
			respond.Error(w, http.StatusUnauthorized, "invalid_code")
		case errors.Is(err, auth.ErrAccountNotFound):
			respond.Error(w, http.StatusNotFound, "user_not_found")
		default:
			h.log.Error("2fa mutate", zap.Error(err))
			respond.Error(w, http.StatusInternalServerError, "internal_error")
		}
		return
	}

	respond.JSON(w, http.StatusOK, dto.TwoFactorStatusResponse{Enabled: enabled})
}
