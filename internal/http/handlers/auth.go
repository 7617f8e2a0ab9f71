package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/neliaxa/backend/internal/auth"
	"github.com/neliaxa/backend/internal/http/respond"
	"github.com/neliaxa/backend/internal/middleware"
	"github.com/neliaxa/backend/internal/models/dto"
	"github.com/neliaxa/backend/internal/storage"
)

const minPasswordLength = 6

// AuthHandler owns registration, login, and the second-factor challenge.
type AuthHandler struct {
	service *auth.Service
	tokens  *auth.TokenManager
	users   storage.UserStore
	log     *zap.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(service *auth.Service, tokens *auth.TokenManager, users storage.UserStore, log *zap.Logger) *AuthHandler {
	return &AuthHandler{service: service, tokens: tokens, users: users, log: log}
}

// Register attaches auth routes to the mux.
func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/register", h.handleRegister)
	mux.HandleFunc("POST /api/auth/login", h.handleLogin)
	mux.HandleFunc("POST /api/auth/2fa/verify", middleware.RequireChallenge(h.tokens, h.handleVerify))
	mux.HandleFunc("GET /api/auth/me", middleware.RequireSession(h.tokens, h.handleMe))
}

func validCredentials(email, password string) bool {
	if _, err := mail.ParseAddress(email); err != nil {
		return false
	}
	return len(password) >= minPasswordLength
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if !validCredentials(req.Email, req.Password) {
		respond.Error(w, http.StatusBadRequest, "invalid_payload")
		return
	}

	user, token, err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			respond.Error(w, http.StatusConflict, "email_in_use")
			return
		}
		h.log.Error("register", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal_error")
		return
	}

	respond.JSON(w, http.StatusCreated, dto.LoginResponse{Token: token, User: &user})
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		respond.Error(w, http.StatusBadRequest, "invalid_payload")
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respond.Error(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		h.log.Error("login", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal_error")
		return
	}

	if result.Requires2FA {
		respond.JSON(w, http.StatusOK, dto.LoginResponse{Requires2FA: true, TempToken: result.Token})
		return
	}
	respond.JSON(w, http.StatusOK, dto.LoginResponse{Token: result.Token, User: &result.User})
}

func (h *AuthHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFrom(r.Context())

	var req dto.TwoFactorCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		respond.Error(w, http.StatusBadRequest, "invalid_payload")
		return
	}

	user, token, err := h.service.CompleteSecondFactor(r.Context(), claims.UserID(), req.Code)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCode):
			respond.Error(w, http.StatusUnauthorized, "invalid_code")
		case errors.Is(err, auth.ErrAccountNotFound):
			respond.Error(w, http.StatusNotFound, "user_not_found")
		default:
			h.log.Error("2fa verify", zap.Error(err))
			respond.Error(w, http.StatusInternalServerError, "internal_error")
		}
		return
	}

	respond.JSON(w, http.StatusOK, dto.LoginResponse{Token: token, User: &user})
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFrom(r.Context())

	user, err := h.users.FindByID(r.Context(), claims.UserID())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "user_not_found")
			return
		}
		h.log.Error("me", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal_error")
		return
	}

	respond.JSON(w, http.StatusOK, dto.MeResponse{User: user})
}
