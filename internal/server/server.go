package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/neliaxa/backend/internal/auth"
	"github.com/neliaxa/backend/internal/config"
	"github.com/neliaxa/backend/internal/http/handlers"
	"github.com/neliaxa/backend/internal/ledger"
	"github.com/neliaxa/backend/internal/middleware"
	"github.com/neliaxa/backend/internal/storage"
	"github.com/neliaxa/backend/internal/twofactor"
)

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, store storage.Store, log *zap.Logger) *Server {
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.SessionTTL, cfg.ChallengeTTL)
	totp := twofactor.New(cfg.TOTPIssuer, cfg.TOTPSkew)
	authService := auth.NewService(store, tokens, totp)
	ledgerEngine := ledger.NewEngine(store, log)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(time.Now()).Register(mux)
	handlers.NewAuthHandler(authService, tokens, store, log).Register(mux)
	handlers.NewTwoFactorHandler(authService, tokens, log).Register(mux)
	handlers.NewWalletHandler(ledgerEngine, store, tokens, log).Register(mux)
	handlers.NewCatalogHandler(store, log).Register(mux)
	handlers.NewAdminHandler(store, tokens, log).Register(mux)

	handler := middleware.CORS(cfg.CORSOrigins, middleware.Logging(log, mux))

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer}
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
