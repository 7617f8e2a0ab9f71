package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/neliaxa/backend/internal/config"
	"github.com/neliaxa/backend/internal/seed"
	"github.com/neliaxa/backend/internal/server"
	"github.com/neliaxa/backend/internal/storage"
	"github.com/neliaxa/backend/internal/storage/memory"
	"github.com/neliaxa/backend/internal/storage/postgres"
)

func main() {
	loadLocalEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	var store storage.Store
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("init database", zap.Error(err))
		}
		defer pg.Close()
		store = pg
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		store = memory.New()
	}

	if err := seed.Run(ctx, store, seed.Accounts{
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
		DemoEmail:     cfg.DemoEmail,
		DemoPassword:  cfg.DemoPassword,
	}, logger); err != nil {
		logger.Fatal("seed data", zap.Error(err))
	}

	srv := server.New(cfg, store, logger)

	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddress()))
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error("graceful shutdown", zap.Error(err))
	}
}

func loadLocalEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found; relying on existing environment")
	}
}
