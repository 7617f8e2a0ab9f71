// Package seed provisions the investment catalog and the stock admin/demo
// accounts on startup. Everything here is idempotent: existing records are
// left alone so restarts never duplicate data.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/neliaxa/backend/internal/authz"
	"github.com/neliaxa/backend/internal/models"
	"github.com/neliaxa/backend/internal/storage"
)

var catalog = []models.Investment{
	{ID: "green-bonds", Name: "Green Bonds", Category: "Fixed income", MinAmount: 500, TermMonths: 12, ROIMin: 0.04, ROIMax: 0.055, Risk: "Low"},
	{ID: "startup-growth", Name: "Startup Growth", Category: "Venture capital", MinAmount: 1500, TermMonths: 18, ROIMin: 0.055, ROIMax: 0.07, Risk: "Medium"},
	{ID: "real-estate", Name: "Urban Real Estate", Category: "Real estate", MinAmount: 2000, TermMonths: 24, ROIMin: 0.045, ROIMax: 0.065, Risk: "Medium"},
	{ID: "crypto-yield", Name: "Digital Yield", Category: "Digital assets", MinAmount: 750, TermMonths: 6, ROIMin: 0.05, ROIMax: 0.07, Risk: "High"},
}

// Accounts carries the provisioned credentials, sourced from config.
type Accounts struct {
	AdminEmail    string
	AdminPassword string
	DemoEmail     string
	DemoPassword  string
}

// Run seeds the catalog, the admin and demo accounts, and demo portfolio
// data for both.
func Run(ctx context.Context, store storage.Store, accounts Accounts, log *zap.Logger) error {
	if err := seedCatalog(ctx, store); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}

	admin, err := ensureUser(ctx, store, accounts.AdminEmail, accounts.AdminPassword, authz.RoleAdmin)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	demo, err := ensureUser(ctx, store, accounts.DemoEmail, accounts.DemoPassword, authz.RoleUser)
	if err != nil {
		return fmt.Errorf("seed demo: %w", err)
	}

	for _, user := range []models.User{admin, demo} {
		if err := seedPositions(ctx, store, user.ID); err != nil {
			return fmt.Errorf("seed positions for %s: %w", user.Email, err)
		}
		if err := seedPerformance(ctx, store, user.ID); err != nil {
			return fmt.Errorf("seed performance for %s: %w", user.Email, err)
		}
	}

	log.Info("seed complete",
		zap.String("admin", admin.Email),
		zap.String("demo", demo.Email),
		zap.Int("investments", len(catalog)))
	return nil
}

func seedCatalog(ctx context.Context, store storage.Store) error {
	existing, err := store.ListInvestments(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for _, inv := range catalog {
		if _, err := store.CreateInvestment(ctx, inv); err != nil {
			return err
		}
	}
	return nil
}

func ensureUser(ctx context.Context, store storage.Store, email, password string, role authz.Role) (models.User, error) {
	user, err := store.FindByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return models.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}
	return store.CreateUser(ctx, models.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	})
}

func seedPositions(ctx context.Context, store storage.Store, userID int64) error {
	existing, err := store.PortfolioByUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	stakes := map[string]int64{
		"green-bonds":    5000,
		"startup-growth": 3200,
		"real-estate":    7800,
	}
	for investmentID, amount := range stakes {
		if err := store.CreatePosition(ctx, userID, investmentID, amount); err != nil {
			return err
		}
	}
	return nil
}

func seedPerformance(ctx context.Context, store storage.Store, userID int64) error {
	existing, err := store.PerformanceByUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	base := 12000 + userID*1200
	now := time.Now().UTC()
	// Anchor at the first of the month so subtracting months never skips or
	// collapses a month near month-end.
	anchor := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := 5; i >= 0; i-- {
		month := anchor.AddDate(0, -i, 0).Format("2006-01")
		value := base * (1000 + int64(5-i)*35) / 1000
		if err := store.UpsertPerformance(ctx, userID, month, value); err != nil {
			return err
		}
	}
	return nil
}
