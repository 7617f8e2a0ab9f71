package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port         string
	DatabaseURL  string
	JWTSecret    string
	JWTIssuer    string
	SessionTTL   time.Duration
	ChallengeTTL time.Duration
	TOTPIssuer   string
	TOTPSkew     uint
	CORSOrigins  []string

	AdminEmail    string
	AdminPassword string
	DemoEmail     string
	DemoPassword  string
}

// Load reads configuration from the environment and performs minimal
// validation. An empty DATABASE_URL selects the in-memory store.
func Load() (Config, error) {
	cfg := Config{
		Port:          fallback(os.Getenv("PORT"), "4000"),
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		JWTSecret:     strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTIssuer:     fallback(os.Getenv("JWT_ISSUER"), "neliaxa"),
		SessionTTL:    durationHours("SESSION_TTL_HOURS", 7*24),
		ChallengeTTL:  durationMinutes("CHALLENGE_TTL_MINUTES", 10),
		TOTPIssuer:    fallback(os.Getenv("TOTP_ISSUER"), "Neliaxa"),
		TOTPSkew:      1,
		CORSOrigins:   parseCSV(fallback(os.Getenv("CORS_ALLOWED_ORIGINS"), "*")),
		AdminEmail:    fallback(os.Getenv("ADMIN_EMAIL"), "admin@neliaxa.com"),
		AdminPassword: fallback(os.Getenv("ADMIN_PASSWORD"), "admin1234"),
		DemoEmail:     fallback(os.Getenv("DEMO_EMAIL"), "demo@neliaxa.com"),
		DemoPassword:  fallback(os.Getenv("DEMO_PASSWORD"), "demo1234"),
	}

	if skew, err := strconv.Atoi(os.Getenv("TOTP_SKEW")); err == nil && skew >= 0 {
		cfg.TOTPSkew = uint(skew)
	}

	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func durationHours(key string, def int) time.Duration {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return time.Duration(v) * time.Hour
	}
	return time.Duration(def) * time.Hour
}

func durationMinutes(key string, def int) time.Duration {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return time.Duration(v) * time.Minute
	}
	return time.Duration(def) * time.Minute
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
