package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"credit_ledger/internal/oauth"
)

// Config holds all runtime configuration for the server
type Config struct {
	ServerPort string
	SessionTTL time.Duration

	// Seed admin replaces the observed hardcoded admin credential; it is
	// configured here so the bypass is visible and testable.
	SeedAdminUsername string
	SeedAdminPassword string

	Google oauth.Config
}

// Load reads configuration from the environment with defaults. Missing
// OAuth values fall back to placeholders that will fail upstream rather
// than preventing startup.
func Load() *Config {
	cfg := &Config{
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		SessionTTL:        loadSessionTTL(),
		SeedAdminUsername: getEnv("SEED_ADMIN_USERNAME", "admin"),
		SeedAdminPassword: getEnv("SEED_ADMIN_PASSWORD", "admin123"),
		Google: oauth.Config{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", "unconfigured-client-id"),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", "unconfigured-client-secret"),
			RedirectURI:  getEnv("GOOGLE_REDIRECT_URI", "http://localhost:8080/auth/google/callback"),
		},
	}
	return cfg
}

func loadSessionTTL() time.Duration {
	raw := getEnv("SESSION_TTL_HOURS", "24")
	hours, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || hours <= 0 {
		log.Printf("invalid SESSION_TTL_HOURS %q, defaulting to 24", raw)
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
