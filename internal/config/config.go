// Package config loads process configuration from the environment. A .env
// file is honored when present.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	Port        string

	// PrimaryTZ seeds the primary_tz setting on first init; the engine
	// itself re-reads the zone from the settings table per operation.
	PrimaryTZ string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleTokenJSON    string
	GoogleTokenFile    string

	StaticTokens []string
	JWTSecret    string
}

// Load reads the environment (after best-effort .env loading). DATABASE_URL
// is the only required variable.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		Port:               getenv("PORT", "8080"),
		PrimaryTZ:          getenv("PRIMARY_TZ", "Europe/Minsk"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleTokenJSON:    os.Getenv("GOOGLE_TOKEN_JSON"),
		GoogleTokenFile:    getenv("GOOGLE_TOKEN_FILE", "data/token.json"),
		JWTSecret:          strings.TrimSpace(os.Getenv("JWT_HMAC_SECRET")),
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}

	for _, t := range strings.Split(os.Getenv("STATIC_TOKENS"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			cfg.StaticTokens = append(cfg.StaticTokens, t)
		}
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
