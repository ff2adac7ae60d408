// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server needs to run.
type Config struct {
	// Bind is the listen address, e.g. "0.0.0.0:8080".
	Bind string

	// DBPath is the SQLite database file path.
	DBPath string

	// BotToken is the Telegram bot token. Required: it both verifies
	// Mini App init data and sends confirmation messages.
	BotToken string

	// JWTSecret signs session tokens.
	JWTSecret string

	// AdminTelegramIDs may call the administrative endpoints.
	AdminTelegramIDs []int64

	// IndexerBaseURL is the chain indexer endpoint; IndexerAPIKey may be
	// empty for unauthenticated tiers.
	IndexerBaseURL string
	IndexerAPIKey  string

	// IndexerTimeout bounds a single indexer query.
	IndexerTimeout time.Duration

	// FastInterval and DetailedInterval are the two reconciliation
	// schedules.
	FastInterval     time.Duration
	DetailedInterval time.Duration

	// StaleAge is how old an open intent must be before the admin sweep
	// removes it.
	StaleAge time.Duration

	// CORSOrigins is the allowed origin list for the Mini App frontend.
	CORSOrigins []string
}

// Load reads configuration from the environment, loading .env first if
// present (non-fatal when missing).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Bind:           getEnvDefault("BIND", "0.0.0.0:8080"),
		DBPath:         getEnvDefault("DB_PATH", "./data/splitton.db"),
		BotToken:       os.Getenv("BOT_TOKEN"),
		JWTSecret:      getEnvDefault("JWT_SECRET", "dev-only-change-me"),
		IndexerBaseURL: getEnvDefault("INDEXER_BASE_URL", "https://tonapi.io"),
		IndexerAPIKey:  os.Getenv("INDEXER_API_KEY"),
	}

	var err error
	if cfg.IndexerTimeout, err = durationEnv("INDEXER_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.FastInterval, err = durationEnv("RECONCILE_FAST_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.DetailedInterval, err = durationEnv("RECONCILE_DETAILED_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.StaleAge, err = durationEnv("INTENT_STALE_AGE", 24*time.Hour); err != nil {
		return nil, err
	}

	if cfg.AdminTelegramIDs, err = idListEnv("ADMIN_TELEGRAM_IDS"); err != nil {
		return nil, err
	}

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = strings.Split(origins, ",")
	} else {
		cfg.CORSOrigins = []string{"*"}
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is required")
	}
	return cfg, nil
}

func getEnvDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func idListEnv(key string) ([]int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: bad id %q: %w", key, part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
