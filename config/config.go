package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultOrigin          = "https://shop.ballunia.com"
	DefaultCheckoutBaseURL = "https://ballunia.com"
	DefaultAirtableURL     = "https://api.airtable.com/v0"
	DefaultSquarespaceURL  = "https://api.squarespace.com/1.0"
	DefaultAirtableRate    = 4
)

// Config holds everything read from the process environment.
type Config struct {
	HTTPAddr string

	AirtablePAT       string
	AirtableBaseID    string
	AirtableURL       string
	TerritoriesTable  string
	SquarespaceKey    string
	SquarespaceSiteID string
	SquarespaceURL    string
	UpstreamTimeout   time.Duration
	AirtableRateLimit int

	CheckoutBaseURL string
	AllowedOrigins  []string
	DebugTokenHash  string

	CartStorage   string
	RedisAddr     string
	RedisPassword string
	CartTTL       time.Duration
	DatabaseURL   string
	SQLitePath    string

	LogLevel string
	LogDev   bool
}

// Load reads .env (when present) and the environment. Upstream credentials
// are not required here; endpoints check them per request.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:          env("HTTP_ADDR", ":8080"),
		AirtablePAT:       env("AIRTABLE_PAT", os.Getenv("AIRTABLE_API_KEY")),
		AirtableBaseID:    os.Getenv("AIRTABLE_BASE_ID"),
		AirtableURL:       env("AIRTABLE_API_URL", DefaultAirtableURL),
		TerritoriesTable:  env("AIRTABLE_TABLE_NAME", "Territories"),
		SquarespaceKey:    os.Getenv("SQS_API_KEY"),
		SquarespaceSiteID: os.Getenv("SQS_SITE_ID"),
		SquarespaceURL:    env("SQS_API_URL", DefaultSquarespaceURL),
		UpstreamTimeout:   15 * time.Second,
		AirtableRateLimit: DefaultAirtableRate,
		CheckoutBaseURL:   strings.TrimRight(env("CHECKOUT_BASE_URL", DefaultCheckoutBaseURL), "/"),
		AllowedOrigins:    []string{DefaultOrigin, "http://localhost:5173", "http://localhost:8888"},
		DebugTokenHash:    os.Getenv("DEBUG_TOKEN_HASH"),
		CartStorage:       env("CART_STORAGE", "memory"),
		RedisAddr:         env("REDIS_HOST", "localhost") + ":" + env("REDIS_PORT", "6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		CartTTL:           24 * time.Hour,
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		SQLitePath:        env("SQLITE_PATH", "data/cart.db"),
		LogLevel:          env("LOG_LEVEL", "info"),
	}

	if raw := os.Getenv("ALLOWED_ORIGINS"); raw != "" {
		var origins []string
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		if len(origins) == 0 {
			origins = []string{DefaultOrigin}
		}
		cfg.AllowedOrigins = origins
	}

	if raw := os.Getenv("AIRTABLE_RATE_LIMIT"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("AIRTABLE_RATE_LIMIT must be a positive integer, got %q", raw)
		}
		cfg.AirtableRateLimit = n
	}

	if raw := os.Getenv("UPSTREAM_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("UPSTREAM_TIMEOUT is invalid: %w", err)
		}
		cfg.UpstreamTimeout = d
	}

	if raw := os.Getenv("CART_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("CART_TTL is invalid: %w", err)
		}
		cfg.CartTTL = d
	}

	if raw := os.Getenv("LOG_DEV"); raw != "" {
		dev, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("LOG_DEV is invalid: %w", err)
		}
		cfg.LogDev = dev
	}

	switch cfg.CartStorage {
	case "memory", "redis", "sqlite":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when CART_STORAGE=postgres")
		}
	default:
		return nil, fmt.Errorf("CART_STORAGE %q is not supported", cfg.CartStorage)
	}

	return cfg, nil
}

// HasAirtable reports whether Airtable credentials are configured.
func (c *Config) HasAirtable() bool {
	return c.AirtablePAT != "" && c.AirtableBaseID != ""
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
