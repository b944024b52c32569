// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing or malformed, Load returns an error.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends understood by STORE_BACKEND.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config holds all runtime configuration for the discovery service.
type Config struct {
	Port         string
	DatabaseURL  string
	RedisURL     string // optional; enables the redis backend and match events
	StoreBackend string
	LogLevel     string

	TelegramToken  string
	TelegramAPIURL string
	SendTimeout    time.Duration
	SendRatePerSec float64

	ListingBaseURL string
	FetchTimeout   time.Duration
	Pages          int
	IntervalMin    time.Duration // lower bound of the random sleep between cycles
	IntervalMax    time.Duration

	Retention      time.Duration
	ReaperSchedule string // cron spec, e.g. "@every 12h"
}

// Load reads .env files (if present) and environment variables and returns a validated Config.
func Load() (*Config, error) {
	loadEnvFiles()

	cfg := &Config{
		Port:           getenv("DISCOVERY_PORT", "8081"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		StoreBackend:   strings.ToLower(getenv("STORE_BACKEND", BackendPostgres)),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		TelegramAPIURL: strings.TrimRight(getenv("TELEGRAM_API_URL", "https://api.telegram.org"), "/"),
		ListingBaseURL: strings.TrimRight(getenv("LISTING_BASE_URL", "https://www.99freelas.com.br"), "/"),
		ReaperSchedule: getenv("REAPER_SCHEDULE", "@every 12h"),
	}

	var err error
	if cfg.Pages, err = positiveInt("DISCOVERY_PAGES", 10); err != nil {
		return nil, err
	}
	if cfg.IntervalMin, err = positiveDuration("SCAN_INTERVAL_MIN", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.IntervalMax, err = positiveDuration("SCAN_INTERVAL_MAX", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Retention, err = positiveDuration("RETENTION", 12*time.Hour); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = positiveDuration("FETCH_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.SendTimeout, err = positiveDuration("SEND_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.SendRatePerSec, err = positiveFloat("SEND_RATE_PER_SEC", 1); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.IntervalMin > c.IntervalMax {
		return fmt.Errorf("SCAN_INTERVAL_MIN (%s) must not exceed SCAN_INTERVAL_MAX (%s)", c.IntervalMin, c.IntervalMax)
	}

	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s store backend", BackendPostgres)
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the %s store backend", BackendRedis)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be one of %s, %s, %s; got %q",
			BackendPostgres, BackendRedis, BackendMemory, c.StoreBackend)
	}
	return nil
}

// loadEnvFiles loads .env.local then .env. Already-set variables are never
// overwritten and missing files are ignored.
func loadEnvFiles() {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		_ = godotenv.Load(envFile)
		return
	}
	for _, f := range []string{".env.local", ".env"} {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func positiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, s)
	}
	return v, nil
}

func positiveFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive number, got %q", key, s)
	}
	return v, nil
}

func positiveDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration (e.g. 90s, 5m), got %q", key, s)
	}
	return v, nil
}
