package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the environment-derived settings for one ingestion process.
type Config struct {
	// Scan API base URL, e.g. https://scan.example.com/api/scan
	ScanURL string

	// Postgres connection string for the sink
	DatabaseURL string

	// Updates requested per fetch
	PageSize int

	// Buffered rows that trigger a persist
	BatchSize int

	// Pages per invocation, so every run terminates
	MaxPages int

	// Cumulative inserted rows that trigger downstream materialization
	// (0 disables)
	MaterializeThreshold int

	// Re-run cadence; 0 means one-shot
	PollInterval time.Duration

	// debug | info | warn | error
	LogLevel string

	// Address for /metrics and /healthz; empty disables the endpoint
	MetricsAddr string
}

// Load reads the configuration from environment variables. Values that
// are set but unparseable are errors, never silently defaulted.
func Load() (*Config, error) {
	cfg := &Config{
		ScanURL:              os.Getenv("SCAN_URL"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		PageSize:             100,
		BatchSize:            500,
		MaxPages:             50,
		MaterializeThreshold: 10000,
		LogLevel:             "info",
		MetricsAddr:          os.Getenv("METRICS_ADDR"),
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	var err error
	if cfg.PageSize, err = intEnv("PAGE_SIZE", cfg.PageSize); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = intEnv("BATCH_SIZE", cfg.BatchSize); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = intEnv("MAX_PAGES", cfg.MaxPages); err != nil {
		return nil, err
	}
	if cfg.MaterializeThreshold, err = intEnv("MATERIALIZE_THRESHOLD", cfg.MaterializeThreshold); err != nil {
		return nil, err
	}

	pollSec, err := intEnv("POLL_INTERVAL_SEC", 0)
	if err != nil {
		return nil, err
	}
	cfg.PollInterval = time.Duration(pollSec) * time.Second

	return cfg, nil
}

// Validate checks if the configuration is valid. Failures here are fatal
// at startup.
func (c *Config) Validate() error {
	if c.ScanURL == "" {
		return fmt.Errorf("SCAN_URL is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive, got %d", c.BatchSize)
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("MAX_PAGES must be positive, got %d", c.MaxPages)
	}
	if c.MaterializeThreshold < 0 {
		return fmt.Errorf("MATERIALIZE_THRESHOLD must not be negative, got %d", c.MaterializeThreshold)
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("POLL_INTERVAL_SEC must not be negative")
	}
	return nil
}

func intEnv(key string, defaultVal int) (int, error) {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q is not an integer", key, valStr)
	}
	return val, nil
}
