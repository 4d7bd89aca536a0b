// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	ReportingCurrency    string
	RateRefreshInterval  time.Duration // Background refresh cadence while a view is active
	RateMaxAge           time.Duration // Entries older than this are reported as stale
	MaterialityThreshold float64       // Relative change required before a global asset is rewritten

	SnapshotSchedule string // Cron expression with seconds field
	SnapshotWorkers  int

	InsuranceLimit      float64 // Per-issuer deposit insurance limit
	InsuranceTotalLimit float64 // Portfolio-level cap on covered value

	Feeds  FeedConfig
	Backup BackupConfig
}

// FeedConfig holds external feed endpoints and credentials.
type FeedConfig struct {
	ExchangeRateURL string
	BCBURL          string

	AlpacaAPIKey    string
	AlpacaAPISecret string

	AnalysisURL            string // URL template, {ticker} is substituted
	AnalysisVolatilityPath string // jsonpath expression
	AnalysisChangePath     string // jsonpath expression
}

// BackupConfig holds S3-compatible backup settings. Backups are disabled when Bucket is empty.
type BackupConfig struct {
	Endpoint        string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Schedule        string
	RetentionDays   int
}

// Enabled reports whether backups are configured.
func (b BackupConfig) Enabled() bool {
	return b.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("WEALTH_DATA_DIR", "./data")

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 8080),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ReportingCurrency:    strings.ToUpper(getEnv("REPORTING_CURRENCY", "BRL")),
		RateRefreshInterval:  getEnvAsDuration("RATE_REFRESH_INTERVAL", 5*time.Minute),
		RateMaxAge:           getEnvAsDuration("RATE_MAX_AGE", time.Hour),
		MaterialityThreshold: getEnvAsFloat("MATERIALITY_THRESHOLD", 0.0001),

		SnapshotSchedule: getEnv("SNAPSHOT_SCHEDULE", "0 0 21 * * *"),
		SnapshotWorkers:  getEnvAsInt("SNAPSHOT_WORKERS", 4),

		InsuranceLimit:      getEnvAsFloat("INSURANCE_LIMIT", 250000),
		InsuranceTotalLimit: getEnvAsFloat("INSURANCE_TOTAL_LIMIT", 1000000),

		Feeds: FeedConfig{
			ExchangeRateURL:        getEnv("EXCHANGE_RATE_URL", "https://api.exchangerate-api.com/v4/latest"),
			BCBURL:                 getEnv("BCB_URL", "https://api.bcb.gov.br/dados/serie"),
			AlpacaAPIKey:           getEnv("ALPACA_API_KEY", ""),
			AlpacaAPISecret:        getEnv("ALPACA_API_SECRET", ""),
			AnalysisURL:            getEnv("ANALYSIS_FEED_URL", ""),
			AnalysisVolatilityPath: getEnv("ANALYSIS_VOLATILITY_PATH", "$.volatility"),
			AnalysisChangePath:     getEnv("ANALYSIS_CHANGE_PATH", "$.change_percent"),
		},
		Backup: BackupConfig{
			Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
			Bucket:          getEnv("BACKUP_BUCKET", ""),
			AccessKeyID:     getEnv("BACKUP_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
			Region:          getEnv("BACKUP_REGION", "auto"),
			Schedule:        getEnv("BACKUP_SCHEDULE", "0 30 3 * * *"),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and coherent
func (c *Config) Validate() error {
	if len(c.ReportingCurrency) != 3 {
		return fmt.Errorf("invalid reporting currency %q: expected a 3-letter ISO code", c.ReportingCurrency)
	}
	if c.SnapshotWorkers <= 0 {
		return fmt.Errorf("SNAPSHOT_WORKERS must be positive, got %d", c.SnapshotWorkers)
	}
	if c.RateRefreshInterval <= 0 {
		return fmt.Errorf("RATE_REFRESH_INTERVAL must be positive, got %s", c.RateRefreshInterval)
	}
	if c.MaterialityThreshold < 0 {
		return fmt.Errorf("MATERIALITY_THRESHOLD must not be negative, got %f", c.MaterialityThreshold)
	}
	if c.InsuranceLimit <= 0 {
		return fmt.Errorf("INSURANCE_LIMIT must be positive, got %f", c.InsuranceLimit)
	}
	if c.InsuranceTotalLimit < c.InsuranceLimit {
		return fmt.Errorf("INSURANCE_TOTAL_LIMIT (%f) must not be below INSURANCE_LIMIT (%f)",
			c.InsuranceTotalLimit, c.InsuranceLimit)
	}
	if c.Backup.Enabled() && (c.Backup.AccessKeyID == "" || c.Backup.SecretAccessKey == "") {
		return fmt.Errorf("backup bucket configured without credentials")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
