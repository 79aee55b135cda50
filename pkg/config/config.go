package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DateFormat is the wire and file-name format for series dates.
const DateFormat = "01-02-2006"

// Config holds all configuration for the application.
// Environment variables are read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Series
	Series SeriesConfig

	// Upstream sources
	Historical HistoricalConfig
	Live       LiveConfig

	// Refresh scheduling
	Refresh RefreshConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// SeriesConfig holds snapshot series configuration.
type SeriesConfig struct {
	// DataDir is the directory holding one CSV file per date.
	DataDir string

	// Epoch is the first date the series covers (MM-DD-YYYY).
	Epoch string

	// StrictDates controls the invalid-date policy: false (default)
	// silently degrades malformed date input to the latest snapshot,
	// true rejects it at the boundary.
	StrictDates bool
}

// HistoricalConfig holds the daily-report bulk source configuration.
type HistoricalConfig struct {
	BaseURL string
	Timeout time.Duration
}

// LiveConfig holds the live counters source configuration.
type LiveConfig struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// RefreshConfig holds the recurring refresh configuration.
type RefreshConfig struct {
	// Schedule is a cron expression with seconds, e.g. "0 0 * * * *".
	Schedule string

	// OnStart runs a full backfill pass when the process starts.
	OnStart bool

	// RatePerSecond caps outbound requests to the upstream sources.
	RatePerSecond int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		Series: SeriesConfig{
			DataDir:     getEnv("DATA_DIR", "data"),
			Epoch:       getEnv("SERIES_EPOCH", "01-22-2020"),
			StrictDates: getEnvAsBool("STRICT_DATES", false),
		},

		Historical: HistoricalConfig{
			BaseURL: getEnv("HISTORICAL_BASE_URL",
				"https://raw.githubusercontent.com/CSSEGISandData/COVID-19/master/csse_covid_19_data/csse_covid_19_daily_reports"),
			Timeout: getEnvAsDuration("HISTORICAL_TIMEOUT", "30s"),
		},

		Live: LiveConfig{
			BaseURL:  getEnv("LIVE_BASE_URL", "https://www.worldometers.info/coronavirus"),
			Timeout:  getEnvAsDuration("LIVE_TIMEOUT", "30s"),
			CacheTTL: getEnvAsDuration("LIVE_CACHE_TTL", "60s"),
		},

		Refresh: RefreshConfig{
			Schedule:      getEnv("REFRESH_SCHEDULE", "0 0 * * * *"),
			OnStart:       getEnvAsBool("REFRESH_ON_START", true),
			RatePerSecond: getEnvAsInt("FETCH_RATE_LIMIT", 4),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set.
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Series.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}

	if _, err := time.Parse(DateFormat, c.Series.Epoch); err != nil {
		return fmt.Errorf("SERIES_EPOCH must be a valid MM-DD-YYYY date: %w", err)
	}

	if c.Refresh.RatePerSecond <= 0 {
		return fmt.Errorf("FETCH_RATE_LIMIT must be positive")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations.
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
