package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port               string
	Env                string
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	ShutdownTimeout    time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// Database
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Dashboard cache
	DashboardCacheTTL  time.Duration
	DashboardCacheSize int

	// AMQP
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	// Google Sheets import
	GoogleSpreadsheetID      string
	GoogleSheetRange         string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "3000"),
		Env:                getEnv("APP_ENV", getEnv("NODE_ENV", "development")),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DatabaseURL:       getEnv("DATABASE_URL", getEnv("POSTGRES_URL", "")),
		DBMaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),

		DashboardCacheTTL:  getEnvDuration("DASHBOARD_CACHE_TTL", 0),
		DashboardCacheSize: getEnvInt("DASHBOARD_CACHE_SIZE", 128),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "teamledger"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "operation.created"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetRange:         getEnv("GOOGLE_SHEET_RANGE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),
	}

	return cfg
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	return c.validate(true)
}

// ValidateWithoutDatabase checks everything except the database URL; used
// by commands that never touch the record store.
func (c *Config) ValidateWithoutDatabase() error {
	return c.validate(false)
}

func (c *Config) validate(requireDatabase bool) error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if requireDatabase {
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required")
		} else if !supportedDatabaseURL(c.DatabaseURL) {
			errors = append(errors, "invalid DATABASE_URL: scheme must be postgres://, postgresql://, sqlite://, file: or memory://")
		}
	}

	if c.DBMaxOpenConns < 0 {
		errors = append(errors, fmt.Sprintf("invalid DB_MAX_OPEN_CONNS %d: must not be negative", c.DBMaxOpenConns))
	}
	if c.DBMaxIdleConns < 0 {
		errors = append(errors, fmt.Sprintf("invalid DB_MAX_IDLE_CONNS %d: must not be negative", c.DBMaxIdleConns))
	}
	if c.DBConnMaxLifetime < 0 {
		errors = append(errors, fmt.Sprintf("invalid DB_CONN_MAX_LIFETIME %v: must not be negative", c.DBConnMaxLifetime))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL: %v", err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRoutingKey == "" {
			errors = append(errors, "AMQP routing key cannot be empty when AMQP URL is provided")
		}
	}

	if c.DashboardCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid dashboard cache TTL %v: must not be negative", c.DashboardCacheTTL))
	}
	if c.DashboardCacheTTL > 0 && c.DashboardCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid dashboard cache size %d: must be at least 1", c.DashboardCacheSize))
	}

	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
	}

	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateSheets checks the settings needed to read a Google Sheet.
func (c *Config) ValidateSheets() error {
	var errors []string

	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required (GOOGLE_SPREADSHEET_ID or --spreadsheet)")
	}
	if c.GoogleSheetRange == "" {
		errors = append(errors, "Google Sheet range is required (GOOGLE_SHEET_RANGE or --range)")
	}
	if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS must be provided")
	}
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func supportedDatabaseURL(u string) bool {
	u = strings.ToLower(u)
	for _, prefix := range []string{"postgres://", "postgresql://", "sqlite://", "file:", "memory://"} {
		if strings.HasPrefix(u, prefix) {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
