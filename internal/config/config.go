package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"fleemy/internal/revenue"
)

type Config struct {
	// HTTP Server
	Port string

	// Planning backend
	DataBackend        string
	PlanningAPIURL     string
	PlanningAPIToken   string
	PlanningAPITimeout time.Duration

	// Offline snapshot cache
	SnapshotBackend string
	SQLiteDBPath    string
	SnapshotTTL     time.Duration
	SnapshotMemo    int

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
	ExportSchedule           string
	ExportUsers              []string

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration

	// Sessions
	SessionIdle time.Duration
	MaxSessions int

	// Planning policy
	ClientNameRequired bool
	EarningsSource     string
	HourlyRate         string
	Timezone           string
	PolicyFile         string

	LogLevel   string
	DevAPIPort string
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:        getEnv("DATA_BACKEND", "memory"),
		PlanningAPIURL:     getEnv("PLANNING_API_URL", ""),
		PlanningAPIToken:   getEnv("PLANNING_API_TOKEN", ""),
		PlanningAPITimeout: getEnvDuration("PLANNING_API_TIMEOUT", 10*time.Second),

		SnapshotBackend: getEnv("SNAPSHOT_BACKEND", "sqlite"),
		SQLiteDBPath:    getEnv("SQLITE_DB_PATH", "./data/fleemy.db"),
		SnapshotTTL:     getEnvDuration("SNAPSHOT_TTL", 30*24*time.Hour),
		SnapshotMemo:    getEnvInt("SNAPSHOT_MEMO_SIZE", 256),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fleemy"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "planning_changes"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		ExportSchedule:           getEnv("EXPORT_SCHEDULE", "0 6 * * 1"),
		ExportUsers:              getEnvList("EXPORT_USERS"),

		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", 100),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", 30*time.Second),

		SessionIdle: getEnvDuration("SESSION_IDLE", 30*time.Minute),
		MaxSessions: getEnvInt("MAX_SESSIONS", 1000),

		ClientNameRequired: getEnvBool("CLIENT_NAME_REQUIRED", true),
		EarningsSource:     getEnv("EARNINGS_SOURCE", revenue.SourceLocal),
		HourlyRate:         getEnv("HOURLY_RATE", ""),
		Timezone:           getEnv("TIMEZONE", ""),
		PolicyFile:         getEnv("PLANNING_POLICY_FILE", ""),

		LogLevel:   getEnv("LOG_LEVEL", "info"),
		DevAPIPort: getEnv("DEVAPI_PORT", "8090"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if msg := validatePort(c.Port); msg != "" {
		errors = append(errors, msg)
	}

	validBackends := []string{"memory", "remote"}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "remote" {
		if c.PlanningAPIURL == "" {
			errors = append(errors, "PLANNING_API_URL is required when using remote backend")
		} else if u, err := url.Parse(c.PlanningAPIURL); err != nil || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid planning API URL '%s'", c.PlanningAPIURL))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid planning API URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		}
		if c.PlanningAPITimeout < 100*time.Millisecond {
			errors = append(errors, fmt.Sprintf("invalid planning API timeout %v: must be at least 100ms", c.PlanningAPITimeout))
		}
	}

	validSnapshots := []string{"memory", "sqlite", "redis"}
	if !slices.Contains(validSnapshots, c.SnapshotBackend) {
		errors = append(errors, fmt.Sprintf("invalid snapshot backend '%s': must be one of %v", c.SnapshotBackend, validSnapshots))
	}

	// The outbox lives in SQLite whatever the snapshot backend is.
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.SnapshotBackend == "redis" {
		if c.RedisAddr == "" {
			errors = append(errors, "REDIS_ADDR is required when using redis snapshots")
		}
		if c.RedisDB < 0 {
			errors = append(errors, fmt.Sprintf("invalid redis db %d: must not be negative", c.RedisDB))
		}
	}
	if c.SnapshotTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid snapshot TTL %v: must not be negative", c.SnapshotTTL))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	if c.ExportSchedule != "" {
		if _, err := cron.ParseStandard(c.ExportSchedule); err != nil {
			errors = append(errors, fmt.Sprintf("invalid export schedule '%s': %v", c.ExportSchedule, err))
		}
	}

	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if c.MaxSessions < 1 {
		errors = append(errors, fmt.Sprintf("invalid max sessions %d: must be at least 1", c.MaxSessions))
	}

	if c.EarningsSource != revenue.SourceLocal && c.EarningsSource != revenue.SourceRemote {
		errors = append(errors, fmt.Sprintf("invalid earnings source '%s': must be '%s' or '%s'",
			c.EarningsSource, revenue.SourceLocal, revenue.SourceRemote))
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
		}
	}
	if c.PolicyFile != "" {
		if _, err := os.Stat(c.PolicyFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("planning policy file does not exist: %s", c.PolicyFile))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func validatePort(p string) string {
	port, err := strconv.Atoi(p)
	if err != nil {
		return fmt.Sprintf("invalid port '%s': must be a number", p)
	}
	if port < 1 || port > 65535 {
		return fmt.Sprintf("invalid port %d: must be between 1 and 65535", port)
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
