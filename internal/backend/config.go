package backend

import (
	"fmt"
	"time"

	"fleemy/internal/config"
)

// Config holds configuration for backend creation
type Config struct {
	Type      BackendType
	Snapshots SnapshotType

	// Remote planning API
	PlanningAPIURL     string
	PlanningAPIToken   string
	PlanningAPITimeout time.Duration

	// SQLite store for the outbox and, with sqlite snapshots, the snapshots.
	// Empty keeps the outbox in memory.
	SQLiteDBPath string

	// Redis snapshots
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SnapshotTTL   time.Duration

	// MemoSize > 0 puts an in-process LRU in front of the snapshot cache.
	MemoSize int

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType is where planning data lives.
type BackendType string

const (
	RemoteBackend BackendType = "remote"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case RemoteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// SnapshotType is where offline snapshots are kept.
type SnapshotType string

const (
	SQLiteSnapshots SnapshotType = "sqlite"
	RedisSnapshots  SnapshotType = "redis"
	MemorySnapshots SnapshotType = "memory"
)

func (st SnapshotType) IsValid() bool {
	switch st {
	case SQLiteSnapshots, RedisSnapshots, MemorySnapshots:
		return true
	default:
		return false
	}
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	cfg := Config{
		Type:      BackendType(appConfig.DataBackend),
		Snapshots: SnapshotType(appConfig.SnapshotBackend),

		PlanningAPIURL:     appConfig.PlanningAPIURL,
		PlanningAPIToken:   appConfig.PlanningAPIToken,
		PlanningAPITimeout: appConfig.PlanningAPITimeout,

		SQLiteDBPath: appConfig.SQLiteDBPath,

		RedisAddr:     appConfig.RedisAddr,
		RedisPassword: appConfig.RedisPassword,
		RedisDB:       appConfig.RedisDB,
		SnapshotTTL:   appConfig.SnapshotTTL,
		MemoSize:      appConfig.SnapshotMemo,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
	}
	return cfg, cfg.Validate()
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if !c.Snapshots.IsValid() {
		return fmt.Errorf("invalid snapshot type: %s", c.Snapshots)
	}

	switch c.Type {
	case RemoteBackend:
		if c.PlanningAPIURL == "" {
			return fmt.Errorf("planning API URL is required for remote backend")
		}
	case MemoryBackend:
		// nothing to check
	}

	switch c.Snapshots {
	case SQLiteSnapshots:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite snapshots")
		}
	case RedisSnapshots:
		if c.RedisAddr == "" {
			return fmt.Errorf("Redis address is required for redis snapshots")
		}
	}

	return nil
}
