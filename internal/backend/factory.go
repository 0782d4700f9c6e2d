package backend

import (
	"context"
	"errors"
	"fmt"

	"fleemy/internal/amqp"
	"fleemy/internal/log"
	"fleemy/internal/planning"
	"fleemy/internal/planning/memory"
	"fleemy/internal/planning/remote"
	"fleemy/internal/rediscache"
	"fleemy/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend. Pieces opened before a
// failure are closed again.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	res := &BackendResult{Checks: make(map[string]HealthCheck)}
	var closers []func() error
	res.Cleanup = func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (*BackendResult, error) {
		_ = res.Cleanup()
		return nil, err
	}

	if config.SQLiteDBPath != "" {
		store, err := storage.NewSQLiteStore(config.SQLiteDBPath, f.logger)
		if err != nil {
			return fail(fmt.Errorf("failed to initialize SQLite store: %w", err))
		}
		closers = append(closers, store.Close)
		res.Store = store
		res.Outbox = store
		res.Checks["sqlite"] = store.Ping
	} else {
		res.Outbox = memory.NewOutbox()
	}

	switch config.Type {
	case RemoteBackend:
		client, err := remote.New(remote.Config{
			BaseURL: config.PlanningAPIURL,
			Token:   config.PlanningAPIToken,
			Timeout: config.PlanningAPITimeout,
		}, f.logger)
		if err != nil {
			return fail(fmt.Errorf("failed to initialize planning API client: %w", err))
		}
		res.Backend = client
		res.Checks["planning_api"] = client.Ping
		f.logger.Info("Initialized remote planning backend", "url", config.PlanningAPIURL)
	case MemoryBackend:
		res.Backend = memory.NewBackend()
		f.logger.Info("Initialized memory planning backend")
	default:
		return fail(fmt.Errorf("unsupported backend type: %s", config.Type))
	}

	snapshots, err := f.createSnapshots(ctx, config, res, &closers)
	if err != nil {
		return fail(err)
	}
	if config.MemoSize > 0 {
		res.Memo = planning.NewMemoizedSnapshots(snapshots, config.MemoSize, config.SnapshotTTL)
		snapshots = res.Memo
	}
	res.Snapshots = snapshots

	// AMQP is optional
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without change events", log.FieldError, err)
		} else {
			closers = append(closers, client.Close)
			res.AMQP = client
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	f.logger.Info("Backend ready",
		"backend", config.Type.String(),
		"snapshots", string(config.Snapshots),
		"memo", config.MemoSize > 0,
		"amqp_enabled", res.AMQP != nil)
	return res, nil
}

func (f *DefaultFactory) createSnapshots(ctx context.Context, config Config, res *BackendResult, closers *[]func() error) (planning.SnapshotCache, error) {
	switch config.Snapshots {
	case SQLiteSnapshots:
		if res.Store == nil {
			return nil, errors.New("sqlite snapshots need a SQLite store")
		}
		return res.Store, nil
	case RedisSnapshots:
		rc := rediscache.New(rediscache.Config{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
			TTL:      config.SnapshotTTL,
		}, f.logger)
		*closers = append(*closers, rc.Close)
		if err := rc.Ping(ctx); err != nil {
			// Snapshots only matter when the backend is down; start anyway.
			f.logger.Warn("Redis not reachable yet", log.FieldError, err, "addr", config.RedisAddr)
		}
		res.Checks["redis"] = rc.Ping
		return rc, nil
	case MemorySnapshots:
		return memory.NewSnapshots(), nil
	}
	return nil, fmt.Errorf("unsupported snapshot type: %s", config.Snapshots)
}
