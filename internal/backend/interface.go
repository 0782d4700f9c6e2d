package backend

import (
	"context"

	"fleemy/internal/amqp"
	"fleemy/internal/planning"
	"fleemy/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// HealthCheck reports whether a dependency answers.
type HealthCheck func(ctx context.Context) error

// BackendResult carries everything a planning controller is wired with.
type BackendResult struct {
	Backend   planning.Backend
	Snapshots planning.SnapshotCache
	Outbox    planning.Outbox

	// Store is the SQLite store when one was opened. It also holds the
	// export log.
	Store *storage.SQLiteStore
	// AMQP is nil when no broker is configured or reachable.
	AMQP *amqp.Client
	// Memo is set when snapshots are memoized in process.
	Memo *planning.MemoizedSnapshots

	Checks  map[string]HealthCheck
	Cleanup CleanupFunc
}

// Publisher returns the change publisher, or nil without a broker.
func (r *BackendResult) Publisher() planning.ChangePublisher {
	if r.AMQP == nil {
		return nil
	}
	return r.AMQP
}

// Options builds controller options from the result.
func (r *BackendResult) Options(policy planning.Policy) planning.Options {
	return planning.Options{
		Backend:   r.Backend,
		Snapshots: r.Snapshots,
		Outbox:    r.Outbox,
		Publisher: r.Publisher(),
		Policy:    policy,
	}
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}
