package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fleemy/internal/core"
	"fleemy/internal/log"
	"fleemy/internal/planning"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often the outbox is drained (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of ops replayed per user and cycle (default: 100)
	BatchSize int

	// MaxRetries is how often an op the backend rejects is retried before it is dropped (default: 5)
	MaxRetries int

	// Concurrency bounds how many users are replayed at once (default: 4)
	Concurrency int

	// CleanupInterval is how often stale snapshots are pruned (default: 1h)
	CleanupInterval time.Duration

	// CleanupAge is how old a snapshot must be before it is pruned (default: 30 days)
	CleanupAge time.Duration
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval:    10 * time.Second,
		BatchSize:       100,
		MaxRetries:      5,
		Concurrency:     4,
		CleanupInterval: 1 * time.Hour,
		CleanupAge:      30 * 24 * time.Hour,
	}
}

// SnapshotPruner drops offline snapshots older than a cutoff.
type SnapshotPruner interface {
	PruneSnapshots(ctx context.Context, before time.Time) (int64, error)
}

// SyncStats summarises one drain of the outbox.
type SyncStats struct {
	Users     int
	Synced    int
	Dropped   int
	Failed    int
	Remaining int
	Offline   int // users whose replay stopped on a network error
	Busy      int // users replayed by another process
}

// SyncProcessor replays queued offline changes of every user against the
// backend, independently of any open planning session.
type SyncProcessor struct {
	outbox   planning.Outbox
	replayer *planning.Replayer
	pruner   SnapshotPruner
	config   SyncProcessorConfig
	logger   *log.Logger

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncProcessor(backend planning.Backend, outbox planning.Outbox, logger *log.Logger, config SyncProcessorConfig) *SyncProcessor {
	if logger == nil {
		logger = log.Discard()
	}
	p := &SyncProcessor{
		outbox: outbox,
		config: config,
		logger: logger.WithComponent(log.ComponentSync),
	}
	if backend != nil && outbox != nil {
		p.replayer = planning.NewReplayer(backend, outbox, logger)
		if config.BatchSize > 0 {
			p.replayer.BatchSize = config.BatchSize
		}
		if config.MaxRetries > 0 {
			p.replayer.MaxAttempts = config.MaxRetries
		}
	}
	return p
}

// WithPruner enables periodic snapshot pruning.
func (p *SyncProcessor) WithPruner(pr SnapshotPruner) *SyncProcessor {
	p.pruner = pr
	return p
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	if p.replayer == nil {
		p.mu.Unlock()
		return fmt.Errorf("sync processor has no backend or outbox")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		p.logger.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	// Drain immediately on startup
	p.drain(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.drain(ctx)
		case <-cleanupTicker.C:
			p.cleanup(ctx)
		}
	}
}

func (p *SyncProcessor) drain(ctx context.Context) {
	stats, err := p.ProcessAll(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "Outbox drain failed", log.FieldError, err)
		return
	}
	if stats.Synced+stats.Dropped+stats.Failed > 0 {
		p.logger.InfoContext(ctx, "Outbox drained",
			"users", stats.Users, "synced", stats.Synced, "dropped", stats.Dropped,
			"failed", stats.Failed, "remaining", stats.Remaining, "offline", stats.Offline)
	}
}

// ProcessAll replays the outbox of every user once. Network failures of one
// user do not stop the others.
func (p *SyncProcessor) ProcessAll(ctx context.Context) (SyncStats, error) {
	var stats SyncStats
	if p.replayer == nil {
		return stats, fmt.Errorf("sync processor has no backend or outbox")
	}
	users, err := p.outbox.Users(ctx)
	if err != nil {
		return stats, fmt.Errorf("list outbox users: %w", err)
	}
	stats.Users = len(users)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if p.config.Concurrency > 0 {
		g.SetLimit(p.config.Concurrency)
	}
	for _, uid := range users {
		g.Go(func() error {
			rep, err := p.replayer.Replay(gctx, uid)
			mu.Lock()
			defer mu.Unlock()
			stats.Synced += rep.Synced
			stats.Dropped += rep.Dropped
			stats.Failed += rep.Failed
			stats.Remaining += rep.Remaining
			if rep.Busy {
				stats.Busy++
			}
			switch {
			case err == nil:
				return nil
			case core.IsNetwork(err):
				stats.Offline++
				p.logger.WarnContext(gctx, "Backend unreachable, replay deferred",
					log.FieldUID, uid, log.FieldError, err)
				return nil
			default:
				return fmt.Errorf("replay %s: %w", uid, err)
			}
		})
	}
	return stats, g.Wait()
}

func (p *SyncProcessor) cleanup(ctx context.Context) {
	if p.pruner == nil {
		return
	}
	cutoff := time.Now().Add(-p.config.CleanupAge)
	if _, err := p.pruner.PruneSnapshots(ctx, cutoff); err != nil {
		p.logger.ErrorContext(ctx, "Failed to prune snapshots", log.FieldError, err)
	}
}
