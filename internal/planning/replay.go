package planning

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleemy/internal/core"
	"fleemy/internal/log"
)

// ReplayReport summarises one replay run. Busy is set when another replayer
// held the lease of the user and nothing was sent.
type ReplayReport struct {
	Synced    int
	Dropped   int
	Failed    int
	Remaining int
	Busy      bool
}

// ReplayLeaser is implemented by outboxes shared between processes. A lease
// gives one owner the exclusive right to replay the queue of uid until it is
// released or expires.
type ReplayLeaser interface {
	AcquireReplay(ctx context.Context, uid, owner string, ttl time.Duration) (bool, error)
	ReleaseReplay(ctx context.Context, uid, owner string) error
}

// Replayer pushes queued offline changes to the backend in enqueue order.
// Runs for the same user never overlap.
type Replayer struct {
	backend     Backend
	outbox      Outbox
	logger      *log.Logger
	owner       string
	locks       sync.Map // uid -> *sync.Mutex
	BatchSize   int
	MaxAttempts int
	LeaseTTL    time.Duration
}

func NewReplayer(backend Backend, outbox Outbox, logger *log.Logger) *Replayer {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Replayer{
		backend:     backend,
		outbox:      outbox,
		logger:      logger.WithComponent(log.ComponentSync),
		owner:       uuid.NewString(),
		BatchSize:   100,
		MaxAttempts: 5,
		LeaseTTL:    time.Minute,
	}
}

func (r *Replayer) lock(uid string) func() {
	m, _ := r.locks.LoadOrStore(uid, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Replay processes up to BatchSize ops of uid. It stops at the first network
// failure so later ops never overtake earlier ones. Ops the backend rejects
// for good are dropped. When the outbox is shared, a replay whose lease is
// held elsewhere returns a Busy report.
func (r *Replayer) Replay(ctx context.Context, uid string) (ReplayReport, error) {
	defer r.lock(uid)()

	if leaser, ok := r.outbox.(ReplayLeaser); ok {
		got, err := leaser.AcquireReplay(ctx, uid, r.owner, r.LeaseTTL)
		if err != nil {
			return ReplayReport{}, fmt.Errorf("acquire replay lease: %w", err)
		}
		if !got {
			r.logger.DebugContext(ctx, "replay lease held elsewhere", log.FieldUID, uid)
			return ReplayReport{Busy: true}, nil
		}
		defer func() {
			// released on a fresh context so a cancelled run still frees the lease
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := leaser.ReleaseReplay(rctx, uid, r.owner); err != nil {
				r.logger.WarnContext(ctx, "release replay lease failed", log.FieldUID, uid, log.FieldError, err)
			}
		}()
	}
	return r.replay(ctx, uid)
}

func (r *Replayer) replay(ctx context.Context, uid string) (ReplayReport, error) {
	var rep ReplayReport
	ops, err := r.outbox.Pending(ctx, uid, r.BatchSize)
	if err != nil {
		return rep, fmt.Errorf("read outbox: %w", err)
	}
	remap := make(map[string]string)

	for i, op := range ops {
		if id, ok := remap[op.EntityID]; ok {
			op.EntityID = id
		}
		newID, err := r.apply(ctx, op)
		switch {
		case err == nil:
			if newID != "" && newID != op.EntityID {
				remap[op.EntityID] = newID
				if err := r.outbox.Remap(ctx, uid, op.EntityID, newID); err != nil {
					return rep, fmt.Errorf("remap %s: %w", op.EntityID, err)
				}
			}
			if err := r.outbox.Complete(ctx, op.ID); err != nil {
				return rep, fmt.Errorf("complete op %s: %w", op.ID, err)
			}
			rep.Synced++

		case core.IsNetwork(err):
			if ferr := r.outbox.Fail(ctx, op.ID, err.Error()); ferr != nil {
				err = errors.Join(err, ferr)
			}
			rep.Remaining = len(ops) - i
			return rep, err

		case core.IsNotFound(err):
			r.logger.WarnContext(ctx, "dropping op for missing entity",
				log.FieldOperation, string(op.Kind), log.FieldEntityID, op.EntityID)
			if err := r.outbox.Complete(ctx, op.ID); err != nil {
				return rep, fmt.Errorf("complete op %s: %w", op.ID, err)
			}
			rep.Dropped++

		default:
			if op.Attempts+1 >= r.MaxAttempts {
				r.logger.ErrorContext(ctx, "dropping op after max attempts",
					log.FieldOperation, string(op.Kind), log.FieldEntityID, op.EntityID, log.FieldError, err)
				if cerr := r.outbox.Complete(ctx, op.ID); cerr != nil {
					return rep, fmt.Errorf("complete op %s: %w", op.ID, cerr)
				}
				rep.Dropped++
				continue
			}
			if ferr := r.outbox.Fail(ctx, op.ID, err.Error()); ferr != nil {
				return rep, fmt.Errorf("fail op %s: %w", op.ID, ferr)
			}
			rep.Failed++
		}
	}
	return rep, nil
}

// apply sends one op. For creates it returns the id the backend assigned.
func (r *Replayer) apply(ctx context.Context, op PendingOp) (string, error) {
	switch op.Kind {
	case OpCreateEvent, OpUpdateEvent:
		if op.Event == nil {
			return "", fmt.Errorf("%s op %s has no event payload", op.Kind, op.ID)
		}
		e := *op.Event
		e.UID = op.UID
		e.PendingSync = false
		if op.Kind == OpCreateEvent {
			e.ID = ""
			saved, err := r.backend.CreateEvent(ctx, e)
			return saved.ID, err
		}
		e.ID = op.EntityID
		_, err := r.backend.UpdateEvent(ctx, e)
		return "", err

	case OpDeleteEvent:
		err := r.backend.DeleteEvent(ctx, op.UID, op.EntityID)
		if core.IsNotFound(err) {
			return "", nil
		}
		return "", err

	case OpCreateTask, OpUpdateTask:
		if op.Task == nil {
			return "", fmt.Errorf("%s op %s has no task payload", op.Kind, op.ID)
		}
		t := op.Task.Clone()
		t.UID = op.UID
		t.PendingSync = false
		if op.Kind == OpCreateTask {
			t.ID = ""
			saved, err := r.backend.CreateTask(ctx, t)
			return saved.ID, err
		}
		t.ID = op.EntityID
		_, err := r.backend.UpdateTask(ctx, t)
		return "", err

	case OpDeleteTask:
		err := r.backend.DeleteTask(ctx, op.UID, op.EntityID)
		if core.IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return "", fmt.Errorf("unknown op kind %q", op.Kind)
}
