// Package planning holds the planning controller: the week/month state
// machine, optimistic mutations and their reconciliation against the
// persistence backend.
//
// This file defines the ports the controller depends on. Adapters live in
// sub-packages (remote, memory) and in the storage and rediscache packages.
package planning

import (
	"context"
	"time"

	"fleemy/internal/calendar"
	"fleemy/internal/core"
	"fleemy/internal/revenue"
)

// Period is the payload of a week or month load.
type Period struct {
	Events []core.CalendarEvent
	Tasks  []core.WeeklyTask
}

// PeriodReader loads the entries visible in a view. A month load returns the
// events of every ISO week intersecting the month.
type PeriodReader interface {
	LoadWeek(ctx context.Context, uid string, week calendar.YearWeek) (Period, error)
	LoadMonth(ctx context.Context, uid string, year int, month time.Month) (Period, error)
}

// EventWriter persists one-off events. Create returns the stored event with
// its server-assigned id.
type EventWriter interface {
	CreateEvent(ctx context.Context, e core.CalendarEvent) (core.CalendarEvent, error)
	UpdateEvent(ctx context.Context, e core.CalendarEvent) (core.CalendarEvent, error)
	DeleteEvent(ctx context.Context, uid, id string) error
}

// TaskWriter persists weekly tasks.
type TaskWriter interface {
	CreateTask(ctx context.Context, t core.WeeklyTask) (core.WeeklyTask, error)
	UpdateTask(ctx context.Context, t core.WeeklyTask) (core.WeeklyTask, error)
	DeleteTask(ctx context.Context, uid, id string) error
}

// Backend is the single persistence port injected into the controller.
// Failures must be reported as *core.NetworkError, *core.NotFoundError or
// *core.ValidationError so the controller can reconcile.
type Backend interface {
	PeriodReader
	EventWriter
	TaskWriter
	revenue.EarningsReader
}

// SnapshotCache keeps the last confirmed server state for offline reads.
// Events are keyed by (uid, ISO week); tasks by uid.
type SnapshotCache interface {
	PutWeek(ctx context.Context, uid string, week calendar.YearWeek, events []core.CalendarEvent) error
	GetWeek(ctx context.Context, uid string, week calendar.YearWeek) ([]core.CalendarEvent, bool, error)
	PutTasks(ctx context.Context, uid string, tasks []core.WeeklyTask) error
	GetTasks(ctx context.Context, uid string) ([]core.WeeklyTask, bool, error)
}

// OpKind names a queued mutation.
type OpKind string

const (
	OpCreateEvent OpKind = "create_event"
	OpUpdateEvent OpKind = "update_event"
	OpDeleteEvent OpKind = "delete_event"
	OpCreateTask  OpKind = "create_task"
	OpUpdateTask  OpKind = "update_task"
	OpDeleteTask  OpKind = "delete_task"
)

// PendingOp is a mutation that was applied locally but could not reach the
// backend. EntityID is the id the client knows the entity by, which is a
// provisional id for entities created offline.
type PendingOp struct {
	ID        string
	UID       string
	Kind      OpKind
	EntityID  string
	Event     *core.CalendarEvent
	Task      *core.WeeklyTask
	Attempts  int
	LastError string
	CreatedAt time.Time
}

// Outbox is the durable pending-sync queue. Pending returns ops in the order
// they were enqueued.
type Outbox interface {
	Enqueue(ctx context.Context, op PendingOp) error
	Pending(ctx context.Context, uid string, limit int) ([]PendingOp, error)
	Complete(ctx context.Context, id string) error
	Fail(ctx context.Context, id string, reason string) error
	// Remap rewrites queued ops that reference a provisional id once the
	// backend assigned the real one.
	Remap(ctx context.Context, uid, fromID, toID string) error
	Users(ctx context.Context) ([]string, error)
}

// Change describes a confirmed mutation for downstream consumers.
type Change struct {
	UID      string
	Kind     OpKind
	EntityID string
	Week     calendar.YearWeek // zero for tasks
	At       time.Time
}

// ChangePublisher announces confirmed mutations.
type ChangePublisher interface {
	PublishChange(ctx context.Context, c Change) error
}
