package planning

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"fleemy/internal/calendar"
	"fleemy/internal/core"
	"fleemy/internal/log"
)

// Outcome tells the caller what happened to an optimistic change.
type Outcome string

const (
	// Synced: the backend confirmed the change.
	Synced Outcome = "synced"
	// PendingSync: the backend was unreachable; the change is kept locally
	// and queued for replay.
	PendingSync Outcome = "pending_sync"
	// RolledBack: the change was rejected and the previous state restored.
	RolledBack Outcome = "rolled_back"
)

// Mutation is the result of a create, update or delete.
type Mutation[T any] struct {
	Value   T
	Outcome Outcome
	Err     error
}

const provisionalPrefix = "local-"

// IsProvisional reports whether id was assigned locally and never confirmed.
func IsProvisional(id string) bool {
	return strings.HasPrefix(id, provisionalPrefix)
}

func newProvisionalID() string {
	return provisionalPrefix + uuid.NewString()
}

const noticeQueued = "Offline: change saved locally and will sync when the connection is back"

func rejected[T any](err error) (Mutation[T], error) {
	return Mutation[T]{Outcome: RolledBack, Err: err}, err
}

// enqueue stores op in the outbox.
func (c *Controller) enqueue(ctx context.Context, op PendingOp) error {
	if c.outbox == nil {
		return errors.New("no outbox configured")
	}
	op.ID = uuid.NewString()
	op.UID = c.uid
	op.CreatedAt = c.now()
	if err := c.outbox.Enqueue(ctx, op); err != nil {
		return fmt.Errorf("enqueue %s: %w", op.Kind, err)
	}
	c.logger.InfoContext(ctx, "queued change for sync", log.FieldOperation, string(op.Kind), log.FieldEntityID, op.EntityID)
	return nil
}

// queueable reports whether a backend failure can be deferred to the outbox.
func (c *Controller) queueable(err error) bool {
	return c.outbox != nil && core.IsNetwork(err)
}

func (c *Controller) publish(ctx context.Context, ch Change) {
	if c.publisher == nil {
		return
	}
	ch.UID = c.uid
	ch.At = c.now()
	if err := c.publisher.PublishChange(ctx, ch); err != nil {
		c.logger.WarnContext(ctx, "publish change failed", log.FieldOperation, string(ch.Kind), log.FieldError, err)
	}
}

func eventWeek(e core.CalendarEvent) calendar.YearWeek {
	return calendar.YearWeek{Year: e.Year, Week: e.Week}
}

func (c *Controller) visibleLocked(e core.CalendarEvent) bool {
	return visible(visibleWeeks(c.view, c.anchor), e)
}

// putEvent replaces or inserts e in the state, dropping it when it is not
// part of the displayed period. replaced is removed first.
func (c *Controller) putEvent(e core.CalendarEvent, replaced ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range replaced {
		c.events = removeEvent(c.events, id)
	}
	c.touch(append(replaced, e.ID)...)
	if c.visibleLocked(e) {
		c.events = upsertEvent(c.events, e)
	} else {
		c.events = removeEvent(c.events, e.ID)
	}
}

func (c *Controller) dropEvent(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = removeEvent(c.events, id)
	c.touch(id)
}

func (c *Controller) putTask(t core.WeeklyTask, replaced ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range replaced {
		c.tasks = removeTask(c.tasks, id)
	}
	c.touch(append(replaced, t.ID)...)
	c.tasks = upsertTask(c.tasks, t)
}

func (c *Controller) dropTask(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = removeTask(c.tasks, id)
	c.touch(id)
}

// CreateEvent validates draft, shows it immediately under a provisional id
// and persists it. Week and year default to the anchor week.
func (c *Controller) CreateEvent(ctx context.Context, draft core.CalendarEvent) (Mutation[core.CalendarEvent], error) {
	e := draft
	e.UID = c.uid
	e.PendingSync = false
	if e.Status == "" {
		e.Status = core.StatusPending
	}
	if e.Week == 0 || e.Year == 0 {
		yw := c.State().Week
		e.Year, e.Week = yw.Year, yw.Week
	}
	if err := c.policy.validateEvent(e); err != nil {
		return rejected[core.CalendarEvent](err)
	}

	e.ID = newProvisionalID()
	if err := c.guard.acquire(e.ID); err != nil {
		return rejected[core.CalendarEvent](err)
	}
	defer c.guard.release(e.ID)
	c.putEvent(e)

	payload := e
	payload.ID = ""
	saved, err := c.backend.CreateEvent(ctx, payload)
	if err == nil {
		saved.PendingSync = false
		c.putEvent(saved, e.ID)
		c.saveWeek(ctx, eventWeek(saved))
		c.publish(ctx, Change{Kind: OpCreateEvent, EntityID: saved.ID, Week: eventWeek(saved)})
		return Mutation[core.CalendarEvent]{Value: saved, Outcome: Synced}, nil
	}

	if c.queueable(err) {
		queued := e
		if qerr := c.enqueue(ctx, PendingOp{Kind: OpCreateEvent, EntityID: e.ID, Event: &queued}); qerr == nil {
			e.PendingSync = true
			c.putEvent(e)
			c.setNotice(noticeQueued)
			return Mutation[core.CalendarEvent]{Value: e, Outcome: PendingSync, Err: err}, nil
		} else {
			err = errors.Join(err, qerr)
		}
	}

	c.dropEvent(e.ID)
	c.setNotice(fmt.Sprintf("Could not create event: %v", err))
	c.logger.WarnContext(ctx, "create event rolled back", log.FieldError, err)
	return rejected[core.CalendarEvent](err)
}

// UpdateEvent replaces a displayed event. Zero week, year and status keep
// their current values.
func (c *Controller) UpdateEvent(ctx context.Context, patch core.CalendarEvent) (Mutation[core.CalendarEvent], error) {
	if patch.ID == "" {
		return rejected[core.CalendarEvent](&core.ValidationError{Field: "id", Reason: "cannot be empty"})
	}
	if err := c.guard.acquire(patch.ID); err != nil {
		return rejected[core.CalendarEvent](err)
	}
	defer c.guard.release(patch.ID)

	c.mu.RLock()
	prev, ok := findEvent(c.events, patch.ID)
	c.mu.RUnlock()
	if !ok {
		return rejected[core.CalendarEvent](&core.NotFoundError{Kind: "event", ID: patch.ID})
	}

	next := patch
	next.UID = c.uid
	next.PendingSync = false
	if next.Week == 0 || next.Year == 0 {
		next.Year, next.Week = prev.Year, prev.Week
	}
	if next.Status == "" {
		next.Status = prev.Status
	}
	if err := c.policy.validateEvent(next); err != nil {
		return rejected[core.CalendarEvent](err)
	}
	c.putEvent(next)

	// Entities with queued ops keep going through the outbox so replay order
	// matches the order of edits.
	if IsProvisional(next.ID) || prev.PendingSync {
		queued := next
		if err := c.enqueue(ctx, PendingOp{Kind: OpUpdateEvent, EntityID: next.ID, Event: &queued}); err != nil {
			c.putEvent(prev)
			return rejected[core.CalendarEvent](err)
		}
		next.PendingSync = true
		c.putEvent(next)
		return Mutation[core.CalendarEvent]{Value: next, Outcome: PendingSync}, nil
	}

	saved, err := c.backend.UpdateEvent(ctx, next)
	if err == nil {
		saved.PendingSync = false
		c.putEvent(saved)
		c.saveWeek(ctx, eventWeek(prev))
		if eventWeek(saved) != eventWeek(prev) {
			c.saveWeek(ctx, eventWeek(saved))
		}
		c.publish(ctx, Change{Kind: OpUpdateEvent, EntityID: saved.ID, Week: eventWeek(saved)})
		return Mutation[core.CalendarEvent]{Value: saved, Outcome: Synced}, nil
	}

	if c.queueable(err) {
		queued := next
		if qerr := c.enqueue(ctx, PendingOp{Kind: OpUpdateEvent, EntityID: next.ID, Event: &queued}); qerr == nil {
			next.PendingSync = true
			c.putEvent(next)
			c.setNotice(noticeQueued)
			return Mutation[core.CalendarEvent]{Value: next, Outcome: PendingSync, Err: err}, nil
		} else {
			err = errors.Join(err, qerr)
		}
	}

	c.putEvent(prev)
	c.setNotice(fmt.Sprintf("Could not update event: %v", err))
	c.logger.WarnContext(ctx, "update event rolled back", log.FieldEntityID, prev.ID, log.FieldError, err)
	return rejected[core.CalendarEvent](err)
}

// DeleteEvent removes a displayed event. An event already gone on the
// backend counts as deleted.
func (c *Controller) DeleteEvent(ctx context.Context, id string) (Mutation[core.CalendarEvent], error) {
	if err := c.guard.acquire(id); err != nil {
		return rejected[core.CalendarEvent](err)
	}
	defer c.guard.release(id)

	c.mu.RLock()
	prev, ok := findEvent(c.events, id)
	c.mu.RUnlock()
	if !ok {
		return rejected[core.CalendarEvent](&core.NotFoundError{Kind: "event", ID: id})
	}
	c.dropEvent(id)

	outcome, err := c.deleteOne(ctx, prev)
	switch outcome {
	case Synced:
		c.saveWeek(ctx, eventWeek(prev))
		c.publish(ctx, Change{Kind: OpDeleteEvent, EntityID: id, Week: eventWeek(prev)})
		return Mutation[core.CalendarEvent]{Value: prev, Outcome: Synced}, nil
	case PendingSync:
		c.setNotice(noticeQueued)
		return Mutation[core.CalendarEvent]{Value: prev, Outcome: PendingSync, Err: err}, nil
	}
	c.putEvent(prev)
	c.setNotice(fmt.Sprintf("Could not delete event: %v", err))
	return rejected[core.CalendarEvent](err)
}

// deleteOne sends or queues a single delete without touching the state.
func (c *Controller) deleteOne(ctx context.Context, e core.CalendarEvent) (Outcome, error) {
	op := PendingOp{Kind: OpDeleteEvent, EntityID: e.ID}
	if IsProvisional(e.ID) || e.PendingSync {
		if err := c.enqueue(ctx, op); err != nil {
			return RolledBack, err
		}
		return PendingSync, nil
	}
	err := c.backend.DeleteEvent(ctx, c.uid, e.ID)
	if err == nil || core.IsNotFound(err) {
		return Synced, nil
	}
	if c.queueable(err) {
		if qerr := c.enqueue(ctx, op); qerr != nil {
			return RolledBack, errors.Join(err, qerr)
		}
		return PendingSync, err
	}
	return RolledBack, err
}

// ClearWeek deletes every event of the anchor week. Events that could not be
// deleted are restored; the rest stay deleted or queued.
func (c *Controller) ClearWeek(ctx context.Context) (Mutation[[]core.CalendarEvent], error) {
	c.mu.RLock()
	yw := calendar.YearWeekOf(c.anchor)
	var targets []core.CalendarEvent
	for _, e := range c.events {
		if e.InWeek(yw.Year, yw.Week) {
			targets = append(targets, e)
		}
	}
	c.mu.RUnlock()
	if len(targets) == 0 {
		return Mutation[[]core.CalendarEvent]{Outcome: Synced}, nil
	}

	ids := make([]string, len(targets))
	for i, e := range targets {
		ids[i] = e.ID
	}
	if err := c.guard.acquire(ids...); err != nil {
		return rejected[[]core.CalendarEvent](err)
	}
	defer c.guard.release(ids...)
	for _, id := range ids {
		c.dropEvent(id)
	}

	var (
		deleted  []core.CalendarEvent
		failures []error
		queued   int
		offline  bool
	)
	for _, e := range targets {
		var outcome Outcome
		var err error
		if offline && !IsProvisional(e.ID) && !e.PendingSync {
			// the backend already failed at the network level; skip the round trip
			if err = c.enqueue(ctx, PendingOp{Kind: OpDeleteEvent, EntityID: e.ID}); err == nil {
				outcome = PendingSync
			} else {
				outcome = RolledBack
			}
		} else {
			outcome, err = c.deleteOne(ctx, e)
		}
		switch outcome {
		case Synced:
			deleted = append(deleted, e)
			c.publish(ctx, Change{Kind: OpDeleteEvent, EntityID: e.ID, Week: yw})
		case PendingSync:
			deleted = append(deleted, e)
			queued++
			if core.IsNetwork(err) {
				offline = true
			}
		default:
			c.putEvent(e)
			failures = append(failures, fmt.Errorf("delete %s: %w", e.ID, err))
		}
	}
	c.saveWeek(ctx, yw)

	res := Mutation[[]core.CalendarEvent]{Value: deleted, Outcome: Synced}
	if err := errors.Join(failures...); err != nil {
		res.Outcome, res.Err = RolledBack, err
		c.setNotice(fmt.Sprintf("Could not clear %d of %d events", len(failures), len(targets)))
		return res, err
	}
	if queued > 0 {
		res.Outcome = PendingSync
		c.setNotice(noticeQueued)
	}
	return res, nil
}

// CreateWeeklyTask validates and persists a recurring task.
func (c *Controller) CreateWeeklyTask(ctx context.Context, draft core.WeeklyTask) (Mutation[core.WeeklyTask], error) {
	t := draft.Clone()
	t.UID = c.uid
	t.PendingSync = false
	if err := c.policy.validateTask(t); err != nil {
		return rejected[core.WeeklyTask](err)
	}

	t.ID = newProvisionalID()
	if err := c.guard.acquire(t.ID); err != nil {
		return rejected[core.WeeklyTask](err)
	}
	defer c.guard.release(t.ID)
	c.putTask(t)

	payload := t.Clone()
	payload.ID = ""
	saved, err := c.backend.CreateTask(ctx, payload)
	if err == nil {
		saved.PendingSync = false
		c.putTask(saved, t.ID)
		c.saveTasks(ctx)
		c.publish(ctx, Change{Kind: OpCreateTask, EntityID: saved.ID})
		return Mutation[core.WeeklyTask]{Value: saved, Outcome: Synced}, nil
	}

	if c.queueable(err) {
		queued := t.Clone()
		if qerr := c.enqueue(ctx, PendingOp{Kind: OpCreateTask, EntityID: t.ID, Task: &queued}); qerr == nil {
			t.PendingSync = true
			c.putTask(t)
			c.setNotice(noticeQueued)
			return Mutation[core.WeeklyTask]{Value: t, Outcome: PendingSync, Err: err}, nil
		} else {
			err = errors.Join(err, qerr)
		}
	}

	c.dropTask(t.ID)
	c.setNotice(fmt.Sprintf("Could not create task: %v", err))
	c.logger.WarnContext(ctx, "create task rolled back", log.FieldError, err)
	return rejected[core.WeeklyTask](err)
}

// UpdateWeeklyTask replaces a task, slots included.
func (c *Controller) UpdateWeeklyTask(ctx context.Context, patch core.WeeklyTask) (Mutation[core.WeeklyTask], error) {
	if patch.ID == "" {
		return rejected[core.WeeklyTask](&core.ValidationError{Field: "id", Reason: "cannot be empty"})
	}
	if err := c.guard.acquire(patch.ID); err != nil {
		return rejected[core.WeeklyTask](err)
	}
	defer c.guard.release(patch.ID)

	c.mu.RLock()
	prev, ok := findTask(c.tasks, patch.ID)
	c.mu.RUnlock()
	if !ok {
		return rejected[core.WeeklyTask](&core.NotFoundError{Kind: "task", ID: patch.ID})
	}

	next := patch.Clone()
	next.UID = c.uid
	next.PendingSync = false
	if err := c.policy.validateTask(next); err != nil {
		return rejected[core.WeeklyTask](err)
	}
	c.putTask(next)

	if IsProvisional(next.ID) || prev.PendingSync {
		queued := next.Clone()
		if err := c.enqueue(ctx, PendingOp{Kind: OpUpdateTask, EntityID: next.ID, Task: &queued}); err != nil {
			c.putTask(prev)
			return rejected[core.WeeklyTask](err)
		}
		next.PendingSync = true
		c.putTask(next)
		return Mutation[core.WeeklyTask]{Value: next, Outcome: PendingSync}, nil
	}

	saved, err := c.backend.UpdateTask(ctx, next)
	if err == nil {
		saved.PendingSync = false
		c.putTask(saved)
		c.saveTasks(ctx)
		c.publish(ctx, Change{Kind: OpUpdateTask, EntityID: saved.ID})
		return Mutation[core.WeeklyTask]{Value: saved, Outcome: Synced}, nil
	}

	if c.queueable(err) {
		queued := next.Clone()
		if qerr := c.enqueue(ctx, PendingOp{Kind: OpUpdateTask, EntityID: next.ID, Task: &queued}); qerr == nil {
			next.PendingSync = true
			c.putTask(next)
			c.setNotice(noticeQueued)
			return Mutation[core.WeeklyTask]{Value: next, Outcome: PendingSync, Err: err}, nil
		} else {
			err = errors.Join(err, qerr)
		}
	}

	c.putTask(prev)
	c.setNotice(fmt.Sprintf("Could not update task: %v", err))
	c.logger.WarnContext(ctx, "update task rolled back", log.FieldEntityID, prev.ID, log.FieldError, err)
	return rejected[core.WeeklyTask](err)
}

// DeleteWeeklyTask removes a task and all of its slots.
func (c *Controller) DeleteWeeklyTask(ctx context.Context, id string) (Mutation[core.WeeklyTask], error) {
	if err := c.guard.acquire(id); err != nil {
		return rejected[core.WeeklyTask](err)
	}
	defer c.guard.release(id)

	c.mu.RLock()
	prev, ok := findTask(c.tasks, id)
	c.mu.RUnlock()
	if !ok {
		return rejected[core.WeeklyTask](&core.NotFoundError{Kind: "task", ID: id})
	}
	c.dropTask(id)

	op := PendingOp{Kind: OpDeleteTask, EntityID: id}
	if IsProvisional(id) || prev.PendingSync {
		if err := c.enqueue(ctx, op); err != nil {
			c.putTask(prev)
			return rejected[core.WeeklyTask](err)
		}
		return Mutation[core.WeeklyTask]{Value: prev, Outcome: PendingSync}, nil
	}

	err := c.backend.DeleteTask(ctx, c.uid, id)
	if err == nil || core.IsNotFound(err) {
		c.saveTasks(ctx)
		c.publish(ctx, Change{Kind: OpDeleteTask, EntityID: id})
		return Mutation[core.WeeklyTask]{Value: prev, Outcome: Synced}, nil
	}
	if c.queueable(err) {
		if qerr := c.enqueue(ctx, op); qerr == nil {
			c.setNotice(noticeQueued)
			return Mutation[core.WeeklyTask]{Value: prev, Outcome: PendingSync, Err: err}, nil
		} else {
			err = errors.Join(err, qerr)
		}
	}

	c.putTask(prev)
	c.setNotice(fmt.Sprintf("Could not delete task: %v", err))
	return rejected[core.WeeklyTask](err)
}
