package planning

import (
	"context"

	"fleemy/internal/calendar"
	"fleemy/internal/core"
	"fleemy/internal/log"
)

// pendingScan bounds how many queued ops a load folds back into the view.
const pendingScan = 500

// fromSnapshots rebuilds a period from the offline cache. The bool reports
// whether any of the weeks was cached; cached tasks are returned either way.
func (c *Controller) fromSnapshots(ctx context.Context, weeks []calendar.YearWeek) (Period, bool) {
	if c.snapshots == nil {
		return Period{}, false
	}
	var p Period
	found := false
	for _, w := range weeks {
		events, ok, err := c.snapshots.GetWeek(ctx, c.uid, w)
		if err != nil {
			c.logger.WarnContext(ctx, "snapshot read failed", log.FieldWeek, w.String(), log.FieldError, err)
			continue
		}
		if ok {
			found = true
			p.Events = append(p.Events, events...)
		}
	}
	tasks, ok, err := c.snapshots.GetTasks(ctx, c.uid)
	if err != nil {
		c.logger.WarnContext(ctx, "task snapshot read failed", log.FieldError, err)
	} else if ok {
		p.Tasks = tasks
	}
	return p, found
}

// writeThrough stores a confirmed period, one snapshot per visible week.
func (c *Controller) writeThrough(ctx context.Context, weeks []calendar.YearWeek, p Period) {
	if c.snapshots == nil {
		return
	}
	byWeek := make(map[calendar.YearWeek][]core.CalendarEvent, len(weeks))
	for _, w := range weeks {
		byWeek[w] = []core.CalendarEvent{}
	}
	for _, e := range p.Events {
		w := calendar.YearWeek{Year: e.Year, Week: e.Week}
		if _, ok := byWeek[w]; ok {
			byWeek[w] = append(byWeek[w], e)
		}
	}
	for w, events := range byWeek {
		if err := c.snapshots.PutWeek(ctx, c.uid, w, events); err != nil {
			c.logger.WarnContext(ctx, "snapshot write failed", log.FieldWeek, w.String(), log.FieldError, err)
		}
	}
	if err := c.snapshots.PutTasks(ctx, c.uid, p.Tasks); err != nil {
		c.logger.WarnContext(ctx, "task snapshot write failed", log.FieldError, err)
	}
}

// saveWeek refreshes one week snapshot from confirmed local state. Weeks
// outside the view are skipped since the state does not hold them in full.
func (c *Controller) saveWeek(ctx context.Context, w calendar.YearWeek) {
	if c.snapshots == nil {
		return
	}
	c.mu.RLock()
	shown := false
	for _, v := range visibleWeeks(c.view, c.anchor) {
		if v == w {
			shown = true
		}
	}
	if !shown {
		c.mu.RUnlock()
		return
	}
	var events []core.CalendarEvent
	for _, e := range c.events {
		if e.InWeek(w.Year, w.Week) && !e.PendingSync {
			events = append(events, e)
		}
	}
	c.mu.RUnlock()
	if events == nil {
		events = []core.CalendarEvent{}
	}
	if err := c.snapshots.PutWeek(ctx, c.uid, w, events); err != nil {
		c.logger.WarnContext(ctx, "snapshot write failed", log.FieldWeek, w.String(), log.FieldError, err)
	}
}

func (c *Controller) saveTasks(ctx context.Context) {
	if c.snapshots == nil {
		return
	}
	c.mu.RLock()
	var tasks []core.WeeklyTask
	for _, t := range c.tasks {
		if !t.PendingSync {
			tasks = append(tasks, t.Clone())
		}
	}
	c.mu.RUnlock()
	if err := c.snapshots.PutTasks(ctx, c.uid, tasks); err != nil {
		c.logger.WarnContext(ctx, "task snapshot write failed", log.FieldError, err)
	}
}

// mergePending folds queued offline changes into a loaded period so they
// survive reloads until they are synced.
func (c *Controller) mergePending(ctx context.Context, p Period, weeks []calendar.YearWeek) Period {
	if c.outbox == nil {
		return p
	}
	ops, err := c.outbox.Pending(ctx, c.uid, pendingScan)
	if err != nil {
		c.logger.WarnContext(ctx, "outbox read failed", log.FieldError, err)
		return p
	}
	if len(ops) == 0 {
		return p
	}
	events := append([]core.CalendarEvent(nil), p.Events...)
	tasks := cloneTasks(p.Tasks)
	for _, op := range ops {
		switch op.Kind {
		case OpCreateEvent, OpUpdateEvent:
			if op.Event == nil {
				continue
			}
			e := *op.Event
			e.ID = op.EntityID
			e.PendingSync = true
			events = upsertEvent(events, e)
		case OpDeleteEvent:
			events = removeEvent(events, op.EntityID)
		case OpCreateTask, OpUpdateTask:
			if op.Task == nil {
				continue
			}
			t := op.Task.Clone()
			t.ID = op.EntityID
			t.PendingSync = true
			tasks = upsertTask(tasks, t)
		case OpDeleteTask:
			tasks = removeTask(tasks, op.EntityID)
		}
	}
	out := Period{Tasks: tasks}
	for _, e := range events {
		if visible(weeks, e) {
			out.Events = append(out.Events, e)
		}
	}
	return out
}

func upsertEvent(list []core.CalendarEvent, e core.CalendarEvent) []core.CalendarEvent {
	for i := range list {
		if list[i].ID == e.ID {
			list[i] = e
			return list
		}
	}
	return append(list, e)
}

func removeEvent(list []core.CalendarEvent, id string) []core.CalendarEvent {
	out := list[:0]
	for _, e := range list {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}

func findEvent(list []core.CalendarEvent, id string) (core.CalendarEvent, bool) {
	for _, e := range list {
		if e.ID == id {
			return e, true
		}
	}
	return core.CalendarEvent{}, false
}

func upsertTask(list []core.WeeklyTask, t core.WeeklyTask) []core.WeeklyTask {
	for i := range list {
		if list[i].ID == t.ID {
			list[i] = t
			return list
		}
	}
	return append(list, t)
}

func removeTask(list []core.WeeklyTask, id string) []core.WeeklyTask {
	out := list[:0]
	for _, t := range list {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

func findTask(list []core.WeeklyTask, id string) (core.WeeklyTask, bool) {
	for _, t := range list {
		if t.ID == id {
			return t.Clone(), true
		}
	}
	return core.WeeklyTask{}, false
}
