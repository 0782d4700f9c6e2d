// Package memory provides in-process implementations of the planning ports:
// a backend for development and tests, an offline snapshot cache and an
// outbox.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleemy/internal/calendar"
	"fleemy/internal/core"
	"fleemy/internal/planning"
	"fleemy/internal/revenue"
)

// Operation names passed to a failure hook.
const (
	OpLoadWeek    = "load_week"
	OpLoadMonth   = "load_month"
	OpCreateEvent = "create_event"
	OpUpdateEvent = "update_event"
	OpDeleteEvent = "delete_event"
	OpCreateTask  = "create_task"
	OpUpdateTask  = "update_task"
	OpDeleteTask  = "delete_task"
	OpEarnings    = "earnings"
)

// Backend stores events and tasks per user in memory.
type Backend struct {
	mu         sync.RWMutex
	events     map[string]core.CalendarEvent
	tasks      map[string]core.WeeklyTask
	hourlyRate core.Money
	hook       func(op string) error
}

func NewBackend() *Backend {
	return &Backend{
		events:     make(map[string]core.CalendarEvent),
		tasks:      make(map[string]core.WeeklyTask),
		hourlyRate: revenue.DefaultHourlyRate,
	}
}

var _ planning.Backend = (*Backend)(nil)

// SetHook installs a function consulted before every operation. A non-nil
// return is reported instead of performing the operation.
func (b *Backend) SetHook(hook func(op string) error) {
	b.mu.Lock()
	b.hook = hook
	b.mu.Unlock()
}

// SetOffline makes every operation fail with a network error.
func (b *Backend) SetOffline(offline bool) {
	if !offline {
		b.SetHook(nil)
		return
	}
	b.SetHook(func(op string) error {
		return &core.NetworkError{Op: op, Err: context.DeadlineExceeded}
	})
}

// SetHourlyRate changes the rate used by GetEarnings.
func (b *Backend) SetHourlyRate(m core.Money) {
	b.mu.Lock()
	b.hourlyRate = m
	b.mu.Unlock()
}

func (b *Backend) check(op string) error {
	b.mu.RLock()
	hook := b.hook
	b.mu.RUnlock()
	if hook == nil {
		return nil
	}
	return hook(op)
}

func (b *Backend) weekEvents(uid string, weeks ...calendar.YearWeek) []core.CalendarEvent {
	var out []core.CalendarEvent
	for _, e := range b.events {
		if e.UID != uid {
			continue
		}
		for _, w := range weeks {
			if e.InWeek(w.Year, w.Week) {
				out = append(out, e)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, c := out[i], out[j]
		if a.Year != c.Year {
			return a.Year < c.Year
		}
		if a.Week != c.Week {
			return a.Week < c.Week
		}
		if a.Day != c.Day {
			return a.Day.ISO() < c.Day.ISO()
		}
		if a.Start != c.Start {
			return a.Start.Before(c.Start)
		}
		return a.ID < c.ID
	})
	return out
}

func (b *Backend) userTasks(uid string) []core.WeeklyTask {
	out := []core.WeeklyTask{}
	for _, t := range b.tasks {
		if t.UID == uid {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *Backend) LoadWeek(_ context.Context, uid string, week calendar.YearWeek) (planning.Period, error) {
	if err := b.check(OpLoadWeek); err != nil {
		return planning.Period{}, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return planning.Period{Events: b.weekEvents(uid, week), Tasks: b.userTasks(uid)}, nil
}

func (b *Backend) LoadMonth(_ context.Context, uid string, year int, month time.Month) (planning.Period, error) {
	if err := b.check(OpLoadMonth); err != nil {
		return planning.Period{}, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return planning.Period{
		Events: b.weekEvents(uid, calendar.WeeksOfMonth(year, month)...),
		Tasks:  b.userTasks(uid),
	}, nil
}

func (b *Backend) CreateEvent(_ context.Context, e core.CalendarEvent) (core.CalendarEvent, error) {
	if err := b.check(OpCreateEvent); err != nil {
		return core.CalendarEvent{}, err
	}
	if err := e.Validate(); err != nil {
		return core.CalendarEvent{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	e.ID = uuid.NewString()
	e.PendingSync = false
	b.events[e.ID] = e
	return e, nil
}

func (b *Backend) UpdateEvent(_ context.Context, e core.CalendarEvent) (core.CalendarEvent, error) {
	if err := b.check(OpUpdateEvent); err != nil {
		return core.CalendarEvent{}, err
	}
	if err := e.Validate(); err != nil {
		return core.CalendarEvent{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.events[e.ID]
	if !ok || cur.UID != e.UID {
		return core.CalendarEvent{}, &core.NotFoundError{Kind: "event", ID: e.ID}
	}
	e.PendingSync = false
	b.events[e.ID] = e
	return e, nil
}

func (b *Backend) DeleteEvent(_ context.Context, uid, id string) error {
	if err := b.check(OpDeleteEvent); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.events[id]
	if !ok || cur.UID != uid {
		return &core.NotFoundError{Kind: "event", ID: id}
	}
	delete(b.events, id)
	return nil
}

func (b *Backend) CreateTask(_ context.Context, t core.WeeklyTask) (core.WeeklyTask, error) {
	if err := b.check(OpCreateTask); err != nil {
		return core.WeeklyTask{}, err
	}
	if err := t.Validate(); err != nil {
		return core.WeeklyTask{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	t = t.Clone()
	t.ID = uuid.NewString()
	t.PendingSync = false
	b.tasks[t.ID] = t
	return t.Clone(), nil
}

func (b *Backend) UpdateTask(_ context.Context, t core.WeeklyTask) (core.WeeklyTask, error) {
	if err := b.check(OpUpdateTask); err != nil {
		return core.WeeklyTask{}, err
	}
	if err := t.Validate(); err != nil {
		return core.WeeklyTask{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.tasks[t.ID]
	if !ok || cur.UID != t.UID {
		return core.WeeklyTask{}, &core.NotFoundError{Kind: "task", ID: t.ID}
	}
	t = t.Clone()
	t.PendingSync = false
	b.tasks[t.ID] = t
	return t.Clone(), nil
}

func (b *Backend) DeleteTask(_ context.Context, uid, id string) error {
	if err := b.check(OpDeleteTask); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.tasks[id]
	if !ok || cur.UID != uid {
		return &core.NotFoundError{Kind: "task", ID: id}
	}
	delete(b.tasks, id)
	return nil
}

// GetEarnings computes the week totals the way the server does.
func (b *Backend) GetEarnings(_ context.Context, uid string, week calendar.YearWeek) (core.Revenue, error) {
	if err := b.check(OpEarnings); err != nil {
		return core.Revenue{}, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return revenue.Weekly(b.weekEvents(uid, week), b.userTasks(uid), week, b.hourlyRate), nil
}

// Users lists every uid that owns at least one entry.
func (b *Backend) Users() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, e := range b.events {
		if !seen[e.UID] {
			seen[e.UID] = true
			out = append(out, e.UID)
		}
	}
	for _, t := range b.tasks {
		if !seen[t.UID] {
			seen[t.UID] = true
			out = append(out, t.UID)
		}
	}
	sort.Strings(out)
	return out
}
