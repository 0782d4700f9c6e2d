// Package schedule answers "what sits in this slot" queries for the planning
// grids and decides how events and weekly tasks share a slot.
package schedule

import (
	"sort"
	"time"

	"fleemy/internal/calendar"
	"fleemy/internal/core"
)

// Layer names which kind of entry is drawn in a cell.
type Layer string

const (
	LayerNone   Layer = ""
	LayerEvents Layer = "events"
	LayerTasks  Layer = "tasks"
)

// RenderPolicy selects between the two historical ways of drawing a slot
// that holds both an event and a task.
type RenderPolicy struct {
	// OverlayTasks draws tasks as a translucent layer under events. When
	// false both are stacked as solid blocks in the primary layer.
	OverlayTasks bool
}

// DefaultRenderPolicy is the overlay rendering.
var DefaultRenderPolicy = RenderPolicy{OverlayTasks: true}

// TaskOccurrence is one weekly task placed at one of its slots.
type TaskOccurrence struct {
	Task core.WeeklyTask
	Slot core.TaskSlot
}

// Cell is the content of one (day, slot start) position.
type Cell struct {
	Day     core.Weekday
	Start   core.Clock
	Events  []core.CalendarEvent
	Tasks   []TaskOccurrence
	Primary Layer
	Overlay Layer
	Stacked bool
}

func (c Cell) Empty() bool {
	return len(c.Events) == 0 && len(c.Tasks) == 0
}

type dayKey struct {
	yw  calendar.YearWeek
	day core.Weekday
}

// Index is a read-only view over the events and weekly tasks of one user.
// It is anchored on a week for slot queries but holds events of any week so
// date queries also work in month view.
type Index struct {
	week   calendar.YearWeek
	policy RenderPolicy
	byDay  map[dayKey][]core.CalendarEvent
	tasks  []core.WeeklyTask
}

// New builds an index anchored on the given ISO week.
func New(events []core.CalendarEvent, tasks []core.WeeklyTask, week calendar.YearWeek, policy RenderPolicy) *Index {
	idx := &Index{
		week:   week,
		policy: policy,
		byDay:  make(map[dayKey][]core.CalendarEvent),
		tasks:  tasks,
	}
	for _, e := range events {
		k := dayKey{yw: calendar.YearWeek{Year: e.Year, Week: e.Week}, day: e.Day}
		idx.byDay[k] = append(idx.byDay[k], e)
	}
	for k := range idx.byDay {
		list := idx.byDay[k]
		sort.SliceStable(list, func(i, j int) bool { return list[i].Start.Before(list[j].Start) })
	}
	return idx
}

// Week returns the anchor week.
func (x *Index) Week() calendar.YearWeek {
	return x.week
}

// EventsAt returns the events of the anchor week starting at the given slot.
// Several events may share a slot.
func (x *Index) EventsAt(day core.Weekday, start core.Clock) []core.CalendarEvent {
	var out []core.CalendarEvent
	for _, e := range x.byDay[dayKey{yw: x.week, day: day}] {
		if e.Start == start {
			out = append(out, e)
		}
	}
	return out
}

// TasksAt returns one occurrence per distinct slot of every task that has a
// slot on day starting at start.
func (x *Index) TasksAt(day core.Weekday, start core.Clock) []TaskOccurrence {
	var out []TaskOccurrence
	for _, t := range x.tasks {
		seen := make(map[core.TaskSlot]bool)
		for _, s := range t.Slots {
			if s.Day != day || s.Start != start || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, TaskOccurrence{Task: t, Slot: s})
		}
	}
	return out
}

// SlotAt resolves a slot into a cell. Events always take the primary layer
// when present.
func (x *Index) SlotAt(day core.Weekday, start core.Clock) Cell {
	c := Cell{
		Day:    day,
		Start:  start,
		Events: x.EventsAt(day, start),
		Tasks:  x.TasksAt(day, start),
	}
	switch {
	case len(c.Events) > 0 && len(c.Tasks) > 0:
		c.Primary = LayerEvents
		if x.policy.OverlayTasks {
			c.Overlay = LayerTasks
		} else {
			c.Stacked = true
		}
	case len(c.Events) > 0:
		c.Primary = LayerEvents
	case len(c.Tasks) > 0:
		c.Primary = LayerTasks
	}
	return c
}

// EventsOnDate returns the events scheduled on a concrete date, ordered by
// start. Weekends have no events.
func (x *Index) EventsOnDate(d time.Time) []core.CalendarEvent {
	day, ok := core.WeekdayOf(d)
	if !ok {
		return nil
	}
	list := x.byDay[dayKey{yw: calendar.YearWeekOf(d), day: day}]
	return append([]core.CalendarEvent(nil), list...)
}

// TasksOnDate returns every task occurrence on a concrete date.
func (x *Index) TasksOnDate(d time.Time) []TaskOccurrence {
	day, ok := core.WeekdayOf(d)
	if !ok {
		return nil
	}
	var out []TaskOccurrence
	for _, t := range x.tasks {
		seen := make(map[core.TaskSlot]bool)
		for _, s := range t.Slots {
			if s.Day == day && !seen[s] {
				seen[s] = true
				out = append(out, TaskOccurrence{Task: t, Slot: s})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Slot.Start.Before(out[j].Slot.Start) })
	return out
}
