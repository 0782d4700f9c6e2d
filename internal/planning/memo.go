package planning

import (
	"context"
	"fmt"
	"time"

	"fleemy/internal/cache"
	"fleemy/internal/calendar"
	"fleemy/internal/core"
)

// MemoizedSnapshots keeps recently used snapshots in memory in front of a
// slower SnapshotCache. Writes go to both.
type MemoizedSnapshots struct {
	next  SnapshotCache
	weeks *cache.LRUCache[[]core.CalendarEvent]
	tasks *cache.LRUCache[[]core.WeeklyTask]
}

func NewMemoizedSnapshots(next SnapshotCache, size int, ttl time.Duration) *MemoizedSnapshots {
	return &MemoizedSnapshots{
		next:  next,
		weeks: cache.NewLRUCache[[]core.CalendarEvent](size, ttl),
		tasks: cache.NewLRUCache[[]core.WeeklyTask](size, ttl),
	}
}

// RegisterWith hands the LRUs to a cache.Manager for periodic cleanup.
func (m *MemoizedSnapshots) RegisterWith(mgr *cache.Manager) {
	mgr.Register("snapshot_weeks", m.weeks)
	mgr.Register("snapshot_tasks", m.tasks)
}

func weekKey(uid string, w calendar.YearWeek) string {
	return fmt.Sprintf("%s:%d:%d", uid, w.Year, w.Week)
}

func (m *MemoizedSnapshots) PutWeek(ctx context.Context, uid string, w calendar.YearWeek, events []core.CalendarEvent) error {
	if err := m.next.PutWeek(ctx, uid, w, events); err != nil {
		m.weeks.Delete(weekKey(uid, w))
		return err
	}
	m.weeks.Set(weekKey(uid, w), append([]core.CalendarEvent(nil), events...))
	return nil
}

func (m *MemoizedSnapshots) GetWeek(ctx context.Context, uid string, w calendar.YearWeek) ([]core.CalendarEvent, bool, error) {
	if events, ok := m.weeks.Get(weekKey(uid, w)); ok {
		return append([]core.CalendarEvent(nil), events...), true, nil
	}
	events, ok, err := m.next.GetWeek(ctx, uid, w)
	if err != nil || !ok {
		return nil, false, err
	}
	m.weeks.Set(weekKey(uid, w), events)
	return append([]core.CalendarEvent(nil), events...), true, nil
}

func (m *MemoizedSnapshots) PutTasks(ctx context.Context, uid string, tasks []core.WeeklyTask) error {
	if err := m.next.PutTasks(ctx, uid, tasks); err != nil {
		m.tasks.Delete(uid)
		return err
	}
	m.tasks.Set(uid, cloneTasks(tasks))
	return nil
}

func (m *MemoizedSnapshots) GetTasks(ctx context.Context, uid string) ([]core.WeeklyTask, bool, error) {
	if tasks, ok := m.tasks.Get(uid); ok {
		return cloneTasks(tasks), true, nil
	}
	tasks, ok, err := m.next.GetTasks(ctx, uid)
	if err != nil || !ok {
		return nil, false, err
	}
	m.tasks.Set(uid, cloneTasks(tasks))
	return cloneTasks(tasks), true, nil
}
