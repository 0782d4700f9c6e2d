package planning_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"fleemy/internal/cache"
	"fleemy/internal/calendar"
	"fleemy/internal/core"
	"fleemy/internal/log"
	"fleemy/internal/planning"
	"fleemy/internal/planning/memory"
)

type countingSnapshots struct {
	*memory.Snapshots
	weekReads int
	taskReads int
	failPuts  bool
}

func (c *countingSnapshots) GetWeek(ctx context.Context, uid string, w calendar.YearWeek) ([]core.CalendarEvent, bool, error) {
	c.weekReads++
	return c.Snapshots.GetWeek(ctx, uid, w)
}

func (c *countingSnapshots) GetTasks(ctx context.Context, uid string) ([]core.WeeklyTask, bool, error) {
	c.taskReads++
	return c.Snapshots.GetTasks(ctx, uid)
}

func (c *countingSnapshots) PutWeek(ctx context.Context, uid string, w calendar.YearWeek, events []core.CalendarEvent) error {
	if c.failPuts {
		return errors.New("disk full")
	}
	return c.Snapshots.PutWeek(ctx, uid, w, events)
}

func TestMemoizedSnapshotsReadThrough(t *testing.T) {
	ctx := context.Background()
	next := &countingSnapshots{Snapshots: memory.NewSnapshots()}
	_ = next.Snapshots.PutWeek(ctx, uid, week2, []core.CalendarEvent{{ID: "e1", Description: "a"}})
	m := planning.NewMemoizedSnapshots(next, 4, time.Minute)

	for i := 0; i < 3; i++ {
		events, ok, err := m.GetWeek(ctx, uid, week2)
		if err != nil || !ok || len(events) != 1 {
			t.Fatalf("GetWeek = %v %v %v", events, ok, err)
		}
		// callers own the returned slice
		events[0].Description = "mutated"
	}
	if next.weekReads != 1 {
		t.Errorf("backing reads = %d, want 1", next.weekReads)
	}
	events, _, _ := m.GetWeek(ctx, uid, week2)
	if events[0].Description != "a" {
		t.Errorf("memoized copy was mutated: %+v", events[0])
	}

	if _, ok, _ := m.GetWeek(ctx, uid, week3); ok {
		t.Error("missing week reported present")
	}
	if _, ok, _ := m.GetTasks(ctx, uid); ok {
		t.Error("missing tasks reported present")
	}
}

func TestMemoizedSnapshotsWriteThrough(t *testing.T) {
	ctx := context.Background()
	next := &countingSnapshots{Snapshots: memory.NewSnapshots()}
	m := planning.NewMemoizedSnapshots(next, 4, time.Minute)

	tasks := []core.WeeklyTask{{ID: "t1", Name: "Standup", Slots: []core.TaskSlot{{Day: core.Monday, Start: "09:00", End: "10:00"}}}}
	if err := m.PutTasks(ctx, uid, tasks); err != nil {
		t.Fatal(err)
	}
	tasks[0].Slots[0].Day = core.Friday

	got, ok, err := m.GetTasks(ctx, uid)
	if err != nil || !ok || got[0].Slots[0].Day != core.Monday {
		t.Fatalf("GetTasks = %+v %v %v", got, ok, err)
	}
	if next.taskReads != 0 {
		t.Errorf("backing reads = %d, want 0", next.taskReads)
	}
	if stored, ok, _ := next.Snapshots.GetTasks(ctx, uid); !ok || len(stored) != 1 {
		t.Error("write did not reach the backing cache")
	}

	// a failed write must not leave a stale memo behind
	_ = m.PutWeek(ctx, uid, week2, []core.CalendarEvent{{ID: "old"}})
	next.failPuts = true
	if err := m.PutWeek(ctx, uid, week2, []core.CalendarEvent{{ID: "new"}}); err == nil {
		t.Fatal("expected error")
	}
	events, ok, _ := m.GetWeek(ctx, uid, week2)
	if !ok || events[0].ID != "old" {
		t.Errorf("after failed write got %+v", events)
	}
	if next.weekReads != 1 {
		t.Errorf("backing reads = %d, want 1", next.weekReads)
	}
}

func TestMemoizedSnapshotsCleanup(t *testing.T) {
	ctx := context.Background()
	m := planning.NewMemoizedSnapshots(memory.NewSnapshots(), 4, time.Nanosecond)
	mgr := cache.NewManager(log.Discard())
	m.RegisterWith(mgr)

	_ = m.PutWeek(ctx, uid, week2, nil)
	_ = m.PutTasks(ctx, uid, nil)
	time.Sleep(time.Millisecond)

	removed := mgr.Sweep()
	if removed["snapshot_weeks"] != 1 || removed["snapshot_tasks"] != 1 {
		t.Errorf("Sweep() = %v", removed)
	}
}

func TestSessions(t *testing.T) {
	backend := memory.NewBackend()
	s := planning.NewSessions(planning.Options{
		Backend: backend,
		Policy:  planning.DefaultPolicy(),
		Logger:  log.Discard(),
	}, 2, time.Hour)

	a1, err := s.For("a")
	if err != nil {
		t.Fatal(err)
	}
	a2, _ := s.For("a")
	if a1 != a2 {
		t.Error("same uid got two controllers")
	}
	if a1.UID() != "a" {
		t.Errorf("UID() = %q", a1.UID())
	}

	_, _ = s.For("b")
	_, _ = s.For("c")
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
	for _, u := range s.Users() {
		if u == "a" {
			t.Error("least recently used session was not evicted")
		}
	}

	if _, err := s.For(""); err == nil {
		t.Error("expected error for empty uid")
	}
}

func TestSessionsIdleEviction(t *testing.T) {
	s := planning.NewSessions(planning.Options{
		Backend: memory.NewBackend(),
		Logger:  log.Discard(),
	}, 10, time.Nanosecond)
	mgr := cache.NewManager(log.Discard())
	s.RegisterWith(mgr)

	_, _ = s.For("a")
	time.Sleep(time.Millisecond)
	if removed := mgr.Sweep(); removed["planning_sessions"] != 1 {
		t.Errorf("Sweep() = %v", removed)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}
