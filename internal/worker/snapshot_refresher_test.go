package worker

import (
	"context"
	"testing"
	"time"

	"fleemy/internal/amqp"
	"fleemy/internal/calendar"
	"fleemy/internal/core"
	"fleemy/internal/planning/memory"
)

func TestHandleChangeRefreshesWeek(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewBackend()
	snaps := memory.NewSnapshots()
	saved, err := backend.CreateEvent(ctx, core.CalendarEvent{
		UID: "u1", Description: "d", ClientName: "c", Day: core.Monday,
		Start: "09:00", End: "10:00", Status: core.StatusPaid, Year: 2024, Week: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := backend.CreateTask(ctx, core.WeeklyTask{
		UID: "u1", Name: "standup", Price: core.Cents(1000),
		Slots: []core.TaskSlot{{Day: core.Friday, Start: "09:00", End: "10:00"}},
	}); err != nil {
		t.Fatal(err)
	}

	r := NewSnapshotRefresher(backend, snaps, nil)
	msg := &amqp.ChangeMessage{UID: "u1", Kind: "create_event", EntityID: saved.ID, Year: 2024, Week: 2}
	if err := r.HandleChange(ctx, msg); err != nil {
		t.Fatal(err)
	}

	events, ok, _ := snaps.GetWeek(ctx, "u1", calendar.YearWeek{Year: 2024, Week: 2})
	if !ok || len(events) != 1 || events[0].ID != saved.ID {
		t.Fatalf("week snapshot %+v ok=%v", events, ok)
	}
	tasks, ok, _ := snaps.GetTasks(ctx, "u1")
	if !ok || len(tasks) != 1 {
		t.Fatalf("task snapshot %+v ok=%v", tasks, ok)
	}
}

func TestHandleChangeOfflineRequeues(t *testing.T) {
	backend := memory.NewBackend()
	backend.SetOffline(true)
	r := NewSnapshotRefresher(backend, memory.NewSnapshots(), nil)
	r.now = func() time.Time { return time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC) }

	err := r.HandleChange(context.Background(), &amqp.ChangeMessage{UID: "u1", Kind: "delete_task"})
	if !core.IsNetwork(err) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestRefreshUsers(t *testing.T) {
	ctx := context.Background()
	snaps := memory.NewSnapshots()
	r := NewSnapshotRefresher(memory.NewBackend(), snaps, nil)
	r.now = func() time.Time { return time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC) }

	if err := r.RefreshUsers(ctx, []string{"u1"}); err != nil {
		t.Fatal(err)
	}
	// 2024-12-30 is in 2025-W01
	if _, ok, _ := snaps.GetWeek(ctx, "u1", calendar.YearWeek{Year: 2025, Week: 2}); !ok {
		t.Fatal("next week not refreshed")
	}
}
