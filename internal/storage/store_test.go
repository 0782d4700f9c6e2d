package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"fleemy/internal/calendar"
	"fleemy/internal/core"
	"fleemy/internal/planning"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "fleemy.db"), nil)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWeekSnapshotRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := calendar.YearWeek{Year: 2024, Week: 2}

	if _, ok, err := s.GetWeek(ctx, "u1", w); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}

	events := []core.CalendarEvent{{
		ID: "e1", UID: "u1", Description: "Consulting", ClientName: "ACME",
		Day: core.Monday, Start: "09:00", End: "10:00", Status: core.StatusPaid,
		Week: 2, Year: 2024, HourlyRate: core.Cents(6000),
	}}
	if err := s.PutWeek(ctx, "u1", w, events); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.GetWeek(ctx, "u1", w)
	if err != nil || !ok {
		t.Fatalf("GetWeek: ok=%v err=%v", ok, err)
	}
	if len(got) != 1 || got[0] != events[0] {
		t.Fatalf("got %+v", got)
	}

	// empty week is a valid snapshot
	if err := s.PutWeek(ctx, "u1", w, nil); err != nil {
		t.Fatal(err)
	}
	got, ok, _ = s.GetWeek(ctx, "u1", w)
	if !ok || len(got) != 0 {
		t.Fatalf("expected empty snapshot, got ok=%v %+v", ok, got)
	}

	// snapshots are keyed per user
	if _, ok, _ := s.GetWeek(ctx, "u2", w); ok {
		t.Fatal("snapshot leaked across users")
	}
}

func TestTaskSnapshotRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tasks := []core.WeeklyTask{{
		ID: "t1", UID: "u1", Name: "Standup", Price: core.Cents(2000), Color: "#fff",
		Slots: []core.TaskSlot{{Day: core.Tuesday, Start: "09:00", End: "10:00"}},
	}}
	if err := s.PutTasks(ctx, "u1", tasks); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.GetTasks(ctx, "u1")
	if err != nil || !ok || len(got) != 1 || got[0].Slots[0].Day != core.Tuesday {
		t.Fatalf("got %+v ok=%v err=%v", got, ok, err)
	}
}

func TestOutboxOrderAndRemap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := core.CalendarEvent{Description: "a", Day: core.Monday, Start: "09:00", End: "10:00", Week: 2, Year: 2024}

	ops := []planning.PendingOp{
		{ID: "op1", UID: "u1", Kind: planning.OpCreateEvent, EntityID: "local-1", Event: &e},
		{ID: "op2", UID: "u2", Kind: planning.OpDeleteTask, EntityID: "t9"},
		{ID: "op3", UID: "u1", Kind: planning.OpUpdateEvent, EntityID: "local-1", Event: &e},
	}
	for _, op := range ops {
		if err := s.Enqueue(ctx, op); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Pending(ctx, "u1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "op1" || got[1].ID != "op3" {
		t.Fatalf("pending = %+v", got)
	}
	if got[0].Event == nil || got[0].Event.Description != "a" {
		t.Fatalf("payload lost: %+v", got[0])
	}

	if err := s.Remap(ctx, "u1", "local-1", "srv-1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Complete(ctx, "op1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Fail(ctx, "op3", "boom"); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Pending(ctx, "u1", 1)
	if len(got) != 1 || got[0].EntityID != "srv-1" || got[0].Attempts != 1 || got[0].LastError != "boom" {
		t.Fatalf("after remap/fail: %+v", got)
	}

	users, err := s.Users(ctx)
	if err != nil || len(users) != 2 || users[0] != "u1" || users[1] != "u2" {
		t.Fatalf("users = %v err=%v", users, err)
	}
	if n, _ := s.QueueDepth(ctx); n != 2 {
		t.Fatalf("depth = %d", n)
	}
}

func TestExportLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	w := calendar.YearWeek{Year: 2024, Week: 2}

	if _, ok, err := s.LastExport(ctx, "u1", w); ok || err != nil {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	at := time.Date(2024, 1, 15, 6, 0, 0, 0, time.UTC)
	if err := s.RecordExport(ctx, ExportRecord{UID: "u1", Week: w, Total: core.Cents(12345), Ref: "A2", ExportedAt: at}); err != nil {
		t.Fatal(err)
	}
	rec, ok, err := s.LastExport(ctx, "u1", w)
	if err != nil || !ok || rec.Total.Cents != 12345 || rec.Ref != "A2" {
		t.Fatalf("rec=%+v ok=%v err=%v", rec, ok, err)
	}
}

func TestReplayLease(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	steps := []struct {
		name  string
		owner string
		after time.Duration
		want  bool
	}{
		{"first owner", "api", 0, true},
		{"renew by holder", "api", time.Second, true},
		{"second owner blocked", "worker", 10 * time.Second, false},
		{"taken over once expired", "worker", 2 * time.Minute, true},
		{"first owner now blocked", "api", 2*time.Minute + time.Second, false},
	}
	start := now
	for _, st := range steps {
		now = start.Add(st.after)
		got, err := s.AcquireReplay(ctx, "u1", st.owner, time.Minute)
		if err != nil || got != st.want {
			t.Fatalf("%s: got=%v err=%v", st.name, got, err)
		}
	}

	if err := s.ReleaseReplay(ctx, "u1", "api"); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.AcquireReplay(ctx, "u1", "api", time.Minute); got {
		t.Fatal("release by a non-holder freed the lease")
	}
	if err := s.ReleaseReplay(ctx, "u1", "worker"); err != nil {
		t.Fatal(err)
	}
	if got, err := s.AcquireReplay(ctx, "u1", "api", time.Minute); err != nil || !got {
		t.Fatalf("lease not free after release: %v %v", got, err)
	}
	if got, _ := s.AcquireReplay(ctx, "u2", "worker", time.Minute); !got {
		t.Fatal("leases are per user")
	}
}

func TestMigrationsApplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.db")
	s, err := NewSQLiteStore(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()
	v, dirty, err := SchemaVersion(path)
	if err != nil || dirty || v != 3 {
		t.Fatalf("version=%d dirty=%v err=%v", v, dirty, err)
	}
}
