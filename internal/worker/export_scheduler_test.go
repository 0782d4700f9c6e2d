package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"fleemy/internal/calendar"
	"fleemy/internal/core"
	"fleemy/internal/planning/memory"
	"fleemy/internal/services"
	sheetsmem "fleemy/internal/sheets/memory"
)

func TestExportSchedulerRunOnce(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewBackend()
	if _, err := backend.CreateEvent(ctx, core.CalendarEvent{
		UID: "u1", Description: "d", ClientName: "c", Day: core.Monday,
		Start: "09:00", End: "11:00", Status: core.StatusPaid, Year: 2024, Week: 2,
	}); err != nil {
		t.Fatal(err)
	}
	sheets := sheetsmem.New()
	now := time.Date(2024, 1, 17, 6, 0, 0, 0, time.UTC)
	exporter := services.NewWeeklyExporter(backend, nil, sheets, nil, core.Cents(5000), nil).
		WithLocation(time.UTC).
		WithClock(func() time.Time { return now })

	users := func(context.Context) ([]string, error) { return []string{"u1", "u2"}, nil }
	s, err := NewExportScheduler(exporter, users, "0 6 * * 1", time.UTC, nil)
	if err != nil {
		t.Fatal(err)
	}

	results, err := s.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v", results)
	}
	rows := sheets.Weeks()
	if len(rows) != 2 {
		t.Fatalf("rows = %+v", rows)
	}
	for _, r := range rows {
		if r.Week != (calendar.YearWeek{Year: 2024, Week: 2}) {
			t.Errorf("exported %s, want 2024-W02", r.Week)
		}
		if r.UID == "u1" && r.Revenue.Paid != core.Cents(10000) {
			t.Errorf("u1 paid = %v", r.Revenue.Paid)
		}
	}
	if runs, last := s.Runs(); runs != 1 || last.IsZero() {
		t.Errorf("runs = %d last = %v", runs, last)
	}
}

func TestExportSchedulerUserListFailure(t *testing.T) {
	exporter := services.NewWeeklyExporter(memory.NewBackend(), nil, sheetsmem.New(), nil, core.Cents(5000), nil)
	users := func(context.Context) ([]string, error) { return nil, errors.New("outbox closed") }
	s, err := NewExportScheduler(exporter, users, "@weekly", time.UTC, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestExportSchedulerSchedule(t *testing.T) {
	exporter := services.NewWeeklyExporter(memory.NewBackend(), nil, sheetsmem.New(), nil, core.Cents(5000), nil)
	none := func(context.Context) ([]string, error) { return nil, nil }

	if _, err := NewExportScheduler(exporter, none, "every monday", time.UTC, nil); err == nil {
		t.Error("expected invalid schedule error")
	}

	s, err := NewExportScheduler(exporter, none, "0 6 * * 1", time.UTC, nil)
	if err != nil {
		t.Fatal(err)
	}
	next := s.Next()
	if next.Weekday() != time.Monday || next.Hour() != 6 || next.Minute() != 0 {
		t.Errorf("next = %v, want a Monday 06:00", next)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()
	s.Stop()
}
