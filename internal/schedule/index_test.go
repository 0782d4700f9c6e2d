package schedule

import (
	"testing"
	"time"

	"fleemy/internal/calendar"
	"fleemy/internal/core"
)

var week2 = calendar.YearWeek{Year: 2024, Week: 2}

func ev(id string, day core.Weekday, start, end string, yw calendar.YearWeek) core.CalendarEvent {
	return core.CalendarEvent{
		ID: id, Description: id, ClientName: "c", Day: day,
		Start: core.MustClock(start), End: core.MustClock(end),
		Status: core.StatusPending, Year: yw.Year, Week: yw.Week,
	}
}

func task(id string, slots ...core.TaskSlot) core.WeeklyTask {
	return core.WeeklyTask{ID: id, Name: id, Price: core.Cents(1000), Slots: slots}
}

func slot(day core.Weekday, start, end string) core.TaskSlot {
	return core.TaskSlot{Day: day, Start: core.MustClock(start), End: core.MustClock(end)}
}

func TestEventsAt(t *testing.T) {
	idx := New([]core.CalendarEvent{
		ev("a", core.Monday, "09:00", "10:00", week2),
		ev("b", core.Monday, "09:00", "11:00", week2),
		ev("c", core.Monday, "10:00", "11:00", week2),
		ev("other-week", core.Monday, "09:00", "10:00", calendar.YearWeek{Year: 2024, Week: 3}),
		ev("other-year", core.Monday, "09:00", "10:00", calendar.YearWeek{Year: 2023, Week: 2}),
	}, nil, week2, DefaultRenderPolicy)

	got := idx.EventsAt(core.Monday, core.MustClock("09:00"))
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("expected stacked a,b got %+v", got)
	}
	if n := len(idx.EventsAt(core.Tuesday, core.MustClock("09:00"))); n != 0 {
		t.Fatalf("expected no events on tuesday, got %d", n)
	}
}

func TestTasksAtDeduplicatesSlots(t *testing.T) {
	idx := New(nil, []core.WeeklyTask{
		task("t1", slot(core.Friday, "14:00", "15:00"), slot(core.Friday, "14:00", "15:00"), slot(core.Monday, "14:00", "15:00")),
		task("t2", slot(core.Friday, "14:00", "16:00")),
	}, week2, DefaultRenderPolicy)

	got := idx.TasksAt(core.Friday, core.MustClock("14:00"))
	if len(got) != 2 || got[0].Task.ID != "t1" || got[1].Task.ID != "t2" {
		t.Fatalf("unexpected occurrences %+v", got)
	}
}

func TestSlotAtOverlap(t *testing.T) {
	events := []core.CalendarEvent{ev("e", core.Wednesday, "10:00", "11:00", week2)}
	tasks := []core.WeeklyTask{task("t", slot(core.Wednesday, "10:00", "11:00"), slot(core.Thursday, "10:00", "11:00"))}

	tests := []struct {
		name        string
		policy      RenderPolicy
		day         core.Weekday
		wantPrimary Layer
		wantOverlay Layer
		wantStacked bool
	}{
		{"overlay both", RenderPolicy{OverlayTasks: true}, core.Wednesday, LayerEvents, LayerTasks, false},
		{"stacked both", RenderPolicy{OverlayTasks: false}, core.Wednesday, LayerEvents, LayerNone, true},
		{"tasks only", DefaultRenderPolicy, core.Thursday, LayerTasks, LayerNone, false},
		{"empty", DefaultRenderPolicy, core.Friday, LayerNone, LayerNone, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(events, tasks, week2, tt.policy).SlotAt(tt.day, core.MustClock("10:00"))
			if c.Primary != tt.wantPrimary || c.Overlay != tt.wantOverlay || c.Stacked != tt.wantStacked {
				t.Fatalf("got primary=%q overlay=%q stacked=%v", c.Primary, c.Overlay, c.Stacked)
			}
		})
	}
}

func TestEventsOnDate(t *testing.T) {
	idx := New([]core.CalendarEvent{
		ev("late", core.Wednesday, "15:00", "16:00", week2),
		ev("early", core.Wednesday, "09:00", "10:00", week2),
	}, []core.WeeklyTask{task("t", slot(core.Wednesday, "12:00", "13:00"))}, calendar.YearWeek{Year: 2024, Week: 5}, DefaultRenderPolicy)

	wed := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.Local)
	got := idx.EventsOnDate(wed)
	if len(got) != 2 || got[0].ID != "early" {
		t.Fatalf("unexpected events %+v", got)
	}
	if n := len(idx.TasksOnDate(wed)); n != 1 {
		t.Fatalf("expected one task occurrence, got %d", n)
	}

	sat := time.Date(2024, time.January, 13, 0, 0, 0, 0, time.Local)
	if len(idx.EventsOnDate(sat)) != 0 || len(idx.TasksOnDate(sat)) != 0 {
		t.Fatal("weekend must be empty")
	}
}

func TestWeekGrid(t *testing.T) {
	idx := New([]core.CalendarEvent{ev("e", core.Friday, "09:00", "10:00", week2)}, nil, week2, DefaultRenderPolicy)
	g := idx.WeekGrid(core.HourlySlots(9, 18), time.Local)
	if len(g.Columns) != 5 || len(g.Columns[0].Cells) != 9 {
		t.Fatalf("unexpected shape %d x %d", len(g.Columns), len(g.Columns[0].Cells))
	}
	fri := g.Columns[4]
	if fri.Day != core.Friday || fri.Date.Day() != 12 {
		t.Fatalf("unexpected friday column %s %s", fri.Day, fri.Date)
	}
	if fri.Cells[0].Primary != LayerEvents {
		t.Fatal("event not placed at 09:00")
	}
}

func TestMonthGrid(t *testing.T) {
	idx := New([]core.CalendarEvent{
		ev("jan3", core.Wednesday, "09:00", "10:00", calendar.YearWeek{Year: 2024, Week: 1}),
		ev("feb", core.Thursday, "09:00", "10:00", calendar.YearWeek{Year: 2024, Week: 5}),
	}, []core.WeeklyTask{task("t", slot(core.Monday, "09:00", "10:00"))}, calendar.YearWeek{Year: 2024, Week: 1}, DefaultRenderPolicy)

	g := idx.MonthGrid(2024, time.January, time.Local)
	if len(g.Cells) != calendar.GridCells {
		t.Fatalf("expected 42 cells, got %d", len(g.Cells))
	}
	var events, mondays int
	for _, c := range g.Cells {
		events += len(c.Events)
		if c.Date.Weekday() == time.Monday {
			mondays++
			if len(c.Tasks) != 1 {
				t.Fatalf("monday %s missing weekly task", c.Date.Format("2006-01-02"))
			}
		}
		if c.Weekend && (len(c.Events) > 0 || len(c.Tasks) > 0) {
			t.Fatal("weekend cell has entries")
		}
	}
	// Feb 1 2024 (week 5 Thursday) is a padding cell of the January grid.
	if events != 2 || mondays != 6 {
		t.Fatalf("events=%d mondays=%d", events, mondays)
	}
}
