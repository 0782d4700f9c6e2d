package ics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"

	"fleemy/internal/calendar"
	"fleemy/internal/core"
)

func TestWriteWeek(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Skip("tzdata not available")
	}
	week := calendar.YearWeek{Year: 2024, Week: 2}
	w := Week{
		UID:  "u1",
		Week: week,
		Events: []core.CalendarEvent{
			{ID: "e1", Description: "Audit", ClientName: "ACME", Day: core.Monday, Start: "09:00", End: "11:00", Status: core.StatusPaid, Week: 2, Year: 2024},
			{ID: "e2", Description: "Call", Day: core.Friday, Start: "14:30", End: "15:00", Status: core.StatusNotWorked, Week: 2, Year: 2024},
			{ID: "other", Description: "Next week", Day: core.Monday, Start: "09:00", End: "10:00", Status: core.StatusPaid, Week: 3, Year: 2024},
		},
		Tasks: []core.WeeklyTask{{
			ID: "t1", Name: "Standup", Color: "#ff0000",
			Slots: []core.TaskSlot{{Day: core.Tuesday, Start: "10:00", End: "11:00"}, {Day: core.Thursday, Start: "10:00", End: "11:00"}},
		}},
		HourlyRate: core.Cents(5000),
		Location:   rome,
		Stamp:      time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC),
	}

	var buf bytes.Buffer
	if err := Write(&buf, w); err != nil {
		t.Fatal(err)
	}

	cal, err := ical.ParseCalendar(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("output does not parse: %v\n%s", err, buf.String())
	}
	events := cal.Events()
	if len(events) != 4 {
		t.Fatalf("got %d VEVENTs, want 4", len(events))
	}

	byID := map[string]*ical.VEvent{}
	for _, ev := range events {
		byID[ev.Id()] = ev
	}

	audit := byID["event-e1@fleemy"]
	if audit == nil {
		t.Fatal("event e1 missing")
	}
	if got := audit.GetProperty(ical.ComponentPropertySummary).Value; got != "Audit (ACME)" {
		t.Errorf("summary = %q", got)
	}
	start, err := audit.GetStartAt()
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 1, 8, 9, 0, 0, 0, rome)
	if !start.Equal(want) {
		t.Errorf("start = %v, want %v", start, want)
	}
	if got := audit.GetProperty(ical.ComponentPropertyDescription).Value; !strings.Contains(got, "2 h") {
		t.Errorf("description = %q", got)
	}

	call := byID["event-e2@fleemy"]
	if call == nil || call.GetProperty(ical.ComponentPropertyStatus).Value != string(ical.ObjectStatusCancelled) {
		t.Error("not worked event should be cancelled")
	}
	if _, ok := byID["event-other@fleemy"]; ok {
		t.Error("event of another week exported")
	}
	if byID["task-t1-1-2024-W02@fleemy"] == nil {
		t.Error("second task occurrence missing")
	}
}

func TestFileName(t *testing.T) {
	if got := FileName(calendar.YearWeek{Year: 2025, Week: 1}); got != "fleemy-2025-W01.ics" {
		t.Errorf("FileName() = %q", got)
	}
}
