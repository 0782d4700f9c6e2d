// Package ics renders a planning week as an iCalendar feed.
package ics

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"fleemy/internal/calendar"
	"fleemy/internal/core"
	"fleemy/internal/revenue"
)

const productID = "-//fleemy//planning//EN"

// Week is the content of one exported week.
type Week struct {
	UID        string
	Week       calendar.YearWeek
	Events     []core.CalendarEvent
	Tasks      []core.WeeklyTask
	HourlyRate core.Money
	Location   *time.Location
	Stamp      time.Time
}

// at combines a week day and a slot boundary into an instant.
func at(w calendar.YearWeek, day core.Weekday, c core.Clock, loc *time.Location) (time.Time, bool) {
	date, ok := calendar.DateOf(w, day, loc)
	if !ok || c.Hour() < 0 || c.Minute() < 0 {
		return time.Time{}, false
	}
	return time.Date(date.Year(), date.Month(), date.Day(), c.Hour(), c.Minute(), 0, 0, loc), true
}

func eventStatus(s core.EventStatus) ical.ObjectStatus {
	switch s {
	case core.StatusPending:
		return ical.ObjectStatusTentative
	case core.StatusNotWorked:
		return ical.ObjectStatusCancelled
	default:
		return ical.ObjectStatusConfirmed
	}
}

// Build creates the calendar. Events outside the week are skipped; each
// weekly task slot becomes one concrete occurrence.
func Build(w Week) *ical.Calendar {
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	stamp := w.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName(fmt.Sprintf("Fleemy %s", w.Week))
	cal.SetXWRTimezone(loc.String())

	for _, e := range w.Events {
		if !e.InWeek(w.Week.Year, w.Week.Week) {
			continue
		}
		start, ok := at(w.Week, e.Day, e.Start, loc)
		if !ok {
			continue
		}
		end, ok := at(w.Week, e.Day, e.End, loc)
		if !ok {
			continue
		}
		ev := cal.AddEvent(fmt.Sprintf("event-%s@fleemy", e.ID))
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(start)
		ev.SetEndAt(end)
		ev.SetSummary(summary(e.Description, e.ClientName))
		ev.SetStatus(eventStatus(e.Status))
		ev.SetProperty(ical.ComponentPropertyCategories, "event,"+string(e.Status))
		if e.Status != core.StatusNotWorked {
			amount := revenue.EventAmount(e, w.HourlyRate)
			ev.SetDescription(fmt.Sprintf("%d h, %s", e.Hours(), amount))
		}
	}

	for _, t := range w.Tasks {
		for i, s := range t.Slots {
			start, ok := at(w.Week, s.Day, s.Start, loc)
			if !ok {
				continue
			}
			end, ok := at(w.Week, s.Day, s.End, loc)
			if !ok {
				continue
			}
			ev := cal.AddEvent(fmt.Sprintf("task-%s-%d-%s@fleemy", t.ID, i, w.Week))
			ev.SetDtStampTime(stamp)
			ev.SetStartAt(start)
			ev.SetEndAt(end)
			ev.SetSummary(t.Name)
			ev.SetStatus(ical.ObjectStatusConfirmed)
			ev.SetProperty(ical.ComponentPropertyCategories, "task")
			if t.Color != "" {
				ev.SetProperty(ical.ComponentPropertyColor, t.Color)
			}
		}
	}
	return cal
}

func summary(desc, client string) string {
	desc = strings.TrimSpace(desc)
	if client = strings.TrimSpace(client); client == "" {
		return desc
	}
	return desc + " (" + client + ")"
}

// Write serializes the week to out.
func Write(out io.Writer, w Week) error {
	_, err := io.WriteString(out, Build(w).Serialize())
	return err
}

// FileName is the attachment name of an exported week.
func FileName(w calendar.YearWeek) string {
	return fmt.Sprintf("fleemy-%d-W%02d.ics", w.Year, w.Week)
}
