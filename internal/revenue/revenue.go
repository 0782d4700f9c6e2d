// Package revenue aggregates planned income per period.
//
// Events are priced as whole hours times an hourly rate and bucketed by
// status. Weekly tasks are priced per slot hour and always count as paid.
// Events marked not_worked never contribute.
package revenue

import (
	"time"

	"fleemy/internal/calendar"
	"fleemy/internal/core"
)

// DefaultHourlyRate applies when neither the event nor the caller sets one.
var DefaultHourlyRate = core.Cents(5000)

func rateFor(e core.CalendarEvent, hourlyRate core.Money) core.Money {
	if e.HourlyRate.Cents > 0 {
		return e.HourlyRate
	}
	return hourlyRate
}

// EventAmount is what e earns at hourlyRate regardless of its status.
func EventAmount(e core.CalendarEvent, hourlyRate core.Money) core.Money {
	return rateFor(e, hourlyRate).MulHours(e.Hours())
}

func addEvent(r *core.Revenue, e core.CalendarEvent, hourlyRate core.Money) {
	hours := e.Hours()
	if hours <= 0 {
		return
	}
	amount := rateFor(e, hourlyRate).MulHours(hours)
	switch e.Status {
	case core.StatusPaid:
		r.Paid = r.Paid.Add(amount)
	case core.StatusUnpaid:
		r.Unpaid = r.Unpaid.Add(amount)
	case core.StatusPending:
		r.Pending = r.Pending.Add(amount)
	case core.StatusNotWorked:
		r.NotWorkedHours += hours
	}
}

func addSlot(r *core.Revenue, price core.Money, s core.TaskSlot, occurrences int) {
	if !s.Day.Valid() || occurrences <= 0 {
		return
	}
	amount := price.MulHours(s.Hours())
	amount.Cents *= int64(occurrences)
	r.Paid = r.Paid.Add(amount)
	r.TasksTotal = r.TasksTotal.Add(amount)
}

// Weekly computes the revenue of one ISO week. Events of other weeks are
// ignored; every task slot counts once.
func Weekly(events []core.CalendarEvent, tasks []core.WeeklyTask, week calendar.YearWeek, hourlyRate core.Money) core.Revenue {
	var r core.Revenue
	for _, e := range events {
		if e.InWeek(week.Year, week.Week) {
			addEvent(&r, e, hourlyRate)
		}
	}
	for _, t := range tasks {
		if t.Price.Cents <= 0 {
			continue
		}
		for _, s := range t.Slots {
			addSlot(&r, t.Price, s, 1)
		}
	}
	return r
}

// Monthly computes the revenue of a calendar month. Events count when their
// concrete date falls in the month; each task slot counts once per matching
// working day of the month.
func Monthly(events []core.CalendarEvent, tasks []core.WeeklyTask, year int, month time.Month, hourlyRate core.Money) core.Revenue {
	var r core.Revenue
	for _, e := range events {
		d, ok := calendar.DateOf(calendar.YearWeek{Year: e.Year, Week: e.Week}, e.Day, time.UTC)
		if !ok || d.Year() != year || d.Month() != month {
			continue
		}
		addEvent(&r, e, hourlyRate)
	}

	occurrences := make(map[core.Weekday]int)
	for day := 1; day <= calendar.DaysIn(year, month); day++ {
		if wd, ok := core.WeekdayOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC)); ok {
			occurrences[wd]++
		}
	}
	for _, t := range tasks {
		if t.Price.Cents <= 0 {
			continue
		}
		for _, s := range t.Slots {
			addSlot(&r, t.Price, s, occurrences[s.Day])
		}
	}
	return r
}
