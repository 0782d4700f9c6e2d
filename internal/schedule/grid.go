package schedule

import (
	"time"

	"fleemy/internal/calendar"
	"fleemy/internal/core"
)

// WeekColumn is one working day of the week view.
type WeekColumn struct {
	Day   core.Weekday
	Date  time.Time
	Cells []Cell
}

// WeekGrid is the five-day by slot layout of the anchor week.
type WeekGrid struct {
	Week    calendar.YearWeek
	Slots   []core.Clock
	Columns []WeekColumn
}

// MonthCell is one day of the 42-cell month layout.
type MonthCell struct {
	Date    time.Time
	InMonth bool
	Weekend bool
	Events  []core.CalendarEvent
	Tasks   []TaskOccurrence
}

// MonthGrid is the Sunday-start month layout.
type MonthGrid struct {
	Year  int
	Month time.Month
	Cells []MonthCell
}

// WeekGrid resolves every (day, slot) of the anchor week.
func (x *Index) WeekGrid(slots []core.Clock, loc *time.Location) WeekGrid {
	dates := calendar.WeekDatesIn(x.week.Year, x.week.Week, loc)
	g := WeekGrid{Week: x.week, Slots: slots, Columns: make([]WeekColumn, len(core.Weekdays))}
	for i, day := range core.Weekdays {
		col := WeekColumn{Day: day, Date: dates[i], Cells: make([]Cell, len(slots))}
		for j, s := range slots {
			col.Cells[j] = x.SlotAt(day, s)
		}
		g.Columns[i] = col
	}
	return g
}

// MonthGrid lays out a month. Weekly tasks repeat on every matching working
// day, padding days included.
func (x *Index) MonthGrid(year int, month time.Month, loc *time.Location) MonthGrid {
	days := calendar.MonthGridIn(year, month, loc)
	g := MonthGrid{Year: year, Month: month, Cells: make([]MonthCell, len(days))}
	for i, d := range days {
		_, working := core.WeekdayOf(d.Date)
		g.Cells[i] = MonthCell{
			Date:    d.Date,
			InMonth: d.InMonth,
			Weekend: !working,
			Events:  x.EventsOnDate(d.Date),
			Tasks:   x.TasksOnDate(d.Date),
		}
	}
	return g
}
