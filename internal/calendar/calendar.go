// Package calendar converts dates to ISO weeks and builds the week and month
// grids the planning views are laid out on. All functions are total and work
// on local dates at midnight.
package calendar

import (
	"fmt"
	"time"

	"fleemy/internal/core"
)

// GridCells is the fixed size of a month grid: six Sunday-start weeks.
const GridCells = 42

// YearWeek identifies an ISO week. Year is the ISO week-year, which differs
// from the calendar year around New Year.
type YearWeek struct {
	Year int
	Week int
}

func (yw YearWeek) String() string {
	return fmt.Sprintf("%04d-W%02d", yw.Year, yw.Week)
}

// Day is one cell of a month grid.
type Day struct {
	Date    time.Time
	InMonth bool
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// isoWeekday returns 1 for Monday through 7 for Sunday.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// ISOWeekNumber returns the ISO-8601 week of t: the week containing the
// Thursday of t's Monday-start week, counted from that Thursday's year.
func ISOWeekNumber(t time.Time) int {
	_, w := ISOWeek(t)
	return w
}

// ISOWeek returns the ISO week-year and week number of t.
func ISOWeek(t time.Time) (year, week int) {
	thursday := midnight(t).AddDate(0, 0, 4-isoWeekday(t))
	return thursday.Year(), (thursday.YearDay() + 6) / 7
}

// YearWeekOf is ISOWeek packed into a YearWeek.
func YearWeekOf(t time.Time) YearWeek {
	y, w := ISOWeek(t)
	return YearWeek{Year: y, Week: w}
}

// WeekDates returns Monday through Friday of the given ISO week in local time.
func WeekDates(year, week int) [5]time.Time {
	return WeekDatesIn(year, week, time.Local)
}

// WeekDatesIn is WeekDates for an explicit location.
func WeekDatesIn(year, week int, loc *time.Location) [5]time.Time {
	naive := time.Date(year, time.January, 1, 0, 0, 0, 0, loc).AddDate(0, 0, (week-1)*7)
	wd := isoWeekday(naive)
	var monday time.Time
	if wd <= 4 {
		monday = naive.AddDate(0, 0, 1-wd)
	} else {
		monday = naive.AddDate(0, 0, 8-wd)
	}
	var out [5]time.Time
	for i := range out {
		out[i] = monday.AddDate(0, 0, i)
	}
	return out
}

// DateOf returns the concrete date of a working day in an ISO week.
func DateOf(yw YearWeek, day core.Weekday, loc *time.Location) (time.Time, bool) {
	if !day.Valid() {
		return time.Time{}, false
	}
	return WeekDatesIn(yw.Year, yw.Week, loc)[day.Offset()], true
}

// MonthGrid returns 42 consecutive days starting on the Sunday on or before
// the first of the month. Cells outside the month are flagged.
func MonthGrid(year int, month time.Month) []Day {
	return MonthGridIn(year, month, time.Local)
}

func MonthGridIn(year int, month time.Month, loc *time.Location) []Day {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	start := first.AddDate(0, 0, -int(first.Weekday()))
	cells := make([]Day, GridCells)
	for i := range cells {
		d := start.AddDate(0, 0, i)
		cells[i] = Day{Date: d, InMonth: d.Month() == month && d.Year() == year}
	}
	return cells
}

// DaysIn returns the number of days of a calendar month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonths moves t by n calendar months, clamping the day to the target
// month's length (31 Jan + 1 month is 29 Feb on a leap year).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	target := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := DaysIn(target.Year(), target.Month()); d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d, 0, 0, 0, 0, t.Location())
}

// WeeksInYear returns 52 or 53.
func WeeksInYear(year int) int {
	_, w := ISOWeek(time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC))
	return w
}

// WeeksOfMonth lists, in order, every ISO week that has at least one working
// day inside the month.
func WeeksOfMonth(year int, month time.Month) []YearWeek {
	var out []YearWeek
	seen := make(map[YearWeek]bool)
	for day := 1; day <= DaysIn(year, month); day++ {
		d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		if _, ok := core.WeekdayOf(d); !ok {
			continue
		}
		yw := YearWeekOf(d)
		if !seen[yw] {
			seen[yw] = true
			out = append(out, yw)
		}
	}
	return out
}

// Next returns the following ISO week.
func (yw YearWeek) Next() YearWeek {
	return YearWeekOf(WeekDatesIn(yw.Year, yw.Week, time.UTC)[0].AddDate(0, 0, 7))
}

// Prev returns the preceding ISO week.
func (yw YearWeek) Prev() YearWeek {
	return YearWeekOf(WeekDatesIn(yw.Year, yw.Week, time.UTC)[0].AddDate(0, 0, -7))
}
