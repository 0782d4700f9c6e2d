package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
)

const (
	StatusPaid      EventStatus = "paid"
	StatusUnpaid    EventStatus = "unpaid"
	StatusPending   EventStatus = "pending"
	StatusNotWorked EventStatus = "not_worked"
)

type (
	// Weekday is one of the five working days a slot can be scheduled on.
	Weekday string

	EventStatus string

	// CalendarEvent is a one-off booking for a client on a given ISO week.
	CalendarEvent struct {
		ID          string
		UID         string
		Description string
		ClientName  string
		Day         Weekday
		Start       Clock
		End         Clock
		Status      EventStatus
		Week        int
		Year        int // ISO week-year
		HourlyRate  Money // zero means the configured default applies
		PendingSync bool
	}

	// TaskSlot is a single recurring occurrence of a weekly task.
	TaskSlot struct {
		Day   Weekday
		Start Clock
		End   Clock
	}

	// WeeklyTask recurs on every week at each of its slots.
	WeeklyTask struct {
		ID          string
		UID         string
		Name        string
		Price       Money // per hour of slot
		Color       string
		Icon        string
		Slots       []TaskSlot
		PendingSync bool
	}
)

// Weekdays lists the schedulable days in calendar order.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}

// ParseWeekday accepts the lowercase names used on the wire.
func ParseWeekday(s string) (Weekday, error) {
	d := Weekday(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", &ValidationError{Field: "day", Reason: fmt.Sprintf("unknown weekday %q", s)}
	}
	return d, nil
}

func (d Weekday) Valid() bool {
	return d.ISO() != 0
}

// ISO returns 1 for Monday through 5 for Friday and 0 for anything else.
func (d Weekday) ISO() int {
	switch d {
	case Monday:
		return 1
	case Tuesday:
		return 2
	case Wednesday:
		return 3
	case Thursday:
		return 4
	case Friday:
		return 5
	}
	return 0
}

// Offset is the number of days from Monday.
func (d Weekday) Offset() int {
	return d.ISO() - 1
}

// WeekdayOf maps a date to its working day. Saturday and Sunday report false.
func WeekdayOf(t time.Time) (Weekday, bool) {
	switch t.Weekday() {
	case time.Monday:
		return Monday, true
	case time.Tuesday:
		return Tuesday, true
	case time.Wednesday:
		return Wednesday, true
	case time.Thursday:
		return Thursday, true
	case time.Friday:
		return Friday, true
	}
	return "", false
}

func ParseStatus(s string) (EventStatus, error) {
	st := EventStatus(strings.TrimSpace(s))
	if st == "" {
		return StatusPending, nil
	}
	if !st.Valid() {
		return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", s)}
	}
	return st, nil
}

func (s EventStatus) Valid() bool {
	switch s {
	case StatusPaid, StatusUnpaid, StatusPending, StatusNotWorked:
		return true
	}
	return false
}

func (s TaskSlot) Validate() error {
	if !s.Day.Valid() {
		return &ValidationError{Field: "day", Reason: fmt.Sprintf("unknown weekday %q", s.Day)}
	}
	return validateRange(s.Start, s.End)
}

// Hours is the slot length in whole hours.
func (s TaskSlot) Hours() int {
	return s.End.Hour() - s.Start.Hour()
}

func validateRange(start, end Clock) error {
	if !start.Valid() {
		return &ValidationError{Field: "start", Reason: fmt.Sprintf("invalid time %q", start)}
	}
	if !end.Valid() {
		return &ValidationError{Field: "end", Reason: fmt.Sprintf("invalid time %q", end)}
	}
	if !start.Before(end) {
		return &ValidationError{Field: "end", Reason: "end must be after start"}
	}
	return nil
}

// Validate checks the event shape. Whether a client name is mandatory is a
// caller policy and is not enforced here.
func (e CalendarEvent) Validate() error {
	if len(e.Description) > 200 {
		return &ValidationError{Field: "description", Reason: "too long (max 200 characters)"}
	}
	if !e.Day.Valid() {
		return &ValidationError{Field: "day", Reason: fmt.Sprintf("unknown weekday %q", e.Day)}
	}
	if err := validateRange(e.Start, e.End); err != nil {
		return err
	}
	if !e.Status.Valid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", e.Status)}
	}
	if e.Week < 1 || e.Week > 53 {
		return &ValidationError{Field: "week", Reason: fmt.Sprintf("week %d out of range", e.Week)}
	}
	if e.Year < 1 {
		return &ValidationError{Field: "year", Reason: fmt.Sprintf("year %d out of range", e.Year)}
	}
	if e.HourlyRate.Cents < 0 {
		return &ValidationError{Field: "hourly_rate", Reason: "cannot be negative"}
	}
	return nil
}

// Hours is the event length in whole hours.
func (e CalendarEvent) Hours() int {
	return e.End.Hour() - e.Start.Hour()
}

// InWeek reports whether the event belongs to the given ISO week.
func (e CalendarEvent) InWeek(year, week int) bool {
	return e.Year == year && e.Week == week
}

func (t WeeklyTask) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return &ValidationError{Field: "name", Reason: "cannot be empty"}
	}
	if t.Price.Cents < 0 {
		return &ValidationError{Field: "price", Reason: "cannot be negative"}
	}
	for i, s := range t.Slots {
		if err := s.Validate(); err != nil {
			var ve *ValidationError
			if AsValidation(err, &ve) {
				return &ValidationError{Field: fmt.Sprintf("time_slots[%d].%s", i, ve.Field), Reason: ve.Reason}
			}
			return err
		}
	}
	return nil
}

// Clone returns a copy that does not share the slot slice.
func (t WeeklyTask) Clone() WeeklyTask {
	c := t
	c.Slots = append([]TaskSlot(nil), t.Slots...)
	return c
}
