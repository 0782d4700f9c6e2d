package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Clock is an "HH:MM" slot boundary. Slots are whole hours, so only the hour
// part takes part in arithmetic.
type Clock string

// ParseClock normalises "9:00", "09:00" and "9" into "09:00".
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	hh, mm, found := strings.Cut(s, ":")
	if !found {
		mm = "00"
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 24 {
		return "", &ValidationError{Field: "time", Reason: fmt.Sprintf("invalid time %q", s)}
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || (h == 24 && m != 0) {
		return "", &ValidationError{Field: "time", Reason: fmt.Sprintf("invalid time %q", s)}
	}
	return Clock(fmt.Sprintf("%02d:%02d", h, m)), nil
}

// MustClock is for constants and tests.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) Valid() bool {
	n, err := ParseClock(string(c))
	return err == nil && n == c
}

// Hour returns the hour component, or -1 when the clock is malformed.
func (c Clock) Hour() int {
	hh, _, _ := strings.Cut(string(c), ":")
	h, err := strconv.Atoi(hh)
	if err != nil {
		return -1
	}
	return h
}

// Minute returns the minute component, or -1 when the clock is malformed.
func (c Clock) Minute() int {
	_, mm, _ := strings.Cut(string(c), ":")
	m, err := strconv.Atoi(mm)
	if err != nil {
		return -1
	}
	return m
}

func (c Clock) minutes() int {
	hh, mm, _ := strings.Cut(string(c), ":")
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	return h*60 + m
}

func (c Clock) Before(o Clock) bool {
	return c.minutes() < o.minutes()
}

func (c Clock) String() string {
	return string(c)
}

// HourlySlots returns the slot starts from first (inclusive) to last (exclusive).
func HourlySlots(first, last int) []Clock {
	if last <= first {
		return nil
	}
	out := make([]Clock, 0, last-first)
	for h := first; h < last; h++ {
		out = append(out, Clock(fmt.Sprintf("%02d:00", h)))
	}
	return out
}
