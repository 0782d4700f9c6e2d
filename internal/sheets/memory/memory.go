package memory

import (
	"context"
	"fmt"
	"sync"

	"fleemy/internal/calendar"
	"fleemy/internal/sheets"
)

// Store is an in-memory sheets.Exporter used in development and tests.
type Store struct {
	mu     sync.Mutex
	weeks  []sheets.WeekRow
	events []sheets.EventRow
}

var _ sheets.Exporter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendWeek stores the row and returns a synthetic row reference.
func (s *Store) AppendWeek(_ context.Context, row sheets.WeekRow) (string, error) {
	if row.UID == "" {
		return "", fmt.Errorf("week row without uid")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weeks = append(s.weeks, row)
	return fmt.Sprintf("mem:week:%d", len(s.weeks)), nil
}

func (s *Store) AppendEvents(_ context.Context, rows []sheets.EventRow) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	first := len(s.events) + 1
	s.events = append(s.events, rows...)
	return fmt.Sprintf("mem:events:%d-%d", first, len(s.events)), nil
}

// ReadWeek returns the latest row exported for (uid, week).
func (s *Store) ReadWeek(_ context.Context, uid string, week calendar.YearWeek) (sheets.WeekRow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.weeks) - 1; i >= 0; i-- {
		if r := s.weeks[i]; r.UID == uid && r.Week == week {
			return r, true, nil
		}
	}
	return sheets.WeekRow{}, false, nil
}

// Weeks returns a copy of every exported week row.
func (s *Store) Weeks() []sheets.WeekRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.WeekRow(nil), s.weeks...)
}

func (s *Store) Events() []sheets.EventRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.EventRow(nil), s.events...)
}
