package sheets

import (
	"context"
	"time"

	"fleemy/internal/calendar"
	"fleemy/internal/core"
)

// WeekRow is one line of the weekly revenue report.
type WeekRow struct {
	UID     string
	Week    calendar.YearWeek
	Revenue core.Revenue
	Hours   int
	Events  int
}

// EventRow is one worked event of a week, as written to the detail sheet.
type EventRow struct {
	UID    string
	Date   time.Time
	Event  core.CalendarEvent
	Amount core.Money
}

// Ports for outbound adapters.
type (
	RevenueExporter interface {
		AppendWeek(ctx context.Context, row WeekRow) (rowRef string, err error)
	}

	EventExporter interface {
		AppendEvents(ctx context.Context, rows []EventRow) (rangeRef string, err error)
	}

	// RevenueReader reads back exported weeks.
	RevenueReader interface {
		ReadWeek(ctx context.Context, uid string, week calendar.YearWeek) (WeekRow, bool, error)
	}

	Exporter interface {
		RevenueExporter
		EventExporter
		RevenueReader
	}
)
