package planning

import (
	"fmt"
	"strings"
	"time"

	"fleemy/internal/calendar"
	"fleemy/internal/core"
	"fleemy/internal/revenue"
	"fleemy/internal/schedule"
)

// Policy collects the behaviour switches that historically differed between
// planning screens.
type Policy struct {
	// ClientNameRequired rejects events without a client name.
	ClientNameRequired bool
	// OverlayTasks draws tasks under events instead of stacking them.
	OverlayTasks bool
	// HourlyRate prices events that carry no rate of their own.
	HourlyRate core.Money
	// Slots are the slot starts of the week grid.
	Slots []core.Clock
	// EarningsSource is "local" or "remote".
	EarningsSource string
	// Location is the zone dates are interpreted in.
	Location *time.Location
}

// DefaultPolicy is the 09:00-18:00 grid with mandatory client names.
func DefaultPolicy() Policy {
	return Policy{
		ClientNameRequired: true,
		OverlayTasks:       true,
		HourlyRate:         revenue.DefaultHourlyRate,
		Slots:              core.HourlySlots(9, 18),
		EarningsSource:     revenue.SourceLocal,
		Location:           time.Local,
	}
}

func (p Policy) render() schedule.RenderPolicy {
	return schedule.RenderPolicy{OverlayTasks: p.OverlayTasks}
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

// validateEvent applies the shape checks, the slot grid, the week range of
// the event year and the client-name policy.
func (p Policy) validateEvent(e core.CalendarEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if n := calendar.WeeksInYear(e.Year); e.Week > n {
		return &core.ValidationError{Field: "week", Reason: fmt.Sprintf("%d has only %d weeks", e.Year, n)}
	}
	if err := p.onGrid(e.Start, e.End); err != nil {
		return err
	}
	if p.ClientNameRequired && strings.TrimSpace(e.ClientName) == "" {
		return &core.ValidationError{Field: "client", Reason: "client name is required"}
	}
	return nil
}

// validateTask applies the shape checks and puts every slot on the grid.
func (p Policy) validateTask(t core.WeeklyTask) error {
	if err := t.Validate(); err != nil {
		return err
	}
	for i, s := range t.Slots {
		if err := p.onGrid(s.Start, s.End); err != nil {
			var ve *core.ValidationError
			if !core.AsValidation(err, &ve) {
				return err
			}
			return &core.ValidationError{Field: fmt.Sprintf("time_slots[%d].%s", i, ve.Field), Reason: ve.Reason}
		}
	}
	return nil
}

// onGrid requires start to be a slot start and end a later slot boundary,
// the closing hour of the last slot included.
func (p Policy) onGrid(start, end core.Clock) error {
	slots := p.Slots
	if len(slots) == 0 {
		slots = DefaultPolicy().Slots
	}
	closing := core.Clock(fmt.Sprintf("%02d:00", slots[len(slots)-1].Hour()+1))

	startOK, endOK := false, end == closing
	for _, s := range slots {
		if s == start {
			startOK = true
		}
		if s == end && start.Before(s) {
			endOK = true
		}
	}
	if !startOK {
		return &core.ValidationError{Field: "start", Reason: fmt.Sprintf("%s is not a slot start (%s-%s)", start, slots[0], closing)}
	}
	if !endOK {
		return &core.ValidationError{Field: "end", Reason: fmt.Sprintf("%s is not a slot boundary after %s", end, start)}
	}
	return nil
}
