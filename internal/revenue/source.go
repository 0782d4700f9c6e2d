package revenue

import (
	"context"
	"fmt"

	"fleemy/internal/calendar"
	"fleemy/internal/core"
)

// EarningsReader is the server-side earnings endpoint.
type EarningsReader interface {
	GetEarnings(ctx context.Context, uid string, week calendar.YearWeek) (core.Revenue, error)
}

// Input carries everything a Source may need to produce a weekly summary.
type Input struct {
	UID        string
	Week       calendar.YearWeek
	Events     []core.CalendarEvent
	Tasks      []core.WeeklyTask
	HourlyRate core.Money
}

// Source produces the weekly revenue summary. Implementations differ in
// whether totals are computed locally or trusted from the server.
type Source interface {
	Weekly(ctx context.Context, in Input) (core.Revenue, error)
}

// LocalSource computes totals from the loaded entries.
type LocalSource struct{}

func (LocalSource) Weekly(_ context.Context, in Input) (core.Revenue, error) {
	return Weekly(in.Events, in.Tasks, in.Week, in.HourlyRate), nil
}

// RemoteSource asks the backend for its totals and falls back to local
// computation when the backend is unreachable.
type RemoteSource struct {
	Reader EarningsReader
}

func (s RemoteSource) Weekly(ctx context.Context, in Input) (core.Revenue, error) {
	if s.Reader == nil {
		return LocalSource{}.Weekly(ctx, in)
	}
	r, err := s.Reader.GetEarnings(ctx, in.UID, in.Week)
	if err != nil {
		if core.IsNetwork(err) {
			return LocalSource{}.Weekly(ctx, in)
		}
		return core.Revenue{}, fmt.Errorf("get earnings %s: %w", in.Week, err)
	}
	return r, nil
}

const (
	SourceLocal  = "local"
	SourceRemote = "remote"
)

// sources maps a configured source name to its constructor.
var sources = map[string]func(EarningsReader) Source{
	SourceLocal:  func(EarningsReader) Source { return LocalSource{} },
	SourceRemote: func(r EarningsReader) Source { return RemoteSource{Reader: r} },
}

// NewSource returns the source registered under name.
func NewSource(name string, reader EarningsReader) (Source, error) {
	build, ok := sources[name]
	if !ok {
		return nil, fmt.Errorf("unknown earnings source: %s", name)
	}
	return build(reader), nil
}

