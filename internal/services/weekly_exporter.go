package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fleemy/internal/calendar"
	"fleemy/internal/core"
	"fleemy/internal/log"
	"fleemy/internal/planning"
	"fleemy/internal/revenue"
	"fleemy/internal/sheets"
	"fleemy/internal/storage"
)

// ExportLog remembers which weeks were exported.
type ExportLog interface {
	LastExport(ctx context.Context, uid string, week calendar.YearWeek) (storage.ExportRecord, bool, error)
	RecordExport(ctx context.Context, rec storage.ExportRecord) error
}

// ExportResult describes one week export.
type ExportResult struct {
	UID      string
	Week     calendar.YearWeek
	Revenue  core.Revenue
	Ref      string
	Skipped  bool // unchanged since the last export
	Offline  bool // computed from snapshots
	EventRef string
}

// WeeklyExporter writes a week's revenue and worked events to the sheets
// exporter. Exports are idempotent: an unchanged week is not written twice.
type WeeklyExporter struct {
	periods    planning.PeriodReader
	snapshots  planning.SnapshotCache
	exporter   sheets.Exporter
	exports    ExportLog
	hourlyRate core.Money
	loc        *time.Location
	logger     *log.Logger
	now        func() time.Time
}

func NewWeeklyExporter(periods planning.PeriodReader, snapshots planning.SnapshotCache, exporter sheets.Exporter, exports ExportLog, hourlyRate core.Money, logger *log.Logger) *WeeklyExporter {
	if hourlyRate.Cents <= 0 {
		hourlyRate = revenue.DefaultHourlyRate
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &WeeklyExporter{
		periods:    periods,
		snapshots:  snapshots,
		exporter:   exporter,
		exports:    exports,
		hourlyRate: hourlyRate,
		loc:        time.Local,
		logger:     logger.WithComponent(log.ComponentSheets),
		now:        time.Now,
	}
}

// WithLocation sets the zone used to date event rows.
func (x *WeeklyExporter) WithLocation(loc *time.Location) *WeeklyExporter {
	if loc != nil {
		x.loc = loc
	}
	return x
}

// WithClock replaces the time source.
func (x *WeeklyExporter) WithClock(now func() time.Time) *WeeklyExporter {
	x.now = now
	return x
}

// LastWeek is the ISO week before the current one.
func (x *WeeklyExporter) LastWeek() calendar.YearWeek {
	return calendar.YearWeekOf(x.now().In(x.loc)).Prev()
}

func (x *WeeklyExporter) load(ctx context.Context, uid string, week calendar.YearWeek) (planning.Period, bool, error) {
	p, err := x.periods.LoadWeek(ctx, uid, week)
	if err == nil {
		return p, false, nil
	}
	if !core.IsNetwork(err) || x.snapshots == nil {
		return planning.Period{}, false, err
	}
	events, ok, serr := x.snapshots.GetWeek(ctx, uid, week)
	if serr != nil || !ok {
		return planning.Period{}, false, errors.Join(err, serr)
	}
	tasks, _, serr := x.snapshots.GetTasks(ctx, uid)
	if serr != nil {
		return planning.Period{}, false, errors.Join(err, serr)
	}
	return planning.Period{Events: events, Tasks: tasks}, true, nil
}

// ExportWeek exports one week of uid. With force the export log is ignored.
func (x *WeeklyExporter) ExportWeek(ctx context.Context, uid string, week calendar.YearWeek, force bool) (ExportResult, error) {
	res := ExportResult{UID: uid, Week: week}
	p, offline, err := x.load(ctx, uid, week)
	if err != nil {
		return res, fmt.Errorf("load %s for %s: %w", week, uid, err)
	}
	res.Offline = offline
	res.Revenue = revenue.Weekly(p.Events, p.Tasks, week, x.hourlyRate)

	if !force && x.exports != nil {
		last, ok, err := x.exports.LastExport(ctx, uid, week)
		if err != nil {
			return res, err
		}
		if ok && last.Total == res.Revenue.Total() {
			res.Skipped, res.Ref = true, last.Ref
			return res, nil
		}
	}

	row := sheets.WeekRow{UID: uid, Week: week, Revenue: res.Revenue}
	var events []sheets.EventRow
	for _, e := range p.Events {
		if !e.InWeek(week.Year, week.Week) || e.Status == core.StatusNotWorked {
			continue
		}
		date, ok := calendar.DateOf(week, e.Day, x.loc)
		if !ok {
			continue
		}
		row.Hours += e.Hours()
		row.Events++
		events = append(events, sheets.EventRow{UID: uid, Date: date, Event: e, Amount: revenue.EventAmount(e, x.hourlyRate)})
	}

	ref, err := x.exporter.AppendWeek(ctx, row)
	if err != nil {
		return res, fmt.Errorf("export week row: %w", err)
	}
	res.Ref = ref
	if len(events) > 0 {
		if res.EventRef, err = x.exporter.AppendEvents(ctx, events); err != nil {
			return res, fmt.Errorf("export event rows: %w", err)
		}
	}

	if x.exports != nil {
		rec := storage.ExportRecord{UID: uid, Week: week, Total: res.Revenue.Total(), Ref: ref, ExportedAt: x.now()}
		if err := x.exports.RecordExport(ctx, rec); err != nil {
			x.logger.WarnContext(ctx, "Export written but not logged", log.FieldUID, uid, log.FieldError, err)
		}
	}

	x.logger.InfoContext(ctx, "Week exported",
		log.FieldUID, uid, log.FieldWeek, week.String(),
		log.FieldAmountCents, res.Revenue.Total().Cents, log.FieldSheetsRef, ref)
	return res, nil
}

// ExportAll exports week for every uid. Failures are collected, not fatal.
func (x *WeeklyExporter) ExportAll(ctx context.Context, uids []string, week calendar.YearWeek) ([]ExportResult, error) {
	var (
		mu      sync.Mutex
		results []ExportResult
		errs    []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, uid := range uids {
		g.Go(func() error {
			res, err := x.ExportWeek(gctx, uid, week, false)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return nil
			}
			results = append(results, res)
			return nil
		})
	}
	_ = g.Wait()
	return results, errors.Join(errs...)
}
