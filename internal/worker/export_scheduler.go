package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"fleemy/internal/calendar"
	"fleemy/internal/log"
	"fleemy/internal/services"
)

// BatchExporter exports one week for many users.
type BatchExporter interface {
	ExportAll(ctx context.Context, uids []string, week calendar.YearWeek) ([]services.ExportResult, error)
	LastWeek() calendar.YearWeek
}

// UserLister returns the users whose weeks are exported.
type UserLister func(ctx context.Context) ([]string, error)

// ExportScheduler runs the weekly spreadsheet export on a cron schedule.
type ExportScheduler struct {
	exporter BatchExporter
	users    UserLister
	cron     *cron.Cron
	loc      *time.Location
	logger   *log.Logger

	mu      sync.Mutex
	ctx     context.Context
	lastRun time.Time
	runs    int
}

// NewExportScheduler parses schedule as a standard five-field cron expression
// evaluated in loc.
func NewExportScheduler(exporter BatchExporter, users UserLister, schedule string, loc *time.Location, logger *log.Logger) (*ExportScheduler, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if loc == nil {
		loc = time.Local
	}
	s := &ExportScheduler{
		exporter: exporter,
		users:    users,
		cron:     cron.New(cron.WithLocation(loc)),
		loc:      loc,
		logger:   logger.WithComponent(log.ComponentWorker),
		ctx:      context.Background(),
	}
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("invalid export schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the schedule until ctx ends or Stop is called.
func (s *ExportScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
	s.logger.InfoContext(ctx, "Export scheduler started", "next_run", s.Next())
}

// Stop halts the schedule and waits for a running export.
func (s *ExportScheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Next is the time of the next scheduled export.
func (s *ExportScheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if !entries[0].Next.IsZero() {
		return entries[0].Next
	}
	return entries[0].Schedule.Next(time.Now().In(s.loc))
}

// Runs reports how many exports ran and when the last one started.
func (s *ExportScheduler) Runs() (int, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs, s.lastRun
}

func (s *ExportScheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Scheduled export failed", log.FieldError, err)
	}
}

// RunOnce exports the last completed week of every user.
func (s *ExportScheduler) RunOnce(ctx context.Context) ([]services.ExportResult, error) {
	s.mu.Lock()
	s.runs++
	s.lastRun = time.Now()
	s.mu.Unlock()

	uids, err := s.users(ctx)
	if err != nil {
		return nil, fmt.Errorf("list export users: %w", err)
	}
	week := s.exporter.LastWeek()
	if len(uids) == 0 {
		s.logger.InfoContext(ctx, "No users to export", log.FieldWeek, week.String())
		return nil, nil
	}

	results, err := s.exporter.ExportAll(ctx, uids, week)
	skipped := 0
	for _, r := range results {
		if r.Skipped {
			skipped++
		}
	}
	s.logger.InfoContext(ctx, "Weekly export finished",
		log.FieldWeek, week.String(),
		"users", len(uids),
		"exported", len(results)-skipped,
		"skipped", skipped,
		log.FieldSuccess, err == nil)
	return results, err
}
