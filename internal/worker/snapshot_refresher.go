// Package worker holds message handlers run by the background worker.
package worker

import (
	"context"
	"fmt"
	"time"

	"fleemy/internal/amqp"
	"fleemy/internal/calendar"
	"fleemy/internal/core"
	"fleemy/internal/log"
	"fleemy/internal/planning"
)

// SnapshotRefresher keeps the shared offline snapshots in step with the
// backend by reloading whatever a change message touched.
type SnapshotRefresher struct {
	periods   planning.PeriodReader
	snapshots planning.SnapshotCache
	logger    *log.Logger
	now       func() time.Time
}

func NewSnapshotRefresher(periods planning.PeriodReader, snapshots planning.SnapshotCache, logger *log.Logger) *SnapshotRefresher {
	if logger == nil {
		logger = log.Discard()
	}
	return &SnapshotRefresher{
		periods:   periods,
		snapshots: snapshots,
		logger:    logger.WithComponent(log.ComponentWorker),
		now:       time.Now,
	}
}

// HandleChange implements the amqp consumer callback. Task changes refresh
// the task snapshot through the current week.
func (w *SnapshotRefresher) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	week, ok := msg.YearWeek()
	if !ok {
		week = calendar.YearWeekOf(w.now())
	}
	w.logger.DebugContext(ctx, "Refreshing snapshot",
		log.FieldUID, msg.UID, log.FieldOperation, msg.Kind, log.FieldWeek, week.String())
	return w.RefreshWeek(ctx, msg.UID, week)
}

// RefreshWeek reloads (uid, week) and stores the confirmed state. A network
// error is returned so the message is requeued.
func (w *SnapshotRefresher) RefreshWeek(ctx context.Context, uid string, week calendar.YearWeek) error {
	p, err := w.periods.LoadWeek(ctx, uid, week)
	if err != nil {
		if core.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("load %s: %w", week, err)
	}
	events := make([]core.CalendarEvent, 0, len(p.Events))
	for _, e := range p.Events {
		if e.InWeek(week.Year, week.Week) {
			events = append(events, e)
		}
	}
	if err := w.snapshots.PutWeek(ctx, uid, week, events); err != nil {
		return fmt.Errorf("store week snapshot: %w", err)
	}
	if err := w.snapshots.PutTasks(ctx, uid, p.Tasks); err != nil {
		return fmt.Errorf("store task snapshot: %w", err)
	}
	return nil
}

// RefreshUsers refreshes the current and next week of every uid. It is the
// backstop for change messages lost while the worker was down.
func (w *SnapshotRefresher) RefreshUsers(ctx context.Context, uids []string) error {
	current := calendar.YearWeekOf(w.now())
	var failed int
	for _, uid := range uids {
		for _, week := range []calendar.YearWeek{current, current.Next()} {
			if err := w.RefreshWeek(ctx, uid, week); err != nil {
				failed++
				w.logger.WarnContext(ctx, "Snapshot refresh failed",
					log.FieldUID, uid, log.FieldWeek, week.String(), log.FieldError, err)
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d snapshot refreshes failed", failed)
	}
	return nil
}
