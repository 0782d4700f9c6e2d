// Package storage is the SQLite persistence of the planning snapshot cache,
// the pending-sync outbox and the export log.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fleemy/internal/calendar"
	"fleemy/internal/core"
	"fleemy/internal/log"
	"fleemy/internal/planning"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements planning.SnapshotCache, planning.Outbox and
// planning.ReplayLeaser.
type SQLiteStore struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

var (
	_ planning.SnapshotCache = (*SQLiteStore)(nil)
	_ planning.Outbox        = (*SQLiteStore)(nil)
	_ planning.ReplayLeaser  = (*SQLiteStore)(nil)
)

func NewSQLiteStore(dbPath string, logger *log.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if logger == nil {
		logger = log.Discard()
	}
	return &SQLiteStore{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage),
		now:    time.Now,
	}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) PutWeek(ctx context.Context, uid string, w calendar.YearWeek, events []core.CalendarEvent) error {
	if events == nil {
		events = []core.CalendarEvent{}
	}
	payload, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encode week snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO week_snapshots (uid, year, week, payload, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (uid, year, week) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		uid, w.Year, w.Week, string(payload), s.now().UTC())
	if err != nil {
		return fmt.Errorf("store week snapshot %s: %w", w, err)
	}
	return nil
}

func (s *SQLiteStore) GetWeek(ctx context.Context, uid string, w calendar.YearWeek) ([]core.CalendarEvent, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM week_snapshots WHERE uid = ? AND year = ? AND week = ?`,
		uid, w.Year, w.Week).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read week snapshot %s: %w", w, err)
	}
	var events []core.CalendarEvent
	if err := json.Unmarshal([]byte(payload), &events); err != nil {
		return nil, false, fmt.Errorf("decode week snapshot %s: %w", w, err)
	}
	return events, true, nil
}

func (s *SQLiteStore) PutTasks(ctx context.Context, uid string, tasks []core.WeeklyTask) error {
	if tasks == nil {
		tasks = []core.WeeklyTask{}
	}
	payload, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("encode task snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO task_snapshots (uid, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (uid) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		uid, string(payload), s.now().UTC())
	if err != nil {
		return fmt.Errorf("store task snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetTasks(ctx context.Context, uid string) ([]core.WeeklyTask, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM task_snapshots WHERE uid = ?`, uid).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read task snapshot: %w", err)
	}
	var tasks []core.WeeklyTask
	if err := json.Unmarshal([]byte(payload), &tasks); err != nil {
		return nil, false, fmt.Errorf("decode task snapshot: %w", err)
	}
	return tasks, true, nil
}

// SnapshotWeeks lists the weeks cached for uid, newest first.
func (s *SQLiteStore) SnapshotWeeks(ctx context.Context, uid string) ([]calendar.YearWeek, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT year, week FROM week_snapshots WHERE uid = ? ORDER BY year DESC, week DESC`, uid)
	if err != nil {
		return nil, fmt.Errorf("list snapshot weeks: %w", err)
	}
	defer rows.Close()
	var out []calendar.YearWeek
	for rows.Next() {
		var w calendar.YearWeek
		if err := rows.Scan(&w.Year, &w.Week); err != nil {
			return nil, fmt.Errorf("scan snapshot week: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// PruneSnapshots deletes week snapshots not refreshed since before.
func (s *SQLiteStore) PruneSnapshots(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM week_snapshots WHERE updated_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info("pruned week snapshots", "removed", n)
	}
	return n, nil
}
