package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fleemy/internal/calendar"
	"fleemy/internal/core"
	"fleemy/internal/log"
	"fleemy/internal/planning"
)

// opPayload is the JSON column of a queued op.
type opPayload struct {
	Event *core.CalendarEvent `json:"event,omitempty"`
	Task  *core.WeeklyTask    `json:"task,omitempty"`
}

func (s *SQLiteStore) Enqueue(ctx context.Context, op planning.PendingOp) error {
	payload, err := json.Marshal(opPayload{Event: op.Event, Task: op.Task})
	if err != nil {
		return fmt.Errorf("encode op payload: %w", err)
	}
	created := op.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sync_queue (id, uid, kind, entity_id, payload, attempts, last_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID, op.UID, string(op.Kind), op.EntityID, string(payload), op.Attempts, op.LastError, created.UTC())
	if err != nil {
		return fmt.Errorf("enqueue op %s: %w", op.ID, err)
	}
	s.logger.DebugContext(ctx, "op queued", log.FieldUID, op.UID,
		log.FieldOperation, string(op.Kind), log.FieldEntityID, op.EntityID)
	return nil
}

// Pending returns queued ops of uid in enqueue order. A non-positive limit
// returns all of them.
func (s *SQLiteStore) Pending(ctx context.Context, uid string, limit int) ([]planning.PendingOp, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, uid, kind, entity_id, payload, attempts, last_error, created_at
		FROM sync_queue WHERE uid = ? ORDER BY seq LIMIT ?`, uid, limit)
	if err != nil {
		return nil, fmt.Errorf("read outbox: %w", err)
	}
	defer rows.Close()

	var out []planning.PendingOp
	for rows.Next() {
		var (
			op      planning.PendingOp
			kind    string
			payload sql.NullString
		)
		if err := rows.Scan(&op.ID, &op.UID, &kind, &op.EntityID, &payload, &op.Attempts, &op.LastError, &op.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan op: %w", err)
		}
		op.Kind = planning.OpKind(kind)
		if payload.Valid && payload.String != "" {
			var p opPayload
			if err := json.Unmarshal([]byte(payload.String), &p); err != nil {
				return nil, fmt.Errorf("decode op %s: %w", op.ID, err)
			}
			op.Event, op.Task = p.Event, p.Task
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Complete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id); err != nil {
		return fmt.Errorf("complete op %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) Fail(ctx context.Context, id string, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_queue SET attempts = attempts + 1, last_error = ? WHERE id = ?`, reason, id)
	if err != nil {
		return fmt.Errorf("fail op %s: %w", id, err)
	}
	s.logger.WarnContext(ctx, "op sync failed", log.FieldEntityID, id, log.FieldError, reason)
	return nil
}

func (s *SQLiteStore) Remap(ctx context.Context, uid, fromID, toID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_queue SET entity_id = ? WHERE uid = ? AND entity_id = ?`, toID, uid, fromID)
	if err != nil {
		return fmt.Errorf("remap %s: %w", fromID, err)
	}
	return nil
}

func (s *SQLiteStore) Users(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT uid FROM sync_queue ORDER BY uid`)
	if err != nil {
		return nil, fmt.Errorf("list outbox users: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("scan uid: %w", err)
		}
		out = append(out, uid)
	}
	return out, rows.Err()
}

// AcquireReplay takes or renews the replay lease of uid for owner. It fails
// while another owner holds an unexpired lease.
func (s *SQLiteStore) AcquireReplay(ctx context.Context, uid, owner string, ttl time.Duration) (bool, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_leases (uid, owner, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (uid) DO UPDATE SET owner = excluded.owner, expires_at = excluded.expires_at
		WHERE sync_leases.owner = excluded.owner OR sync_leases.expires_at <= ?`,
		uid, owner, now.Add(ttl).UnixMilli(), now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("acquire replay lease: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire replay lease: %w", err)
	}
	return n == 1, nil
}

// ReleaseReplay drops the lease of uid if owner still holds it.
func (s *SQLiteStore) ReleaseReplay(ctx context.Context, uid, owner string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sync_leases WHERE uid = ? AND owner = ?`, uid, owner); err != nil {
		return fmt.Errorf("release replay lease: %w", err)
	}
	return nil
}

// QueueDepth is the number of queued ops across all users.
func (s *SQLiteStore) QueueDepth(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count outbox: %w", err)
	}
	return n, nil
}

// ExportRecord is one row of the export log.
type ExportRecord struct {
	UID        string
	Week       calendar.YearWeek
	Total      core.Money
	Ref        string
	ExportedAt time.Time
}

// LastExport returns the export recorded for (uid, week), if any.
func (s *SQLiteStore) LastExport(ctx context.Context, uid string, w calendar.YearWeek) (ExportRecord, bool, error) {
	rec := ExportRecord{UID: uid, Week: w}
	err := s.db.QueryRowContext(ctx,
		`SELECT total_cents, ref, exported_at FROM export_log WHERE uid = ? AND year = ? AND week = ?`,
		uid, w.Year, w.Week).Scan(&rec.Total.Cents, &rec.Ref, &rec.ExportedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ExportRecord{}, false, nil
	}
	if err != nil {
		return ExportRecord{}, false, fmt.Errorf("read export log: %w", err)
	}
	return rec, true, nil
}

// RecordExport upserts the export log row of rec.
func (s *SQLiteStore) RecordExport(ctx context.Context, rec ExportRecord) error {
	at := rec.ExportedAt
	if at.IsZero() {
		at = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO export_log (uid, year, week, total_cents, ref, exported_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (uid, year, week) DO UPDATE SET
			total_cents = excluded.total_cents, ref = excluded.ref, exported_at = excluded.exported_at`,
		rec.UID, rec.Week.Year, rec.Week.Week, rec.Total.Cents, rec.Ref, at.UTC())
	if err != nil {
		return fmt.Errorf("record export: %w", err)
	}
	return nil
}
