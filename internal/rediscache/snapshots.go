// Package rediscache shares planning snapshots between processes through
// Redis so the API and the worker see the same offline state.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fleemy/internal/calendar"
	"fleemy/internal/core"
	"fleemy/internal/log"
	"fleemy/internal/planning"
)

// Config of the Redis connection.
type Config struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// Snapshots implements planning.SnapshotCache on Redis strings.
type Snapshots struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	logger *log.Logger
}

var _ planning.SnapshotCache = (*Snapshots)(nil)

func New(cfg Config, logger *log.Logger) *Snapshots {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewWithClient(rdb, cfg.Prefix, cfg.TTL, logger)
}

func NewWithClient(rdb *redis.Client, prefix string, ttl time.Duration, logger *log.Logger) *Snapshots {
	if prefix == "" {
		prefix = "fleemy"
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Snapshots{rdb: rdb, prefix: prefix, ttl: ttl, logger: logger.WithComponent(log.ComponentCache)}
}

func (s *Snapshots) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Snapshots) Close() error {
	return s.rdb.Close()
}

// WeekKey is the key of a week snapshot, e.g. "fleemy:week:u1:2024:2".
func (s *Snapshots) WeekKey(uid string, w calendar.YearWeek) string {
	return fmt.Sprintf("%s:week:%s:%d:%d", s.prefix, uid, w.Year, w.Week)
}

func (s *Snapshots) TasksKey(uid string) string {
	return fmt.Sprintf("%s:tasks:%s", s.prefix, uid)
}

func (s *Snapshots) put(ctx context.Context, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.rdb.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		s.logger.WarnContext(ctx, "redis write failed", "key", key, log.FieldError, err)
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *Snapshots) get(ctx context.Context, key string, v any) (bool, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Snapshots) PutWeek(ctx context.Context, uid string, w calendar.YearWeek, events []core.CalendarEvent) error {
	if events == nil {
		events = []core.CalendarEvent{}
	}
	return s.put(ctx, s.WeekKey(uid, w), events)
}

func (s *Snapshots) GetWeek(ctx context.Context, uid string, w calendar.YearWeek) ([]core.CalendarEvent, bool, error) {
	var events []core.CalendarEvent
	ok, err := s.get(ctx, s.WeekKey(uid, w), &events)
	if !ok || err != nil {
		return nil, false, err
	}
	return events, true, nil
}

func (s *Snapshots) PutTasks(ctx context.Context, uid string, tasks []core.WeeklyTask) error {
	if tasks == nil {
		tasks = []core.WeeklyTask{}
	}
	return s.put(ctx, s.TasksKey(uid), tasks)
}

func (s *Snapshots) GetTasks(ctx context.Context, uid string) ([]core.WeeklyTask, bool, error) {
	var tasks []core.WeeklyTask
	ok, err := s.get(ctx, s.TasksKey(uid), &tasks)
	if !ok || err != nil {
		return nil, false, err
	}
	return tasks, true, nil
}

// Invalidate drops every snapshot of uid.
func (s *Snapshots) Invalidate(ctx context.Context, uid string) error {
	keys := []string{s.TasksKey(uid)}
	iter := s.rdb.Scan(ctx, 0, fmt.Sprintf("%s:week:%s:*", s.prefix, uid), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan snapshots of %s: %w", uid, err)
	}
	return s.rdb.Del(ctx, keys...).Err()
}
