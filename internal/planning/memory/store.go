package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"fleemy/internal/calendar"
	"fleemy/internal/core"
	"fleemy/internal/planning"
)

// Snapshots is an in-memory SnapshotCache.
type Snapshots struct {
	mu    sync.RWMutex
	weeks map[string][]core.CalendarEvent
	tasks map[string][]core.WeeklyTask
}

func NewSnapshots() *Snapshots {
	return &Snapshots{
		weeks: make(map[string][]core.CalendarEvent),
		tasks: make(map[string][]core.WeeklyTask),
	}
}

var _ planning.SnapshotCache = (*Snapshots)(nil)

func snapshotKey(uid string, w calendar.YearWeek) string {
	return fmt.Sprintf("%s:%d:%d", uid, w.Year, w.Week)
}

func (s *Snapshots) PutWeek(_ context.Context, uid string, w calendar.YearWeek, events []core.CalendarEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weeks[snapshotKey(uid, w)] = append([]core.CalendarEvent{}, events...)
	return nil
}

func (s *Snapshots) GetWeek(_ context.Context, uid string, w calendar.YearWeek) ([]core.CalendarEvent, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events, ok := s.weeks[snapshotKey(uid, w)]
	if !ok {
		return nil, false, nil
	}
	return append([]core.CalendarEvent{}, events...), true, nil
}

func (s *Snapshots) PutTasks(_ context.Context, uid string, tasks []core.WeeklyTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]core.WeeklyTask, len(tasks))
	for i, t := range tasks {
		cp[i] = t.Clone()
	}
	s.tasks[uid] = cp
	return nil
}

func (s *Snapshots) GetTasks(_ context.Context, uid string) ([]core.WeeklyTask, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tasks, ok := s.tasks[uid]
	if !ok {
		return nil, false, nil
	}
	cp := make([]core.WeeklyTask, len(tasks))
	for i, t := range tasks {
		cp[i] = t.Clone()
	}
	return cp, true, nil
}

// Outbox is an in-memory FIFO Outbox.
type Outbox struct {
	mu     sync.Mutex
	ops    []planning.PendingOp
	leases map[string]lease
	now    func() time.Time
}

type lease struct {
	owner   string
	expires time.Time
}

func NewOutbox() *Outbox {
	return &Outbox{leases: make(map[string]lease), now: time.Now}
}

var (
	_ planning.Outbox       = (*Outbox)(nil)
	_ planning.ReplayLeaser = (*Outbox)(nil)
)

func (o *Outbox) AcquireReplay(_ context.Context, uid, owner string, ttl time.Duration) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now()
	if l, ok := o.leases[uid]; ok && l.owner != owner && now.Before(l.expires) {
		return false, nil
	}
	o.leases[uid] = lease{owner: owner, expires: now.Add(ttl)}
	return true, nil
}

func (o *Outbox) ReleaseReplay(_ context.Context, uid, owner string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if l, ok := o.leases[uid]; ok && l.owner == owner {
		delete(o.leases, uid)
	}
	return nil
}

func (o *Outbox) Enqueue(_ context.Context, op planning.PendingOp) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops = append(o.ops, op)
	return nil
}

func (o *Outbox) Pending(_ context.Context, uid string, limit int) ([]planning.PendingOp, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []planning.PendingOp
	for _, op := range o.ops {
		if op.UID != uid {
			continue
		}
		out = append(out, op)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (o *Outbox) Complete(_ context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, op := range o.ops {
		if op.ID == id {
			o.ops = append(o.ops[:i], o.ops[i+1:]...)
			return nil
		}
	}
	return nil
}

func (o *Outbox) Fail(_ context.Context, id string, reason string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.ops {
		if o.ops[i].ID == id {
			o.ops[i].Attempts++
			o.ops[i].LastError = reason
		}
	}
	return nil
}

func (o *Outbox) Remap(_ context.Context, uid, fromID, toID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.ops {
		if o.ops[i].UID == uid && o.ops[i].EntityID == fromID {
			o.ops[i].EntityID = toID
		}
	}
	return nil
}

func (o *Outbox) Users(_ context.Context) ([]string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, op := range o.ops {
		if !seen[op.UID] {
			seen[op.UID] = true
			out = append(out, op.UID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Len is the number of queued ops across all users.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.ops)
}
