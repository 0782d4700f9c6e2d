package planning

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fleemy/internal/calendar"
	"fleemy/internal/core"
	"fleemy/internal/log"
	"fleemy/internal/revenue"
	"fleemy/internal/schedule"
)

// View is the planning screen mode.
type View string

const (
	ViewWeek  View = "week"
	ViewMonth View = "month"
)

// ParseView accepts "week" and "month".
func ParseView(s string) (View, error) {
	switch View(s) {
	case ViewWeek, ViewMonth:
		return View(s), nil
	}
	return "", &core.ValidationError{Field: "view", Reason: fmt.Sprintf("unknown view %q", s)}
}

// Options wires a controller. Backend is required; without Snapshots there is
// no offline fallback and without an Outbox failed writes are rolled back.
type Options struct {
	Backend   Backend
	Snapshots SnapshotCache
	Outbox    Outbox
	Publisher ChangePublisher
	Policy    Policy
	Logger    *log.Logger
	Now       func() time.Time
}

// State is a copy of what the controller currently shows.
type State struct {
	UID     string
	View    View
	Anchor  time.Time
	Week    calendar.YearWeek
	Year    int
	Month   time.Month
	Events  []core.CalendarEvent
	Tasks   []core.WeeklyTask
	Loaded  bool
	Offline bool
	Notice  string
}

// Controller owns the planning view of one user.
type Controller struct {
	uid       string
	backend   Backend
	snapshots SnapshotCache
	outbox    Outbox
	publisher ChangePublisher
	policy    Policy
	source    revenue.Source
	replayer  *Replayer
	logger    *log.Logger
	now       func() time.Time
	guard     *guard

	mu      sync.RWMutex
	view    View
	anchor  time.Time
	events  []core.CalendarEvent
	tasks   []core.WeeklyTask
	loaded  bool
	shown   []calendar.YearWeek
	offline bool
	notice  string
	seq     uint64
	touched map[string]uint64
}

// NewController starts in week view anchored on today.
func NewController(uid string, opts Options) (*Controller, error) {
	if uid == "" {
		return nil, errors.New("planning: uid is required")
	}
	if opts.Backend == nil {
		return nil, errors.New("planning: backend is required")
	}
	if len(opts.Policy.Slots) == 0 {
		opts.Policy.Slots = DefaultPolicy().Slots
	}
	if opts.Policy.HourlyRate.Cents <= 0 {
		opts.Policy.HourlyRate = revenue.DefaultHourlyRate
	}
	if opts.Policy.Location == nil {
		opts.Policy.Location = time.Local
	}
	if opts.Policy.EarningsSource == "" {
		opts.Policy.EarningsSource = revenue.SourceLocal
	}
	source, err := revenue.NewSource(opts.Policy.EarningsSource, opts.Backend)
	if err != nil {
		return nil, fmt.Errorf("planning: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger.WithComponent(log.ComponentPlanning).With(log.FieldUID, uid)

	c := &Controller{
		uid:       uid,
		backend:   opts.Backend,
		snapshots: opts.Snapshots,
		outbox:    opts.Outbox,
		publisher: opts.Publisher,
		policy:    opts.Policy,
		source:    source,
		logger:    logger,
		now:       opts.Now,
		guard:     newGuard(),
		view:      ViewWeek,
		anchor:    dateOnly(opts.Now().In(opts.Policy.location())),
		touched:   make(map[string]uint64),
	}
	if opts.Outbox != nil {
		c.replayer = NewReplayer(opts.Backend, opts.Outbox, logger)
	}
	return c, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (c *Controller) UID() string {
	return c.uid
}

func (c *Controller) Policy() Policy {
	return c.policy
}

// State returns a copy of the current view state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	yw := calendar.YearWeekOf(c.anchor)
	return State{
		UID:     c.uid,
		View:    c.view,
		Anchor:  c.anchor,
		Week:    yw,
		Year:    c.anchor.Year(),
		Month:   c.anchor.Month(),
		Events:  append([]core.CalendarEvent(nil), c.events...),
		Tasks:   cloneTasks(c.tasks),
		Loaded:  c.loaded,
		Offline: c.offline,
		Notice:  c.notice,
	}
}

// Notice is the last non-fatal message for the user, if any.
func (c *Controller) Notice() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.notice
}

func (c *Controller) ClearNotice() {
	c.mu.Lock()
	c.notice = ""
	c.mu.Unlock()
}

func (c *Controller) setNotice(msg string) {
	c.mu.Lock()
	c.notice = msg
	c.mu.Unlock()
}

// Navigate moves the anchor by step weeks in week view or step months in
// month view, then reloads.
func (c *Controller) Navigate(ctx context.Context, step int) error {
	c.mu.Lock()
	if c.view == ViewMonth {
		c.anchor = calendar.AddMonths(c.anchor, step)
	} else {
		c.anchor = c.anchor.AddDate(0, 0, 7*step)
	}
	c.mu.Unlock()
	return c.Load(ctx)
}

// SwitchView changes the view mode, keeping the anchor, then reloads.
func (c *Controller) SwitchView(ctx context.Context, v View) error {
	if _, err := ParseView(string(v)); err != nil {
		return err
	}
	c.mu.Lock()
	c.view = v
	c.mu.Unlock()
	return c.Load(ctx)
}

// GoTo re-anchors the view on date and reloads.
func (c *Controller) GoTo(ctx context.Context, date time.Time) error {
	c.mu.Lock()
	c.anchor = dateOnly(date.In(c.policy.location()))
	c.mu.Unlock()
	return c.Load(ctx)
}

// Today re-anchors on the current date.
func (c *Controller) Today(ctx context.Context) error {
	return c.GoTo(ctx, c.now())
}

const noticeNoSnapshot = "Offline: no cached planning for this period"

// visibleWeeks are the ISO weeks whose events the view displays.
func visibleWeeks(view View, anchor time.Time) []calendar.YearWeek {
	if view == ViewMonth {
		return calendar.WeeksOfMonth(anchor.Year(), anchor.Month())
	}
	return []calendar.YearWeek{calendar.YearWeekOf(anchor)}
}

func visible(weeks []calendar.YearWeek, e core.CalendarEvent) bool {
	for _, w := range weeks {
		if e.InWeek(w.Year, w.Week) {
			return true
		}
	}
	return false
}

// Load fetches the current view. Queued offline changes are replayed first.
// When the backend is unreachable the cached snapshot is shown instead; with
// no snapshot the view keeps what it already shows for those weeks and is
// flagged offline. Network failures are never returned. A load that was
// overtaken by a newer one is dropped without touching the state.
func (c *Controller) Load(ctx context.Context) error {
	gen := c.guard.nextLoad()
	c.mu.RLock()
	view, anchor, startSeq := c.view, c.anchor, c.seq
	c.mu.RUnlock()

	if c.replayer != nil {
		if rep, err := c.replayer.Replay(ctx, c.uid); err != nil {
			c.logger.DebugContext(ctx, "replay deferred", log.FieldError, err)
		} else if rep.Synced > 0 {
			c.logger.InfoContext(ctx, "replayed pending changes", "synced", rep.Synced, "dropped", rep.Dropped)
		}
	}

	weeks := visibleWeeks(view, anchor)
	period, err := c.fetch(ctx, view, anchor)
	offline := false
	notice := ""
	if err != nil {
		if !core.IsNetwork(err) {
			if c.guard.current(gen) {
				c.setNotice(fmt.Sprintf("Could not load planning: %v", err))
			}
			return fmt.Errorf("load %s view: %w", view, err)
		}
		cached, ok := c.fromSnapshots(ctx, weeks)
		if !ok {
			c.logger.WarnContext(ctx, "backend unreachable and no snapshot", log.FieldError, err)
			if c.showing(weeks) {
				c.keepOffline(gen, noticeNoSnapshot)
			} else {
				c.apply(gen, startSeq, weeks, c.mergePending(ctx, cached, weeks), true, noticeNoSnapshot)
			}
			return nil
		}
		period, offline, notice = cached, true, "Offline: showing cached planning"
		c.logger.InfoContext(ctx, "serving cached planning", log.FieldView, string(view))
	} else {
		c.writeThrough(ctx, weeks, period)
	}

	if !c.apply(gen, startSeq, weeks, c.mergePending(ctx, period, weeks), offline, notice) {
		c.logger.DebugContext(ctx, "discarding stale load", log.FieldView, string(view))
	}
	return nil
}

func (c *Controller) fetch(ctx context.Context, view View, anchor time.Time) (Period, error) {
	if view == ViewMonth {
		return c.backend.LoadMonth(ctx, c.uid, anchor.Year(), anchor.Month())
	}
	return c.backend.LoadWeek(ctx, c.uid, calendar.YearWeekOf(anchor))
}

// apply installs a load result if it is still the latest. Entities mutated
// locally since the load started keep their local version.
func (c *Controller) apply(gen, startSeq uint64, weeks []calendar.YearWeek, p Period, offline bool, notice string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.guard.current(gen) {
		return false
	}

	events := make([]core.CalendarEvent, 0, len(p.Events))
	for _, e := range p.Events {
		if visible(weeks, e) && !c.touchedSince(e.ID, startSeq) {
			events = append(events, e)
		}
	}
	for _, e := range c.events {
		if c.touchedSince(e.ID, startSeq) && visible(weeks, e) {
			events = append(events, e)
		}
	}
	tasks := make([]core.WeeklyTask, 0, len(p.Tasks))
	for _, t := range p.Tasks {
		if !c.touchedSince(t.ID, startSeq) {
			tasks = append(tasks, t)
		}
	}
	for _, t := range c.tasks {
		if c.touchedSince(t.ID, startSeq) {
			tasks = append(tasks, t)
		}
	}

	c.events = events
	c.tasks = tasks
	c.loaded = true
	c.shown = weeks
	c.offline = offline
	c.notice = notice
	for id, s := range c.touched {
		if s <= startSeq {
			delete(c.touched, id)
		}
	}
	return true
}

// showing reports whether the view already holds a load of exactly weeks.
func (c *Controller) showing(weeks []calendar.YearWeek) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded || len(c.shown) != len(weeks) {
		return false
	}
	for i := range weeks {
		if c.shown[i] != weeks[i] {
			return false
		}
	}
	return true
}

// keepOffline flags the view offline and leaves its entries untouched.
func (c *Controller) keepOffline(gen uint64, notice string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.guard.current(gen) {
		return
	}
	c.offline = true
	c.notice = notice
}

// touch records a local change of id. Callers hold c.mu.
func (c *Controller) touch(ids ...string) {
	c.seq++
	for _, id := range ids {
		c.touched[id] = c.seq
	}
}

func (c *Controller) touchedSince(id string, seq uint64) bool {
	s, ok := c.touched[id]
	return ok && s > seq
}

// Index builds a schedule index over the current state.
func (c *Controller) Index() *schedule.Index {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return schedule.New(c.events, c.tasks, calendar.YearWeekOf(c.anchor), c.policy.render())
}

func (c *Controller) EventsAt(day core.Weekday, start core.Clock) []core.CalendarEvent {
	return c.Index().EventsAt(day, start)
}

func (c *Controller) TasksAt(day core.Weekday, start core.Clock) []schedule.TaskOccurrence {
	return c.Index().TasksAt(day, start)
}

func (c *Controller) SlotAt(day core.Weekday, start core.Clock) schedule.Cell {
	return c.Index().SlotAt(day, start)
}

func (c *Controller) EventsOnDate(d time.Time) []core.CalendarEvent {
	return c.Index().EventsOnDate(d)
}

// WeekGrid lays out the anchor week.
func (c *Controller) WeekGrid() schedule.WeekGrid {
	return c.Index().WeekGrid(c.policy.Slots, c.policy.location())
}

// MonthGrid lays out the anchor month.
func (c *Controller) MonthGrid() schedule.MonthGrid {
	st := c.State()
	return c.Index().MonthGrid(st.Year, st.Month, c.policy.location())
}

// Summary returns the revenue of the displayed period. Week totals come from
// the configured earnings source; month totals are always computed locally.
func (c *Controller) Summary(ctx context.Context) (core.Revenue, error) {
	st := c.State()
	if st.View == ViewMonth {
		return revenue.Monthly(st.Events, st.Tasks, st.Year, st.Month, c.policy.HourlyRate), nil
	}
	if st.Offline {
		return revenue.Weekly(st.Events, st.Tasks, st.Week, c.policy.HourlyRate), nil
	}
	return c.source.Weekly(ctx, revenue.Input{
		UID:        c.uid,
		Week:       st.Week,
		Events:     st.Events,
		Tasks:      st.Tasks,
		HourlyRate: c.policy.HourlyRate,
	})
}

func cloneTasks(in []core.WeeklyTask) []core.WeeklyTask {
	if in == nil {
		return nil
	}
	out := make([]core.WeeklyTask, len(in))
	for i, t := range in {
		out[i] = t.Clone()
	}
	return out
}
