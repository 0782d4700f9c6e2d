package planning_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"fleemy/internal/calendar"
	"fleemy/internal/core"
	"fleemy/internal/log"
	"fleemy/internal/planning"
	"fleemy/internal/planning/memory"
)

const uid = "user-1"

// Wednesday of 2024-W02.
var today = time.Date(2024, time.January, 10, 12, 0, 0, 0, time.Local)

var (
	week2 = calendar.YearWeek{Year: 2024, Week: 2}
	week3 = calendar.YearWeek{Year: 2024, Week: 3}
)

type fixture struct {
	backend   *memory.Backend
	snapshots *memory.Snapshots
	outbox    *memory.Outbox
	ctrl      *planning.Controller
}

func newFixture(t *testing.T, withOutbox bool) *fixture {
	t.Helper()
	f := &fixture{
		backend:   memory.NewBackend(),
		snapshots: memory.NewSnapshots(),
		outbox:    memory.NewOutbox(),
	}
	opts := planning.Options{
		Backend:   f.backend,
		Snapshots: f.snapshots,
		Policy:    planning.DefaultPolicy(),
		Logger:    log.Discard(),
		Now:       func() time.Time { return today },
	}
	if withOutbox {
		opts.Outbox = f.outbox
	}
	ctrl, err := planning.NewController(uid, opts)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	f.ctrl = ctrl
	return f
}

func draft(desc string, day core.Weekday, start, end string) core.CalendarEvent {
	return core.CalendarEvent{
		Description: desc,
		ClientName:  "ACME",
		Day:         day,
		Start:       core.MustClock(start),
		End:         core.MustClock(end),
	}
}

func (f *fixture) seed(t *testing.T, e core.CalendarEvent, w calendar.YearWeek) core.CalendarEvent {
	t.Helper()
	e.UID = uid
	e.Year, e.Week = w.Year, w.Week
	if e.Status == "" {
		e.Status = core.StatusPending
	}
	saved, err := f.backend.CreateEvent(context.Background(), e)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return saved
}

func TestInitialState(t *testing.T) {
	f := newFixture(t, false)
	st := f.ctrl.State()
	if st.View != planning.ViewWeek || st.Week != week2 || st.Loaded {
		t.Fatalf("unexpected initial state %+v", st)
	}
}

func TestCreateEventSynced(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	if err := f.ctrl.Load(ctx); err != nil {
		t.Fatal(err)
	}

	res, err := f.ctrl.CreateEvent(ctx, draft("Workshop", core.Monday, "09:00", "12:00"))
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if res.Outcome != planning.Synced || planning.IsProvisional(res.Value.ID) {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Value.Week != 2 || res.Value.Year != 2024 || res.Value.Status != core.StatusPending {
		t.Fatalf("week/year/status not derived from anchor: %+v", res.Value)
	}

	got := f.ctrl.EventsAt(core.Monday, core.MustClock("09:00"))
	if len(got) != 1 || got[0].ID != res.Value.ID {
		t.Fatalf("EventsAt = %+v", got)
	}
	if cached, ok, _ := f.snapshots.GetWeek(ctx, uid, week2); !ok || len(cached) != 1 {
		t.Fatalf("snapshot not written through: %v %v", cached, ok)
	}

	sum, err := f.ctrl.Summary(ctx)
	if err != nil || sum.Pending.Cents != 15000 {
		t.Fatalf("Summary = %+v, %v", sum, err)
	}
}

func TestCreateEventValidation(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	var calls atomic.Int32
	f.backend.SetHook(func(op string) error {
		if op == memory.OpCreateEvent {
			calls.Add(1)
		}
		return nil
	})

	noClient := draft("Workshop", core.Monday, "09:00", "12:00")
	noClient.ClientName = " "
	inverted := draft("Workshop", core.Monday, "12:00", "09:00")

	for _, d := range []core.CalendarEvent{noClient, inverted} {
		res, err := f.ctrl.CreateEvent(ctx, d)
		if !core.IsValidation(err) || res.Outcome != planning.RolledBack {
			t.Fatalf("expected validation rejection, got %+v %v", res, err)
		}
	}
	if calls.Load() != 0 {
		t.Fatal("invalid drafts must not reach the backend")
	}
	if n := len(f.ctrl.State().Events); n != 0 {
		t.Fatalf("state has %d events", n)
	}
}

func TestClientNameOptionalPolicy(t *testing.T) {
	backend := memory.NewBackend()
	policy := planning.DefaultPolicy()
	policy.ClientNameRequired = false
	ctrl, err := planning.NewController(uid, planning.Options{Backend: backend, Policy: policy, Logger: log.Discard(), Now: func() time.Time { return today }})
	if err != nil {
		t.Fatal(err)
	}
	d := draft("Solo work", core.Friday, "14:00", "15:00")
	d.ClientName = ""
	if res, err := ctrl.CreateEvent(context.Background(), d); err != nil || res.Outcome != planning.Synced {
		t.Fatalf("expected synced, got %+v %v", res, err)
	}
}

func TestCreateEventOfflineQueuesAndReplays(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.backend.SetOffline(true)

	res, err := f.ctrl.CreateEvent(ctx, draft("Offline", core.Tuesday, "10:00", "11:00"))
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if res.Outcome != planning.PendingSync || !res.Value.PendingSync || !planning.IsProvisional(res.Value.ID) {
		t.Fatalf("unexpected result %+v", res)
	}
	if !core.IsNetwork(res.Err) {
		t.Fatalf("expected network cause, got %v", res.Err)
	}
	if f.outbox.Len() != 1 || f.ctrl.Notice() == "" {
		t.Fatalf("outbox=%d notice=%q", f.outbox.Len(), f.ctrl.Notice())
	}

	// still offline: the pending event survives a reload
	if err := f.ctrl.Load(ctx); err != nil {
		t.Fatalf("offline load must not fail: %v", err)
	}
	if evs := f.ctrl.State().Events; len(evs) != 1 || !evs[0].PendingSync {
		t.Fatalf("pending event lost on reload: %+v", evs)
	}

	f.backend.SetOffline(false)
	if err := f.ctrl.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.outbox.Len() != 0 {
		t.Fatalf("outbox not drained: %d", f.outbox.Len())
	}
	evs := f.ctrl.State().Events
	if len(evs) != 1 || evs[0].PendingSync || planning.IsProvisional(evs[0].ID) {
		t.Fatalf("event not reconciled: %+v", evs)
	}
}

func TestCreateEventOfflineWithoutOutboxRollsBack(t *testing.T) {
	f := newFixture(t, false)
	f.backend.SetOffline(true)
	res, err := f.ctrl.CreateEvent(context.Background(), draft("x", core.Monday, "09:00", "10:00"))
	if !core.IsNetwork(err) || res.Outcome != planning.RolledBack {
		t.Fatalf("expected rollback, got %+v %v", res, err)
	}
	if len(f.ctrl.State().Events) != 0 {
		t.Fatal("optimistic event not rolled back")
	}
}

func TestUpdateEventRollback(t *testing.T) {
	tests := []struct {
		name  string
		fail  error
		check func(error) bool
	}{
		{"server rejects", &core.ValidationError{Field: "day", Reason: "nope"}, core.IsValidation},
		{"deleted elsewhere", &core.NotFoundError{Kind: "event", ID: "x"}, core.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			ctx := context.Background()
			seeded := f.seed(t, draft("Original", core.Monday, "09:00", "10:00"), week2)
			if err := f.ctrl.Load(ctx); err != nil {
				t.Fatal(err)
			}
			f.backend.SetHook(func(op string) error {
				if op == memory.OpUpdateEvent {
					return tt.fail
				}
				return nil
			})

			patch := seeded
			patch.Description = "Changed"
			res, err := f.ctrl.UpdateEvent(ctx, patch)
			if !tt.check(err) || res.Outcome != planning.RolledBack {
				t.Fatalf("got %+v %v", res, err)
			}
			evs := f.ctrl.State().Events
			if len(evs) != 1 || evs[0].Description != "Original" {
				t.Fatalf("not rolled back: %+v", evs)
			}
			if f.outbox.Len() != 0 {
				t.Fatal("non-network failure must not be queued")
			}
		})
	}
}

func TestUpdateEventMovesWeek(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	seeded := f.seed(t, draft("Move me", core.Monday, "09:00", "10:00"), week2)
	if err := f.ctrl.Load(ctx); err != nil {
		t.Fatal(err)
	}
	patch := seeded
	patch.Week = 3
	res, err := f.ctrl.UpdateEvent(ctx, patch)
	if err != nil || res.Outcome != planning.Synced {
		t.Fatalf("got %+v %v", res, err)
	}
	if len(f.ctrl.State().Events) != 0 {
		t.Fatal("event moved out of the week should leave the view")
	}
	if err := f.ctrl.Navigate(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if evs := f.ctrl.State().Events; len(evs) != 1 || evs[0].ID != seeded.ID {
		t.Fatalf("event not found in week 3: %+v", evs)
	}
}

func TestMutationInFlightGuard(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	seeded := f.seed(t, draft("Busy", core.Monday, "09:00", "10:00"), week2)
	if err := f.ctrl.Load(ctx); err != nil {
		t.Fatal(err)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	f.backend.SetHook(func(op string) error {
		if op == memory.OpUpdateEvent && calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		return nil
	})

	done := make(chan error, 1)
	go func() {
		patch := seeded
		patch.Description = "first"
		_, err := f.ctrl.UpdateEvent(ctx, patch)
		done <- err
	}()
	<-entered

	patch := seeded
	patch.Description = "second"
	if _, err := f.ctrl.UpdateEvent(ctx, patch); !errors.Is(err, core.ErrMutationInFlight) {
		t.Fatalf("expected ErrMutationInFlight, got %v", err)
	}
	if _, err := f.ctrl.DeleteEvent(ctx, seeded.ID); !errors.Is(err, core.ErrMutationInFlight) {
		t.Fatalf("expected ErrMutationInFlight on delete, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first update: %v", err)
	}
	if evs := f.ctrl.State().Events; len(evs) != 1 || evs[0].Description != "first" {
		t.Fatalf("unexpected state %+v", evs)
	}
}

func TestStaleLoadDiscarded(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.seed(t, draft("week two", core.Monday, "09:00", "10:00"), week2)
	w3 := f.seed(t, draft("week three", core.Monday, "09:00", "10:00"), week3)

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	f.backend.SetHook(func(op string) error {
		if op == memory.OpLoadWeek && calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- f.ctrl.Load(ctx) }()
	<-entered

	if err := f.ctrl.Navigate(ctx, 1); err != nil {
		t.Fatal(err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	st := f.ctrl.State()
	if st.Week != week3 || len(st.Events) != 1 || st.Events[0].ID != w3.ID {
		t.Fatalf("stale load applied: week=%v events=%+v", st.Week, st.Events)
	}
}

func TestOfflineFallbackFromSnapshot(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.seed(t, draft("cached", core.Thursday, "09:00", "11:00"), week2)
	if _, err := f.backend.CreateTask(ctx, core.WeeklyTask{
		UID: uid, Name: "Standup", Price: core.Cents(1000),
		Slots: []core.TaskSlot{{Day: core.Thursday, Start: "09:00", End: "10:00"}},
	}); err != nil {
		t.Fatal(err)
	}
	if err := f.ctrl.Load(ctx); err != nil {
		t.Fatal(err)
	}

	f.backend.SetOffline(true)
	ctrl, err := planning.NewController(uid, planning.Options{
		Backend: f.backend, Snapshots: f.snapshots, Outbox: f.outbox,
		Policy: planning.DefaultPolicy(), Logger: log.Discard(),
		Now: func() time.Time { return today },
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := ctrl.Load(ctx); err != nil {
		t.Fatalf("expected cached load, got %v", err)
	}
	st := ctrl.State()
	if !st.Offline || st.Notice == "" || len(st.Events) != 1 || len(st.Tasks) != 1 {
		t.Fatalf("unexpected offline state %+v", st)
	}
	cell := ctrl.SlotAt(core.Thursday, core.MustClock("09:00"))
	if len(cell.Events) != 1 || len(cell.Tasks) != 1 {
		t.Fatalf("cell = %+v", cell)
	}

	// an uncached week shows empty with a notice and keeps the controller usable
	if err := ctrl.Navigate(ctx, 5); err != nil {
		t.Fatalf("offline navigation must not fail: %v", err)
	}
	if st := ctrl.State(); !st.Offline || st.Notice == "" || len(st.Events) != 0 {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestOfflineReloadKeepsShownWeek(t *testing.T) {
	backend := memory.NewBackend()
	ctrl, err := planning.NewController(uid, planning.Options{
		Backend: backend, Policy: planning.DefaultPolicy(), Logger: log.Discard(),
		Now: func() time.Time { return today },
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	e := draft("on screen", core.Monday, "09:00", "10:00")
	e.UID, e.Year, e.Week, e.Status = uid, 2024, 2, core.StatusPending
	if _, err := backend.CreateEvent(ctx, e); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.Load(ctx); err != nil {
		t.Fatal(err)
	}

	backend.SetOffline(true)
	if err := ctrl.Load(ctx); err != nil {
		t.Fatalf("offline reload must not fail: %v", err)
	}
	st := ctrl.State()
	if !st.Offline || st.Notice == "" || len(st.Events) != 1 || st.Events[0].Description != "on screen" {
		t.Fatalf("shown week lost: %+v", st)
	}

	// another week has nothing to keep
	if err := ctrl.Navigate(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if st := ctrl.State(); st.Week != week3 || len(st.Events) != 0 || !st.Offline {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestNavigate(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	if err := f.ctrl.Navigate(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if st := f.ctrl.State(); st.Week != week3 || st.Anchor.Day() != 17 {
		t.Fatalf("week navigation: %+v", st)
	}
	if err := f.ctrl.Navigate(ctx, -1); err != nil {
		t.Fatal(err)
	}

	if err := f.ctrl.GoTo(ctx, time.Date(2024, time.January, 31, 0, 0, 0, 0, time.Local)); err != nil {
		t.Fatal(err)
	}
	if err := f.ctrl.SwitchView(ctx, planning.ViewMonth); err != nil {
		t.Fatal(err)
	}
	if err := f.ctrl.Navigate(ctx, 1); err != nil {
		t.Fatal(err)
	}
	st := f.ctrl.State()
	if st.View != planning.ViewMonth || st.Month != time.February || st.Anchor.Day() != 29 {
		t.Fatalf("month navigation should clamp to Feb 29: %+v", st.Anchor)
	}

	if err := f.ctrl.SwitchView(ctx, "year"); !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMonthView(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.seed(t, draft("jan", core.Wednesday, "09:00", "10:00"), calendar.YearWeek{Year: 2024, Week: 1})
	f.seed(t, draft("feb", core.Thursday, "09:00", "10:00"), calendar.YearWeek{Year: 2024, Week: 5})
	f.seed(t, draft("march", core.Monday, "09:00", "10:00"), calendar.YearWeek{Year: 2024, Week: 10})

	if err := f.ctrl.SwitchView(ctx, planning.ViewMonth); err != nil {
		t.Fatal(err)
	}
	if n := len(f.ctrl.State().Events); n != 2 {
		t.Fatalf("expected 2 events in January's weeks, got %d", n)
	}
	g := f.ctrl.MonthGrid()
	if len(g.Cells) != 42 {
		t.Fatalf("grid has %d cells", len(g.Cells))
	}
	jan3 := time.Date(2024, time.January, 3, 0, 0, 0, 0, time.Local)
	if evs := f.ctrl.EventsOnDate(jan3); len(evs) != 1 {
		t.Fatalf("EventsOnDate(Jan 3) = %+v", evs)
	}
	sum, _ := f.ctrl.Summary(ctx)
	// Feb 1 is outside January.
	if sum.Pending.Cents != 5000 {
		t.Fatalf("month pending = %d", sum.Pending.Cents)
	}
}

func TestClearWeek(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.seed(t, draft("a", core.Monday, "09:00", "10:00"), week2)
	f.seed(t, draft("b", core.Friday, "15:00", "16:00"), week2)
	other := f.seed(t, draft("c", core.Monday, "09:00", "10:00"), week3)
	if err := f.ctrl.Load(ctx); err != nil {
		t.Fatal(err)
	}

	res, err := f.ctrl.ClearWeek(ctx)
	if err != nil || res.Outcome != planning.Synced || len(res.Value) != 2 {
		t.Fatalf("ClearWeek = %+v %v", res, err)
	}
	if len(f.ctrl.State().Events) != 0 {
		t.Fatal("week not cleared")
	}
	p, _ := f.backend.LoadWeek(ctx, uid, week3)
	if len(p.Events) != 1 || p.Events[0].ID != other.ID {
		t.Fatal("other weeks must be untouched")
	}
}

func TestClearWeekOffline(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.seed(t, draft("a", core.Monday, "09:00", "10:00"), week2)
	f.seed(t, draft("b", core.Tuesday, "09:00", "10:00"), week2)
	if err := f.ctrl.Load(ctx); err != nil {
		t.Fatal(err)
	}
	f.backend.SetOffline(true)
	res, err := f.ctrl.ClearWeek(ctx)
	if err != nil || res.Outcome != planning.PendingSync || f.outbox.Len() != 2 {
		t.Fatalf("ClearWeek = %+v %v (outbox %d)", res, err, f.outbox.Len())
	}
	f.backend.SetOffline(false)
	if err := f.ctrl.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if p, _ := f.backend.LoadWeek(ctx, uid, week2); len(p.Events) != 0 {
		t.Fatalf("deletes not replayed: %+v", p.Events)
	}
}

func TestDeleteEventAlreadyGone(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	seeded := f.seed(t, draft("gone", core.Monday, "09:00", "10:00"), week2)
	if err := f.ctrl.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.backend.DeleteEvent(ctx, uid, seeded.ID); err != nil {
		t.Fatal(err)
	}
	res, err := f.ctrl.DeleteEvent(ctx, seeded.ID)
	if err != nil || res.Outcome != planning.Synced {
		t.Fatalf("got %+v %v", res, err)
	}
	if _, err := f.ctrl.DeleteEvent(ctx, "unknown"); !core.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestWeeklyTaskLifecycle(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	if err := f.ctrl.Load(ctx); err != nil {
		t.Fatal(err)
	}

	created, err := f.ctrl.CreateWeeklyTask(ctx, core.WeeklyTask{
		Name:  "Review",
		Price: core.Cents(2000),
		Color: "#ff0000",
		Slots: []core.TaskSlot{{Day: core.Friday, Start: "14:00", End: "16:00"}},
	})
	if err != nil || created.Outcome != planning.Synced {
		t.Fatalf("create: %+v %v", created, err)
	}
	if occ := f.ctrl.TasksAt(core.Friday, core.MustClock("14:00")); len(occ) != 1 {
		t.Fatalf("TasksAt = %+v", occ)
	}
	sum, _ := f.ctrl.Summary(ctx)
	if sum.Paid.Cents != 4000 || sum.TasksTotal.Cents != 4000 {
		t.Fatalf("task revenue = %+v", sum)
	}

	patch := created.Value
	patch.Slots = append(patch.Slots, core.TaskSlot{Day: core.Monday, Start: "09:00", End: "10:00"})
	updated, err := f.ctrl.UpdateWeeklyTask(ctx, patch)
	if err != nil || len(updated.Value.Slots) != 2 {
		t.Fatalf("update: %+v %v", updated, err)
	}

	bad := updated.Value.Clone()
	bad.Slots[0].Day = "sunday"
	if _, err := f.ctrl.UpdateWeeklyTask(ctx, bad); !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if _, err := f.ctrl.DeleteWeeklyTask(ctx, created.Value.ID); err != nil {
		t.Fatal(err)
	}
	if len(f.ctrl.State().Tasks) != 0 {
		t.Fatal("task not removed")
	}
	if cached, ok, _ := f.snapshots.GetTasks(ctx, uid); !ok || len(cached) != 0 {
		t.Fatalf("task snapshot not refreshed: %+v", cached)
	}
}

func TestOverlapRenderingPolicy(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.seed(t, draft("meeting", core.Wednesday, "10:00", "11:00"), week2)
	if _, err := f.backend.CreateTask(ctx, core.WeeklyTask{
		UID: uid, Name: "Focus", Slots: []core.TaskSlot{{Day: core.Wednesday, Start: "10:00", End: "11:00"}},
	}); err != nil {
		t.Fatal(err)
	}
	if err := f.ctrl.Load(ctx); err != nil {
		t.Fatal(err)
	}
	cell := f.ctrl.SlotAt(core.Wednesday, core.MustClock("10:00"))
	if cell.Primary != "events" || cell.Overlay != "tasks" {
		t.Fatalf("cell = %+v", cell)
	}
	grid := f.ctrl.WeekGrid()
	if len(grid.Columns) != 5 || len(grid.Slots) != 9 {
		t.Fatalf("grid %dx%d", len(grid.Columns), len(grid.Slots))
	}
}

func TestRemoteEarningsSource(t *testing.T) {
	backend := memory.NewBackend()
	backend.SetHourlyRate(core.Cents(10000))
	policy := planning.DefaultPolicy()
	policy.EarningsSource = "remote"
	ctrl, err := planning.NewController(uid, planning.Options{Backend: backend, Policy: policy, Logger: log.Discard(), Now: func() time.Time { return today }})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := ctrl.CreateEvent(ctx, draft("x", core.Monday, "09:00", "10:00")); err != nil {
		t.Fatal(err)
	}
	sum, err := ctrl.Summary(ctx)
	if err != nil || sum.Pending.Cents != 10000 {
		t.Fatalf("server totals not used: %+v %v", sum, err)
	}
}

func TestNewControllerErrors(t *testing.T) {
	if _, err := planning.NewController("", planning.Options{Backend: memory.NewBackend()}); err == nil {
		t.Fatal("expected error for empty uid")
	}
	if _, err := planning.NewController(uid, planning.Options{}); err == nil {
		t.Fatal("expected error for missing backend")
	}
	if _, err := planning.NewController(uid, planning.Options{Backend: memory.NewBackend(), Policy: planning.Policy{EarningsSource: "bogus"}}); err == nil {
		t.Fatal("expected error for unknown earnings source")
	}
}

func TestEventValidationRules(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(e *core.CalendarEvent)
		wantField string
	}{
		{"description is optional", func(e *core.CalendarEvent) { e.Description = "" }, ""},
		{"last slot up to closing hour", func(e *core.CalendarEvent) { e.Start, e.End = "17:00", "18:00" }, ""},
		{"whole day", func(e *core.CalendarEvent) { e.Start, e.End = "09:00", "18:00" }, ""},
		{"half hour start", func(e *core.CalendarEvent) { e.Start = "09:30" }, "start"},
		{"quarter hour end", func(e *core.CalendarEvent) { e.End = "10:15" }, "end"},
		{"before first slot", func(e *core.CalendarEvent) { e.Start, e.End = "07:00", "08:00" }, "start"},
		{"past closing hour", func(e *core.CalendarEvent) { e.Start, e.End = "17:00", "19:00" }, "end"},
		{"week 53 of a long year", func(e *core.CalendarEvent) { e.Year, e.Week = 2020, 53 }, ""},
		{"week 53 of a short year", func(e *core.CalendarEvent) { e.Year, e.Week = 2021, 53 }, "week"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			d := draft("Audit", core.Monday, "09:00", "10:00")
			tt.mutate(&d)
			res, err := f.ctrl.CreateEvent(context.Background(), d)
			if tt.wantField == "" {
				if err != nil || res.Outcome != planning.Synced {
					t.Fatalf("expected synced, got %+v %v", res, err)
				}
				return
			}
			var ve *core.ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.wantField {
				t.Fatalf("expected %s validation error, got %v", tt.wantField, err)
			}
			if len(f.ctrl.State().Events) != 0 || len(f.backend.Users()) != 0 {
				t.Fatal("rejected event reached the view or the backend")
			}
		})
	}
}

func TestTaskSlotsOnGrid(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	slot := func(start, end string) []core.TaskSlot {
		return []core.TaskSlot{{Day: core.Tuesday, Start: core.MustClock(start), End: core.MustClock(end)}}
	}

	_, err := f.ctrl.CreateWeeklyTask(ctx, core.WeeklyTask{Name: "Early", Price: core.Cents(1000), Slots: slot("08:00", "09:00")})
	var ve *core.ValidationError
	if !errors.As(err, &ve) || ve.Field != "time_slots[0].start" {
		t.Fatalf("expected off-grid slot rejected, got %v", err)
	}

	res, err := f.ctrl.CreateWeeklyTask(ctx, core.WeeklyTask{Name: "Review", Price: core.Cents(1000), Slots: slot("16:00", "18:00")})
	if err != nil || res.Outcome != planning.Synced {
		t.Fatalf("CreateWeeklyTask: %+v %v", res, err)
	}

	patch := res.Value.Clone()
	patch.Slots = slot("16:00", "16:30")
	if _, err := f.ctrl.UpdateWeeklyTask(ctx, patch); !errors.As(err, &ve) || ve.Field != "time_slots[0].end" {
		t.Fatalf("expected off-grid update rejected, got %v", err)
	}
	if got := f.ctrl.State().Tasks; len(got) != 1 || got[0].Slots[0].End != core.MustClock("18:00") {
		t.Fatalf("rejected update changed the task: %+v", got)
	}
}

func TestNavigateAcrossYear(t *testing.T) {
	// 2023 is not a leap year and has 52 ISO weeks; Jan 4 is in 2023-W01.
	ctrl, err := planning.NewController(uid, planning.Options{
		Backend: memory.NewBackend(), Policy: planning.DefaultPolicy(), Logger: log.Discard(),
		Now: func() time.Time { return time.Date(2023, time.January, 4, 12, 0, 0, 0, time.Local) },
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if got := ctrl.State().Week; got != (calendar.YearWeek{Year: 2023, Week: 1}) {
		t.Fatalf("start week = %v", got)
	}
	for i := 0; i < 52; i++ {
		if err := ctrl.Navigate(ctx, 1); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if got := ctrl.State().Week; got != (calendar.YearWeek{Year: 2024, Week: 1}) {
		t.Fatalf("after 52 weeks = %v, want 2024-W01", got)
	}
}
