package reminder_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/events"
	"github.com/phrazzld/tasktracker-api/internal/platform/clock"
	"github.com/phrazzld/tasktracker-api/internal/reminder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const today = "2025-06-01"

func at(hhmm string) time.Time {
	t, err := time.ParseInLocation(domain.DateLayout+" "+domain.TimeLayout, today+" "+hhmm, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func task(id, date, clockTime string) *domain.Task {
	return &domain.Task{
		ID:       id,
		TenantID: domain.DefaultTaskTenant,
		Title:    "Task " + id,
		Category: domain.CategoryStudy,
		Date:     date,
		Time:     clockTime,
		Priority: domain.PriorityMedium,
	}
}

type harness struct {
	clock    *clock.Mock
	tasks    *memTasks
	settings *settingsBox
	disp     *recordingDispatcher
	local    *fakeLocal
	sched    *reminder.Scheduler
}

func newHarness(t *testing.T, now time.Time, tasks ...*domain.Task) *harness {
	t.Helper()
	h := &harness{
		clock:    clock.NewMock(now),
		tasks:    newMemTasks(tasks...),
		settings: newSettingsBox(),
		disp:     &recordingDispatcher{},
		local:    &fakeLocal{},
	}
	h.sched = reminder.NewScheduler(h.tasks, h.settings, h.disp, h.local, h.clock, reminder.Config{
		TenantID: domain.DefaultTaskTenant,
		Location: time.UTC,
	}, nil)
	h.sched.SetPicker(func(int) int { return 0 })
	return h
}

func (h *harness) reconcileAll(t *testing.T) reminder.ReconcileResult {
	t.Helper()
	res, err := h.sched.ReconcileFromStore(context.Background())
	require.NoError(t, err)
	return res
}

func TestReconcile_ArmsReminderBeforeStart(t *testing.T) {
	h := newHarness(t, at("13:50"), task("t1", today, "14:00"))

	res := h.reconcileAll(t)
	assert.Equal(t, reminder.ReconcileResult{Armed: 2}, res)

	pending := h.sched.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, domain.EventReminder, pending[0].Kind)
	assert.True(t, pending[0].FireAt.Equal(at("13:55")))
	assert.Equal(t, domain.EventStart, pending[1].Kind)
	assert.True(t, pending[1].FireAt.Equal(at("14:00")))
	assert.True(t, pending[0].FireAt.Before(pending[1].FireAt))
}

func TestReconcile_IsIdempotent(t *testing.T) {
	h := newHarness(t, at("13:50"), task("t1", today, "14:00"), task("t2", today, "15:00"))

	first := h.reconcileAll(t)
	second := h.reconcileAll(t)

	assert.Equal(t, 4, first.Armed)
	assert.Equal(t, reminder.ReconcileResult{}, second)

	stats := h.sched.Stats()
	assert.Equal(t, int64(4), stats.Armed)
	assert.Equal(t, int64(0), stats.Cancelled)
	assert.Equal(t, 4, h.clock.Pending())
}

func TestReconcile_Eligibility(t *testing.T) {
	tomorrow := "2025-06-02"

	tests := []struct {
		name     string
		now      time.Time
		task     func() *domain.Task
		settings func(*domain.Settings)
		want     []domain.EventKind
	}{
		{
			name: "future task arms both",
			now:  at("13:50"),
			task: func() *domain.Task { return task("t", today, "14:00") },
			want: []domain.EventKind{domain.EventReminder, domain.EventStart},
		},
		{
			name:     "zero lead arms only start",
			now:      at("13:50"),
			task:     func() *domain.Task { return task("t", today, "14:00") },
			settings: func(s *domain.Settings) { s.ReminderLeadMinutes = 0 },
			want:     []domain.EventKind{domain.EventStart},
		},
		{
			name: "completed task arms nothing",
			now:  at("13:50"),
			task: func() *domain.Task {
				tk := task("t", today, "14:00")
				tk.Completed = true
				return tk
			},
		},
		{
			name: "delivered reminder arms only start",
			now:  at("13:50"),
			task: func() *domain.Task {
				tk := task("t", today, "14:00")
				tk.Delivery.Mark(domain.EventReminder, at("13:00"))
				return tk
			},
			want: []domain.EventKind{domain.EventStart},
		},
		{
			name:     "task reminders disabled",
			now:      at("13:50"),
			task:     func() *domain.Task { return task("t", today, "14:00") },
			settings: func(s *domain.Settings) { s.TaskReminders = false },
		},
		{
			name:     "master switch off",
			now:      at("13:50"),
			task:     func() *domain.Task { return task("t", today, "14:00") },
			settings: func(s *domain.Settings) { s.Enabled = false },
		},
		{
			name: "within horizon tomorrow",
			now:  at("13:50"),
			task: func() *domain.Task { return task("t", tomorrow, "10:00") },
			want: []domain.EventKind{domain.EventReminder, domain.EventStart},
		},
		{
			name: "beyond horizon",
			now:  at("13:50"),
			task: func() *domain.Task { return task("t", tomorrow, "20:00") },
		},
		{
			name: "invalid time arms nothing",
			now:  at("13:50"),
			task: func() *domain.Task { return task("t", today, "25:99") },
		},
		{
			name: "missed reminder still before start is caught up",
			now:  at("13:57"),
			task: func() *domain.Task { return task("t", today, "14:00") },
			want: []domain.EventKind{domain.EventReminder, domain.EventStart},
		},
		{
			name: "missed reminder after start is dropped",
			now:  at("14:10"),
			task: func() *domain.Task { return task("t", today, "14:00") },
			want: []domain.EventKind{domain.EventStart},
		},
		{
			name: "missed start beyond catch-up window",
			now:  at("15:00"),
			task: func() *domain.Task { return task("t", today, "14:00") },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.now)
			if tc.settings != nil {
				h.settings.set(tc.settings)
			}
			h.sched.Reconcile(context.Background(), []*domain.Task{tc.task()})

			var kinds []domain.EventKind
			for _, p := range h.sched.Pending() {
				kinds = append(kinds, p.Kind)
			}
			assert.Equal(t, tc.want, kinds)
		})
	}
}

func TestReconcile_CatchUpFiresOnce(t *testing.T) {
	h := newHarness(t, at("13:57"), task("t1", today, "14:00"))

	h.reconcileAll(t)
	assert.Equal(t, int64(1), h.sched.Stats().CaughtUp)

	h.clock.Add(0)
	assert.Equal(t, []string{"reminder-t1"}, h.disp.tags())

	// The delivery is recorded, so a later reconcile does not catch it up again.
	h.reconcileAll(t)
	h.clock.Add(time.Minute)
	assert.Equal(t, []string{"reminder-t1"}, h.disp.tags())

	h.clock.Set(at("14:00"))
	assert.Equal(t, []string{"reminder-t1", "task-t1"}, h.disp.tags())
}

func TestReconcile_CancelsTasksLeavingSnapshot(t *testing.T) {
	h := newHarness(t, at("13:50"))
	t1 := task("t1", today, "14:00")

	h.sched.Reconcile(context.Background(), []*domain.Task{t1})
	res := h.sched.Reconcile(context.Background(), nil)

	assert.Equal(t, reminder.ReconcileResult{Cancelled: 2}, res)
	assert.Empty(t, h.sched.Pending())
	assert.Equal(t, 0, h.clock.Pending())
}

func TestReconcileTask_Reschedule(t *testing.T) {
	t1 := task("t1", today, "14:00")
	t2 := task("t2", today, "16:00")
	h := newHarness(t, at("13:50"), t1, t2)
	h.reconcileAll(t)

	moved := *t1
	moved.Time = "15:00"
	res := h.sched.ReconcileTask(context.Background(), &moved)
	assert.Equal(t, reminder.ReconcileResult{Armed: 2, Cancelled: 2}, res)

	var t1Times []time.Time
	others := 0
	for _, p := range h.sched.Pending() {
		if p.TaskID == "t1" {
			t1Times = append(t1Times, p.FireAt)
		} else {
			others++
		}
	}
	assert.Equal(t, 2, others, "other tasks keep their timers")
	require.Len(t, t1Times, 2)
	assert.True(t, t1Times[0].Equal(at("14:55")))
	assert.True(t, t1Times[1].Equal(at("15:00")))
}

func TestOnFire_AtMostOnce(t *testing.T) {
	h := newHarness(t, at("13:55"), task("t1", today, "14:00"))
	ctx := context.Background()

	require.NoError(t, h.sched.OnFire(ctx, "t1", domain.EventReminder))
	require.NoError(t, h.sched.OnFire(ctx, "t1", domain.EventReminder))

	assert.Equal(t, []string{"reminder-t1"}, h.disp.tags())
	assert.Equal(t, int64(1), h.sched.Stats().Fired)
	assert.Equal(t, int64(1), h.sched.Stats().Suppressed)
}

func TestOnFire_ConcurrentCallersDeliverOnce(t *testing.T) {
	h := newHarness(t, at("14:00"), task("t1", today, "14:00"))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.sched.OnFire(context.Background(), "t1", domain.EventStart))
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{"task-t1"}, h.disp.tags())
	stats := h.sched.Stats()
	assert.Equal(t, int64(1), stats.Fired)
	assert.Equal(t, int64(15), stats.Suppressed)
}

func TestOnFire_MissingTaskIsSuppressed(t *testing.T) {
	h := newHarness(t, at("14:00"))
	require.NoError(t, h.sched.OnFire(context.Background(), "ghost", domain.EventStart))
	assert.Empty(t, h.disp.tags())
}

func TestOnFire_DispatchFailureIsNotRetried(t *testing.T) {
	h := newHarness(t, at("13:50"), task("t1", today, "14:00"))
	h.disp.err = errors.New("gateway unreachable")

	h.reconcileAll(t)
	h.clock.Set(at("13:55"))
	require.Len(t, h.disp.tags(), 1)

	got, err := h.tasks.GetByID(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, got.Delivery.Delivered(domain.EventReminder))

	h.reconcileAll(t)
	h.clock.Set(at("13:59"))
	assert.Len(t, h.disp.tags(), 1)
}

func TestFire_SkipsTaskCompletedWithoutEvent(t *testing.T) {
	h := newHarness(t, at("13:50"), task("t1", today, "14:00"))
	h.reconcileAll(t)

	h.tasks.update("t1", func(tk *domain.Task) { tk.Completed = true })
	h.clock.Set(at("14:00"))

	assert.Empty(t, h.disp.tags())
	assert.Equal(t, int64(2), h.sched.Stats().Suppressed)
}

func TestCancel(t *testing.T) {
	h := newHarness(t, at("13:50"), task("t1", today, "14:00"), task("t2", today, "14:30"))
	h.reconcileAll(t)

	h.sched.Cancel("t1")
	h.sched.Cancel("t1")
	h.sched.Cancel("never-armed")

	h.clock.Set(at("14:10"))
	for _, tag := range h.disp.tags() {
		assert.NotContains(t, []string{"reminder-t1", "task-t1"}, tag)
	}
	assert.Equal(t, int64(2), h.sched.Stats().Cancelled)

	h.clock.Set(at("14:30"))
	assert.Equal(t, []string{"reminder-t2", "task-t2"}, h.disp.tags())
}

func TestScenario_ReminderAndStartFireOnceEach(t *testing.T) {
	h := newHarness(t, at("13:50"))
	t1 := task("t1", today, "14:00")
	h.tasks.put(t1)

	require.NoError(t, h.sched.HandleEvent(context.Background(), events.NewTaskEvent(events.TaskCreated, t1)))
	require.Len(t, h.sched.Pending(), 2)

	h.clock.Set(at("13:55"))
	assert.Equal(t, []string{"reminder-t1"}, h.disp.tags())
	assert.Equal(t, "Task t1 starts in 5 minutes! 💕", h.disp.last().Body)

	h.clock.Set(at("14:00"))
	assert.Equal(t, []string{"reminder-t1", "task-t1"}, h.disp.tags())

	h.clock.Set(at("15:00"))
	assert.Len(t, h.disp.tags(), 2)
}

func TestScenario_CompletionCancelsStart(t *testing.T) {
	h := newHarness(t, at("13:50"))
	t1 := task("t1", today, "14:00")
	h.tasks.put(t1)
	ctx := context.Background()

	require.NoError(t, h.sched.HandleEvent(ctx, events.NewTaskEvent(events.TaskCreated, t1)))

	h.clock.Set(at("13:55"))
	require.Equal(t, []string{"reminder-t1"}, h.disp.tags())

	h.clock.Set(at("13:57"))
	completed := h.tasks.update("t1", func(tk *domain.Task) { tk.Completed = true })
	require.NoError(t, h.sched.HandleEvent(ctx, events.NewTaskEvent(events.TaskCompleted, completed)))
	assert.Empty(t, h.sched.Pending())

	h.clock.Set(at("14:00"))
	assert.Equal(t, []string{"reminder-t1", "task-completed-t1"}, h.disp.tags())
	assert.Equal(t, "Task t1 - Amazing work! You're absolutely crushing it! 💖✨", h.disp.last().Body)
}

func TestHandleEvent_CompletionCelebrationRespectsSettings(t *testing.T) {
	h := newHarness(t, at("13:50"))
	h.settings.set(func(s *domain.Settings) { s.CompletionNotifications = false })
	t1 := task("t1", today, "14:00")
	t1.Completed = true

	require.NoError(t, h.sched.HandleEvent(context.Background(), events.NewTaskEvent(events.TaskCompleted, t1)))
	assert.Empty(t, h.disp.tags())
}

func TestHandleEvent_DeleteCancels(t *testing.T) {
	t1 := task("t1", today, "14:00")
	h := newHarness(t, at("13:50"), t1)
	h.reconcileAll(t)

	require.NoError(t, h.sched.HandleEvent(context.Background(), events.NewTaskEvent(events.TaskDeleted, t1)))
	assert.Empty(t, h.sched.Pending())
}

func TestHandleEvent_SettingsChangeReconciles(t *testing.T) {
	h := newHarness(t, at("13:50"), task("t1", today, "14:00"))
	h.reconcileAll(t)
	require.Len(t, h.sched.Pending(), 2)

	h.settings.set(func(s *domain.Settings) { s.ReminderLeadMinutes = 0 })
	require.NoError(t, h.sched.HandleEvent(context.Background(), events.NewSettingsEvent(domain.DefaultTaskTenant)))
	pending := h.sched.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, domain.EventStart, pending[0].Kind)

	h.settings.set(func(s *domain.Settings) { s.Enabled = false })
	require.NoError(t, h.sched.HandleEvent(context.Background(), events.NewSettingsEvent(domain.DefaultTaskTenant)))
	assert.Empty(t, h.sched.Pending())
}

func TestReconcileFromStore_FailureKeepsTimers(t *testing.T) {
	h := newHarness(t, at("13:50"), task("t1", today, "14:00"))
	h.reconcileAll(t)

	h.tasks.mu.Lock()
	h.tasks.listErr = errors.New("connection refused")
	h.tasks.mu.Unlock()

	_, err := h.sched.ReconcileFromStore(context.Background())
	assert.Error(t, err)
	assert.Len(t, h.sched.Pending(), 2)
}

func TestDeliver_LocalChannelWhenForeground(t *testing.T) {
	h := newHarness(t, at("13:50"), task("t1", today, "14:00"))
	h.reconcileAll(t)

	h.clock.Set(at("13:55"))
	assert.Empty(t, h.local.shownTags(), "background clients get push only")

	h.local.mu.Lock()
	h.local.foreground = true
	h.local.mu.Unlock()

	h.clock.Set(at("14:00"))
	assert.Equal(t, []string{"task-t1"}, h.local.shownTags())
	assert.Equal(t, []string{"reminder-t1", "task-t1"}, h.disp.tags(), "push is always attempted")
}

func TestRun_RecoversAndReconcilesPeriodically(t *testing.T) {
	h := newHarness(t, at("13:50"), task("t1", today, "14:00"))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.sched.Run(ctx) }()

	// Two task timers plus the periodic reconcile timer.
	require.Eventually(t, func() bool { return h.clock.Pending() == 3 }, 2*time.Second, 5*time.Millisecond)

	h.tasks.put(task("t2", today, "14:30"))
	h.clock.Add(reminder.DefaultReconcileInterval)

	require.Eventually(t, func() bool { return len(h.sched.Pending()) == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"reminder-t1"}, h.disp.tags())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	assert.Empty(t, h.sched.Pending())
}

func TestHandleEvent_IgnoresOtherTenants(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, at("13:50"))

	alice := task("a1", today, "16:00")
	alice.TenantID = "alice"
	h.tasks.put(alice)
	require.NoError(t, h.sched.HandleEvent(ctx, events.NewTaskEvent(events.TaskCreated, alice)))
	assert.Empty(t, h.sched.Pending())

	// A task moving to another tenant loses its timers.
	h.tasks.put(task("t1", today, "15:00"))
	require.NoError(t, h.sched.HandleEvent(ctx, events.NewTaskEvent(events.TaskCreated, task("t1", today, "15:00"))))
	require.Len(t, h.sched.Pending(), 2)
	moved := h.tasks.update("t1", func(tk *domain.Task) { tk.TenantID = "alice" })
	require.NoError(t, h.sched.HandleEvent(ctx, events.NewTaskEvent(events.TaskUpdated, moved)))
	assert.Empty(t, h.sched.Pending())

	assert.Equal(t, reminder.ReconcileResult{}, h.reconcileAll(t))
	h.clock.Add(3 * time.Hour)
	assert.Empty(t, h.disp.tags())

	completed := h.tasks.update("a1", func(tk *domain.Task) { tk.Completed = true })
	require.NoError(t, h.sched.HandleEvent(ctx, events.NewTaskEvent(events.TaskCompleted, completed)))
	assert.Empty(t, h.disp.tags(), "no celebration for another tenant's task")
}

func TestReconcileFromStore_RearmsTimersTheHostSleptThrough(t *testing.T) {
	ctx := context.Background()
	clk := &stallingClock{Mock: clock.NewMock(at("13:50"))}
	disp := &recordingDispatcher{}
	sched := reminder.NewScheduler(newMemTasks(task("t1", today, "14:00")), newSettingsBox(), disp, &fakeLocal{}, clk,
		reminder.Config{TenantID: domain.DefaultTaskTenant, Location: time.UTC}, nil)
	sched.SetPicker(func(int) int { return 0 })

	clk.stall(true)
	_, err := sched.ReconcileFromStore(ctx)
	require.NoError(t, err)
	require.Len(t, sched.Pending(), 2)
	clk.stall(false)

	clk.Set(at("13:56"))
	assert.Empty(t, disp.tags(), "stalled timers never run")

	res, err := sched.ReconcileFromStore(ctx)
	require.NoError(t, err)
	assert.Equal(t, reminder.ReconcileResult{Armed: 1, Cancelled: 1}, res, "only the overdue reminder is replaced")
	assert.Equal(t, int64(1), sched.Stats().CaughtUp)

	clk.Add(0)
	assert.Equal(t, []string{"reminder-t1"}, disp.tags())

	clk.Set(at("14:01"))
	res, err = sched.ReconcileFromStore(ctx)
	require.NoError(t, err)
	assert.Equal(t, reminder.ReconcileResult{Armed: 1, Cancelled: 1}, res)
	clk.Add(0)
	assert.Equal(t, []string{"reminder-t1", "task-t1"}, disp.tags())

	// Delivered events are not caught up twice.
	res, err = sched.ReconcileFromStore(ctx)
	require.NoError(t, err)
	assert.Equal(t, reminder.ReconcileResult{}, res)
	assert.Len(t, disp.tags(), 2)
}

func TestReconcileFromStore_RetriesSettingsLoad(t *testing.T) {
	settings := &loadingSettings{settingsBox: newSettingsBox(), loadErr: errors.New("database is locked")}
	settings.set(func(s *domain.Settings) { s.Enabled = false })
	sched := reminder.NewScheduler(newMemTasks(task("t1", today, "14:00")), settings, &recordingDispatcher{}, &fakeLocal{},
		clock.NewMock(at("13:50")), reminder.Config{TenantID: domain.DefaultTaskTenant, Location: time.UTC}, nil)

	res, err := sched.ReconcileFromStore(context.Background())
	require.NoError(t, err, "a settings failure does not fail the reconcile")
	assert.Equal(t, reminder.ReconcileResult{}, res, "unloaded settings keep notifications off")

	settings.mu.Lock()
	settings.loadErr = nil
	settings.mu.Unlock()

	res, err = sched.ReconcileFromStore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, reminder.ReconcileResult{Armed: 2}, res)
	assert.Equal(t, 2, settings.loads)
}
