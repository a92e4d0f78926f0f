package reminder

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/events"
	"github.com/phrazzld/tasktracker-api/internal/notification"
	"github.com/phrazzld/tasktracker-api/internal/platform/clock"
	"github.com/phrazzld/tasktracker-api/internal/store"
)

// Scheduler defaults
const (
	DefaultHorizon           = 24 * time.Hour
	DefaultCatchUpWindow     = 30 * time.Minute
	DefaultReconcileInterval = 5 * time.Minute
	DefaultFireTimeout       = 30 * time.Second
)

// TaskSource is the subset of the task store the scheduler reads and claims
// deliveries through.
type TaskSource interface {
	List(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error)
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	MarkDelivered(ctx context.Context, id string, kind domain.EventKind, at time.Time) (bool, error)
}

// SettingsSource returns the current settings without blocking on storage.
type SettingsSource interface {
	Current() domain.Settings
}

// SettingsLoader is implemented by settings sources that can come up without
// their stored values. ReconcileFromStore calls EnsureLoaded first so a
// failed startup load is retried on every pass until it succeeds.
type SettingsLoader interface {
	EnsureLoaded(ctx context.Context) error
}

// Dispatcher pushes a payload to every active subscriber.
type Dispatcher interface {
	Dispatch(ctx context.Context, p notification.Payload) (notification.Result, error)
}

// LocalNotifier shows a notification in a foreground client. Show never fails.
type LocalNotifier interface {
	Foreground() bool
	Show(ctx context.Context, p notification.Payload)
}

// Config tunes a Scheduler. Zero values take defaults.
type Config struct {
	TenantID string
	// Location interprets task dates and times. Nil means time.Local.
	Location *time.Location
	// Horizon bounds how far ahead a timer is armed.
	Horizon time.Duration
	// CatchUpWindow bounds how stale a missed event may be and still fire.
	CatchUpWindow     time.Duration
	ReconcileInterval time.Duration
	FireTimeout       time.Duration
	// Digest cron expressions; empty disables that digest.
	MorningDigestCron string
	EveningDigestCron string
}

// Stats counts scheduler actions since construction.
type Stats struct {
	Armed      int64 `json:"armed"`
	CaughtUp   int64 `json:"caughtUp"`
	Cancelled  int64 `json:"cancelled"`
	Fired      int64 `json:"fired"`
	Suppressed int64 `json:"suppressed"`
}

// ReconcileResult reports the timer churn of one reconcile.
type ReconcileResult struct {
	Armed     int
	Cancelled int
}

// PendingTimer describes an armed timer.
type PendingTimer struct {
	TaskID string           `json:"taskId"`
	Kind   domain.EventKind `json:"kind"`
	FireAt time.Time        `json:"fireAt"`
}

type timerKey struct {
	taskID string
	kind   domain.EventKind
}

type armedTimer struct {
	fireAt time.Time
	timer  clock.Timer
}

// desired is one timer the current snapshot calls for.
type desired struct {
	key    timerKey
	fireAt time.Time
}

// Scheduler is the reminder engine. Create one per process with NewScheduler.
type Scheduler struct {
	tasks      TaskSource
	settings   SettingsSource
	dispatcher Dispatcher
	local      LocalNotifier
	clock      clock.Clock
	cfg        Config
	pick       notification.Picker
	logger     *slog.Logger

	// reconcileMu serializes reconciles, including the snapshot load.
	reconcileMu sync.Mutex

	mu       sync.Mutex
	timers   map[timerKey]*armedTimer
	inFlight map[timerKey]struct{}
	digests  map[string]clock.Timer
	stats    Stats
}

// NewScheduler creates a Scheduler. local may be nil when there is no local channel.
func NewScheduler(
	tasks TaskSource,
	settings SettingsSource,
	dispatcher Dispatcher,
	local LocalNotifier,
	clk clock.Clock,
	cfg Config,
	logger *slog.Logger,
) *Scheduler {
	if tasks == nil || settings == nil || dispatcher == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("tasks, settings and dispatcher cannot be nil")
	}
	if clk == nil {
		clk = clock.New()
	}
	if cfg.TenantID == "" {
		cfg.TenantID = domain.DefaultTaskTenant
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = DefaultHorizon
	}
	if cfg.CatchUpWindow < 0 {
		cfg.CatchUpWindow = 0
	}
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = DefaultReconcileInterval
	}
	if cfg.FireTimeout <= 0 {
		cfg.FireTimeout = DefaultFireTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		tasks:      tasks,
		settings:   settings,
		dispatcher: dispatcher,
		local:      local,
		clock:      clk,
		cfg:        cfg,
		pick:       notification.RandomPicker(),
		logger:     logger.With(slog.String("component", "reminder_scheduler")),
		timers:     make(map[timerKey]*armedTimer),
		inFlight:   make(map[timerKey]struct{}),
		digests:    make(map[string]clock.Timer),
	}
}

// SetPicker replaces the completion message picker.
func (s *Scheduler) SetPicker(pick notification.Picker) {
	if pick != nil {
		s.pick = pick
	}
}

// Reconcile makes the armed timer set match tasks, which must be the full
// snapshot: timers of tasks missing from it are cancelled. Timers that are
// still wanted at the same instant are left alone, so an unchanged snapshot
// causes no churn.
func (s *Scheduler) Reconcile(ctx context.Context, tasks []*domain.Task) ReconcileResult {
	s.reconcileMu.Lock()
	defer s.reconcileMu.Unlock()
	return s.reconcile(ctx, tasks, nil)
}

// ReconcileTask applies Reconcile's rules to a single task, leaving every
// other task's timers alone.
func (s *Scheduler) ReconcileTask(ctx context.Context, task *domain.Task) ReconcileResult {
	s.reconcileMu.Lock()
	defer s.reconcileMu.Unlock()
	return s.reconcile(ctx, []*domain.Task{task}, &task.ID)
}

// ReconcileFromStore loads the tasks that can produce an event between the
// catch-up window and the horizon and reconciles against them. On storage
// failure the armed timers are kept and the error is returned.
func (s *Scheduler) ReconcileFromStore(ctx context.Context) (ReconcileResult, error) {
	s.reconcileMu.Lock()
	defer s.reconcileMu.Unlock()

	if loader, ok := s.settings.(SettingsLoader); ok {
		if err := loader.EnsureLoaded(ctx); err != nil {
			s.logger.WarnContext(ctx, "settings still unavailable, notifications stay disabled",
				slog.String("error", err.Error()))
		}
	}

	now := s.clock.Now().In(s.cfg.Location)
	tasks, err := s.tasks.List(ctx, store.TaskFilter{
		TenantID:    s.cfg.TenantID,
		From:        now.Add(-s.cfg.CatchUpWindow).Format(domain.DateLayout),
		To:          now.Add(s.cfg.Horizon).Format(domain.DateLayout),
		PendingOnly: true,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load tasks, skipping reconcile",
			slog.String("error", err.Error()))
		return ReconcileResult{}, err
	}
	return s.reconcile(ctx, tasks, nil), nil
}

// reconcile must be called with reconcileMu held. A non-nil only restricts
// cancellation to that task's timers.
func (s *Scheduler) reconcile(ctx context.Context, tasks []*domain.Task, only *string) ReconcileResult {
	settings := s.settings.Current()
	now := s.clock.Now()

	want := make(map[timerKey]desired)
	var order []desired
	for _, task := range tasks {
		if task == nil {
			continue
		}
		for _, d := range s.plan(task, settings, now) {
			if _, dup := want[d.key]; dup {
				continue
			}
			want[d.key] = d
			order = append(order, d)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return order[i].fireAt.Before(order[j].fireAt)
	})

	var res ReconcileResult
	s.mu.Lock()
	for key, armed := range s.timers {
		if only != nil && key.taskID != *only {
			continue
		}
		// An overdue timer that is still armed never ran, e.g. the host slept
		// through it; replace it so the catch-up path picks it up.
		if d, ok := want[key]; ok && d.fireAt.Equal(armed.fireAt) && armed.fireAt.After(now) {
			continue
		}
		armed.timer.Stop()
		delete(s.timers, key)
		res.Cancelled++
	}
	for _, d := range order {
		if _, ok := s.timers[d.key]; ok {
			continue
		}
		if _, busy := s.inFlight[d.key]; busy {
			continue
		}
		s.arm(d, now)
		res.Armed++
	}
	s.stats.Cancelled += int64(res.Cancelled)
	s.mu.Unlock()

	if res.Armed > 0 || res.Cancelled > 0 {
		s.logger.DebugContext(ctx, "reconciled timers",
			slog.Int("tasks", len(tasks)),
			slog.Int("armed", res.Armed),
			slog.Int("cancelled", res.Cancelled))
	}
	return res
}

// plan returns the timers task calls for at now.
func (s *Scheduler) plan(task *domain.Task, settings domain.Settings, now time.Time) []desired {
	var out []desired
	for _, kind := range domain.EventKinds {
		fireAt, ok := s.eventInstant(task, kind, settings)
		if !ok {
			continue
		}
		if !s.armable(task, kind, fireAt, now) {
			continue
		}
		out = append(out, desired{key: timerKey{taskID: task.ID, kind: kind}, fireAt: fireAt})
	}
	return out
}

// eventInstant returns when kind fires for task, or false when the task is
// not eligible for kind under settings.
func (s *Scheduler) eventInstant(task *domain.Task, kind domain.EventKind, settings domain.Settings) (time.Time, bool) {
	if !settings.TaskEventsEnabled() || task.Completed || task.Delivery.Delivered(kind) {
		return time.Time{}, false
	}
	start, err := task.StartInstant(s.cfg.Location)
	if err != nil {
		return time.Time{}, false
	}

	switch kind {
	case domain.EventStart:
		return start, true
	case domain.EventReminder:
		lead := settings.ReminderLead()
		if lead <= 0 {
			return time.Time{}, false
		}
		at := start.Add(-lead)
		if !at.Before(start) {
			return time.Time{}, false
		}
		return at, true
	default:
		return time.Time{}, false
	}
}

// armable applies the horizon and catch-up rules to an eligible event.
func (s *Scheduler) armable(task *domain.Task, kind domain.EventKind, fireAt, now time.Time) bool {
	if fireAt.After(now) {
		return fireAt.Sub(now) <= s.cfg.Horizon
	}
	if now.Sub(fireAt) > s.cfg.CatchUpWindow {
		return false
	}
	if kind == domain.EventReminder {
		// A reminder is pointless once the task has started.
		start, err := task.StartInstant(s.cfg.Location)
		return err == nil && start.After(now)
	}
	return true
}

// arm must be called with s.mu held. Past instants fire immediately.
func (s *Scheduler) arm(d desired, now time.Time) {
	delay := d.fireAt.Sub(now)
	if delay < 0 {
		delay = 0
	}
	if !d.fireAt.After(now) {
		s.stats.CaughtUp++
	}
	s.stats.Armed++

	armed := &armedTimer{fireAt: d.fireAt}
	armed.timer = s.clock.AfterFunc(delay, func() { s.matured(d.key, armed) })
	s.timers[d.key] = armed
}

// matured is the timer callback.
func (s *Scheduler) matured(key timerKey, armed *armedTimer) {
	s.mu.Lock()
	if s.timers[key] != armed {
		// Cancelled or replaced after the callback was scheduled.
		s.mu.Unlock()
		return
	}
	delete(s.timers, key)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FireTimeout)
	defer cancel()
	if err := s.fire(ctx, key, armed.fireAt); err != nil {
		s.logger.ErrorContext(ctx, "reminder fire failed",
			slog.String("error", err.Error()),
			slog.String("task_id", key.taskID),
			slog.String("kind", string(key.kind)))
	}
}

// OnFire delivers kind for taskID if it is still eligible and not yet
// delivered. Concurrent or repeated calls deliver at most once.
func (s *Scheduler) OnFire(ctx context.Context, taskID string, kind domain.EventKind) error {
	return s.fire(ctx, timerKey{taskID: taskID, kind: kind}, time.Time{})
}

// fire reloads the task, claims the delivery in storage and dispatches.
// A non-zero expected must match the task's current instant for kind.
func (s *Scheduler) fire(ctx context.Context, key timerKey, expected time.Time) error {
	s.mu.Lock()
	if _, busy := s.inFlight[key]; busy {
		s.stats.Suppressed++
		s.mu.Unlock()
		return nil
	}
	s.inFlight[key] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inFlight, key)
		s.mu.Unlock()
	}()

	log := s.logger.With(slog.String("task_id", key.taskID), slog.String("kind", string(key.kind)))

	task, err := s.tasks.GetByID(ctx, key.taskID)
	if errors.Is(err, store.ErrTaskNotFound) {
		s.suppress(ctx, log, "task no longer exists")
		return nil
	}
	if err != nil {
		return err
	}

	settings := s.settings.Current()
	instant, ok := s.eventInstant(task, key.kind, settings)
	if !ok {
		s.suppress(ctx, log, "event no longer eligible")
		return nil
	}
	if !expected.IsZero() && !instant.Equal(expected) {
		s.suppress(ctx, log, "task was rescheduled")
		return nil
	}

	won, err := s.tasks.MarkDelivered(ctx, key.taskID, key.kind, s.clock.Now())
	if err != nil {
		return err
	}
	if !won {
		s.suppress(ctx, log, "already delivered")
		return nil
	}

	s.mu.Lock()
	s.stats.Fired++
	s.mu.Unlock()

	s.deliver(ctx, log, s.payloadFor(task, key.kind, settings))
	return nil
}

func (s *Scheduler) suppress(ctx context.Context, log *slog.Logger, reason string) {
	s.mu.Lock()
	s.stats.Suppressed++
	s.mu.Unlock()
	log.DebugContext(ctx, "fire suppressed", slog.String("reason", reason))
}

func (s *Scheduler) payloadFor(task *domain.Task, kind domain.EventKind, settings domain.Settings) notification.Payload {
	if kind == domain.EventReminder {
		return notification.TaskReminder(task, settings.ReminderLeadMinutes)
	}
	return notification.TaskStart(task)
}

// deliver pushes p and shows it locally when a client is in the foreground.
// Failures are logged and never retried.
func (s *Scheduler) deliver(ctx context.Context, log *slog.Logger, p notification.Payload) {
	if s.local != nil && s.local.Foreground() {
		s.local.Show(ctx, p)
	}

	res, err := s.dispatcher.Dispatch(ctx, p)
	if err != nil {
		log.ErrorContext(ctx, "push dispatch failed",
			slog.String("error", err.Error()),
			slog.String("tag", p.Tag))
		return
	}
	log.InfoContext(ctx, "notification delivered",
		slog.String("tag", p.Tag),
		slog.Int("attempted", res.Attempted),
		slog.Int("succeeded", res.Succeeded),
		slog.Int("failed", res.Failed))
}

// Cancel stops every pending timer of taskID. A callback that already
// started is allowed to finish; its delivery claim keeps it at most once.
func (s *Scheduler) Cancel(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, kind := range domain.EventKinds {
		key := timerKey{taskID: taskID, kind: kind}
		armed, ok := s.timers[key]
		if !ok {
			continue
		}
		armed.timer.Stop()
		delete(s.timers, key)
		s.stats.Cancelled++
	}
}

// CancelAll stops every pending task and digest timer.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, armed := range s.timers {
		armed.timer.Stop()
		delete(s.timers, key)
		s.stats.Cancelled++
	}
	for name, t := range s.digests {
		t.Stop()
		delete(s.digests, name)
	}
}

// Pending lists armed task timers ordered by fire time.
func (s *Scheduler) Pending() []PendingTimer {
	s.mu.Lock()
	out := make([]PendingTimer, 0, len(s.timers))
	for key, armed := range s.timers {
		out = append(out, PendingTimer{TaskID: key.taskID, Kind: key.kind, FireAt: armed.fireAt})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].TaskID < out[j].TaskID
		}
		return out[i].FireAt.Before(out[j].FireAt)
	})
	return out
}

// Stats returns a snapshot of the counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

var _ events.EventHandler = (*Scheduler)(nil)

// HandleEvent keeps timers in step with task and settings changes.
func (s *Scheduler) HandleEvent(ctx context.Context, event *events.ChangeEvent) error {
	switch event.Type {
	case events.TaskCreated, events.TaskUpdated:
		task := event.Task
		if task == nil {
			loaded, err := s.tasks.GetByID(ctx, event.TaskID)
			if errors.Is(err, store.ErrTaskNotFound) {
				s.Cancel(event.TaskID)
				return nil
			}
			if err != nil {
				return err
			}
			task = loaded
		}
		if task.TenantID != s.cfg.TenantID {
			s.Cancel(task.ID)
			return nil
		}
		s.ReconcileTask(ctx, task)
	case events.TaskDeleted:
		s.Cancel(event.TaskID)
	case events.TaskCompleted:
		s.Cancel(event.TaskID)
		s.celebrate(ctx, event)
	case events.SettingsUpdated:
		if _, err := s.ReconcileFromStore(ctx); err != nil {
			return err
		}
		s.rearmDigests()
	}
	return nil
}

// celebrate sends the completion notification when enabled.
func (s *Scheduler) celebrate(ctx context.Context, event *events.ChangeEvent) {
	if !s.settings.Current().CompletionEnabled() || event.Task == nil ||
		event.Task.TenantID != s.cfg.TenantID {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FireTimeout)
	defer cancel()

	log := s.logger.With(slog.String("task_id", event.TaskID), slog.String("kind", "completed"))
	s.deliver(ctx, log, notification.TaskCompleted(event.TaskID, event.Task.Title, s.pick))
}

// Run reconciles from storage once for recovery, then periodically until
// ctx is done, then cancels every timer. A failed recovery reconcile leaves
// nothing armed until the next cycle.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.StartDigests(); err != nil {
		return err
	}
	defer s.CancelAll()

	if res, err := s.ReconcileFromStore(ctx); err == nil {
		s.logger.InfoContext(ctx, "recovery reconcile complete", slog.Int("armed", res.Armed))
	}

	tick := make(chan struct{}, 1)
	var next clock.Timer
	schedule := func() {
		next = s.clock.AfterFunc(s.cfg.ReconcileInterval, func() {
			select {
			case tick <- struct{}{}:
			default:
			}
		})
	}
	schedule()

	for {
		select {
		case <-ctx.Done():
			next.Stop()
			s.logger.Info("reminder scheduler stopped")
			return nil
		case <-tick:
			_, _ = s.ReconcileFromStore(ctx)
			schedule()
		}
	}
}
