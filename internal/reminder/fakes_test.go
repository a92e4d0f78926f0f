package reminder_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/notification"
	"github.com/phrazzld/tasktracker-api/internal/platform/clock"
	"github.com/phrazzld/tasktracker-api/internal/store"
)

// memTasks is an in-memory TaskSource.
type memTasks struct {
	mu      sync.Mutex
	tasks   map[string]*domain.Task
	listErr error
}

func newMemTasks(tasks ...*domain.Task) *memTasks {
	m := &memTasks{tasks: map[string]*domain.Task{}}
	for _, task := range tasks {
		m.put(task)
	}
	return m
}

func (m *memTasks) put(task *domain.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *task
	m.tasks[task.ID] = &copied
}

func (m *memTasks) update(id string, fn func(*domain.Task)) *domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.tasks[id])
	copied := *m.tasks[id]
	return &copied
}

func (m *memTasks) List(_ context.Context, f store.TaskFilter) ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*domain.Task
	for _, task := range m.tasks {
		switch {
		case f.TenantID != "" && task.TenantID != f.TenantID,
			f.Date != "" && task.Date != f.Date,
			f.From != "" && task.Date < f.From,
			f.To != "" && task.Date > f.To,
			f.PendingOnly && task.Completed:
			continue
		}
		copied := *task
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memTasks) GetByID(_ context.Context, id string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

func (m *memTasks) MarkDelivered(_ context.Context, id string, kind domain.EventKind, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return false, store.ErrTaskNotFound
	}
	return task.Delivery.Mark(kind, at), nil
}

// settingsBox is a mutable SettingsSource.
type settingsBox struct {
	mu sync.Mutex
	s  domain.Settings
}

func newSettingsBox() *settingsBox {
	return &settingsBox{s: domain.DefaultSettings(domain.DefaultTaskTenant)}
}

func (b *settingsBox) Current() domain.Settings {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.s
}

func (b *settingsBox) set(fn func(*domain.Settings)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.s)
}

// recordingDispatcher records every payload it is asked to push.
type recordingDispatcher struct {
	mu       sync.Mutex
	payloads []notification.Payload
	err      error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, p notification.Payload) (notification.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.payloads = append(d.payloads, p)
	if d.err != nil {
		return notification.Result{}, d.err
	}
	return notification.Result{Attempted: 1, Succeeded: 1, Results: []notification.AttemptResult{}}, nil
}

func (d *recordingDispatcher) tags() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.payloads))
	for _, p := range d.payloads {
		out = append(out, p.Tag)
	}
	return out
}

func (d *recordingDispatcher) last() notification.Payload {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.payloads[len(d.payloads)-1]
}

// fakeLocal is a LocalNotifier with a switchable foreground state.
type fakeLocal struct {
	mu         sync.Mutex
	foreground bool
	shown      []notification.Payload
}

func (l *fakeLocal) Foreground() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.foreground
}

func (l *fakeLocal) Show(_ context.Context, p notification.Payload) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.shown = append(l.shown, p)
}

func (l *fakeLocal) shownTags() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.shown))
	for _, p := range l.shown {
		out = append(out, p.Tag)
	}
	return out
}

// stallingClock is a Mock whose timers are silently dropped while stalled,
// the way a suspended host never runs them.
type stallingClock struct {
	*clock.Mock

	mu      sync.Mutex
	stalled bool
}

func (c *stallingClock) stall(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stalled = on
}

func (c *stallingClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.mu.Lock()
	stalled := c.stalled
	c.mu.Unlock()
	if stalled {
		return lostTimer{}
	}
	return c.Mock.AfterFunc(d, f)
}

type lostTimer struct{}

func (lostTimer) Stop() bool { return true }

// loadingSettings is a settingsBox whose stored values become readable only
// after loadErr is cleared.
type loadingSettings struct {
	*settingsBox

	mu      sync.Mutex
	loadErr error
	loads   int
}

func (l *loadingSettings) EnsureLoaded(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads++
	if l.loadErr != nil {
		return l.loadErr
	}
	l.settingsBox.set(func(s *domain.Settings) { s.Enabled = true })
	return nil
}
