package events

import (
	"context"
	"log/slog"
	"sync"
)

// InMemoryEventEmitter hands every task and settings change to the
// subscribed reactors in the order they subscribed. EmitEvent returns only
// after the last one has run, so a task write is not acknowledged until the
// scheduler has re-armed or cancelled its timers.
type InMemoryEventEmitter struct {
	mu       sync.RWMutex
	handlers []EventHandler
	logger   *slog.Logger
}

// NewInMemoryEventEmitter returns an emitter with no subscribers.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryEventEmitter{logger: logger.With("component", "change_events")}
}

// RegisterHandler subscribes handler to every later change.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) {
	e.mu.Lock()
	e.handlers = append(e.handlers, handler)
	count := len(e.handlers)
	e.mu.Unlock()

	e.logger.Debug("change subscriber added", slog.Int("subscribers", count))
}

// EmitEvent delivers event to each subscriber. A failing subscriber does not
// stop delivery to the rest; the first failure is what the caller sees.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *ChangeEvent) error {
	e.mu.RLock()
	subscribers := append([]EventHandler(nil), e.handlers...)
	e.mu.RUnlock()

	log := e.logger.With(
		slog.String("event_type", event.Type),
		slog.String("tenant_id", event.TenantID),
		slog.String("task_id", event.TaskID))
	log.DebugContext(ctx, "publishing change", slog.Int("subscribers", len(subscribers)))

	var firstErr error
	for i, sub := range subscribers {
		err := sub.HandleEvent(ctx, event)
		if err == nil {
			continue
		}
		log.ErrorContext(ctx, "change subscriber failed",
			slog.Int("subscriber", i),
			slog.String("event_id", event.ID.String()),
			slog.String("error", err.Error()))
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
