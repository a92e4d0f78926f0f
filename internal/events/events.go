package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker-api/internal/domain"
)

// Change event types.
const (
	TaskCreated     = "task.created"
	TaskUpdated     = "task.updated"
	TaskCompleted   = "task.completed"
	TaskDeleted     = "task.deleted"
	SettingsUpdated = "settings.updated"
)

// ChangeEvent announces that a task or a tenant's settings changed.
type ChangeEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the change event type constants
	Type string `json:"type"`

	// TenantID is the owning tenant
	TenantID string `json:"tenant_id"`

	// TaskID is set for task events
	TaskID string `json:"task_id,omitempty"`

	// Task is a snapshot of the task after the change. It is nil for
	// settings events; for deletions it holds the last stored state.
	Task *domain.Task `json:"task,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// NewTaskEvent creates a ChangeEvent of eventType carrying a copy of task.
func NewTaskEvent(eventType string, task *domain.Task) *ChangeEvent {
	snapshot := *task
	return &ChangeEvent{
		ID:        uuid.New(),
		Type:      eventType,
		TenantID:  task.TenantID,
		TaskID:    task.ID,
		Task:      &snapshot,
		CreatedAt: time.Now().UTC(),
	}
}

// NewSettingsEvent creates a SettingsUpdated event for tenantID.
func NewSettingsEvent(tenantID string) *ChangeEvent {
	return &ChangeEvent{
		ID:        uuid.New(),
		Type:      SettingsUpdated,
		TenantID:  tenantID,
		CreatedAt: time.Now().UTC(),
	}
}

// EventHandler defines an interface for components that react to changes.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *ChangeEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish changes without knowledge of the scheduler.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *ChangeEvent) error
}

// NopEmitter discards every event.
type NopEmitter struct{}

// EmitEvent implements EventEmitter.
func (NopEmitter) EmitEvent(context.Context, *ChangeEvent) error { return nil }
