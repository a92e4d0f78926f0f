package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/tasktracker-api/internal/domain"
)

// TaskFilter narrows a task listing. Zero values mean "no constraint".
type TaskFilter struct {
	TenantID string
	// Date matches a single calendar date (YYYY-MM-DD).
	Date string
	// From and To bound an inclusive date range (YYYY-MM-DD).
	From string
	To   string
	// PendingOnly excludes completed tasks.
	PendingOnly bool
}

// TaskStore defines the interface for calendar task persistence.
type TaskStore interface {
	// Create saves a new task. Returns ErrTaskExists if the id is taken.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by id. Returns ErrTaskNotFound if absent.
	GetByID(ctx context.Context, id string) (*domain.Task, error)

	// Update saves the task's mutable fields. Delivery state is owned by
	// MarkDelivered and ClearDelivery and is not written.
	// Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, task *domain.Task) error

	// ClearDelivery resets both delivered markers, opening a new scheduling epoch.
	// Returns ErrTaskNotFound if the task does not exist.
	ClearDelivery(ctx context.Context, id string) error

	// Delete removes a task. Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id string) error

	// List returns tasks matching filter ordered by date, time and creation.
	List(ctx context.Context, filter TaskFilter) ([]*domain.Task, error)

	// MarkDelivered atomically records kind as delivered at t. It returns
	// false without error when the event was already delivered.
	// Returns ErrTaskNotFound if the task does not exist.
	MarkDelivered(ctx context.Context, id string, kind domain.EventKind, at time.Time) (bool, error)

	// WithTx returns a TaskStore bound to tx.
	WithTx(tx *sqlx.Tx) TaskStore
}
