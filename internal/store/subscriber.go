package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker-api/internal/domain"
)

// SubscriberStore defines persistence for push subscribers.
// Endpoint uniqueness is enforced by the storage layer.
type SubscriberStore interface {
	// Upsert inserts sub, or for an existing endpoint refreshes its keys,
	// reactivates it and touches last_used_at. The stored record is returned;
	// on conflict it keeps the original id, tenant and created_at.
	Upsert(ctx context.Context, sub *domain.Subscriber) (*domain.Subscriber, error)

	// GetByEndpoint returns ErrSubscriberNotFound if absent.
	GetByEndpoint(ctx context.Context, endpoint string) (*domain.Subscriber, error)

	// Deactivate flips active to false. Returns ErrSubscriberNotFound if absent.
	Deactivate(ctx context.Context, endpoint string) error

	// ListActive returns active subscribers; an empty tenantID matches all tenants.
	ListActive(ctx context.Context, tenantID string) ([]*domain.Subscriber, error)

	// MarkUsed sets last_used_at. Returns ErrSubscriberNotFound if absent.
	MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) error

	// CountActive and CountTotal report subscription counts across tenants.
	CountActive(ctx context.Context) (int, error)
	CountTotal(ctx context.Context) (int, error)
}

// SettingsStore persists one Settings row per tenant.
type SettingsStore interface {
	// Get returns ErrSettingsNotFound when the tenant has not saved settings.
	Get(ctx context.Context, tenantID string) (*domain.Settings, error)

	// Save inserts or replaces the tenant's settings.
	Save(ctx context.Context, settings *domain.Settings) error
}
