package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/platform/clock"
	"github.com/phrazzld/tasktracker-api/internal/platform/logger"
	"github.com/phrazzld/tasktracker-api/internal/redact"
	"github.com/phrazzld/tasktracker-api/internal/store"
)

// SubscriptionCounts summarizes the registry.
type SubscriptionCounts struct {
	Active int
	Total  int
}

// SubscriptionService is the subscription registry: one live record per
// push endpoint, soft-deleted through the active flag.
type SubscriptionService struct {
	subs   store.SubscriberStore
	clock  clock.Clock
	logger *slog.Logger
}

// NewSubscriptionService creates a SubscriptionService.
func NewSubscriptionService(
	subs store.SubscriberStore,
	clk clock.Clock,
	logger *slog.Logger,
) (*SubscriptionService, error) {
	if subs == nil {
		return nil, &ServiceError{
			Service:   "subscription",
			Operation: "create_service",
			Message:   "subscriber store cannot be nil",
		}
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionService{
		subs:   subs,
		clock:  clk,
		logger: logger.With(slog.String("component", "subscription_service")),
	}, nil
}

// Subscribe creates a subscriber or, for a known endpoint, refreshes its
// keys and reactivates it.
func (s *SubscriptionService) Subscribe(
	ctx context.Context,
	endpoint string,
	keys domain.SubscriptionKeys,
	tenantID string,
) (*domain.Subscriber, error) {
	sub, err := domain.NewSubscriber(endpoint, keys, tenantID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	sub.CreatedAt = now
	sub.LastUsedAt = now

	saved, err := s.subs.Upsert(ctx, sub)
	if err != nil {
		return nil, NewServiceError("subscription", "subscribe", "failed to save subscription", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("push subscription saved",
		slog.String("subscriber_id", saved.ID.String()),
		slog.String("endpoint", redact.Endpoint(saved.Endpoint)),
		slog.String("tenant_id", saved.TenantID))
	return saved, nil
}

// Unsubscribe deactivates endpoint. It reports whether a subscription existed.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, endpoint string) (bool, error) {
	err := s.subs.Deactivate(ctx, endpoint)
	if errors.Is(err, store.ErrSubscriberNotFound) {
		return false, nil
	}
	if err != nil {
		return false, NewServiceError("subscription", "unsubscribe", "failed to deactivate subscription", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("push subscription deactivated",
		slog.String("endpoint", redact.Endpoint(endpoint)))
	return true, nil
}

// ListActive returns active subscribers; an empty tenantID lists all tenants.
func (s *SubscriptionService) ListActive(ctx context.Context, tenantID string) ([]*domain.Subscriber, error) {
	subs, err := s.subs.ListActive(ctx, tenantID)
	if err != nil {
		return nil, NewServiceError("subscription", "list_active", "failed to list subscriptions", err)
	}
	return subs, nil
}

// Deactivate marks a subscriber gone after a permanent delivery failure.
func (s *SubscriptionService) Deactivate(ctx context.Context, endpoint string) error {
	if err := s.subs.Deactivate(ctx, endpoint); err != nil {
		return NewServiceError("subscription", "deactivate", "failed to deactivate subscription", err)
	}
	return nil
}

// MarkUsed records a successful delivery.
func (s *SubscriptionService) MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := s.subs.MarkUsed(ctx, id, at); err != nil {
		return NewServiceError("subscription", "mark_used", "failed to touch subscription", err)
	}
	return nil
}

// Counts returns active and total subscription counts.
func (s *SubscriptionService) Counts(ctx context.Context) (SubscriptionCounts, error) {
	active, err := s.subs.CountActive(ctx)
	if err != nil {
		return SubscriptionCounts{}, NewServiceError("subscription", "count", "failed to count subscriptions", err)
	}
	total, err := s.subs.CountTotal(ctx)
	if err != nil {
		return SubscriptionCounts{}, NewServiceError("subscription", "count", "failed to count subscriptions", err)
	}
	return SubscriptionCounts{Active: active, Total: total}, nil
}
