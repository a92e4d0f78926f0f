package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/platform/logger"
	"github.com/phrazzld/tasktracker-api/internal/redact"
	"github.com/phrazzld/tasktracker-api/internal/store"
)

const subscriberColumns = `id, endpoint, p256dh, auth, tenant_id, is_active, created_at, last_used_at`

type subscriberRow struct {
	ID         uuid.UUID `db:"id"`
	Endpoint   string    `db:"endpoint"`
	P256dh     string    `db:"p256dh"`
	Auth       string    `db:"auth"`
	TenantID   string    `db:"tenant_id"`
	Active     bool      `db:"is_active"`
	CreatedAt  time.Time `db:"created_at"`
	LastUsedAt time.Time `db:"last_used_at"`
}

func (r subscriberRow) toDomain() *domain.Subscriber {
	return &domain.Subscriber{
		ID:         r.ID,
		Endpoint:   r.Endpoint,
		Keys:       domain.SubscriptionKeys{P256dh: r.P256dh, Auth: r.Auth},
		TenantID:   r.TenantID,
		Active:     r.Active,
		CreatedAt:  r.CreatedAt.UTC(),
		LastUsedAt: r.LastUsedAt.UTC(),
	}
}

// SubscriberStore implements store.SubscriberStore.
type SubscriberStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewSubscriberStore creates a SubscriberStore.
// If logger is nil, a default logger will be used.
func NewSubscriberStore(db store.DBTX, logger *slog.Logger) *SubscriberStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SubscriberStore{
		db:     db,
		logger: logger.With(slog.String("component", "subscriber_store")),
	}
}

var _ store.SubscriberStore = (*SubscriberStore)(nil)

// Upsert implements store.SubscriberStore.
func (s *SubscriberStore) Upsert(ctx context.Context, sub *domain.Subscriber) (*domain.Subscriber, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := sub.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := s.db.Rebind(`
		INSERT INTO push_subscriptions (` + subscriberColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (endpoint) DO UPDATE SET
			p256dh = excluded.p256dh,
			auth = excluded.auth,
			is_active = excluded.is_active,
			last_used_at = excluded.last_used_at
		RETURNING ` + subscriberColumns)

	var row subscriberRow
	err := sqlx.GetContext(ctx, s.db, &row, query,
		sub.ID,
		sub.Endpoint,
		sub.Keys.P256dh,
		sub.Keys.Auth,
		sub.TenantID,
		true,
		sub.CreatedAt.UTC(),
		sub.LastUsedAt.UTC(),
	)
	if err != nil {
		log.Error("failed to upsert subscriber",
			slog.String("error", err.Error()),
			slog.String("endpoint", redact.Endpoint(sub.Endpoint)))
		return nil, store.NewStoreError("subscriber", "upsert", "upsert failed", MapError(err))
	}

	log.Debug("subscriber saved",
		slog.String("subscriber_id", row.ID.String()),
		slog.String("endpoint", redact.Endpoint(row.Endpoint)))
	return row.toDomain(), nil
}

// GetByEndpoint implements store.SubscriberStore.
func (s *SubscriberStore) GetByEndpoint(ctx context.Context, endpoint string) (*domain.Subscriber, error) {
	var row subscriberRow
	query := s.db.Rebind(`SELECT ` + subscriberColumns + ` FROM push_subscriptions WHERE endpoint = ?`)
	if err := sqlx.GetContext(ctx, s.db, &row, query, endpoint); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrSubscriberNotFound
		}
		return nil, store.NewStoreError("subscriber", "get", "select failed", MapError(err))
	}
	return row.toDomain(), nil
}

// Deactivate implements store.SubscriberStore.
func (s *SubscriberStore) Deactivate(ctx context.Context, endpoint string) error {
	query := s.db.Rebind(`UPDATE push_subscriptions SET is_active = ? WHERE endpoint = ?`)
	result, err := s.db.ExecContext(ctx, query, false, endpoint)
	if err != nil {
		return store.NewStoreError("subscriber", "deactivate", "update failed", MapError(err))
	}
	return CheckRowsAffected(result, store.ErrSubscriberNotFound)
}

// ListActive implements store.SubscriberStore.
func (s *SubscriberStore) ListActive(ctx context.Context, tenantID string) ([]*domain.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM push_subscriptions WHERE is_active = ?`
	args := []any{true}
	if tenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, tenantID)
	}
	query += ` ORDER BY created_at, endpoint`

	var rows []subscriberRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, store.NewStoreError("subscriber", "list", "select failed", MapError(err))
	}

	subs := make([]*domain.Subscriber, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, row.toDomain())
	}
	return subs, nil
}

// MarkUsed implements store.SubscriberStore.
func (s *SubscriberStore) MarkUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := s.db.Rebind(`UPDATE push_subscriptions SET last_used_at = ? WHERE id = ?`)
	result, err := s.db.ExecContext(ctx, query, at.UTC(), id)
	if err != nil {
		return store.NewStoreError("subscriber", "mark_used", "update failed", MapError(err))
	}
	return CheckRowsAffected(result, store.ErrSubscriberNotFound)
}

// CountActive implements store.SubscriberStore.
func (s *SubscriberStore) CountActive(ctx context.Context) (int, error) {
	var n int
	query := s.db.Rebind(`SELECT COUNT(*) FROM push_subscriptions WHERE is_active = ?`)
	if err := sqlx.GetContext(ctx, s.db, &n, query, true); err != nil {
		return 0, store.NewStoreError("subscriber", "count", "select failed", MapError(err))
	}
	return n, nil
}

// CountTotal implements store.SubscriberStore.
func (s *SubscriberStore) CountTotal(ctx context.Context) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, s.db, &n, `SELECT COUNT(*) FROM push_subscriptions`); err != nil {
		return 0, store.NewStoreError("subscriber", "count", "select failed", MapError(err))
	}
	return n, nil
}
