package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/store"
)

type settingsRow struct {
	TenantID                string    `db:"tenant_id"`
	Enabled                 bool      `db:"enabled"`
	DailyReminders          bool      `db:"daily_reminders"`
	TaskReminders           bool      `db:"task_reminders"`
	CompletionNotifications bool      `db:"completion_notifications"`
	ReminderLeadMinutes     int       `db:"reminder_lead_minutes"`
	UpdatedAt               time.Time `db:"updated_at"`
}

// SettingsStore implements store.SettingsStore.
type SettingsStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewSettingsStore creates a SettingsStore.
func NewSettingsStore(db store.DBTX, logger *slog.Logger) *SettingsStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsStore{
		db:     db,
		logger: logger.With(slog.String("component", "settings_store")),
	}
}

var _ store.SettingsStore = (*SettingsStore)(nil)

// Get implements store.SettingsStore.
func (s *SettingsStore) Get(ctx context.Context, tenantID string) (*domain.Settings, error) {
	var row settingsRow
	query := s.db.Rebind(`
		SELECT tenant_id, enabled, daily_reminders, task_reminders,
			completion_notifications, reminder_lead_minutes, updated_at
		FROM notification_settings WHERE tenant_id = ?`)
	if err := sqlx.GetContext(ctx, s.db, &row, query, tenantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrSettingsNotFound
		}
		return nil, store.NewStoreError("settings", "get", "select failed", MapError(err))
	}
	return &domain.Settings{
		TenantID:                row.TenantID,
		Enabled:                 row.Enabled,
		DailyReminders:          row.DailyReminders,
		TaskReminders:           row.TaskReminders,
		CompletionNotifications: row.CompletionNotifications,
		ReminderLeadMinutes:     row.ReminderLeadMinutes,
		UpdatedAt:               row.UpdatedAt.UTC(),
	}, nil
}

// Save implements store.SettingsStore.
func (s *SettingsStore) Save(ctx context.Context, settings *domain.Settings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := s.db.Rebind(`
		INSERT INTO notification_settings (tenant_id, enabled, daily_reminders, task_reminders,
			completion_notifications, reminder_lead_minutes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id) DO UPDATE SET
			enabled = excluded.enabled,
			daily_reminders = excluded.daily_reminders,
			task_reminders = excluded.task_reminders,
			completion_notifications = excluded.completion_notifications,
			reminder_lead_minutes = excluded.reminder_lead_minutes,
			updated_at = excluded.updated_at`)
	_, err := s.db.ExecContext(ctx, query,
		settings.TenantID,
		settings.Enabled,
		settings.DailyReminders,
		settings.TaskReminders,
		settings.CompletionNotifications,
		settings.ReminderLeadMinutes,
		settings.UpdatedAt.UTC(),
	)
	if err != nil {
		s.logger.Error("failed to save settings",
			slog.String("error", err.Error()),
			slog.String("tenant_id", settings.TenantID))
		return store.NewStoreError("settings", "save", "upsert failed", MapError(err))
	}
	return nil
}
