package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/events"
	"github.com/phrazzld/tasktracker-api/internal/platform/clock"
	"github.com/phrazzld/tasktracker-api/internal/platform/logger"
	"github.com/phrazzld/tasktracker-api/internal/store"
)

// SettingsService holds one tenant's notification settings. Reads are served
// from an in-memory snapshot so the scheduler can consult them synchronously.
type SettingsService struct {
	store    store.SettingsStore
	emitter  events.EventEmitter
	clock    clock.Clock
	tenantID string
	logger   *slog.Logger

	mu      sync.RWMutex
	current domain.Settings
	loaded  bool
}

// NewSettingsService creates a SettingsService seeded with defaults. Call
// Load to read the persisted row.
func NewSettingsService(
	settings store.SettingsStore,
	emitter events.EventEmitter,
	clk clock.Clock,
	tenantID string,
	logger *slog.Logger,
) (*SettingsService, error) {
	if settings == nil {
		return nil, &ServiceError{Service: "settings", Operation: "create_service", Message: "store cannot be nil"}
	}
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	if clk == nil {
		clk = clock.New()
	}
	if tenantID == "" {
		tenantID = domain.DefaultTaskTenant
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SettingsService{
		store:    settings,
		emitter:  emitter,
		clock:    clk,
		tenantID: tenantID,
		logger:   logger.With(slog.String("component", "settings_service")),
		current:  domain.DefaultSettings(tenantID),
	}, nil
}

// Load replaces the snapshot with the stored settings. A tenant that never
// saved settings keeps the defaults. When the store cannot be read the
// snapshot is switched off until a later Load or EnsureLoaded succeeds, so
// nothing is sent against settings the user may have disabled.
func (s *SettingsService) Load(ctx context.Context) error {
	stored, err := s.store.Get(ctx, s.tenantID)
	if errors.Is(err, store.ErrSettingsNotFound) {
		logger.FromContextOrDefault(ctx, s.logger).Debug("no stored settings, using defaults",
			slog.String("tenant_id", s.tenantID))
		s.mu.Lock()
		s.loaded = true
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.mu.Lock()
		if !s.loaded {
			s.current.Enabled = false
		}
		s.mu.Unlock()
		return NewServiceError("settings", "load_settings", "failed to load settings", err)
	}

	s.mu.Lock()
	s.current = *stored
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// EnsureLoaded retries Load until one has succeeded and is a no-op after.
func (s *SettingsService) EnsureLoaded(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}
	return s.Load(ctx)
}

// Current returns the settings snapshot.
func (s *SettingsService) Current() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update applies patch, persists the result and emits settings.updated.
func (s *SettingsService) Update(ctx context.Context, patch domain.SettingsPatch) (domain.Settings, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	next := patch.Apply(s.Current())
	next.TenantID = s.tenantID
	next.UpdatedAt = s.clock.Now().UTC()
	if err := next.Validate(); err != nil {
		return domain.Settings{}, err
	}

	if err := s.store.Save(ctx, &next); err != nil {
		return domain.Settings{}, NewServiceError("settings", "update_settings", "failed to save settings", err)
	}

	s.mu.Lock()
	s.current = next
	s.loaded = true
	s.mu.Unlock()

	log.Info("notification settings updated",
		slog.Bool("enabled", next.Enabled),
		slog.Bool("task_reminders", next.TaskReminders),
		slog.Bool("daily_reminders", next.DailyReminders),
		slog.Int("reminder_lead_minutes", next.ReminderLeadMinutes))

	if err := s.emitter.EmitEvent(ctx, events.NewSettingsEvent(s.tenantID)); err != nil {
		log.Error("failed to handle settings event", slog.String("error", err.Error()))
	}
	return next, nil
}
