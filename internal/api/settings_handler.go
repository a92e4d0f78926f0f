package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/phrazzld/tasktracker-api/internal/api/shared"
	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/platform/logger"
)

// SettingsManager reads and patches the notification settings.
type SettingsManager interface {
	Current() domain.Settings
	Update(ctx context.Context, patch domain.SettingsPatch) (domain.Settings, error)
}

// SettingsHandler serves /api/notification-settings.
type SettingsHandler struct {
	settings SettingsManager
	logger   *slog.Logger
}

// NewSettingsHandler creates a SettingsHandler.
func NewSettingsHandler(settings SettingsManager, logger *slog.Logger) *SettingsHandler {
	if settings == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("settings cannot be nil for SettingsHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for SettingsHandler")
	}
	return &SettingsHandler{
		settings: settings,
		logger:   logger.With(slog.String("component", "settings_handler")),
	}
}

// Get handles GET /api/notification-settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, settingsToResponse(h.settings.Current()))
}

// Update handles PUT /api/notification-settings.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req SettingsRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid request format", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	updated, err := h.settings.Update(r.Context(), domain.SettingsPatch{
		Enabled:                 req.Enabled,
		DailyReminders:          req.DailyReminders,
		TaskReminders:           req.TaskReminders,
		CompletionNotifications: req.CompletionNotifications,
		ReminderLeadMinutes:     req.ReminderMinutes,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update notification settings")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, settingsToResponse(updated))
}
