package api

import (
	"net/http"

	"github.com/phrazzld/tasktracker-api/internal/api/shared"
	"github.com/phrazzld/tasktracker-api/internal/reminder"
)

// ReminderInspector exposes the scheduler's armed timers.
type ReminderInspector interface {
	Pending() []reminder.PendingTimer
	Stats() reminder.Stats
}

// PendingResponse is returned by GET /api/reminders/pending.
type PendingResponse struct {
	Pending []reminder.PendingTimer `json:"pending"`
	Stats   reminder.Stats          `json:"stats"`
}

// ReminderHandler serves the scheduler diagnostics route.
type ReminderHandler struct {
	scheduler ReminderInspector
}

// NewReminderHandler creates a ReminderHandler.
func NewReminderHandler(scheduler ReminderInspector) *ReminderHandler {
	if scheduler == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("scheduler cannot be nil for ReminderHandler")
	}
	return &ReminderHandler{scheduler: scheduler}
}

// Pending handles GET /api/reminders/pending.
func (h *ReminderHandler) Pending(w http.ResponseWriter, r *http.Request) {
	pending := h.scheduler.Pending()
	if pending == nil {
		pending = []reminder.PendingTimer{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, PendingResponse{
		Pending: pending,
		Stats:   h.scheduler.Stats(),
	})
}

// Health handles GET /api/health.
func Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]bool{"ok": true})
}
