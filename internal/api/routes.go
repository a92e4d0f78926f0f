package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handlers groups the handlers mounted under /api. Nil handlers are skipped.
type Handlers struct {
	Push     *PushHandler
	Tasks    *TaskHandler
	Settings *SettingsHandler
	Reminder *ReminderHandler
	Live     http.Handler
}

// RegisterRoutes mounts every handler on r, which is expected to be the /api
// sub-router.
func RegisterRoutes(r chi.Router, h Handlers) {
	r.Get("/health", Health)

	if h.Push != nil {
		r.Route("/push", func(r chi.Router) {
			r.Post("/subscribe", h.Push.Subscribe)
			r.Post("/unsubscribe", h.Push.Unsubscribe)
			r.Post("/notify", h.Push.Notify)
			r.Post("/notify/task-reminder", h.Push.TaskReminder)
			r.Post("/notify/task-completed", h.Push.TaskCompleted)
			r.Post("/notify/water-reminder", h.Push.WaterReminder)
			r.Post("/notify/test", h.Push.Test)
			r.Get("/status", h.Push.Status)
		})
	}

	if h.Tasks != nil {
		r.Route("/calendar-tasks", func(r chi.Router) {
			r.Get("/", h.Tasks.List)
			r.Get("/range", h.Tasks.Range)
			r.Get("/upcoming", h.Tasks.Upcoming)
			r.Post("/", h.Tasks.Create)
			r.Put("/{id}", h.Tasks.Update)
			r.Delete("/{id}", h.Tasks.Delete)
		})
	}

	if h.Settings != nil {
		r.Get("/notification-settings", h.Settings.Get)
		r.Put("/notification-settings", h.Settings.Update)
	}

	if h.Reminder != nil {
		r.Get("/reminders/pending", h.Reminder.Pending)
	}

	if h.Live != nil {
		r.Get("/notifications/live", h.Live.ServeHTTP)
	}
}
