package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/tasktracker-api/internal/api"
	apiMiddleware "github.com/phrazzld/tasktracker-api/internal/api/middleware"
)

// setupRouter creates the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.Trace(app.logger))

	handlers := api.Handlers{
		Push: api.NewPushHandler(
			app.subscriptionService,
			app.dispatcher,
			app.config.Push.VAPIDPublicKey,
			app.logger,
		),
		Tasks:    api.NewTaskHandler(app.taskService, app.logger),
		Settings: api.NewSettingsHandler(app.settingsService, app.logger),
		Reminder: api.NewReminderHandler(app.scheduler),
		Live:     app.hub,
	}

	r.Route("/api", func(r chi.Router) {
		api.RegisterRoutes(r, handlers)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
