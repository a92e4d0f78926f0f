package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/tasktracker-api/internal/config"
	"github.com/phrazzld/tasktracker-api/internal/events"
	"github.com/phrazzld/tasktracker-api/internal/live"
	"github.com/phrazzld/tasktracker-api/internal/notification"
	"github.com/phrazzld/tasktracker-api/internal/platform/clock"
	"github.com/phrazzld/tasktracker-api/internal/platform/sqldb"
	"github.com/phrazzld/tasktracker-api/internal/reminder"
	"github.com/phrazzld/tasktracker-api/internal/service"
	"golang.org/x/sync/errgroup"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sqlx.DB
	clock  clock.Clock

	// Stores
	taskStore       *sqldb.TaskStore
	subscriberStore *sqldb.SubscriberStore
	settingsStore   *sqldb.SettingsStore

	// Services
	taskService         service.TaskService
	subscriptionService *service.SubscriptionService
	settingsService     *service.SettingsService

	// Delivery
	dispatcher *notification.Dispatcher
	hub        *live.Hub
	scheduler  *reminder.Scheduler

	eventEmitter *events.InMemoryEventEmitter
}

// The scheduler retries a failed startup settings load through this.
var _ reminder.SettingsLoader = (*service.SettingsService)(nil)

// newApplication creates a new application instance with all dependencies initialized.
// The database must already be migrated.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sqlx.DB,
	clk clock.Clock,
) (*application, error) {
	if clk == nil {
		clk = clock.New()
	}
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
		clock:  clk,
	}

	location, err := cfg.Scheduler.LoadLocation()
	if err != nil {
		return nil, fmt.Errorf("failed to load scheduler location: %w", err)
	}

	// Stores
	app.taskStore = sqldb.NewTaskStore(db, logger)
	app.subscriberStore = sqldb.NewSubscriberStore(db, logger)
	app.settingsStore = sqldb.NewSettingsStore(db, logger)

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)

	// Services
	app.taskService, err = service.NewTaskService(db, app.taskStore, app.eventEmitter, clk, location, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}
	app.subscriptionService, err = service.NewSubscriptionService(app.subscriberStore, clk, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription service: %w", err)
	}
	app.settingsService, err = service.NewSettingsService(
		app.settingsStore, app.eventEmitter, clk, cfg.Scheduler.TenantID, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create settings service: %w", err)
	}
	if err := app.settingsService.Load(ctx); err != nil {
		// Notifications stay off; the scheduler retries the load on each reconcile.
		logger.Error("failed to load notification settings, starting with notifications disabled",
			slog.String("error", err.Error()))
	}

	// Push delivery
	gateway, err := newGateway(cfg.Push, logger)
	if err != nil {
		return nil, err
	}
	app.dispatcher = notification.NewDispatcher(app.subscriptionService, gateway, clk, notification.DispatcherConfig{
		MaxConcurrency: cfg.Push.MaxConcurrency,
		AttemptTimeout: cfg.Push.AttemptTimeout,
	}, logger)

	app.hub = live.NewHub(live.HubConfig{OriginPatterns: cfg.Server.AllowedOrigins}, logger)

	app.scheduler = reminder.NewScheduler(
		app.taskStore,
		app.settingsService,
		app.dispatcher,
		app.hub,
		clk,
		reminder.Config{
			TenantID:          cfg.Scheduler.TenantID,
			Location:          location,
			Horizon:           cfg.Scheduler.Horizon,
			CatchUpWindow:     cfg.Scheduler.CatchUpWindow,
			ReconcileInterval: cfg.Scheduler.ReconcileInterval,
			FireTimeout:       cfg.Scheduler.FireTimeout,
			MorningDigestCron: cfg.Scheduler.MorningDigestCron,
			EveningDigestCron: cfg.Scheduler.EveningDigestCron,
		},
		logger,
	)
	app.eventEmitter.RegisterHandler(app.scheduler)

	logger.Info("application initialized",
		slog.Bool("push_enabled", cfg.Push.PushEnabled()),
		slog.String("location", location.String()),
		slog.String("tenant_id", cfg.Scheduler.TenantID))
	return app, nil
}

// newGateway returns the Web Push gateway, or a gateway that fails every
// attempt when no VAPID keys are configured.
func newGateway(cfg config.PushConfig, logger *slog.Logger) (notification.Gateway, error) {
	if !cfg.PushEnabled() {
		logger.Warn("VAPID keys not configured, push delivery disabled")
		return notification.DisabledGateway(), nil
	}
	gateway, err := notification.NewWebPushGateway(cfg, &http.Client{Timeout: cfg.AttemptTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create push gateway: %w", err)
	}
	return gateway, nil
}

// Run serves HTTP and drives the scheduler until ctx is cancelled or either
// fails.
func (app *application) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.scheduler.Run(ctx)
	})
	g.Go(func() error {
		return app.startHTTPServer(ctx, app.setupRouter())
	})

	err := g.Wait()
	app.cleanup()
	return err
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	app.hub.Close()
	app.scheduler.CancelAll()

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", slog.String("error", err.Error()))
		}
	}
	app.logger.Info("application shutdown completed")
}

// shutdownTimeout returns the configured graceful shutdown bound.
func (app *application) shutdownTimeout() time.Duration {
	if app.config.Server.ShutdownTimeout > 0 {
		return app.config.Server.ShutdownTimeout
	}
	return 10 * time.Second
}
