// Package main implements the entry point for the task tracker API server,
// which stores calendar tasks and delivers their reminders over Web Push and
// to connected live clients.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/tasktracker-api/internal/config"
	"github.com/phrazzld/tasktracker-api/internal/notification"
	"github.com/phrazzld/tasktracker-api/internal/platform/logger"
	"github.com/urfave/cli"
)

func main() {
	if err := newCLI().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCLI() *cli.App {
	app := cli.NewApp()
	app.Name = "tasktracker-api"
	app.Usage = "calendar task API with reminder notifications"
	app.HideVersion = true
	app.Action = serve
	app.Commands = []cli.Command{
		{
			Name:   "serve",
			Usage:  "run the HTTP server and reminder scheduler (default)",
			Action: serve,
		},
		{
			Name:      "migrate",
			Usage:     "manage the database schema",
			ArgsUsage: "up|down|status|version",
			Action:    migrate,
		},
		{
			Name:   "vapid-keys",
			Usage:  "generate a VAPID key pair for Web Push",
			Action: vapidKeys,
		},
	}
	return app
}

// loadAppConfig loads configuration and sets up the logger.
func loadAppConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	l.Info("server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("database_driver", cfg.Database.Driver))
	return cfg, l, nil
}

func serve(*cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, l, err := loadAppConfig()
	if err != nil {
		return err
	}

	db, err := setupAppDatabase(ctx, cfg, l)
	if err != nil {
		return err
	}
	if err := runMigrations(ctx, db.DB, cfg.Database.Driver, migrateUp, l); err != nil {
		_ = db.Close()
		return err
	}

	app, err := newApplication(ctx, cfg, l, db, nil)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func migrate(c *cli.Context) error {
	command := c.Args().First()
	if command == "" {
		return cli.NewExitError("migration command required: up|down|status|version", 2)
	}

	cfg, l, err := loadAppConfig()
	if err != nil {
		return err
	}
	db, err := setupAppDatabase(context.Background(), cfg, l)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return runMigrations(context.Background(), db.DB, cfg.Database.Driver, command, l)
}

func vapidKeys(c *cli.Context) error {
	public, private, err := notification.GenerateVAPIDKeys()
	if err != nil {
		return fmt.Errorf("failed to generate VAPID keys: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "TRACKER_PUSH_VAPID_PUBLIC_KEY=%s\nTRACKER_PUSH_VAPID_PRIVATE_KEY=%s\n", public, private)
	return nil
}
