package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/tasktracker-api/internal/platform/sqldb"
	"github.com/pressly/goose/v3"
)

// Migration commands accepted by the migrate subcommand.
const (
	migrateUp      = "up"
	migrateDown    = "down"
	migrateStatus  = "status"
	migrateVersion = "version"
)

// slogGooseLogger adapts the goose logger interface to use slog
type slogGooseLogger struct {
	logger *slog.Logger
}

// Printf implements the goose.Logger Printf method by forwarding messages to slog.Info
func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

// Fatalf implements the goose.Logger Fatalf method by forwarding error messages to slog.Error.
// It does not exit; the error is returned to main.
func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

// runMigrations executes a goose command against the embedded migrations.
func runMigrations(ctx context.Context, db *sql.DB, backend, command string, logger *slog.Logger) error {
	log := logger.With(slog.String("component", "migrations"), slog.String("command", command))

	return sqldb.WithGoose(backend, func() error {
		goose.SetLogger(&slogGooseLogger{logger: log})

		var err error
		switch command {
		case migrateUp:
			err = goose.UpContext(ctx, db, ".")
		case migrateDown:
			err = goose.DownContext(ctx, db, ".")
		case migrateStatus:
			err = goose.StatusContext(ctx, db, ".")
		case migrateVersion:
			var version int64
			version, err = goose.GetDBVersionContext(ctx, db)
			if err == nil {
				log.Info("current schema version", slog.Int64("version", version))
			}
		default:
			return fmt.Errorf("unknown migration command %q", command)
		}
		if err != nil {
			return fmt.Errorf("migration %s failed: %w", command, err)
		}
		log.Info("migration command completed")
		return nil
	})
}
