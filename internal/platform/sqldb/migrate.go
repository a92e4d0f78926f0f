package sqldb

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sync"

	"github.com/pressly/goose/v3"
)

// MigrationsTable is the goose version table name.
const MigrationsTable = "schema_migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// goose keeps dialect, base FS and table name in package globals.
var gooseMu sync.Mutex

// Migrations returns the embedded migration files rooted at the migrations directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		// ALLOW-PANIC: embedded directory is fixed at build time
		panic(err)
	}
	return sub
}

func gooseDialect(backend string) (string, error) {
	switch backend {
	case DriverPostgres:
		return "postgres", nil
	case DriverSQLite:
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", backend)
	}
}

// WithGoose configures goose for backend and runs fn while holding the
// package lock around goose's global state.
func WithGoose(backend string, fn func() error) error {
	dialect, err := gooseDialect(backend)
	if err != nil {
		return err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(Migrations())
	defer goose.SetBaseFS(nil)
	goose.SetTableName(MigrationsTable)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return fn()
}

// Migrate applies every pending migration.
func Migrate(ctx context.Context, db *sql.DB, backend string) error {
	return WithGoose(backend, func() error {
		if err := goose.UpContext(ctx, db, "."); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		return nil
	})
}
