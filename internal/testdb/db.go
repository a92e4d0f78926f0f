package testdb

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/tasktracker-api/internal/platform/sqldb"
	"github.com/stretchr/testify/require"
)

// TestTimeout bounds connection and migration work in tests.
const TestTimeout = 10 * time.Second

// PostgresURLEnv selects PostgreSQL instead of SQLite when set.
const PostgresURLEnv = "TRACKER_TEST_DATABASE_URL"

var tables = []string{"calendar_tasks", "push_subscriptions", "notification_settings"}

// Backend reports which driver Open will use.
func Backend() string {
	if os.Getenv(PostgresURLEnv) != "" {
		return sqldb.DriverPostgres
	}
	return sqldb.DriverSQLite
}

// Open returns a migrated, empty database and registers its cleanup.
func Open(t *testing.T) *sqlx.DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	backend := Backend()
	dsn := os.Getenv(PostgresURLEnv)
	if backend == sqldb.DriverSQLite {
		dsn = filepath.Join(t.TempDir(), "test.db")
	}

	db, err := sqldb.Open(ctx, backend, dsn, sqldb.PoolConfig{MaxOpenConns: 4})
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() {
		_ = db.Close()
	})

	require.NoError(t, sqldb.Migrate(ctx, db.DB, backend), "failed to migrate test database")

	if backend == sqldb.DriverPostgres {
		for _, table := range tables {
			_, err := db.ExecContext(ctx, "TRUNCATE TABLE "+table)
			require.NoError(t, err, "failed to truncate %s", table)
		}
	}
	return db
}

// WithTx runs fn inside a transaction that is always rolled back.
func WithTx(t *testing.T, db *sqlx.DB, fn func(t *testing.T, tx *sqlx.Tx)) {
	t.Helper()

	tx, err := db.Beginx()
	require.NoError(t, err, "failed to begin transaction")
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Errorf("failed to roll back transaction: %v", err)
		}
	}()

	fn(t, tx)
}
