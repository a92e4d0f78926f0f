package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/tasktracker-api/internal/config"
	"github.com/phrazzld/tasktracker-api/internal/platform/sqldb"
)

// connectTimeout bounds the initial connection and ping.
const connectTimeout = 10 * time.Second

// setupAppDatabase opens the configured database and applies pool limits.
func setupAppDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	db, err := sqldb.Open(ctx, cfg.Database.Driver, cfg.Database.URL, sqldb.PoolConfig{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		ConnLifetime: cfg.Database.ConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	logger.Info("database connection established", slog.String("driver", cfg.Database.Driver))
	return db, nil
}
