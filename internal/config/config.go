package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Push      PushConfig      `mapstructure:"push" validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error fatal"`
	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	// AllowedOrigins is passed to the live notification websocket handshake.
	// Empty means same-origin only.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	// Driver selects the SQL backend: "postgres" (pgx) or "sqlite" (modernc).
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres sqlite"`
	// URL is a PostgreSQL connection URL or a SQLite file path/DSN.
	URL          string        `mapstructure:"url" validate:"required"`
	MaxOpenConns int           `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnLifetime time.Duration `mapstructure:"conn_lifetime" validate:"gte=0"`
}

// PushConfig contains Web Push (VAPID) delivery settings.
type PushConfig struct {
	VAPIDPublicKey  string `mapstructure:"vapid_public_key"`
	VAPIDPrivateKey string `mapstructure:"vapid_private_key" validate:"required_with=VAPIDPublicKey"`
	// Subject is the VAPID contact, a mailto: address or https URL.
	Subject string `mapstructure:"subject" validate:"required"`
	// TTLSeconds is how long the push service should retain an undelivered message.
	TTLSeconds int `mapstructure:"ttl_seconds" validate:"gte=0"`
	// AttemptTimeout bounds a single delivery attempt to one subscriber.
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout" validate:"gt=0"`
	// MaxConcurrency limits simultaneous delivery attempts per dispatch.
	MaxConcurrency int `mapstructure:"max_concurrency" validate:"gte=1"`
}

// SchedulerConfig contains reminder scheduling settings.
type SchedulerConfig struct {
	TenantID string `mapstructure:"tenant_id" validate:"required"`
	// Location is an IANA zone name used to interpret task dates and times.
	// "Local" uses the process time zone.
	Location          string        `mapstructure:"location" validate:"required"`
	Horizon           time.Duration `mapstructure:"horizon" validate:"gt=0"`
	CatchUpWindow     time.Duration `mapstructure:"catch_up_window" validate:"gte=0"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval" validate:"gt=0"`
	FireTimeout       time.Duration `mapstructure:"fire_timeout" validate:"gt=0"`
	MorningDigestCron string        `mapstructure:"morning_digest_cron" validate:"required"`
	EveningDigestCron string        `mapstructure:"evening_digest_cron" validate:"required"`
}

// PushEnabled reports whether VAPID keys are configured.
func (c PushConfig) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

// LoadLocation resolves the configured scheduling time zone.
func (c SchedulerConfig) LoadLocation() (*time.Location, error) {
	if c.Location == "" || c.Location == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Location)
}
