package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/adhocore/gronx"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "TRACKER"

// ConfigFileEnv names an optional YAML/JSON/TOML config file.
const ConfigFileEnv = "TRACKER_CONFIG_FILE"

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from the config file.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults must be bound explicitly for Unmarshal to see them.
	for _, key := range []string{
		"database.url",
		"push.vapid_public_key",
		"push.vapid_private_key",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the cross-field rules that tags cannot express.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	g := gronx.New()
	for name, expr := range map[string]string{
		"scheduler.morning_digest_cron": cfg.Scheduler.MorningDigestCron,
		"scheduler.evening_digest_cron": cfg.Scheduler.EveningDigestCron,
	} {
		if !g.IsValid(expr) {
			return fmt.Errorf("validation failed: %s: invalid cron expression %q", name, expr)
		}
	}

	if _, err := cfg.Scheduler.LoadLocation(); err != nil {
		return fmt.Errorf("validation failed: scheduler.location: %w", err)
	}

	if cfg.Push.VAPIDPrivateKey != "" && cfg.Push.VAPIDPublicKey == "" {
		return errors.New("validation failed: push.vapid_public_key is required with push.vapid_private_key")
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5001)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.url", "tasktracker.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_lifetime", "5m")

	v.SetDefault("push.subject", "mailto:reminders@example.com")
	v.SetDefault("push.ttl_seconds", 3600)
	v.SetDefault("push.attempt_timeout", "10s")
	v.SetDefault("push.max_concurrency", 8)

	v.SetDefault("scheduler.tenant_id", "default")
	v.SetDefault("scheduler.location", "Local")
	v.SetDefault("scheduler.horizon", "24h")
	v.SetDefault("scheduler.catch_up_window", "30m")
	v.SetDefault("scheduler.reconcile_interval", "5m")
	v.SetDefault("scheduler.fire_timeout", "30s")
	v.SetDefault("scheduler.morning_digest_cron", "0 9 * * *")
	v.SetDefault("scheduler.evening_digest_cron", "0 18 * * *")
}
