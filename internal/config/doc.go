// Package config handles configuration loading, parsing, and validation
// from environment variables (TRACKER_ prefix) and an optional config file.
// It provides type-safe access to server, database, push delivery and
// scheduler settings while keeping configuration details separate from
// business logic.
package config
