// Package config provides centralized configuration management for pgmerge.
// Connection and transfer settings come from environment variables with
// sensible defaults; per-table column subsets and identity key overrides come
// from an optional YAML file (see tables.go).
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Database DatabaseConfig
	Transfer TransferConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the connection string. Optional here because CLI flags can supply it.
	// postgres:// and postgresql:// use the PostgreSQL driver; sqlite:// and file: use SQLite.
	URL string `env:"DATABASE_URL" envAlt:"PGMERGE_DATABASE_URL"`

	// Schema is the PostgreSQL schema to operate on (default: public)
	Schema string `env:"PGMERGE_SCHEMA" default:"public"`

	// MaxConns is the maximum number of pooled connections (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// ConnectTimeout bounds connecting and the initial ping (default: 10s)
	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" default:"10s"`
}

// TransferConfig holds bulk copy and merge settings.
type TransferConfig struct {
	// Null is the CSV representation of NULL (default: empty string)
	Null string `env:"PGMERGE_NULL"`

	// TableTimeout is the maximum duration of one table's unit of work (default: 10m)
	TableTimeout time.Duration `env:"PGMERGE_TABLE_TIMEOUT" default:"10m"`

	// BatchSize is rows per multi-row INSERT for drivers without COPY (default: 500)
	BatchSize int `env:"PGMERGE_BATCH_SIZE" default:"500"`

	// TablesFile is the YAML per-table configuration path
	TablesFile string `env:"PGMERGE_CONFIG"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: warn)
	Level string `env:"LOG_LEVEL" default:"warn"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}
