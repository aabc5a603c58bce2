// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) initializer to build a Config with defaults.
// - Load layers defaults, an optional YAML file and MAPCHECK_ env vars.
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"
)

// DefaultDocsURL is where the plugin diagnostic points users.
const DefaultDocsURL = "https://docs.sentry.io/platforms/android/proguard/#gradle"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory check queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of diagnosis workers.
	WorkerCount int `koanf:"worker_count"`

	// InFlightLimit caps events being checked at once. 0 means unbounded.
	InFlightLimit int `koanf:"inflight_limit"`

	// ResultTTL is how long a stored diagnosis is kept.
	ResultTTL time.Duration `koanf:"result_ttl"`

	// ShutdownTimeout bounds graceful shutdown of the server and workers.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Features lists organization features enabled for every event, on top
	// of the ones sent with the request.
	Features []string `koanf:"features"`

	// DocsURL is linked from the incorrectly-configured-plugin diagnostic.
	DocsURL string `koanf:"docs_url"`

	DebugFiles DebugFiles `koanf:"debug_files"`
}

// DebugFiles configures the debug-file registry.
type DebugFiles struct {
	// Driver is the local store's database: sqlite or postgres.
	Driver string `koanf:"driver"`

	// DSN is a file path for sqlite or a connection string for postgres.
	DSN string `koanf:"dsn"`

	// RemoteURL, when set, sends mapping lookups to a remote registry
	// instead of the local store.
	RemoteURL string `koanf:"remote_url"`

	// Token authenticates against the remote registry.
	Token string `koanf:"token"`

	// Timeout bounds one remote lookup.
	Timeout time.Duration `koanf:"timeout"`
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
	drivers    = []string{"sqlite", "sqlite3", "postgres", "postgresql", "pgx"}
)

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		QueueSize:       10_000,
		WorkerCount:     runtime.NumCPU() * 2,
		InFlightLimit:   50_000,
		ResultTTL:       time.Hour,
		ShutdownTimeout: 30 * time.Second,
		DocsURL:         DefaultDocsURL,
		DebugFiles: DebugFiles{
			Driver:  "sqlite",
			DSN:     "mapcheck.db",
			Timeout: 10 * time.Second,
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case !slices.Contains(logLevels, strings.ToLower(c.LogLevel)):
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	case !slices.Contains(logFormats, strings.ToLower(c.LogFormat)):
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.InFlightLimit < 0:
		return fmt.Errorf("%w: inflight_limit must not be negative", ErrInvalidConfig)
	case c.ResultTTL <= 0:
		return fmt.Errorf("%w: result_ttl must be positive", ErrInvalidConfig)
	case !slices.Contains(drivers, strings.ToLower(c.DebugFiles.Driver)):
		return fmt.Errorf("%w: unknown debug_files.driver %q", ErrInvalidConfig, c.DebugFiles.Driver)
	case c.DebugFiles.DSN == "":
		return fmt.Errorf("%w: debug_files.dsn must not be empty", ErrInvalidConfig)
	}
	return nil
}
