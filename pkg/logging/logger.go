// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Service is the value of the service field on every log line.
const Service = "catalog-mirror"

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(cfg.Level.Zerolog())

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.DateTime}
	}

	log.Logger = zerolog.New(out).With().
		Timestamp().
		Str("service", Service).
		Logger()
	return log.Logger
}

// ParseLevel validates a level name from configuration.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

// Zerolog maps the level to zerolog. Unknown names map to info.
func (l LogLevel) Zerolog() zerolog.Level {
	parsed, err := ParseLevel(string(l))
	if err != nil {
		return zerolog.InfoLevel
	}
	switch parsed {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger returns the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss/stale, url)
//   - Spacing waits
//   - Pages that are not paginated
//
// Info: Normal operation events
//   - Phase start/finish with counts
//   - New and updated mods
//   - Scheduler runs, startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Retry attempts
//   - Unreadable cache entries (request falls through to the network)
//   - Entities skipped after an upstream error
//   - Paginated walks ended early
//
// Error: Error conditions requiring attention
//   - Requests that exhausted their retries
//   - Asset ingest failures
//   - Store commit failures
//
// Context Fields:
//   - component: client, ratelimit, cache, pagination, bucket, store, mirror, lock, metrics, scheduler
//   - url: request URL (also the cache key)
//   - status: HTTP status code
//   - attempts: attempts spent on a request
//   - game_id, category_id, mod_id, file_id: entity being processed
//   - hash: bucket blob hash
