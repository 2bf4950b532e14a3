// Package logging configures zerolog for the client library. Binaries
// call Setup once; library packages derive per-component loggers from
// the global logger, so the binary's configuration governs everything.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel names a minimum severity.
type LogLevel string

const (
	// LevelDebug emits poll-by-poll and request-by-request detail.
	LevelDebug LogLevel = "debug"

	// LevelInfo emits operation-level events. The default.
	LevelInfo LogLevel = "info"

	// LevelWarn emits rate-limit pushback and retries.
	LevelWarn LogLevel = "warn"

	// LevelError emits failures only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum severity to emit.
	Level LogLevel

	// Pretty selects human-readable console output instead of JSON.
	Pretty bool

	// Output receives the log stream. Nil means os.Stderr.
	Output io.Writer
}

// DefaultConfig returns JSON logging at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it. Component
// loggers created before Setup keep writing to the old destination, so
// binaries call it first.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.Kitchen}
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	return log.Logger
}

// parseLevel maps a LogLevel onto zerolog's scale. Unknown values fall
// back to info rather than failing: a typo in a log flag should not
// silence a binary.
func parseLevel(level LogLevel) zerolog.Level {
	name := strings.ToLower(string(level))
	if name == "warning" {
		name = "warn"
	}
	parsed, err := zerolog.ParseLevel(name)
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

// NewLogger derives a logger tagged with a component name, e.g.
// "resolver" or "client".
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Individual poll attempts (URL, attempt number, observed status)
//   - Page fetches during pagination
//   - Back-off sleep durations
//   - Request construction (method, request ID)
//
// Info: Normal operation events
//   - Async operation resolved (redirect or completed)
//   - Job finished, batch scoring finished
//   - Client construction and configuration source
//
// Warn: Warning conditions that don't prevent operation
//   - Rate-limit pushback observed (429, Retry-After honored)
//   - Network-level retry attempts
//   - Polling still pending after a large share of the budget
//
// Error: Error conditions requiring attention
//   - Unexpected poll responses (non-200/303)
//   - Jobs reporting error/abort status
//   - Wait budget exhausted (timeout)
//   - Network retries exhausted
//   - Configuration errors
//
// Context Fields:
//   - url: request or pollable URL
//   - status_code: HTTP status code
//   - status: async status string from the server
//   - attempt: poll or retry attempt number
//   - elapsed: time spent polling so far
//   - max_wait: wall-clock budget for a resolution
//   - request_id: X-Request-ID of the outgoing request
//   - job_id / project_id / deployment_id: resource coordinates
//   - retry_after: server-requested rate-limit pause
