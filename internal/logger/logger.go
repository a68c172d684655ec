// Package logger provides structured logging configuration using log/slog.
// Records are rendered by charmbracelet/log, which implements slog.Handler.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// EnvLogLevel overrides the configured log level when set.
const EnvLogLevel = "DSTREAM_LOG_LEVEL"

// Config holds logger configuration.
type Config struct {
	Level  slog.Level
	Format string // "text" or "json"
	Output io.Writer
}

// NewLogger creates a configured slog.Logger.
func NewLogger(cfg Config) *slog.Logger {
	w := cfg.Output
	if w == nil {
		w = os.Stderr
	}

	opts := charmlog.Options{
		Level:           charmlog.Level(cfg.Level),
		ReportTimestamp: true,
		// Caller location is only worth the noise at debug level
		ReportCaller: cfg.Level <= slog.LevelDebug,
	}
	if cfg.Format == "json" {
		opts.Formatter = charmlog.JSONFormatter
	}

	return slog.New(charmlog.NewWithOptions(w, opts))
}

// ParseLevel maps DEBUG, INFO, WARN, WARNING and ERROR (any case) to a slog level.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// DefaultConfig returns the default logger configuration.
// Parses the DSTREAM_LOG_LEVEL environment variable to set the log level.
// Default: INFO
func DefaultConfig() Config {
	level := slog.LevelInfo
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		level = lvl
	}

	return Config{
		Level:  level,
		Format: "text",
	}
}

// FromSettings builds a Config from textual settings; the environment wins over level.
func FromSettings(level, format string) Config {
	cfg := DefaultConfig()
	if os.Getenv(EnvLogLevel) == "" {
		if lvl, ok := ParseLevel(level); ok {
			cfg.Level = lvl
		}
	}
	if format == "json" {
		cfg.Format = "json"
	}
	return cfg
}
