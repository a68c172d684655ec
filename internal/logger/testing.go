// Package logger provides test helpers for structured logging.
package logger

import (
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// NewTestLogger creates a logger for tests.
// By default, uses WARN level to keep test output quiet.
// Set TEST_DEBUG environment variable to enable debug logging in tests.
func NewTestLogger() *slog.Logger {
	level := charmlog.WarnLevel

	if os.Getenv("TEST_DEBUG") != "" {
		level = charmlog.DebugLevel
	}

	return slog.New(charmlog.NewWithOptions(os.Stdout, charmlog.Options{Level: level}))
}
