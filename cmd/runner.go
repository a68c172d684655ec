package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/tejashwikalptaru/dstream/internal/config"
	"github.com/tejashwikalptaru/dstream/internal/logger"
)

// Runner holds the shared state of CLI commands and provides one method per action.
type Runner struct {
	output    io.Writer
	logOutput io.Writer

	// loaded by setup
	config *config.Config
	logger *slog.Logger
}

// RunnerOpts contains options for creating a Runner.
type RunnerOpts struct {
	Output    io.Writer
	LogOutput io.Writer
}

// NewRunner creates a Runner writing to stdout and logging to stderr by default.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stderr
	}
	return &Runner{output: opts.Output, logOutput: opts.LogOutput}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range []func(*Runner) *cli.Command{
		serveCommand, searchCommand, cacheCommand, configCommand, versionCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   config.DefaultPath(),
	}
}

// setup loads the configuration named by the --config flag and builds the logger.
// A missing file falls back to the defaults.
func (r *Runner) setup(cmd *cli.Command) error {
	path := cmd.String("config")

	cfg, err := config.Load(path)
	missing := errors.Is(err, fs.ErrNotExist)
	switch {
	case missing:
		cfg = config.DefaultConfig()
	case err != nil:
		return err
	}

	logCfg := logger.FromSettings(cfg.Log.Level, cfg.Log.Format)
	logCfg.Output = r.logOutput
	r.logger = logger.NewLogger(logCfg)
	r.config = cfg

	if missing {
		r.logger.Warn("config file not found, using defaults", slog.String("path", path))
	}
	return nil
}

func (r *Runner) writeJSON(data any) error {
	output, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if _, err := fmt.Fprintf(r.output, "%s\n", output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
