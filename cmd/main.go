// Package main is the entry point of the dstream daemon and its tools.
//
// Build:
//
//	go build -o build/dstream ./cmd
//
// Run:
//
//	./build/dstream config init
//	./build/dstream serve
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/tejashwikalptaru/dstream/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := NewRunner(RunnerOpts{})

	root := &cli.Command{
		Name:     "dstream",
		Usage:    "Play and cache tracks from a remote media server",
		Version:  app.GetVersionInfo().String(),
		Commands: runner.register(),
	}

	if err := root.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "dstream: %v\n", err)
		os.Exit(1)
	}
}
