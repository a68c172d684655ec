package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/tejashwikalptaru/dstream/internal/app"
	"github.com/tejashwikalptaru/dstream/internal/config"
	"github.com/tejashwikalptaru/dstream/internal/domain"
)

// Serve runs the daemon until the context is canceled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.setup(cmd); err != nil {
		return err
	}
	r.logger.Info(app.GetVersionInfo().FullString())

	application, err := app.NewApplication(ctx, app.Options{Config: r.config, Logger: r.logger})
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}
	defer func() {
		if err := application.Shutdown(); err != nil {
			r.logger.Warn("shutdown error", slog.Any("error", err))
		}
	}()

	return application.Run(ctx)
}

// Search prints the catalog tracks matching the query.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	if err := r.setup(cmd); err != nil {
		return err
	}

	query := strings.Join(cmd.Args().Slice(), " ")
	tracks, err := app.NewCatalog(r.config, r.logger).Search(ctx, query)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks)
	}
	if len(tracks) == 0 {
		return r.writePlain("no tracks found\n")
	}

	w := tabwriter.NewWriter(r.output, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tARTIST\tTITLE\tALBUM\tYEAR\tTIME")
	for _, t := range tracks {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Artist, t.Title, t.Album, t.Year, t.Duration)
	}
	return w.Flush()
}

// CacheList prints the cache records.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	if err := r.setup(cmd); err != nil {
		return err
	}

	resolver, repo, err := app.OpenResolver(r.config, r.logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	records, err := resolver.Records(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(records)
	}
	if len(records) == 0 {
		return r.writePlain("cache is empty\n")
	}

	w := tabwriter.NewWriter(r.output, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PLAYS\tSIZE\tLAST PLAYED\tTRACK\tFILE")
	for _, rec := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			rec.PlayCount, fileSize(rec.LocalURI), lastPlayed(rec.LastPlayedAt), recordLabel(rec), rec.LocalURI)
	}
	return w.Flush()
}

// CachePrune keeps the most played records and deletes the rest.
func (r *Runner) CachePrune(ctx context.Context, cmd *cli.Command) error {
	if err := r.setup(cmd); err != nil {
		return err
	}

	resolver, repo, err := app.OpenResolver(r.config, r.logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	removed, err := resolver.Prune(ctx, int(cmd.Int("keep")))
	if err != nil {
		return err
	}
	return r.writePlain("removed %s cached %s\n", humanize.Comma(int64(removed)), plural(removed, "track"))
}

// ConfigInit writes the default configuration file.
func (r *Runner) ConfigInit(_ context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := config.CreateFile(path); err != nil {
		return err
	}
	return r.writePlain("wrote %s\n", path)
}

// ConfigCheck loads and validates the configuration file.
func (r *Runner) ConfigCheck(_ context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return r.writePlain("%s is valid\n", path)
}

// Version prints build information.
func (r *Runner) Version(_ context.Context, _ *cli.Command) error {
	return r.writePlain("%s\n", app.GetVersionInfo().FullString())
}

func fileSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "missing"
	}
	return humanize.Bytes(uint64(info.Size()))
}

func lastPlayed(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

func recordLabel(rec domain.CacheRecord) string {
	switch {
	case rec.Artist != "" && rec.Title != "":
		return rec.Artist + " - " + rec.Title
	case rec.Title != "":
		return rec.Title
	default:
		return rec.RemoteURI
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
