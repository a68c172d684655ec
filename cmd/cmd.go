// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// serveCommand runs the daemon
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the playback daemon and its HTTP gateway",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Serve,
	}
}

func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search the server catalog; without a query lists random tracks",
		ArgsUsage: "[query]",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Search,
	}
}

// cacheCommand inspects and trims the download cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect the local download cache",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List cached tracks, most played first",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CacheList,
			},
			{
				Name:  "prune",
				Usage: "Remove all but the most played tracks",
				Flags: []cli.Flag{
					configFlag(),
					&cli.IntFlag{
						Name:     "keep",
						Aliases:  []string{"k"},
						Usage:    "Number of tracks to keep",
						Required: true,
					},
				},
				Action: r.CachePrune,
			},
		},
	}
}

func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the configuration file",
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Write the default configuration file",
				Flags:  []cli.Flag{configFlag()},
				Action: r.ConfigInit,
			},
			{
				Name:   "check",
				Usage:  "Validate the configuration file",
				Flags:  []cli.Flag{configFlag()},
				Action: r.ConfigCheck,
			},
		},
	}
}

func versionCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Print build information",
		Action: r.Version,
	}
}
