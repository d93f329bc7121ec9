package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

var (
	configPath  = flag.String("config", "./graphloader.toml", "Path to config file")
	orientation = flag.String("orientation", "", "Override import orientation (NATURAL, REVERSE, UNDIRECTED)")
	concurrency = flag.Int("concurrency", 0, "Override number of import workers")
	properties  = flag.Bool("properties", false, "Load configured relationship properties")
	seedNodes   = flag.Int64("seed-nodes", 0, "Replace the store with a generated graph of this many nodes")
	seedRels    = flag.Int("seed-rels", 0, "Number of relationships to generate with -seed-nodes")
	seed        = flag.Int64("seed", 1, "Random seed for -seed-nodes")
	trendPath   = flag.String("trend", "", "Write the run trend to this file (.tsv, .json or .md)")
	watch       = flag.Bool("watch", false, "Re-import when the store or config changes")
	serve       = flag.Bool("serve", false, "Serve /metrics and /health")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	version     = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "0.1.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("graphloader v%s\n", VERSION)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := options{
		ConfigPath:  *configPath,
		Orientation: *orientation,
		Concurrency: *concurrency,
		Properties:  *properties,
		SeedNodes:   *seedNodes,
		SeedRels:    *seedRels,
		Seed:        *seed,
		TrendPath:   *trendPath,
		Watch:       *watch,
		Serve:       *serve,
	}
	if err := run(ctx, opts, os.Stdout, logger); err != nil {
		slog.Error("graphloader failed", "error", err)
		os.Exit(1)
	}
}
