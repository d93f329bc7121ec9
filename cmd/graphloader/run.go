package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"graphloader/internal/core/app"
	"graphloader/internal/core/config"
	"graphloader/internal/data/history"
	"graphloader/internal/shared/observability"
	"graphloader/internal/shared/util"
	"graphloader/internal/ui/cli"
	"graphloader/internal/ui/report"
)

const trendWindow = 50

type options struct {
	ConfigPath  string
	Orientation string
	Concurrency int
	Properties  bool
	SeedNodes   int64
	SeedRels    int
	Seed        int64
	TrendPath   string
	Watch       bool
	Serve       bool
}

// loadConfig reads the config file, falling back to defaults when the
// file does not exist. The returned path is empty in that case.
func loadConfig(path string) (*config.Config, string, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Warn("config file not found, using defaults", "path", path)
		cfg := config.Default()
		config.ApplyEnvOverrides(cfg)
		return cfg, "", nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func applyFlags(cfg *config.Config, opts options) error {
	if o := strings.TrimSpace(opts.Orientation); o != "" {
		cfg.Import.Orientation = o
		if _, err := cfg.Orientation(); err != nil {
			return err
		}
	}
	if opts.Concurrency > 0 {
		cfg.Import.Concurrency = opts.Concurrency
	}
	if opts.Properties {
		cfg.Import.LoadProperties = true
	}
	return nil
}

func run(ctx context.Context, opts options, stdout io.Writer, logger *slog.Logger) error {
	cfg, cfgPath, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	if err := applyFlags(cfg, opts); err != nil {
		return err
	}

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Observability.OTLPEndpoint, cfg.Observability.ServiceName)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	a, err := app.New(cfg, cfgPath, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if opts.SeedNodes > 0 {
		if err := a.Seed(ctx, opts.SeedNodes, opts.SeedRels, opts.Seed); err != nil {
			return err
		}
	}

	if opts.Serve {
		server := cli.NewObservabilityServer(cfg.Observability.MetricsAddress, app.NewHealthService(a))
		if err := server.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Stop(stopCtx)
		}()
	}

	a.SetUpdateHandler(func(u app.Update) {
		fmt.Fprintln(stdout, report.RenderSummary(u.Run, util.ReadHeapStats()))
		if opts.TrendPath != "" {
			if err := writeTrend(ctx, a, opts.TrendPath); err != nil {
				logger.Warn("failed to write trend", "path", opts.TrendPath, "error", err)
			}
		}
	})

	_, importErr := a.RunImport(ctx)
	if !opts.Watch && !opts.Serve {
		return importErr
	}
	if importErr != nil {
		logger.Error("initial import failed", "error", importErr)
	}

	if opts.Watch {
		if err := a.StartWatcher(ctx); err != nil {
			return err
		}
	}
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

func writeTrend(ctx context.Context, a *app.App, path string) error {
	runs, err := a.RecentRuns(context.WithoutCancel(ctx), trendWindow)
	if err != nil {
		return err
	}
	return report.WriteTrend(path, history.BuildTrend(runs))
}
