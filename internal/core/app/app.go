// Package app wires configuration, the record store, the import coordinator
// and run history into one long-lived loader.
package app

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"graphloader/internal/core/config"
	"graphloader/internal/core/errors"
	"graphloader/internal/core/ports"
	"graphloader/internal/core/watcher"
	"graphloader/internal/data/history"
	"graphloader/internal/data/store"
	"graphloader/internal/engine/importer"
	"graphloader/internal/engine/property"
	"graphloader/internal/shared/util"
)

// Update is emitted after every import attempt.
type Update struct {
	Run   history.Run
	Graph *importer.Graph
}

type App struct {
	configPath string
	paths      config.ResolvedPaths
	logger     *slog.Logger

	Store   *store.Store
	History ports.HistoryStore

	importMu sync.Mutex

	stateMu sync.RWMutex
	cfg     *config.Config
	graph   *importer.Graph
	lastRun *history.Run

	updateMu sync.RWMutex
	onUpdate func(Update)

	activeWatcher *watcher.Watcher
}

// New opens the record store and, when enabled, the history database.
// Relative paths resolve against the config file's directory, or the
// working directory when configPath is empty.
func New(cfg *config.Config, configPath string, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New(errors.CodeConfiguration, "config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	baseDir := filepath.Dir(configPath)
	if configPath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		baseDir = cwd
	} else if abs, err := filepath.Abs(configPath); err == nil {
		configPath = abs
	}
	paths, err := config.ResolvePaths(cfg, baseDir)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConfiguration, "resolve paths")
	}

	s, err := store.Open(store.Options{
		Path:              paths.StorePath,
		RelationshipTypes: cfg.Store.RelationshipTypes,
		BusyTimeout:       cfg.Store.BusyTimeout,
	})
	if err != nil {
		return nil, err
	}

	a := &App{
		configPath: configPath,
		paths:      paths,
		logger:     logger,
		Store:      s,
		cfg:        cfg,
	}

	if cfg.History.IsEnabled() {
		h, err := history.Open(paths.HistoryPath)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		a.History = h
	}
	return a, nil
}

func (a *App) Close() error {
	var firstErr error
	if a.activeWatcher != nil {
		if err := a.activeWatcher.Close(); err != nil {
			firstErr = err
		}
	}
	if a.History != nil {
		if err := a.History.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := a.Store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (a *App) Config() *config.Config {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	return a.cfg
}

func (a *App) Paths() config.ResolvedPaths { return a.paths }

// Graph returns the result of the latest successful import.
func (a *App) Graph() *importer.Graph {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	return a.graph
}

// LastRun returns the latest import attempt of this process.
func (a *App) LastRun() (history.Run, bool) {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	if a.lastRun == nil {
		return history.Run{}, false
	}
	return *a.lastRun, true
}

func (a *App) SetUpdateHandler(handler func(Update)) {
	a.updateMu.Lock()
	defer a.updateMu.Unlock()
	a.onUpdate = handler
}

func (a *App) emitUpdate(update Update) {
	a.updateMu.RLock()
	handler := a.onUpdate
	a.updateMu.RUnlock()
	if handler != nil {
		handler(update)
	}
}

// Seed replaces the store content with a generated graph.
func (a *App) Seed(ctx context.Context, nodes int64, rels int, seed int64) error {
	if err := a.Store.Seed(ctx, nodes, rels, seed); err != nil {
		return err
	}
	a.logger.Info("seeded record store", "path", a.Store.Path(), "nodes", nodes, "relationships", rels)
	return nil
}

// RunImport loads the store into compressed adjacency using the current
// config. Imports are serialized; the attempt is recorded in history
// whether or not it succeeds.
func (a *App) RunImport(ctx context.Context) (history.Run, error) {
	a.importMu.Lock()
	defer a.importMu.Unlock()

	cfg := a.Config()
	orientation, err := cfg.Orientation()
	if err != nil {
		return history.Run{}, err
	}
	concurrency := cfg.Import.Concurrency

	coordinator, err := a.newCoordinator(ctx, cfg)
	if err != nil {
		return history.Run{}, err
	}

	start := time.Now()
	run := history.NewRun(orientation.String(), concurrency, start)
	run.StorePath = a.Store.Path()

	total, runErr := coordinator.Run(ctx, orientation, cfg.Import.LoadProperties, concurrency)
	run.Duration = time.Since(start)

	var graph *importer.Graph
	if runErr != nil {
		run.Status = history.StatusFailed
		run.Error = runErr.Error()
	} else {
		graph = coordinator.Graph()
		run.Status = history.StatusSucceeded
		run.NodeCount = graph.NodeCount
		run.RelationshipCount = total
		run.CompressedBytes = graph.Forward.SizeInBytes()
		if graph.Inverse != nil {
			run.CompressedBytes += graph.Inverse.SizeInBytes()
		}
		digest := graph.Forward.Digest()
		run.Digest = hex.EncodeToString(digest[:])
	}

	if a.History != nil {
		// history must not fail an import that already happened
		if err := a.History.SaveRun(context.WithoutCancel(ctx), run); err != nil {
			a.logger.Warn("failed to record import run", "run", run.ID, "error", err)
		}
	}

	a.stateMu.Lock()
	a.lastRun = &run
	if graph != nil {
		a.graph = graph
	}
	a.stateMu.Unlock()

	a.emitUpdate(Update{Run: run, Graph: graph})
	return run, runErr
}

func (a *App) newCoordinator(ctx context.Context, cfg *config.Config) (*importer.Coordinator, error) {
	specs, err := cfg.KeySpecs()
	if err != nil {
		return nil, err
	}
	specs, err = a.Store.ResolveKeys(ctx, specs)
	if err != nil {
		return nil, err
	}
	for _, spec := range specs {
		if spec.ID == property.NoSuchKey {
			a.logger.Debug("property key not present in store, using default", "key", spec.Name, "default", spec.Default)
		}
	}
	relAgg, err := cfg.RelationshipAggregation()
	if err != nil {
		return nil, err
	}
	schema, err := property.NewSchema(relAgg, specs)
	if err != nil {
		return nil, err
	}

	var reader property.Reader
	if cfg.Import.LoadProperties {
		reader = property.NewStoreReader(a.Store)
	}

	return importer.NewCoordinator(a.Store, reader, schema, importer.Options{
		PageSize:      cfg.Import.PageSize,
		BatchSize:     cfg.Import.BatchSize,
		LoadDegrees:   cfg.Import.LoadDegrees,
		IndexInverse:  cfg.Import.IndexInverse,
		InboxCapacity: cfg.Import.InboxCapacity,
		Limiter:       util.NewLimiter(cfg.Scan.MaxBatchesPerSecond, cfg.Scan.Burst),
		Logger:        a.logger,
	})
}

// RecentRuns returns up to limit runs, oldest first. Without a history
// database only the runs of this process are known.
func (a *App) RecentRuns(ctx context.Context, limit int) ([]history.Run, error) {
	if a.History != nil {
		return a.History.LoadRuns(ctx, limit)
	}
	if run, ok := a.LastRun(); ok {
		return []history.Run{run}, nil
	}
	return nil, nil
}
