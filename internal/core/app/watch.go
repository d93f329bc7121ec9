package app

import (
	"context"

	"graphloader/internal/core/config"
	"graphloader/internal/core/watcher"
)

// StartWatcher re-imports whenever the record store or the config file
// changes content.
func (a *App) StartWatcher(ctx context.Context) error {
	cfg := a.Config()
	w, err := watcher.NewWatcher(cfg.Watch.Debounce, nil, func(paths []string) {
		a.HandleChanges(ctx, paths)
	})
	if err != nil {
		return err
	}
	files := []string{a.Store.Path()}
	if a.configPath != "" {
		files = append(files, a.configPath)
	}
	if err := w.Watch(files); err != nil {
		_ = w.Close()
		return err
	}
	a.activeWatcher = w
	a.logger.Info("watching for changes", "files", files, "debounce", cfg.Watch.Debounce)
	return nil
}

func (a *App) HandleChanges(ctx context.Context, paths []string) {
	if ctx.Err() != nil {
		return
	}
	a.logger.Info("detected changes", "count", len(paths), "paths", paths)

	for _, path := range paths {
		if a.configPath == "" || path != a.configPath {
			continue
		}
		a.reloadConfig()
		break
	}

	run, err := a.RunImport(ctx)
	if err != nil {
		a.logger.Error("re-import failed", "run", run.ID, "error", err)
		return
	}
	a.logger.Info("re-import finished", "run", run.ID, "relationships", run.RelationshipCount, "duration", run.Duration)
}

// reloadConfig swaps in the changed config. An invalid file keeps the
// previous config; store and history locations are fixed for the
// lifetime of the app.
func (a *App) reloadConfig() {
	next, err := config.Load(a.configPath)
	if err != nil {
		a.logger.Warn("ignoring invalid config change", "path", a.configPath, "error", err)
		return
	}
	paths, err := config.ResolvePaths(next, a.paths.BaseDir)
	if err == nil && (paths.StorePath != a.paths.StorePath || paths.HistoryPath != a.paths.HistoryPath) {
		a.logger.Warn("store and history paths cannot change while running; restart to apply",
			"store", paths.StorePath, "history", paths.HistoryPath)
	}
	a.stateMu.Lock()
	a.cfg = next
	a.stateMu.Unlock()
	a.logger.Info("config reloaded", "path", a.configPath)
}
