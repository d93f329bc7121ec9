// Package watcher reports debounced content changes of the record store and
// config files.
package watcher

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"graphloader/internal/shared/observability"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
	"lukechampine.com/blake3"
)

// sqlite companion files that change on every read.
var defaultExcludes = []string{"*-shm", "*-journal"}

type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	debounce   time.Duration
	include    []glob.Glob
	exclude    []glob.Glob
	onChange   func([]string)
	callbackMu sync.Mutex

	pending   map[string]time.Time
	pendingMu sync.Mutex
	timer     *time.Timer

	digests  map[string][32]byte
	digestMu sync.Mutex
}

// NewWatcher builds a watcher that calls onChange with the files whose
// content changed. exclude holds glob patterns matched against base names.
func NewWatcher(debounce time.Duration, exclude []string, onChange func([]string)) (*Watcher, error) {
	if onChange == nil {
		return nil, os.ErrInvalid
	}

	compiled := make([]glob.Glob, 0, len(exclude)+len(defaultExcludes))
	for _, pattern := range append(append([]string(nil), defaultExcludes...), exclude...) {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, g)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsWatcher: fsw,
		debounce:  debounce,
		exclude:   compiled,
		onChange:  onChange,
		pending:   make(map[string]time.Time),
		digests:   make(map[string][32]byte),
	}, nil
}

func (w *Watcher) SetDebounce(debounce time.Duration) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.debounce = debounce
}

// Watch follows the given files. Their directories are watched so that
// atomic replaces and sqlite WAL files are seen too.
func (w *Watcher) Watch(files []string) error {
	dirs := make(map[string]bool)
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return err
		}
		base := filepath.Base(abs)
		for _, pattern := range []string{glob.QuoteMeta(base), glob.QuoteMeta(base) + "-wal"} {
			g, err := glob.Compile(pattern)
			if err != nil {
				return err
			}
			w.include = append(w.include, g)
		}

		dir := filepath.Dir(abs)
		if !dirs[dir] {
			if err := w.fsWatcher.Add(dir); err != nil {
				return err
			}
			dirs[dir] = true
		}
		for _, tracked := range []string{abs, abs + "-wal"} {
			if sum, ok := fingerprint(tracked); ok {
				w.digestMu.Lock()
				w.digests[tracked] = sum
				w.digestMu.Unlock()
			}
		}
	}

	go w.run()
	return nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.tracks(event.Name) {
				continue
			}
			observability.StoreChangesTotal.Inc()

			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create ||
				event.Op&fsnotify.Remove == fsnotify.Remove ||
				event.Op&fsnotify.Rename == fsnotify.Rename {
				w.scheduleChange(event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) tracks(path string) bool {
	base := filepath.Base(path)
	for _, g := range w.exclude {
		if g.Match(base) {
			return false
		}
	}
	for _, g := range w.include {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = time.Now()

	if w.timer != nil {
		w.timer.Stop()
	}

	w.timer = time.AfterFunc(w.debounce, func() {
		w.flushChanges()
	})
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]time.Time)
	w.pendingMu.Unlock()

	changed := w.filterUnchanged(paths)
	if len(changed) > 0 {
		sort.Strings(changed)
		w.callbackMu.Lock()
		defer w.callbackMu.Unlock()
		w.onChange(changed)
	}
}

// filterUnchanged drops paths whose content digest did not move. A removed
// file counts as changed once.
func (w *Watcher) filterUnchanged(paths []string) []string {
	w.digestMu.Lock()
	defer w.digestMu.Unlock()

	changed := make([]string, 0, len(paths))
	for _, path := range paths {
		prev, known := w.digests[path]
		sum, ok := fingerprint(path)
		switch {
		case !ok && known:
			delete(w.digests, path)
			changed = append(changed, path)
		case ok && (!known || sum != prev):
			w.digests[path] = sum
			changed = append(changed, path)
		}
	}
	return changed
}

func fingerprint(path string) ([32]byte, bool) {
	f, err := os.Open(path)
	if err != nil {
		return [32]byte{}, false
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		slog.Warn("failed to hash watched file", "path", path, "error", err)
		return [32]byte{}, false
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum, true
}

func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	return w.fsWatcher.Close()
}
