package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

type ResolvedPaths struct {
	BaseDir     string
	StorePath   string
	HistoryPath string
}

// ResolvePaths anchors relative store and history paths at baseDir, usually
// the directory holding the config file.
func ResolvePaths(cfg *Config, baseDir string) (ResolvedPaths, error) {
	if strings.TrimSpace(baseDir) == "" {
		return ResolvedPaths{}, fmt.Errorf("base directory must not be empty")
	}
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return ResolvedPaths{}, fmt.Errorf("resolve base directory %q: %w", baseDir, err)
	}
	return ResolvedPaths{
		BaseDir:     filepath.Clean(base),
		StorePath:   ResolveRelative(base, cfg.Store.Path),
		HistoryPath: ResolveRelative(base, cfg.History.Path),
	}, nil
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}
