package config

import (
	"fmt"
	"math"
	"strings"

	"graphloader/internal/core/errors"
	"graphloader/internal/engine/importer"

	"github.com/gobwas/glob"
)

// Validate runs every check and returns all failures.
func Validate(cfg *Config) []error {
	checks := []func(*Config) error{
		validateVersion,
		validateImport,
		validateProperties,
		validateStore,
		validateScan,
		validateHistory,
	}
	var errs []error
	for _, check := range checks {
		if err := check(cfg); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func validate(cfg *Config) error {
	if errs := Validate(cfg); len(errs) > 0 {
		return errors.Wrap(errs[0], errors.CodeConfiguration, "invalid configuration")
	}
	return nil
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateImport(cfg *Config) error {
	if _, err := cfg.Orientation(); err != nil {
		return fmt.Errorf("import.orientation must be one of NATURAL, REVERSE, UNDIRECTED, got %q", cfg.Import.Orientation)
	}
	if cfg.Import.Concurrency < 1 {
		return fmt.Errorf("import.concurrency must be >= 1, got %d", cfg.Import.Concurrency)
	}
	ps := cfg.Import.PageSize
	if ps <= 0 || ps&(ps-1) != 0 {
		return fmt.Errorf("import.page_size must be a positive power of two, got %d", ps)
	}
	if cfg.Import.BatchSize <= 0 || cfg.Import.BatchSize > math.MaxInt32 {
		return fmt.Errorf("import.batch_size must be between 1 and %d, got %d", math.MaxInt32, cfg.Import.BatchSize)
	}
	if o, _ := cfg.Orientation(); o == importer.Undirected && cfg.Import.IndexInverse {
		return fmt.Errorf("import.index_inverse has no effect with UNDIRECTED orientation")
	}
	if _, err := cfg.RelationshipAggregation(); err != nil {
		return fmt.Errorf("import.aggregation: %w", err)
	}
	return nil
}

func validateProperties(cfg *Config) error {
	for i, p := range cfg.Properties {
		if p.Key == "" {
			return fmt.Errorf("properties[%d].key must not be empty", i)
		}
	}
	if _, err := cfg.Schema(); err != nil {
		return fmt.Errorf("properties: %w", err)
	}
	return nil
}

func validateStore(cfg *Config) error {
	if cfg.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	for _, pattern := range cfg.Store.RelationshipTypes {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("store.relationship_types contains invalid pattern %q: %v", pattern, err)
		}
	}
	return nil
}

func validateScan(cfg *Config) error {
	if cfg.Scan.MaxBatchesPerSecond < 0 {
		return fmt.Errorf("scan.max_batches_per_second must not be negative")
	}
	if cfg.Scan.Burst < 0 {
		return fmt.Errorf("scan.burst must not be negative")
	}
	return nil
}

func validateHistory(cfg *Config) error {
	if !cfg.History.IsEnabled() {
		return nil
	}
	if cfg.History.Path == "" {
		return fmt.Errorf("history.path must not be empty when history is enabled")
	}
	if strings.EqualFold(cfg.History.Path, cfg.Store.Path) {
		return fmt.Errorf("history.path and store.path share the same file %q", cfg.History.Path)
	}
	return nil
}
