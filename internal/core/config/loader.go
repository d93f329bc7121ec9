package config

import (
	"os"
	"runtime"
	"strings"
	"time"

	"graphloader/internal/core/errors"

	"github.com/BurntSushi/toml"
)

const (
	DefaultPageSize      = 4096
	DefaultBatchSize     = 10000
	DefaultInboxCapacity = 64
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeConfiguration, "read config"), errors.CtxPath, path)
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeConfiguration, "decode config"), errors.CtxPath, path)
	}

	applyDefaults(&cfg)
	normalize(&cfg)
	ApplyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	normalize(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Import.Orientation) == "" {
		cfg.Import.Orientation = "NATURAL"
	}
	if cfg.Import.Concurrency <= 0 {
		cfg.Import.Concurrency = runtime.NumCPU()
	}
	if cfg.Import.PageSize == 0 {
		cfg.Import.PageSize = DefaultPageSize
	}
	if cfg.Import.BatchSize == 0 {
		cfg.Import.BatchSize = DefaultBatchSize
	}
	if strings.TrimSpace(cfg.Import.Aggregation) == "" {
		cfg.Import.Aggregation = "DEFAULT"
	}
	if cfg.Import.InboxCapacity <= 0 {
		cfg.Import.InboxCapacity = DefaultInboxCapacity
	}

	if strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = "graph.db"
	}
	if cfg.Store.BusyTimeout <= 0 {
		cfg.Store.BusyTimeout = 5 * time.Second
	}

	if cfg.Scan.MaxBatchesPerSecond > 0 && cfg.Scan.Burst <= 0 {
		cfg.Scan.Burst = 1
	}

	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = "graphloader-history.db"
	}

	if strings.TrimSpace(cfg.Observability.MetricsAddress) == "" {
		cfg.Observability.MetricsAddress = "127.0.0.1:9464"
	}
	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "graphloader"
	}

	// Default debounce if not set.
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
}

func normalize(cfg *Config) {
	cfg.Import.Orientation = strings.ToUpper(strings.TrimSpace(cfg.Import.Orientation))
	cfg.Import.Aggregation = strings.ToUpper(strings.TrimSpace(cfg.Import.Aggregation))
	cfg.Store.Path = strings.TrimSpace(cfg.Store.Path)
	cfg.History.Path = strings.TrimSpace(cfg.History.Path)
	cfg.Observability.OTLPEndpoint = strings.TrimSpace(cfg.Observability.OTLPEndpoint)
	for i := range cfg.Properties {
		p := &cfg.Properties[i]
		p.Key = strings.TrimSpace(p.Key)
		p.Aggregation = strings.ToUpper(strings.TrimSpace(p.Aggregation))
	}
	if len(cfg.Store.RelationshipTypes) == 0 {
		return
	}
	types := make([]string, 0, len(cfg.Store.RelationshipTypes))
	for _, t := range cfg.Store.RelationshipTypes {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		types = append(types, t)
	}
	cfg.Store.RelationshipTypes = types
}
