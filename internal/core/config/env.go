package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: GRAPHLOADER_[SECTION]_[KEY] (e.g., GRAPHLOADER_IMPORT_CONCURRENCY).
func ApplyEnvOverrides(cfg *Config) {
	// Import
	setEnvString(&cfg.Import.Orientation, "GRAPHLOADER_IMPORT_ORIENTATION")
	setEnvBool(&cfg.Import.LoadProperties, "GRAPHLOADER_IMPORT_LOAD_PROPERTIES")
	setEnvBool(&cfg.Import.LoadDegrees, "GRAPHLOADER_IMPORT_LOAD_DEGREES")
	setEnvBool(&cfg.Import.IndexInverse, "GRAPHLOADER_IMPORT_INDEX_INVERSE")
	setEnvInt(&cfg.Import.Concurrency, "GRAPHLOADER_IMPORT_CONCURRENCY")
	setEnvInt(&cfg.Import.PageSize, "GRAPHLOADER_IMPORT_PAGE_SIZE")
	setEnvInt(&cfg.Import.BatchSize, "GRAPHLOADER_IMPORT_BATCH_SIZE")
	setEnvString(&cfg.Import.Aggregation, "GRAPHLOADER_IMPORT_AGGREGATION")

	// Store
	setEnvString(&cfg.Store.Path, "GRAPHLOADER_STORE_PATH")
	setEnvDuration(&cfg.Store.BusyTimeout, "GRAPHLOADER_STORE_BUSY_TIMEOUT")

	// Scan
	setEnvFloat64(&cfg.Scan.MaxBatchesPerSecond, "GRAPHLOADER_SCAN_MAX_BATCHES_PER_SECOND")
	setEnvInt(&cfg.Scan.Burst, "GRAPHLOADER_SCAN_BURST")

	// History
	setEnvString(&cfg.History.Path, "GRAPHLOADER_HISTORY_PATH")
	if val, ok := os.LookupEnv("GRAPHLOADER_HISTORY_ENABLED"); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			log.Printf("Applying env override: GRAPHLOADER_HISTORY_ENABLED=%s", val)
			cfg.History.Enabled = &b
		}
	}

	// Observability
	setEnvString(&cfg.Observability.MetricsAddress, "GRAPHLOADER_OBSERVABILITY_METRICS_ADDRESS")
	setEnvString(&cfg.Observability.OTLPEndpoint, "GRAPHLOADER_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvString(&cfg.Observability.ServiceName, "GRAPHLOADER_OBSERVABILITY_SERVICE_NAME")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "GRAPHLOADER_WATCH_DEBOUNCE")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		log.Printf("Applying env override: %s=%s", key, val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = d
		}
	}
}
