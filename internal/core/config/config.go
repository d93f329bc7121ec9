package config

import (
	"time"

	"graphloader/internal/engine/importer"
	"graphloader/internal/engine/property"
)

type Config struct {
	Version       int           `toml:"version"`
	Import        Import        `toml:"import"`
	Properties    []Property    `toml:"properties"`
	Store         Store         `toml:"store"`
	Scan          Scan          `toml:"scan"`
	History       History       `toml:"history"`
	Observability Observability `toml:"observability"`
	Watch         Watch         `toml:"watch"`
}

type Import struct {
	Orientation    string `toml:"orientation"`
	LoadProperties bool   `toml:"load_properties"`
	LoadDegrees    bool   `toml:"load_degrees"`
	IndexInverse   bool   `toml:"index_inverse"`
	Concurrency    int    `toml:"concurrency"`
	PageSize       int    `toml:"page_size"`
	BatchSize      int    `toml:"batch_size"`
	Aggregation    string `toml:"aggregation"`
	InboxCapacity  int    `toml:"inbox_capacity"`
}

type Property struct {
	Key         string  `toml:"key"`
	Default     float64 `toml:"default"`
	Aggregation string  `toml:"aggregation"`
}

type Store struct {
	Path              string        `toml:"path"`
	RelationshipTypes []string      `toml:"relationship_types"`
	BusyTimeout       time.Duration `toml:"busy_timeout"`
}

type Scan struct {
	MaxBatchesPerSecond float64 `toml:"max_batches_per_second"`
	Burst               int     `toml:"burst"`
}

type History struct {
	Enabled *bool  `toml:"enabled"`
	Path    string `toml:"path"`
}

func (h History) IsEnabled() bool { return h.Enabled == nil || *h.Enabled }

type Observability struct {
	MetricsAddress string `toml:"metrics_address"`
	OTLPEndpoint   string `toml:"otlp_endpoint"`
	ServiceName    string `toml:"service_name"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}

// Orientation parses import.orientation.
func (c *Config) Orientation() (importer.Orientation, error) {
	return importer.ParseOrientation(c.Import.Orientation)
}

// RelationshipAggregation parses import.aggregation.
func (c *Config) RelationshipAggregation() (property.Aggregation, error) {
	return property.ParseAggregation(c.Import.Aggregation)
}

// KeySpecs converts the [[properties]] entries. Key ids are left at
// property.NoSuchKey; the record store resolves them by name.
func (c *Config) KeySpecs() ([]property.KeySpec, error) {
	specs := make([]property.KeySpec, len(c.Properties))
	for i, p := range c.Properties {
		agg, err := property.ParseAggregation(p.Aggregation)
		if err != nil {
			return nil, err
		}
		specs[i] = property.KeySpec{Name: p.Key, ID: property.NoSuchKey, Default: p.Default, Aggregation: agg}
	}
	return specs, nil
}

// Schema resolves the property layout, including aggregation conflicts.
func (c *Config) Schema() (property.Schema, error) {
	rel, err := c.RelationshipAggregation()
	if err != nil {
		return property.Schema{}, err
	}
	specs, err := c.KeySpecs()
	if err != nil {
		return property.Schema{}, err
	}
	return property.NewSchema(rel, specs)
}
