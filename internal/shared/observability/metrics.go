package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	RelationshipsImportedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graphloader_relationships_imported_total",
		Help: "Total number of relationship entries handed to adjacency builders.",
	})

	BatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graphloader_batches_total",
		Help: "Total number of buffers imported, by pass.",
	}, []string{"pass"})

	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "graphloader_batch_seconds",
		Help:    "Time spent importing one filled buffer.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	})

	PagesCompressedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graphloader_pages_compressed_total",
		Help: "Total number of adjacency pages finished and encoded.",
	})

	ImportDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "graphloader_import_seconds",
		Help:    "Wall time of a complete import run.",
		Buckets: prometheus.DefBuckets,
	}, []string{"orientation"})

	ImportFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graphloader_import_failures_total",
		Help: "Total number of aborted import runs, by error code.",
	}, []string{"code"})

	InboxDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "graphloader_inbox_depth",
		Help: "Page chunks waiting in owner inboxes, sampled on enqueue.",
	})

	InboxFullTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graphloader_inbox_full_total",
		Help: "Total number of chunks that found their owner inbox full and had to wait.",
	})

	CompressedBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "graphloader_compressed_bytes",
		Help: "Approximate size of the last built adjacency store.",
	})

	StoreChangesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graphloader_store_changes_total",
		Help: "Total number of record store file events received by the watcher.",
	})
)
