package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"graphloader/internal/core/errors"
	"graphloader/internal/data/queue"
	"graphloader/internal/engine/adjacency"
	"graphloader/internal/engine/batch"
	"graphloader/internal/engine/property"
	"graphloader/internal/engine/scan"
	"graphloader/internal/shared/observability"
	"graphloader/internal/shared/util"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	defaultInboxCapacity = 64
	ownerDequeueBatch    = 32
	ownerDequeueWait     = 50 * time.Millisecond
)

type Options struct {
	PageSize    int
	BatchSize   int
	LoadDegrees bool
	// IndexInverse builds a second store keyed by the opposite endpoint.
	IndexInverse  bool
	InboxCapacity int
	Limiter       *util.Limiter
	Logger        *slog.Logger
}

// Graph is the result of a successful run.
type Graph struct {
	Orientation       Orientation
	NodeCount         int64
	RelationshipCount int64
	Forward           *adjacency.Store
	Inverse           *adjacency.Store
}

// Coordinator runs one import at a time over a record store.
type Coordinator struct {
	records scan.RecordStore
	reader  property.Reader
	schema  property.Schema
	opts    Options
	logger  *slog.Logger

	mu       sync.Mutex
	running  bool
	builders []*adjacency.Builder
	graph    *Graph

	relationshipCounter atomic.Int64
}

func NewCoordinator(records scan.RecordStore, reader property.Reader, schema property.Schema, opts Options) (*Coordinator, error) {
	if records == nil {
		return nil, errors.New(errors.CodeConfiguration, "record store is required")
	}
	if opts.PageSize <= 0 || opts.PageSize&(opts.PageSize-1) != 0 {
		return nil, errors.Newf(errors.CodeConfiguration, "page size must be a positive power of two, got %d", opts.PageSize)
	}
	if opts.BatchSize <= 0 {
		return nil, errors.Newf(errors.CodeConfiguration, "batch size must be positive, got %d", opts.BatchSize)
	}
	if opts.InboxCapacity <= 0 {
		opts.InboxCapacity = defaultInboxCapacity
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{records: records, reader: reader, schema: schema, opts: opts, logger: logger}, nil
}

// Graph returns the result of the last successful run, or nil.
func (c *Coordinator) Graph() *Graph {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graph
}

// FinishedPages reports how many pages of the last run's builders have been
// compressed.
func (c *Coordinator) FinishedPages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, b := range c.builders {
		total += b.FinishedPages()
	}
	return total
}

// RelationshipCount is the live value of the relationship counter.
func (c *Coordinator) RelationshipCount() int64 { return c.relationshipCounter.Load() }

type routedChunk struct {
	builder int
	chunk   adjacency.Chunk
}

// pageRouter is the Sink handed to importers: it splits each pass by page
// and forwards the chunks to the goroutine owning that page.
type pageRouter struct {
	builder *adjacency.Builder
	slot    int
	inboxes []*queue.MemoryQueue[routedChunk]
}

func (r *pageRouter) AddAll(ctx context.Context, view []int64, targets []int64, properties [][]float64, offsets []int, nodeCount int) error {
	chunks, err := r.builder.Split(view, targets, properties, offsets, nodeCount)
	if err != nil {
		return err
	}
	for _, ch := range chunks {
		inbox := r.inboxes[ch.Page%len(r.inboxes)]
		item := routedChunk{builder: r.slot, chunk: ch}
		if inbox.TryEnqueue(item) != queue.EnqueueAccepted {
			observability.InboxFullTotal.Inc()
			if err := inbox.Enqueue(ctx, item); err != nil {
				return err
			}
		}
		observability.InboxDepth.Set(float64(inbox.Len()))
	}
	return nil
}

// Run imports every relationship of the record store and returns the value
// of the relationship counter. On failure no store is published.
func (c *Coordinator) Run(ctx context.Context, orientation Orientation, loadProperties bool, concurrency int) (int64, error) {
	if !orientation.Valid() {
		return 0, errors.Newf(errors.CodeConfiguration, "unexpected orientation: %s", orientation)
	}
	if concurrency <= 0 {
		return 0, errors.Newf(errors.CodeConfiguration, "concurrency must be positive, got %d", concurrency)
	}
	if orientation == Undirected && c.opts.IndexInverse {
		return 0, errors.New(errors.CodeConfiguration, "inverse index is redundant for UNDIRECTED orientation")
	}
	loadProperties = loadProperties && c.schema.Len() > 0
	if loadProperties && c.reader == nil {
		return 0, errors.New(errors.CodeConfiguration, "property reader is required when loading properties")
	}

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return 0, errors.New(errors.CodeConfiguration, "import already running")
	}
	c.running = true
	c.graph = nil
	c.builders = nil
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	ctx, span := observability.Tracer.Start(ctx, "importer.Run", trace.WithAttributes(
		attribute.String("orientation", orientation.String()),
		attribute.Int("concurrency", concurrency),
		attribute.Bool("load_properties", loadProperties),
	))
	defer span.End()

	started := time.Now()
	c.relationshipCounter.Store(0)

	nodeCount, err := c.records.NodeCount(ctx)
	if err != nil {
		return 0, c.fail(errors.Wrap(err, errors.CodeScan, "read node count"))
	}

	orientations := []Orientation{orientation}
	if c.opts.IndexInverse {
		orientations = append(orientations, orientation.Inverse())
	}
	builders := make([]*adjacency.Builder, len(orientations))
	for i := range orientations {
		b, err := adjacency.NewBuilder(adjacency.Config{
			NodeCount:      nodeCount,
			PageSize:       c.opts.PageSize,
			LoadDegrees:    c.opts.LoadDegrees,
			LoadProperties: loadProperties,
			Schema:         c.schema,
		})
		if err != nil {
			return 0, c.fail(err)
		}
		builders[i] = b
	}
	c.mu.Lock()
	c.builders = builders
	c.mu.Unlock()

	partitions, err := c.records.Partitions(ctx, concurrency)
	if err != nil {
		return 0, c.fail(errors.Wrap(err, errors.CodeScan, "partition record store"))
	}

	inboxes := make([]*queue.MemoryQueue[routedChunk], concurrency)
	for i := range inboxes {
		inboxes[i] = queue.NewMemoryQueue[routedChunk](c.opts.InboxCapacity)
	}

	// Resolve every worker's strategies before any goroutine starts so that a
	// bad orientation never reaches a scanner.
	workerImports := make([][]ImportFunc, len(partitions))
	for w := range partitions {
		funcs := make([]ImportFunc, len(builders))
		for i, b := range builders {
			router := &pageRouter{builder: b, slot: i, inboxes: inboxes}
			fn, err := New(router, c.schema).Imports(orientations[i], loadProperties)
			if err != nil {
				return 0, c.fail(err)
			}
			funcs[i] = fn
		}
		workerImports[w] = funcs
	}

	c.logger.Debug("import started",
		"orientation", orientation,
		"concurrency", concurrency,
		"nodes", nodeCount,
		"pages", builders[0].NumberOfPages(),
		"partitions", len(partitions),
	)

	g, gctx := errgroup.WithContext(ctx)
	for owner := range inboxes {
		g.Go(recoverWorker(owner, func() error {
			return c.runOwner(gctx, owner, inboxes[owner], builders)
		}))
	}
	g.Go(func() error {
		sg, sctx := errgroup.WithContext(gctx)
		for w, part := range partitions {
			sg.Go(recoverWorker(w, func() error {
				if err := c.runScanner(sctx, w, part, workerImports[w]); err != nil {
					return errors.AddContext(err, errors.CtxWorker, w)
				}
				return nil
			}))
		}
		if err := sg.Wait(); err != nil {
			return err
		}
		for _, inbox := range inboxes {
			_ = inbox.Close()
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		for _, inbox := range inboxes {
			_ = inbox.Close()
		}
		return 0, c.fail(errors.Wrap(err, errors.CodeAborted, "import aborted"))
	}

	stores, err := c.finish(ctx, builders, concurrency)
	if err != nil {
		return 0, c.fail(err)
	}

	total := c.relationshipCounter.Load()
	graph := &Graph{
		Orientation:       orientation,
		NodeCount:         nodeCount,
		RelationshipCount: total,
		Forward:           stores[0],
	}
	if len(stores) > 1 {
		graph.Inverse = stores[1]
	}
	c.mu.Lock()
	c.graph = graph
	c.mu.Unlock()

	var size int64
	for _, s := range stores {
		size += s.SizeInBytes()
	}
	observability.CompressedBytes.Set(float64(size))
	observability.ImportDuration.WithLabelValues(orientation.String()).Observe(time.Since(started).Seconds())
	c.logger.Info("import finished",
		"orientation", orientation,
		"relationships", total,
		"bytes", size,
		"duration", time.Since(started).Round(time.Millisecond),
	)
	return total, nil
}

func (c *Coordinator) runScanner(ctx context.Context, worker int, part scan.Partition, imports []ImportFunc) error {
	ctx, span := observability.Tracer.Start(ctx, "importer.scanPartition", trace.WithAttributes(
		attribute.Int("worker", worker),
		attribute.Int("partition", part.Index),
	))
	defer span.End()

	sc, err := c.records.Scanner(part)
	if err != nil {
		return errors.AddContext(err, errors.CtxPartition, part.Index)
	}
	defer sc.Close()

	buf, err := batch.NewBuffer(c.opts.BatchSize)
	if err != nil {
		return err
	}

	var imported int64
	for {
		if err := c.opts.Limiter.Wait(ctx, 1); err != nil {
			return err
		}
		more, err := sc.NextBatch(ctx, buf)
		if err != nil {
			return errors.AddContext(errors.Wrap(err, errors.CodeScan, "scan partition"), errors.CtxPartition, part.Index)
		}
		if buf.Len() > 0 {
			started := time.Now()
			for i, fn := range imports {
				packed, err := fn(ctx, buf, c.reader)
				if err != nil {
					return errors.AddContext(err, errors.CtxPartition, part.Index)
				}
				n := int64(Head(packed))
				c.relationshipCounter.Add(n)
				imported += n
				observability.RelationshipsImportedTotal.Add(float64(n))
				observability.BatchesTotal.WithLabelValues(passLabel(i)).Inc()
			}
			observability.BatchDuration.Observe(time.Since(started).Seconds())
		}
		if !more {
			break
		}
	}
	c.logger.Debug("partition scanned", "worker", worker, "partition", part.Index, "relationships", imported)
	return nil
}

func (c *Coordinator) runOwner(ctx context.Context, owner int, inbox *queue.MemoryQueue[routedChunk], builders []*adjacency.Builder) error {
	for {
		items, err := inbox.DequeueBatch(ctx, ownerDequeueBatch, ownerDequeueWait)
		for _, item := range items {
			if aerr := builders[item.builder].Accept(item.chunk); aerr != nil {
				return errors.AddContext(aerr, errors.CtxWorker, owner)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// finish compresses every page of every builder, then assembles the stores.
func (c *Coordinator) finish(ctx context.Context, builders []*adjacency.Builder, concurrency int) ([]*adjacency.Store, error) {
	ctx, span := observability.Tracer.Start(ctx, "importer.finish")
	defer span.End()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, b := range builders {
		for idx := 0; idx < b.NumberOfPages(); idx++ {
			g.Go(recoverWorker(idx, func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := b.FinishPage(idx); err != nil {
					return errors.AddContext(err, errors.CtxPage, idx)
				}
				observability.PagesCompressedTotal.Inc()
				return nil
			}))
		}
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, errors.CodeAborted, "finish pages")
	}

	stores := make([]*adjacency.Store, len(builders))
	for i, b := range builders {
		s, err := b.FinishPreparation()
		if err != nil {
			return nil, err
		}
		stores[i] = s
	}
	return stores, nil
}

func (c *Coordinator) fail(err error) error {
	observability.ImportFailuresTotal.WithLabelValues(string(errors.CodeOf(err))).Inc()
	c.logger.Error("import failed", "error", err)
	return err
}

func passLabel(i int) string {
	if i == 0 {
		return "forward"
	}
	return "inverse"
}

func recoverWorker(id int, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.AddContext(
					errors.New(errors.CodeInternal, fmt.Sprintf("worker panic: %v", r)),
					errors.CtxWorker, id,
				)
			}
		}()
		return fn()
	}
}
