// Package adjacency builds the compressed, page-sharded adjacency store.
//
// The node id space is cut into pages of a fixed power-of-two size. Each page
// has its own PageBuilder (and, when properties are loaded, its own weight
// page). During preparation a page is written only by the goroutine that owns
// it; Split and Accept let callers route per-page chunks to those owners.
// After every pass has been delivered, each page is sorted, deduplicated
// according to the relationship aggregation and delta-encoded.
package adjacency

import (
	"context"
	"fmt"
	"math/bits"
	"sync/atomic"

	"graphloader/internal/core/errors"
	"graphloader/internal/engine/property"
)

type Config struct {
	NodeCount      int64
	PageSize       int
	LoadDegrees    bool
	LoadProperties bool
	Schema         property.Schema
}

type Builder struct {
	nodeCount int64
	pageSize  int
	pageShift uint
	schema    property.Schema

	pages   []*PageBuilder
	weights *WeightBuilder
	values  [][][]float64

	finishedPages atomic.Int64
}

func NewBuilder(cfg Config) (*Builder, error) {
	if cfg.NodeCount < 0 {
		return nil, errors.Newf(errors.CodeConfiguration, "node count must not be negative, got %d", cfg.NodeCount)
	}
	if cfg.PageSize <= 0 || cfg.PageSize&(cfg.PageSize-1) != 0 {
		return nil, errors.Newf(errors.CodeConfiguration, "page size must be a positive power of two, got %d", cfg.PageSize)
	}

	b := &Builder{
		nodeCount: cfg.NodeCount,
		pageSize:  cfg.PageSize,
		pageShift: uint(bits.TrailingZeros(uint(cfg.PageSize))),
		schema:    cfg.Schema,
	}
	numberOfPages := int((cfg.NodeCount + int64(cfg.PageSize) - 1) / int64(cfg.PageSize))
	b.pages = make([]*PageBuilder, numberOfPages)
	sizes := make([]int, numberOfPages)
	for idx := range b.pages {
		base := int64(idx) << b.pageShift
		size := cfg.PageSize
		if rest := cfg.NodeCount - base; rest < int64(size) {
			size = int(rest)
		}
		b.pages[idx] = newPageBuilder(idx, base, size, cfg.LoadDegrees)
		sizes[idx] = size
	}
	if cfg.LoadProperties && cfg.Schema.Len() > 0 {
		b.weights = newWeightBuilder(cfg.Schema, sizes)
		b.values = make([][][]float64, numberOfPages)
	}
	return b, nil
}

func (b *Builder) NumberOfPages() int { return len(b.pages) }

func (b *Builder) PageSize() int { return b.pageSize }

func (b *Builder) NodeCount() int64 { return b.nodeCount }

func (b *Builder) Schema() property.Schema { return b.schema }

func (b *Builder) PageOf(node int64) int { return int(node >> b.pageShift) }

func (b *Builder) FinishedPages() int { return int(b.finishedPages.Load()) }

// Accept applies a chunk to its page. Only the page's owner may call it.
func (b *Builder) Accept(c Chunk) error {
	if c.Page < 0 || c.Page >= len(b.pages) {
		return errors.Newf(errors.CodeInternal, "chunk for unknown page %d", c.Page)
	}
	p := b.pages[c.Page]
	if p.finished {
		return errors.AddContext(
			errors.New(errors.CodeInternal, "chunk delivered after page finished"), errors.CtxPage, c.Page)
	}
	p.accept(&c)
	if b.weights != nil {
		b.weights.accept(&c, p.base)
	}
	return nil
}

// AddAll splits one sorted pass and applies it directly. It is meant for a
// single goroutine that owns every page; concurrent importers route the
// result of Split to page owners instead.
func (b *Builder) AddAll(ctx context.Context, view []int64, targets []int64, properties [][]float64, offsets []int, nodeCount int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chunks, err := b.Split(view, targets, properties, offsets, nodeCount)
	if err != nil {
		return err
	}
	for _, c := range chunks {
		if err := b.Accept(c); err != nil {
			return err
		}
	}
	return nil
}

// FinishPage compresses one page and then its weight columns. It must be
// called once per page, after every owner has exited. Distinct pages may be
// finished concurrently.
func (b *Builder) FinishPage(idx int) error {
	p := b.pages[idx]
	_, lay, err := p.finish(b.schema.Relationship)
	if err != nil {
		return err
	}
	if b.weights != nil {
		cols, err := b.weights.finish(idx, lay)
		if err != nil {
			return err
		}
		b.values[idx] = cols
	} else {
		p.page.entries = nil
	}
	b.finishedPages.Add(1)
	return nil
}

// FinishPreparation finishes every page not finished yet and assembles the
// immutable store. It must be called at most once, after all workers are done.
func (b *Builder) FinishPreparation() (*Store, error) {
	for idx, p := range b.pages {
		if p.finished {
			continue
		}
		if err := b.FinishPage(idx); err != nil {
			return nil, err
		}
	}

	s := &Store{
		nodeCount: b.nodeCount,
		pageShift: b.pageShift,
		pageMask:  int64(b.pageSize - 1),
		pages:     make([]*Page, len(b.pages)),
	}
	if b.weights != nil {
		s.keys = append([]string(nil), b.schema.Keys...)
	}
	for idx, p := range b.pages {
		page := p.page
		if b.values != nil {
			page.values = b.values[idx]
		}
		s.pages[idx] = page
		s.relationshipCount += page.entryCount()
	}
	return s, nil
}

func (b *Builder) String() string {
	return fmt.Sprintf("adjacency.Builder{nodes=%d pages=%d pageSize=%d}", b.nodeCount, len(b.pages), b.pageSize)
}
