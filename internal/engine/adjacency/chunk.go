package adjacency

import (
	"graphloader/internal/core/errors"
	"graphloader/internal/engine/batch"
)

// Chunk is one page's share of a sorted import pass. It owns its slices, so
// it stays valid after the worker's buffer is reused.
type Chunk struct {
	Page int
	// Keys holds the node id of every run, ascending.
	Keys []int64
	// Ends holds the exclusive end of every run in Targets.
	Ends       []int
	Targets    []int64
	RelIDs     []int64
	Properties [][]float64
}

func (c *Chunk) Len() int { return len(c.Targets) }

// Split cuts a sorted pass into per-page chunks. view is the keyed stride-4
// batch, targets/properties are aligned with it, and offsets[0:nodeCount]
// hold the exclusive end of every run.
func (b *Builder) Split(view []int64, targets []int64, properties [][]float64, offsets []int, nodeCount int) ([]Chunk, error) {
	if nodeCount == 0 {
		return nil, nil
	}
	if b.weights != nil && len(properties) != b.schema.Len() {
		return nil, errors.Newf(errors.CodeInternal,
			"expected %d property columns, got %d", b.schema.Len(), len(properties))
	}

	chunks := make([]Chunk, 0, 1)
	var cur *Chunk
	chunkStart := 0
	start := 0
	for k := 0; k < nodeCount; k++ {
		end := offsets[k]
		key := view[start*batch.Stride]
		if key < 0 || key >= b.nodeCount {
			return nil, errors.Newf(errors.CodeValidationError, "node id %d outside [0,%d)", key, b.nodeCount)
		}
		page := b.PageOf(key)
		if cur == nil || cur.Page != page {
			if cur != nil {
				b.fillChunk(cur, view, targets, properties, chunkStart, start)
			}
			chunks = append(chunks, Chunk{Page: page})
			cur = &chunks[len(chunks)-1]
			chunkStart = start
		}
		cur.Keys = append(cur.Keys, key)
		cur.Ends = append(cur.Ends, end-chunkStart)
		start = end
	}
	b.fillChunk(cur, view, targets, properties, chunkStart, start)

	for i := range chunks {
		for _, t := range chunks[i].Targets {
			if t < 0 || t >= b.nodeCount {
				return nil, errors.Newf(errors.CodeValidationError, "neighbor id %d outside [0,%d)", t, b.nodeCount)
			}
		}
	}
	return chunks, nil
}

func (b *Builder) fillChunk(c *Chunk, view []int64, targets []int64, properties [][]float64, from, to int) {
	c.Targets = append([]int64(nil), targets[from:to]...)
	c.RelIDs = make([]int64, to-from)
	for i := from; i < to; i++ {
		c.RelIDs[i-from] = view[i*batch.Stride+batch.SlotRelID]
	}
	if b.weights == nil {
		return
	}
	c.Properties = make([][]float64, len(properties))
	for k, col := range properties {
		c.Properties[k] = append([]float64(nil), col[from:to]...)
	}
}
