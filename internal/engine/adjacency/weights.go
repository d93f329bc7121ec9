package adjacency

import (
	"graphloader/internal/core/errors"
	"graphloader/internal/engine/property"
)

// WeightBuilder mirrors the adjacency pages with one value column per page and
// property key. It is fed by the same chunks as the adjacency pages, so value
// i of a node's run lines up with neighbor i.
type WeightBuilder struct {
	schema property.Schema
	pages  []*weightPage
}

type weightPage struct {
	// raw[k][l] holds the unmerged values of key k for local node l.
	raw      [][][]float64
	finished bool
}

func newWeightBuilder(schema property.Schema, pageSizes []int) *WeightBuilder {
	w := &WeightBuilder{schema: schema, pages: make([]*weightPage, len(pageSizes))}
	for i, size := range pageSizes {
		raw := make([][][]float64, schema.Len())
		for k := range raw {
			raw[k] = make([][]float64, size)
		}
		w.pages[i] = &weightPage{raw: raw}
	}
	return w
}

func (w *WeightBuilder) accept(c *Chunk, base int64) {
	wp := w.pages[c.Page]
	start := 0
	for k, key := range c.Keys {
		end := c.Ends[k]
		local := int(key - base)
		for col := range wp.raw {
			wp.raw[col][local] = append(wp.raw[col][local], c.Properties[col][start:end]...)
		}
		start = end
	}
}

// finish merges the page's values using the layout of the already finished
// adjacency page and returns one column per key.
func (w *WeightBuilder) finish(page int, lay *layout) ([][]float64, error) {
	wp := w.pages[page]
	if wp.finished {
		return nil, errors.AddContext(
			errors.New(errors.CodeInternal, "weight page already finished"), errors.CtxPage, page)
	}
	if lay == nil {
		return nil, errors.AddContext(
			errors.New(errors.CodeInternal, "adjacency page must finish before its weights"), errors.CtxPage, page)
	}

	total := len(lay.groups) - 1
	columns := make([][]float64, len(wp.raw))
	for k, perNode := range wp.raw {
		agg := w.schema.Aggregations[k]
		out := make([]float64, total)
		for l, values := range perNode {
			for e := lay.entries[l]; e < lay.entries[l+1]; e++ {
				from, to := lay.groups[e], lay.groups[e+1]
				v := values[lay.order[from]]
				for pos := from + 1; pos < to; pos++ {
					v = agg.Merge(v, values[lay.order[pos]])
				}
				out[e] = v
			}
			perNode[l] = nil
		}
		columns[k] = out
	}
	wp.finished = true
	return columns, nil
}
