package adjacency

import (
	"cmp"
	"slices"

	"graphloader/internal/core/errors"
	"graphloader/internal/engine/property"
)

// PageBuilder accumulates the raw neighbor runs of one contiguous node range.
// Exactly one goroutine owns a page builder while the import runs.
type PageBuilder struct {
	index int
	base  int64
	size  int

	targets [][]int64
	relIDs  [][]int64
	degrees []int32

	finished bool
	page     *Page
}

func newPageBuilder(index int, base int64, size int, loadDegrees bool) *PageBuilder {
	p := &PageBuilder{
		index:   index,
		base:    base,
		size:    size,
		targets: make([][]int64, size),
		relIDs:  make([][]int64, size),
	}
	if loadDegrees {
		p.degrees = make([]int32, size)
	}
	return p
}

// accept appends every run of c to its node. Runs for a node already seen in
// an earlier chunk are appended, never overwritten.
func (p *PageBuilder) accept(c *Chunk) {
	start := 0
	for k, key := range c.Keys {
		end := c.Ends[k]
		local := int(key - p.base)
		p.targets[local] = append(p.targets[local], c.Targets[start:end]...)
		p.relIDs[local] = append(p.relIDs[local], c.RelIDs[start:end]...)
		if p.degrees != nil {
			p.degrees[local] += int32(end - start)
		}
		start = end
	}
}

// layout records how raw entries of a page map onto compressed entries.
// order lists raw entry indexes node by node, sorted by (neighbor, rel id);
// compressed entry e merges order[groups[e]:groups[e+1]]; node l owns
// entries [entries[l], entries[l+1]).
type layout struct {
	nodeStarts []int
	order      []int32
	groups     []int
	entries    []int
}

// finish sorts, merges and compresses the page. The result depends only on
// the set of accepted entries, not on their arrival order.
func (p *PageBuilder) finish(agg property.Aggregation) (*Page, *layout, error) {
	if p.finished {
		return nil, nil, errors.AddContext(
			errors.New(errors.CodeInternal, "page already finished"), errors.CtxPage, p.index)
	}

	total := 0
	for _, t := range p.targets {
		total += len(t)
	}
	lay := &layout{
		nodeStarts: make([]int, p.size+1),
		order:      make([]int32, 0, total),
		groups:     make([]int, 0, total+1),
		entries:    make([]int, p.size+1),
	}
	page := &Page{
		base:    p.base,
		offsets: make([]uint64, p.size+1),
		data:    make([]byte, 0, total*2),
	}
	if p.degrees != nil {
		page.degrees = p.degrees
	}

	dedupe := agg.Deduplicates()
	sorted := make([]int64, 0)
	for l := 0; l < p.size; l++ {
		targets := p.targets[l]
		relIDs := p.relIDs[l]
		lay.nodeStarts[l] = len(lay.order)
		lay.entries[l] = len(lay.groups)
		page.offsets[l] = uint64(len(page.data))

		nodeOrder := lay.order[len(lay.order) : len(lay.order)+len(targets)]
		for i := range nodeOrder {
			nodeOrder[i] = int32(i)
		}
		slices.SortFunc(nodeOrder, func(a, b int32) int {
			if c := cmp.Compare(targets[a], targets[b]); c != 0 {
				return c
			}
			return cmp.Compare(relIDs[a], relIDs[b])
		})
		lay.order = lay.order[:len(lay.order)+len(targets)]

		sorted = sorted[:0]
		base := lay.nodeStarts[l]
		for i, idx := range nodeOrder {
			t := targets[idx]
			if dedupe && i > 0 && t == sorted[len(sorted)-1] {
				continue
			}
			sorted = append(sorted, t)
			lay.groups = append(lay.groups, base+i)
		}
		page.data = appendRun(page.data, sorted)
		if page.degrees != nil {
			page.degrees[l] = int32(len(sorted))
		}

		p.targets[l] = nil
		p.relIDs[l] = nil
	}
	lay.nodeStarts[p.size] = len(lay.order)
	lay.entries[p.size] = len(lay.groups)
	lay.groups = append(lay.groups, len(lay.order))
	page.offsets[p.size] = uint64(len(page.data))
	page.entries = lay.entries
	page.count = int64(lay.entries[p.size])

	p.finished = true
	p.page = page
	return page, lay, nil
}
