package adjacency

import (
	"encoding/binary"
	"math"

	"lukechampine.com/blake3"
)

// Page is the compressed form of one node range.
type Page struct {
	base    int64
	offsets []uint64
	data    []byte
	degrees []int32
	// entries is the per-node prefix sum of compressed entries; kept only when
	// properties are loaded, as it also addresses the value columns.
	entries []int
	values  [][]float64
	count   int64
}

func (p *Page) entryCount() int64 { return p.count }

// Store is the immutable compressed adjacency produced by a finished Builder.
// It is safe for concurrent readers.
type Store struct {
	nodeCount         int64
	relationshipCount int64
	pageShift         uint
	pageMask          int64
	keys              []string
	pages             []*Page
}

func (s *Store) NodeCount() int64 { return s.nodeCount }

// RelationshipCount is the number of stored entries after aggregation.
func (s *Store) RelationshipCount() int64 { return s.relationshipCount }

func (s *Store) PropertyKeys() []string { return append([]string(nil), s.keys...) }

func (s *Store) locate(node int64) (*Page, int, bool) {
	if node < 0 || node >= s.nodeCount {
		return nil, 0, false
	}
	return s.pages[node>>s.pageShift], int(node & s.pageMask), true
}

// Degree returns the number of neighbor entries of node, 0 for unknown ids.
func (s *Store) Degree(node int64) int {
	page, local, ok := s.locate(node)
	if !ok {
		return 0
	}
	switch {
	case page.degrees != nil:
		return int(page.degrees[local])
	case page.entries != nil:
		return page.entries[local+1] - page.entries[local]
	}
	n, err := runLength(page.data[page.offsets[local]:page.offsets[local+1]])
	if err != nil {
		return 0
	}
	return n
}

// Neighbors decodes the ascending neighbor ids of node.
func (s *Store) Neighbors(node int64) []int64 {
	page, local, ok := s.locate(node)
	if !ok {
		return nil
	}
	out, err := decodeRun(nil, page.data[page.offsets[local]:page.offsets[local+1]])
	if err != nil {
		return nil
	}
	return out
}

// ForEachNeighbor decodes the neighbors of node in ascending order and
// calls fn for each until fn returns false. No slice is allocated.
func (s *Store) ForEachNeighbor(node int64, fn func(target int64) bool) error {
	page, local, ok := s.locate(node)
	if !ok {
		return nil
	}
	return visitRun(page.data[page.offsets[local]:page.offsets[local+1]], fn)
}

// Properties returns the values of property key k aligned with Neighbors(node).
func (s *Store) Properties(node int64, k int) []float64 {
	page, local, ok := s.locate(node)
	if !ok || page.values == nil || k < 0 || k >= len(page.values) {
		return nil
	}
	from, to := page.entries[local], page.entries[local+1]
	return append([]float64(nil), page.values[k][from:to]...)
}

// SizeInBytes approximates the memory held by the compressed store.
func (s *Store) SizeInBytes() int64 {
	var total int64
	for _, p := range s.pages {
		total += int64(len(p.data)) + int64(len(p.offsets))*8 + int64(len(p.degrees))*4 + int64(len(p.entries))*8
		for _, col := range p.values {
			total += int64(len(col)) * 8
		}
	}
	return total
}

// Digest hashes the encoded pages and value columns. Two stores built from
// the same relationship set have the same digest.
func (s *Store) Digest() [32]byte {
	h := blake3.New(32, nil)
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}
	put(uint64(s.nodeCount))
	put(uint64(s.relationshipCount))
	for _, p := range s.pages {
		put(uint64(len(p.data)))
		_, _ = h.Write(p.data)
		for _, off := range p.offsets {
			put(off)
		}
		for _, col := range p.values {
			for _, v := range col {
				put(math.Float64bits(v))
			}
		}
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
