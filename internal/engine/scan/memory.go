package scan

import (
	"context"
	"sync"

	"graphloader/internal/core/errors"
	"graphloader/internal/engine/batch"
)

// Record is one relationship as stored.
type Record struct {
	ID          int64
	Source      int64
	Target      int64
	PropertyRef int64
}

// MemoryStore serves records from a slice. Positions are slice indexes.
type MemoryStore struct {
	Nodes   int64
	Records []Record

	// FailAt makes the scanner of the given partition fail. By default it
	// fails on its first batch; FailAfter delays the failure until that many
	// batches were served.
	FailAt    map[int]error
	FailAfter map[int]int

	mu     sync.Mutex
	opened map[int]bool
}

var _ RecordStore = (*MemoryStore)(nil)

func (s *MemoryStore) NodeCount(context.Context) (int64, error) { return s.Nodes, nil }

func (s *MemoryStore) Partitions(_ context.Context, n int) ([]Partition, error) {
	if n <= 0 {
		return nil, errors.Newf(errors.CodeConfiguration, "partition count must be positive, got %d", n)
	}
	return SplitRange(0, int64(len(s.Records)), n), nil
}

func (s *MemoryStore) Scanner(p Partition) (Scanner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened == nil {
		s.opened = make(map[int]bool)
	}
	if s.opened[p.Index] {
		return nil, errors.AddContext(
			errors.New(errors.CodeScan, "partition already claimed"), errors.CtxPartition, p.Index)
	}
	s.opened[p.Index] = true
	if p.Start < 0 || p.End > int64(len(s.Records)) || p.Start > p.End {
		return nil, errors.Newf(errors.CodeScan, "partition [%d,%d) outside store", p.Start, p.End)
	}
	return &memoryScanner{
		records:   s.Records[p.Start:p.End],
		fail:      s.FailAt[p.Index],
		failAfter: s.FailAfter[p.Index],
	}, nil
}

type memoryScanner struct {
	records   []Record
	pos       int
	served    int
	fail      error
	failAfter int
}

func (m *memoryScanner) NextBatch(ctx context.Context, buf *batch.Buffer) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if m.fail != nil && m.served >= m.failAfter {
		return false, errors.Wrap(m.fail, errors.CodeScan, "read records")
	}
	m.served++
	buf.Reset()
	for m.pos < len(m.records) && !buf.IsFull() {
		r := m.records[m.pos]
		buf.Add(r.Source, r.Target, r.PropertyRef, r.ID)
		m.pos++
	}
	return m.pos < len(m.records), nil
}

func (m *memoryScanner) Close() error { return nil }
