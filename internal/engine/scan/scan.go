// Package scan describes how relationship records are read out of a record
// store in disjoint partitions.
package scan

import (
	"context"

	"graphloader/internal/engine/batch"
)

// Partition is a half-open range [Start, End) of record positions.
type Partition struct {
	Index int
	Start int64
	End   int64
}

func (p Partition) Len() int64 { return p.End - p.Start }

// Scanner fills buffers from one partition. NextBatch resets buf, appends up
// to buf.Cap() records and reports whether the partition has more records.
// A partition is never read by two scanners.
type Scanner interface {
	NextBatch(ctx context.Context, buf *batch.Buffer) (bool, error)
	Close() error
}

// RecordStore is the source of relationship records.
type RecordStore interface {
	NodeCount(ctx context.Context) (int64, error)
	Partitions(ctx context.Context, n int) ([]Partition, error)
	Scanner(p Partition) (Scanner, error)
}

// SplitRange cuts [lo, hi) into at most n contiguous, non-empty partitions of
// near-equal size.
func SplitRange(lo, hi int64, n int) []Partition {
	total := hi - lo
	if total <= 0 || n <= 0 {
		return nil
	}
	if int64(n) > total {
		n = int(total)
	}
	parts := make([]Partition, n)
	size, rest := total/int64(n), total%int64(n)
	start := lo
	for i := range parts {
		end := start + size
		if int64(i) < rest {
			end++
		}
		parts[i] = Partition{Index: i, Start: start, End: end}
		start = end
	}
	return parts
}
