package store

import (
	"context"
	"fmt"

	"graphloader/internal/engine/batch"
	"graphloader/internal/engine/scan"
)

// rowScanner pages through one rowid range in id order.
type rowScanner struct {
	store *Store
	part  scan.Partition
	next  int64
	done  bool
}

func (r *rowScanner) NextBatch(ctx context.Context, buf *batch.Buffer) (bool, error) {
	buf.Reset()
	for !r.done && !buf.IsFull() {
		if err := r.fill(ctx, buf); err != nil {
			return false, err
		}
	}
	return !r.done, nil
}

func (r *rowScanner) fill(ctx context.Context, buf *batch.Buffer) error {
	limit := buf.Cap() - buf.Len()
	rows, err := r.store.db.QueryContext(ctx, `
SELECT id, source, target, type, property_ref
FROM relationships
WHERE id >= ? AND id < ?
ORDER BY id
LIMIT ?`, r.next, r.part.End, limit)
	if err != nil {
		return fmt.Errorf("query partition %d: %w", r.part.Index, err)
	}
	defer rows.Close()

	read := 0
	for rows.Next() {
		var (
			id, source, target, ref int64
			relType                 string
		)
		if err := rows.Scan(&id, &source, &target, &relType, &ref); err != nil {
			return fmt.Errorf("scan relationship row: %w", err)
		}
		read++
		r.next = id + 1
		if r.store.matchesType(relType) {
			buf.Add(source, target, ref, id)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate partition %d: %w", r.part.Index, err)
	}
	if read < limit || r.next >= r.part.End {
		r.done = true
	}
	return nil
}

func (r *rowScanner) Close() error { return nil }
