// Package property resolves relationship property references into value
// columns aligned with a sorted relationship batch.
package property

import (
	"fmt"
	"math"

	"graphloader/internal/core/errors"
	"graphloader/internal/engine/batch"
)

// NoSuchKey marks a requested property key that does not exist in the store.
const NoSuchKey = -1

// Reader loads the relationship properties for one sorted batch.
//
// batch is a stride-4 view as produced by batch.Buffer and batchLength the
// number of valid tuples in it. The result holds one column per requested key
// with one value per tuple, in batch order. Absent values take the key's
// default; every value is normalized for its key's aggregation.
type Reader interface {
	ReadProperty(
		batch []int64,
		batchLength int,
		keyIDs []int,
		defaults []float64,
		aggregations []Aggregation,
		atLeastOnePropertyToLoad bool,
	) ([][]float64, error)
}

// Store is the backing lookup used by StoreReader. Lookup returns, for every
// known reference in refs, the values it carries for the requested key ids.
// References missing from the result are unknown to the store.
type Store interface {
	Lookup(refs []int64, keyIDs []int) (map[int64]map[int]float64, error)
}

// StoreReader resolves references against a Store with one lookup per batch.
type StoreReader struct {
	store Store
}

var _ Reader = (*StoreReader)(nil)

func NewStoreReader(store Store) *StoreReader {
	return &StoreReader{store: store}
}

func (r *StoreReader) ReadProperty(
	view []int64,
	batchLength int,
	keyIDs []int,
	defaults []float64,
	aggregations []Aggregation,
	atLeastOnePropertyToLoad bool,
) ([][]float64, error) {
	columns := defaultColumns(batchLength, defaults, aggregations)
	if !atLeastOnePropertyToLoad || batchLength == 0 {
		return columns, nil
	}

	refs := make([]int64, 0, batchLength)
	seen := make(map[int64]struct{}, batchLength)
	for i := 0; i < batchLength; i++ {
		ref := view[i*batch.Stride+batch.SlotPropertyRef]
		if ref == batch.NoPropertyRef {
			continue
		}
		if ref < 0 {
			return nil, malformedRef(ref, view[i*batch.Stride+batch.SlotRelID])
		}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		return columns, nil
	}

	present := make([]int, 0, len(keyIDs))
	for _, id := range keyIDs {
		if id != NoSuchKey {
			present = append(present, id)
		}
	}
	values, err := r.store.Lookup(refs, present)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodePropertyResolution, "lookup relationship properties")
	}

	for i := 0; i < batchLength; i++ {
		ref := view[i*batch.Stride+batch.SlotPropertyRef]
		if ref == batch.NoPropertyRef {
			continue
		}
		record, ok := values[ref]
		if !ok {
			return nil, errors.AddContext(
				errors.Newf(errors.CodePropertyResolution, "dangling property reference %d", ref),
				"relationship", view[i*batch.Stride+batch.SlotRelID],
			)
		}
		for k, id := range keyIDs {
			if id == NoSuchKey {
				continue
			}
			if v, ok := record[id]; ok {
				columns[k][i] = aggregations[k].Normalize(v)
			}
		}
	}
	return columns, nil
}

// MemoryReader serves precomputed values keyed by relationship id. Column k
// of a relationship's slice holds the value for the k-th requested key; NaN
// marks an absent value.
type MemoryReader struct {
	Values map[int64][]float64
}

var _ Reader = (*MemoryReader)(nil)

func (r *MemoryReader) ReadProperty(
	view []int64,
	batchLength int,
	keyIDs []int,
	defaults []float64,
	aggregations []Aggregation,
	atLeastOnePropertyToLoad bool,
) ([][]float64, error) {
	columns := defaultColumns(batchLength, defaults, aggregations)
	if !atLeastOnePropertyToLoad {
		return columns, nil
	}
	for i := 0; i < batchLength; i++ {
		relID := view[i*batch.Stride+batch.SlotRelID]
		row, ok := r.Values[relID]
		if !ok {
			continue
		}
		if len(row) < len(keyIDs) {
			return nil, errors.Newf(errors.CodePropertyResolution,
				"relationship %d carries %d values, %d keys requested", relID, len(row), len(keyIDs))
		}
		for k, id := range keyIDs {
			if id == NoSuchKey || math.IsNaN(row[k]) {
				continue
			}
			columns[k][i] = aggregations[k].Normalize(row[k])
		}
	}
	return columns, nil
}

func defaultColumns(n int, defaults []float64, aggregations []Aggregation) [][]float64 {
	columns := make([][]float64, len(defaults))
	for k := range columns {
		col := make([]float64, n)
		v := aggregations[k].Normalize(defaults[k])
		for i := range col {
			col[i] = v
		}
		columns[k] = col
	}
	return columns
}

func malformedRef(ref, relID int64) error {
	return errors.AddContext(
		errors.New(errors.CodePropertyResolution, fmt.Sprintf("malformed property reference %d", ref)),
		"relationship", relID,
	)
}
