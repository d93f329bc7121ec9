// Package importer turns filled relationship buffers into adjacency runs and
// coordinates the parallel import over a record store.
package importer

import (
	"context"

	"graphloader/internal/core/errors"
	"graphloader/internal/engine/batch"
	"graphloader/internal/engine/property"
)

// Sink receives one sorted pass: the keyed view, the neighbor ids, the property
// columns (nil without properties), the run end offsets and the run count.
type Sink interface {
	AddAll(ctx context.Context, view []int64, targets []int64, properties [][]float64, offsets []int, nodeCount int) error
}

// ImportFunc imports one buffer and returns CombineIntInt(out, in).
type ImportFunc func(ctx context.Context, buf *batch.Buffer, reader property.Reader) (uint64, error)

// RelationshipImporter drives the directional passes for one adjacency sink.
type RelationshipImporter struct {
	sink   Sink
	schema property.Schema
}

func New(sink Sink, schema property.Schema) *RelationshipImporter {
	return &RelationshipImporter{sink: sink, schema: schema}
}

// Imports resolves the import strategy once. An unknown orientation is a
// configuration error.
func (r *RelationshipImporter) Imports(orientation Orientation, loadProperties bool) (ImportFunc, error) {
	switch orientation {
	case Undirected:
		if loadProperties {
			return r.importUndirectedWithProperties, nil
		}
		return r.importUndirected, nil
	case Natural:
		if loadProperties {
			return r.importNaturalWithProperties, nil
		}
		return r.importNatural, nil
	case Reverse:
		if loadProperties {
			return r.importReverseWithProperties, nil
		}
		return r.importReverse, nil
	}
	return nil, errors.Newf(errors.CodeConfiguration, "unexpected orientation: %s", orientation)
}

func (r *RelationshipImporter) importUndirected(ctx context.Context, buf *batch.Buffer, _ property.Reader) (uint64, error) {
	out, err := r.importRelationships(ctx, buf, buf.SortBySource(), nil)
	if err != nil {
		return 0, err
	}
	in, err := r.importRelationships(ctx, buf, buf.SortByTarget(), nil)
	if err != nil {
		return 0, err
	}
	return CombineIntInt(out+in, 0), nil
}

func (r *RelationshipImporter) importUndirectedWithProperties(ctx context.Context, buf *batch.Buffer, reader property.Reader) (uint64, error) {
	out, err := r.importPassWithProperties(ctx, buf, buf.SortBySource(), reader)
	if err != nil {
		return 0, err
	}
	in, err := r.importPassWithProperties(ctx, buf, buf.SortByTarget(), reader)
	if err != nil {
		return 0, err
	}
	return CombineIntInt(out+in, out+in), nil
}

func (r *RelationshipImporter) importNatural(ctx context.Context, buf *batch.Buffer, _ property.Reader) (uint64, error) {
	out, err := r.importRelationships(ctx, buf, buf.SortBySource(), nil)
	if err != nil {
		return 0, err
	}
	return CombineIntInt(out, 0), nil
}

func (r *RelationshipImporter) importNaturalWithProperties(ctx context.Context, buf *batch.Buffer, reader property.Reader) (uint64, error) {
	out, err := r.importPassWithProperties(ctx, buf, buf.SortBySource(), reader)
	if err != nil {
		return 0, err
	}
	return CombineIntInt(out, out), nil
}

func (r *RelationshipImporter) importReverse(ctx context.Context, buf *batch.Buffer, _ property.Reader) (uint64, error) {
	in, err := r.importRelationships(ctx, buf, buf.SortByTarget(), nil)
	if err != nil {
		return 0, err
	}
	return CombineIntInt(in, 0), nil
}

func (r *RelationshipImporter) importReverseWithProperties(ctx context.Context, buf *batch.Buffer, reader property.Reader) (uint64, error) {
	in, err := r.importPassWithProperties(ctx, buf, buf.SortByTarget(), reader)
	if err != nil {
		return 0, err
	}
	return CombineIntInt(in, in), nil
}

// importPassWithProperties resolves properties for this pass's sort order
// before handing the pass on; values differ per pass because order differs.
func (r *RelationshipImporter) importPassWithProperties(ctx context.Context, buf *batch.Buffer, view []int64, reader property.Reader) (int32, error) {
	if buf.Len() == 0 {
		return 0, nil
	}
	if reader == nil {
		return 0, errors.New(errors.CodeConfiguration, "property reader is required when loading properties")
	}
	props, err := r.schema.Read(reader, view, buf.Len())
	if err != nil {
		return 0, errors.Wrap(err, errors.CodePropertyResolution, "read relationship properties")
	}
	return r.importRelationships(ctx, buf, view, props)
}

func (r *RelationshipImporter) importRelationships(ctx context.Context, buf *batch.Buffer, view []int64, properties [][]float64) (int32, error) {
	batchLength := buf.Len()
	if batchLength == 0 {
		return 0, nil
	}

	offsets := buf.SpareOffsets()
	targets := buf.SpareTargets()

	prevSource := view[0]
	nodesLength := 0
	for i := 0; i < batchLength; i++ {
		source := view[i*batch.Stride+batch.SlotSource]
		// runs for the same source are contiguous, so only an increase closes one
		if source > prevSource {
			offsets[nodesLength] = i
			nodesLength++
			prevSource = source
		}
		targets[i] = view[i*batch.Stride+batch.SlotTarget]
	}
	offsets[nodesLength] = batchLength
	nodesLength++

	if err := r.sink.AddAll(ctx, view, targets[:batchLength], properties, offsets[:nodesLength], nodesLength); err != nil {
		return 0, err
	}
	return int32(batchLength), nil
}
