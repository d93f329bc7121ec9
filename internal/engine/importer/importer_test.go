package importer

import (
	"context"
	"testing"

	coreerrors "graphloader/internal/core/errors"
	"graphloader/internal/engine/adjacency"
	"graphloader/internal/engine/batch"
	"graphloader/internal/engine/property"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	calls   int
	offsets [][]int
	targets [][]int64
	props   [][][]float64
}

func (s *recordingSink) AddAll(_ context.Context, _ []int64, targets []int64, properties [][]float64, offsets []int, nodeCount int) error {
	s.calls++
	s.offsets = append(s.offsets, append([]int(nil), offsets[:nodeCount]...))
	s.targets = append(s.targets, append([]int64(nil), targets...))
	s.props = append(s.props, properties)
	return nil
}

func fill(t *testing.T, pairs [][2]int64) *batch.Buffer {
	t.Helper()
	buf, err := batch.NewBuffer(max(len(pairs), 1))
	require.NoError(t, err)
	for i, p := range pairs {
		require.True(t, buf.Add(p[0], p[1], batch.NoPropertyRef, int64(i)))
	}
	return buf
}

func emptySchema(t *testing.T) property.Schema {
	t.Helper()
	s, err := property.NewSchema(property.AggregationNone, nil)
	require.NoError(t, err)
	return s
}

func TestImports_NaturalOffsets(t *testing.T) {
	sink := &recordingSink{}
	imp, err := New(sink, emptySchema(t)).Imports(Natural, false)
	require.NoError(t, err)

	buf := fill(t, [][2]int64{{3, 1}, {1, 3}, {2, 1}, {1, 2}})
	got, err := imp(context.Background(), buf, nil)
	require.NoError(t, err)

	assert.Equal(t, int32(4), Head(got))
	assert.Equal(t, int32(0), Tail(got))
	require.Equal(t, 1, sink.calls)
	assert.Equal(t, []int{2, 3, 4}, sink.offsets[0])
	assert.Equal(t, []int64{3, 2, 1, 1}, sink.targets[0])
}

func TestImports_ReverseKeysByTarget(t *testing.T) {
	sink := &recordingSink{}
	imp, err := New(sink, emptySchema(t)).Imports(Reverse, false)
	require.NoError(t, err)

	got, err := imp(context.Background(), fill(t, [][2]int64{{1, 2}, {1, 3}, {2, 1}, {3, 1}}), nil)
	require.NoError(t, err)
	assert.Equal(t, int32(4), Head(got))
	// keys 1,1,2,3 -> runs end at 2,3,4; neighbors are the sources
	assert.Equal(t, []int{2, 3, 4}, sink.offsets[0])
	assert.Equal(t, []int64{2, 3, 1, 1}, sink.targets[0])
}

func TestImports_UndirectedTwoPasses(t *testing.T) {
	sink := &recordingSink{}
	imp, err := New(sink, emptySchema(t)).Imports(Undirected, false)
	require.NoError(t, err)

	got, err := imp(context.Background(), fill(t, [][2]int64{{0, 1}, {1, 2}}), nil)
	require.NoError(t, err)
	assert.Equal(t, int32(4), Head(got))
	assert.Equal(t, int32(0), Tail(got))
	assert.Equal(t, 2, sink.calls)
}

func TestImports_EmptyBufferSkipsSink(t *testing.T) {
	for _, o := range []Orientation{Natural, Reverse, Undirected} {
		t.Run(o.String(), func(t *testing.T) {
			sink := &recordingSink{}
			imp, err := New(sink, emptySchema(t)).Imports(o, false)
			require.NoError(t, err)
			buf, _ := batch.NewBuffer(4)
			got, err := imp(context.Background(), buf, nil)
			require.NoError(t, err)
			assert.Equal(t, uint64(0), got)
			assert.Zero(t, sink.calls)
		})
	}
}

func TestImports_UnknownOrientation(t *testing.T) {
	_, err := New(&recordingSink{}, emptySchema(t)).Imports(Orientation(42), false)
	require.Error(t, err)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeConfiguration))
}

func TestImports_PropertiesFollowPassOrder(t *testing.T) {
	schema, err := property.NewSchema(property.AggregationNone, []property.KeySpec{{Name: "w", ID: 0, Default: 1}})
	require.NoError(t, err)
	sink := &recordingSink{}
	imp, err := New(sink, schema).Imports(Undirected, true)
	require.NoError(t, err)

	reader := &property.MemoryReader{Values: map[int64][]float64{0: {5}, 1: {7}}}
	got, err := imp(context.Background(), fill(t, [][2]int64{{2, 0}, {0, 1}}), reader)
	require.NoError(t, err)
	assert.Equal(t, int32(4), Head(got))
	assert.Equal(t, int32(4), Tail(got))

	require.Len(t, sink.props, 2)
	// by source: (0,1,rel1) then (2,0,rel0)
	assert.Equal(t, []float64{7, 5}, sink.props[0][0])
	// by target: (0,2,rel0) then (1,0,rel1)
	assert.Equal(t, []float64{5, 7}, sink.props[1][0])
}

func TestImports_PropertiesRequireReader(t *testing.T) {
	schema, err := property.NewSchema(property.AggregationNone, []property.KeySpec{{Name: "w"}})
	require.NoError(t, err)
	imp, err := New(&recordingSink{}, schema).Imports(Natural, true)
	require.NoError(t, err)
	_, err = imp(context.Background(), fill(t, [][2]int64{{0, 1}}), nil)
	assert.Error(t, err)
}

func TestImports_UndirectedIntoBuilderIsSymmetric(t *testing.T) {
	schema := emptySchema(t)
	b, err := adjacency.NewBuilder(adjacency.Config{NodeCount: 4, PageSize: 2, Schema: schema})
	require.NoError(t, err)
	imp, err := New(b, schema).Imports(Undirected, false)
	require.NoError(t, err)

	_, err = imp(context.Background(), fill(t, [][2]int64{{0, 1}, {1, 2}, {3, 0}}), nil)
	require.NoError(t, err)
	store, err := b.FinishPreparation()
	require.NoError(t, err)

	for n := int64(0); n < 4; n++ {
		for _, m := range store.Neighbors(n) {
			assert.Contains(t, store.Neighbors(m), n, "edge %d-%d not mirrored", n, m)
		}
	}
	assert.Equal(t, []int64{1, 3}, store.Neighbors(0))
	assert.Equal(t, int64(6), store.RelationshipCount())
}

func TestCombineIntInt(t *testing.T) {
	v := CombineIntInt(7, -1)
	assert.Equal(t, int32(7), Head(v))
	assert.Equal(t, int32(-1), Tail(v))
}

func TestParseOrientation(t *testing.T) {
	o, err := ParseOrientation(" natural ")
	require.NoError(t, err)
	assert.Equal(t, Natural, o)
	assert.Equal(t, Reverse, o.Inverse())
	assert.Equal(t, Undirected, Undirected.Inverse())

	_, err = ParseOrientation("sideways")
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeConfiguration))
}
