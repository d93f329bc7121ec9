package store

import (
	"context"
	"path/filepath"
	"testing"

	coreerrors "graphloader/internal/core/errors"
	"graphloader/internal/engine/batch"
	"graphloader/internal/engine/property"
	"graphloader/internal/engine/scan"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T, types ...string) *Store {
	t.Helper()
	s, err := Open(Options{Path: filepath.Join(t.TempDir(), "graph.db"), RelationshipTypes: types})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func scanAll(t *testing.T, s *Store, concurrency, batchSize int) map[int64][3]int64 {
	t.Helper()
	ctx := context.Background()
	parts, err := s.Partitions(ctx, concurrency)
	require.NoError(t, err)

	seen := map[int64][3]int64{}
	buf, err := batch.NewBuffer(batchSize)
	require.NoError(t, err)
	for _, p := range parts {
		sc, err := s.Scanner(p)
		require.NoError(t, err)
		for {
			more, err := sc.NextBatch(ctx, buf)
			require.NoError(t, err)
			raw := buf.Raw()
			for i := 0; i < buf.Len(); i++ {
				row := raw[i*batch.Stride : (i+1)*batch.Stride]
				id := row[batch.SlotRelID]
				_, dup := seen[id]
				require.False(t, dup, "relationship %d scanned twice", id)
				seen[id] = [3]int64{row[batch.SlotSource], row[batch.SlotTarget], row[batch.SlotPropertyRef]}
			}
			if !more {
				break
			}
		}
		require.NoError(t, sc.Close())
	}
	return seen
}

func TestOpen_RejectsBadInput(t *testing.T) {
	_, err := Open(Options{Path: "  "})
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeConfiguration))

	_, err = Open(Options{Path: t.TempDir()})
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeConfiguration))

	_, err = Open(Options{Path: filepath.Join(t.TempDir(), "g.db"), RelationshipTypes: []string{"[unclosed"}})
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeConfiguration))
}

func TestStore_PartitionsCoverEveryRecordOnce(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.Seed(context.Background(), 40, 1234, 9))

	total, err := s.RelationshipCount(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1234), total)

	for _, concurrency := range []int{1, 3, 8} {
		seen := scanAll(t, s, concurrency, 100)
		assert.Len(t, seen, 1234, "concurrency %d", concurrency)
	}
}

func TestStore_PartitionClaimedOnce(t *testing.T) {
	s := openStore(t)
	_, err := s.AddRelationships(context.Background(), []Relationship{{Source: 0, Target: 1}})
	require.NoError(t, err)

	parts, err := s.Partitions(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	_, err = s.Scanner(parts[0])
	require.NoError(t, err)
	_, err = s.Scanner(parts[0])
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeScan))
}

func TestStore_TypeFilter(t *testing.T) {
	s := openStore(t, "KNOWS", "LIKE*")
	ids, err := s.AddRelationships(context.Background(), []Relationship{
		{Source: 0, Target: 1, Type: "KNOWS"},
		{Source: 1, Target: 2, Type: "FOLLOWS"},
		{Source: 2, Target: 0, Type: "LIKES"},
		{Source: 2, Target: 1, Type: "LIKED"},
	})
	require.NoError(t, err)

	// a small batch forces the scanner to refill after filtered rows
	seen := scanAll(t, s, 1, 2)
	assert.Len(t, seen, 3)
	assert.NotContains(t, seen, ids[1])
	assert.Equal(t, [3]int64{2, 0, batch.NoPropertyRef}, seen[ids[2]])
}

func TestStore_NodeCount(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	n, err := s.NodeCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.AddRelationships(ctx, []Relationship{{Source: 7, Target: 2}, {Source: 1, Target: 9}})
	require.NoError(t, err)
	n, err = s.NodeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)

	require.NoError(t, s.SetNodeCount(ctx, 25))
	n, err = s.NodeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(25), n)
	assert.Error(t, s.SetNodeCount(ctx, -1))
}

func TestStore_EmptyPartitions(t *testing.T) {
	s := openStore(t)
	parts, err := s.Partitions(context.Background(), 4)
	require.NoError(t, err)
	assert.Empty(t, parts)

	_, err = s.Partitions(context.Background(), 0)
	assert.Error(t, err)
}

func TestStore_PropertyReaderIntegration(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	_, err := s.AddRelationships(ctx, []Relationship{
		{Source: 0, Target: 1, Properties: map[string]float64{"weight": 2.5}},
		{Source: 0, Target: 2},
		{Source: 1, Target: 2, Properties: map[string]float64{"since": 2001}},
	})
	require.NoError(t, err)

	specs, err := s.ResolveKeys(ctx, []property.KeySpec{
		{Name: "weight", Default: 1},
		{Name: "since", Default: 0},
		{Name: "missing", Default: 42},
	})
	require.NoError(t, err)
	assert.Equal(t, property.NoSuchKey, specs[2].ID)
	assert.NotEqual(t, property.NoSuchKey, specs[0].ID)

	schema, err := property.NewSchema(property.AggregationNone, specs)
	require.NoError(t, err)

	buf, err := batch.NewBuffer(8)
	require.NoError(t, err)
	parts, err := s.Partitions(ctx, 1)
	require.NoError(t, err)
	sc, err := s.Scanner(parts[0])
	require.NoError(t, err)
	_, err = sc.NextBatch(ctx, buf)
	require.NoError(t, err)

	view := buf.SortBySource()
	cols, err := schema.Read(property.NewStoreReader(s), view, buf.Len())
	require.NoError(t, err)
	assert.Equal(t, []float64{2.5, 1, 1}, cols[0])
	assert.Equal(t, []float64{0, 0, 2001}, cols[1])
	assert.Equal(t, []float64{42, 42, 42}, cols[2])
}

func TestStore_DanglingReference(t *testing.T) {
	s := openStore(t)
	buf, err := batch.NewBuffer(1)
	require.NoError(t, err)
	buf.Add(0, 1, 77, 0)

	_, err = property.NewStoreReader(s).ReadProperty(buf.SortBySource(), 1, []int{1}, []float64{0},
		[]property.Aggregation{property.AggregationNone}, true)
	require.Error(t, err)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodePropertyResolution))
}

func TestStore_LookupChunks(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	rels := make([]Relationship, lookupChunkSize+20)
	for i := range rels {
		rels[i] = Relationship{Source: 0, Target: 1, Properties: map[string]float64{"w": float64(i)}}
	}
	_, err := s.AddRelationships(ctx, rels)
	require.NoError(t, err)
	keyID, err := s.PropertyKeyID(ctx, "w")
	require.NoError(t, err)

	refs := make([]int64, len(rels))
	for i := range refs {
		refs[i] = int64(i + 1)
	}
	got, err := s.Lookup(refs, []int{keyID})
	require.NoError(t, err)
	assert.Len(t, got, len(rels))
	assert.Equal(t, float64(lookupChunkSize+19), got[int64(lookupChunkSize+20)][keyID])
}

func TestStore_SeedIsDeterministic(t *testing.T) {
	a, b := openStore(t), openStore(t)
	require.NoError(t, a.Seed(context.Background(), 30, 300, 4))
	require.NoError(t, b.Seed(context.Background(), 30, 300, 4))
	assert.Equal(t, scanAll(t, a, 2, 64), scanAll(t, b, 3, 50))

	var _ scan.RecordStore = a
}
