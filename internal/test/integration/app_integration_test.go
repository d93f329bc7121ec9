package integration

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"graphloader/internal/core/app"
	"graphloader/internal/core/config"
	"graphloader/internal/data/history"
	"graphloader/internal/data/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(t *testing.T, orientation string, indexInverse bool) *app.App {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "graphloader.toml")
	content := `
[import]
orientation = "` + orientation + `"
concurrency = 4
page_size = 8
batch_size = 16
load_degrees = true
index_inverse = ` + strconv.FormatBool(indexInverse) + `

[store]
path = "graph.db"

[history]
path = "history.db"

[watch]
debounce = "50ms"
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	a, err := app.New(cfg, cfgPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestIntegration_ImportMatchesStoredRecords(t *testing.T) {
	a := newApp(t, "natural", true)
	ctx := context.Background()
	_, err := a.Store.AddRelationships(ctx, []store.Relationship{
		{Source: 1, Target: 2}, {Source: 1, Target: 3}, {Source: 2, Target: 1}, {Source: 3, Target: 1},
	})
	require.NoError(t, err)

	run, err := a.RunImport(ctx)
	require.NoError(t, err)
	assert.Equal(t, history.StatusSucceeded, run.Status)
	assert.Equal(t, int64(8), run.RelationshipCount)

	g := a.Graph()
	require.NotNil(t, g)
	assert.Equal(t, []int64{2, 3}, g.Forward.Neighbors(1))
	assert.Equal(t, []int64{2, 3}, g.Inverse.Neighbors(1))
	assert.Equal(t, []int64{1}, g.Inverse.Neighbors(2))
	assert.Equal(t, 2, g.Forward.Degree(1))
}

func TestIntegration_UndirectedSeededGraphIsSymmetric(t *testing.T) {
	a := newApp(t, "undirected", false)
	ctx := context.Background()
	require.NoError(t, a.Seed(ctx, 40, 500, 21))

	_, err := a.RunImport(ctx)
	require.NoError(t, err)
	fwd := a.Graph().Forward
	for n := int64(0); n < 40; n++ {
		for _, m := range fwd.Neighbors(n) {
			assert.Contains(t, fwd.Neighbors(m), n)
		}
	}
}

func TestIntegration_WatcherReimportsOnStoreChange(t *testing.T) {
	a := newApp(t, "natural", true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Seed(ctx, 10, 30, 2))
	_, err := a.RunImport(ctx)
	require.NoError(t, err)

	updates := make(chan app.Update, 4)
	a.SetUpdateHandler(func(u app.Update) { updates <- u })
	require.NoError(t, a.StartWatcher(ctx))

	_, err = a.Store.AddRelationships(ctx, []store.Relationship{{Source: 0, Target: 9}})
	require.NoError(t, err)

	select {
	case u := <-updates:
		require.Equal(t, history.StatusSucceeded, u.Run.Status)
		// index_inverse counts every record once per direction
		assert.Equal(t, int64(62), u.Run.RelationshipCount)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for re-import")
	}

	runs, err := a.RecentRuns(ctx, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(runs), 2)
}
