package history

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStore_OpenInitializesSchemaAndSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	base := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	first := NewRun("NATURAL", 4, base)
	first.Duration = 1500 * time.Millisecond
	first.NodeCount = 10
	first.RelationshipCount = 40
	first.Digest = "abc"
	first.Status = StatusSucceeded

	second := NewRun("UNDIRECTED", 2, base.Add(time.Hour))
	second.Status = StatusFailed
	second.Error = "[IMPORT_ABORTED] import aborted"

	if first.ID == second.ID || first.ID == "" {
		t.Fatalf("expected distinct run ids, got %q and %q", first.ID, second.ID)
	}
	if err := store.SaveRun(ctx, first); err != nil {
		t.Fatalf("save first run: %v", err)
	}
	if err := store.SaveRun(ctx, second); err != nil {
		t.Fatalf("save second run: %v", err)
	}

	runs, err := store.LoadRuns(ctx, 0)
	if err != nil {
		t.Fatalf("load runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != first.ID || runs[0].Duration != first.Duration || runs[0].RelationshipCount != 40 {
		t.Fatalf("first run did not roundtrip: %+v", runs[0])
	}
	if runs[1].Status != StatusFailed || runs[1].Error == "" {
		t.Fatalf("second run did not roundtrip: %+v", runs[1])
	}

	latest, ok, err := store.LatestRun(ctx)
	if err != nil || !ok {
		t.Fatalf("latest run: ok=%v err=%v", ok, err)
	}
	if latest.ID != second.ID {
		t.Fatalf("expected latest %q, got %q", second.ID, latest.ID)
	}
}

func TestStore_SaveRunUpserts(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	run := NewRun("NATURAL", 1, time.Now())
	run.Status = StatusFailed
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	run.Status = StatusSucceeded
	run.RelationshipCount = 7
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatal(err)
	}

	runs, err := store.LoadRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Status != StatusSucceeded || runs[0].RelationshipCount != 7 {
		t.Fatalf("expected single upserted run, got %+v", runs)
	}
}

func TestStore_LatestRunEmpty(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	_, ok, err := store.LatestRun(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no latest run")
	}
}

func TestStore_OpenRejectsDirectoryPath(t *testing.T) {
	_, err := Open(t.TempDir())
	if err == nil {
		t.Fatal("expected open error for directory path")
	}
	if !strings.Contains(err.Error(), "is a directory") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStore_OpenCorruptDBPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	if err := os.WriteFile(path, []byte("this is not sqlite"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(path)
	if err == nil {
		t.Fatal("expected sqlite open error")
	}
	lower := strings.ToLower(err.Error())
	if !strings.Contains(lower, "not a database") && !strings.Contains(lower, "schema") {
		t.Fatalf("expected schema/open error, got: %v", err)
	}
}

func TestEnsureSchema_DetectsNewerVersionDrift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	_, err = store.db.Exec(`INSERT OR REPLACE INTO schema_migrations(version) VALUES (?)`, SchemaVersion+1)
	if err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open(driverName, "file:"+path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	err = EnsureSchema(db)
	if err == nil {
		t.Fatal("expected drift error")
	}
	if !strings.Contains(err.Error(), "newer than supported") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBuildTrend(t *testing.T) {
	base := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	runs := []Run{
		{ID: "a", StartedAt: base, Status: StatusSucceeded, RelationshipCount: 10, CompressedBytes: 100, Digest: "x"},
		{ID: "b", StartedAt: base.Add(time.Hour), Status: StatusFailed},
		{ID: "c", StartedAt: base.Add(2 * time.Hour), Status: StatusSucceeded, RelationshipCount: 14, CompressedBytes: 90, Digest: "y"},
		{ID: "d", StartedAt: base.Add(3 * time.Hour), Status: StatusSucceeded, RelationshipCount: 14, CompressedBytes: 90, Digest: "y"},
	}

	points := BuildTrend(runs)
	if len(points) != 4 {
		t.Fatalf("expected 4 points, got %d", len(points))
	}
	if points[1].DeltaRelationships != 0 || points[1].DigestChanged {
		t.Fatalf("failed run should carry no delta: %+v", points[1])
	}
	if points[2].DeltaRelationships != 4 || points[2].DeltaBytes != -10 || !points[2].DigestChanged {
		t.Fatalf("unexpected delta for c: %+v", points[2])
	}
	if points[3].DigestChanged {
		t.Fatalf("identical run should keep digest: %+v", points[3])
	}
}

func TestIsCorruptError(t *testing.T) {
	if !IsCorruptError(errors.New("database disk image is malformed")) {
		t.Fatal("expected malformed sqlite message to be treated as corrupt")
	}
}
