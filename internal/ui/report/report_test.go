package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"graphloader/internal/data/history"
	"graphloader/internal/shared/util"
)

func samplePoints() []history.TrendPoint {
	started := time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC)
	runs := []history.Run{
		{ID: "a", StartedAt: started, Status: history.StatusSucceeded, Orientation: "NATURAL", Concurrency: 2,
			Duration: 1500 * time.Millisecond, NodeCount: 10, RelationshipCount: 40, CompressedBytes: 2048, Digest: "d1"},
		{ID: "b", StartedAt: started.Add(time.Hour), Status: history.StatusFailed, Orientation: "NATURAL", Error: "boom"},
		{ID: "c", StartedAt: started.Add(2 * time.Hour), Status: history.StatusSucceeded, Orientation: "NATURAL",
			NodeCount: 10, RelationshipCount: 45, CompressedBytes: 2100, Digest: "d2"},
	}
	return history.BuildTrend(runs)
}

func TestRenderTrendTSV(t *testing.T) {
	out, err := RenderTrendTSV(samplePoints())
	if err != nil {
		t.Fatalf("render tsv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header and 3 rows, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "StartedAt\tRun\tStatus") {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[1], "\t1500\t10\t40\t2048\t0\t0\tfalse") {
		t.Fatalf("unexpected first row %q", lines[1])
	}
	if !strings.HasSuffix(lines[3], "\t5\t52\ttrue") {
		t.Fatalf("unexpected delta row %q", lines[3])
	}
}

func TestRenderTrendJSON(t *testing.T) {
	out, err := RenderTrendJSON(samplePoints())
	if err != nil {
		t.Fatalf("render json: %v", err)
	}
	var decoded []history.TrendPoint
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 3 || decoded[2].DeltaRelationships != 5 {
		t.Fatalf("unexpected trend %+v", decoded)
	}
}

func TestRenderSummary(t *testing.T) {
	points := samplePoints()
	ok := RenderSummary(points[0].Run, util.HeapStats{AllocMB: 12, SysMB: 30, NumGC: 4})
	for _, want := range []string{"Graph import", "succeeded", "2.0 KiB", "12 MB alloc, 30 MB sys, 4 GCs", "NATURAL"} {
		if !strings.Contains(ok, want) {
			t.Fatalf("summary missing %q:\n%s", want, ok)
		}
	}
	failed := RenderSummary(points[1].Run, util.HeapStats{})
	if !strings.Contains(failed, "boom") || strings.Contains(failed, "relationships") {
		t.Fatalf("unexpected failed summary:\n%s", failed)
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{0: "0 B", 1023: "1023 B", 1024: "1.0 KiB", 3 << 20: "3.0 MiB"}
	for in, want := range cases {
		if got := formatBytes(in); got != want {
			t.Fatalf("formatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestWriteTrend_FormatsByExtension(t *testing.T) {
	dir := t.TempDir()
	points := samplePoints()

	for _, name := range []string{"trend.tsv", "out/trend.json", "trend.md"} {
		path := filepath.Join(dir, name)
		if err := WriteTrend(path, points); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if len(data) == 0 {
			t.Fatalf("%s is empty", name)
		}
	}
}

func TestWriteTrend_InjectsIntoMarkedMarkdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "README.md")
	original := "# Notes\n\n<!-- graphloader:trend:start -->\nold\n<!-- graphloader:trend:end -->\n\nfooter\n"
	if err := os.WriteFile(path, []byte(original), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteTrend(path, samplePoints()); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	got := string(data)
	if strings.Contains(got, "\nold\n") || !strings.Contains(got, "| Started |") || !strings.HasSuffix(got, "footer\n") {
		t.Fatalf("unexpected injected markdown:\n%s", got)
	}
}

func TestReplaceBetweenMarkers_Errors(t *testing.T) {
	if _, err := ReplaceBetweenMarkers("x", " ", "y"); err == nil {
		t.Fatal("expected error for empty marker")
	}
	if _, err := ReplaceBetweenMarkers("no markers", "trend", "y"); err == nil {
		t.Fatal("expected error for missing markers")
	}
	end, start := markerEnd("trend"), markerStart("trend")
	if _, err := ReplaceBetweenMarkers(end+"\n"+start, "trend", "y"); err == nil {
		t.Fatal("expected error for reversed markers")
	}
}
