package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"graphloader/internal/data/history"
	"graphloader/internal/shared/util"
)

const trendMarker = "trend"

func RenderTrendTSV(points []history.TrendPoint) ([]byte, error) {
	var buf strings.Builder

	buf.WriteString("StartedAt\tRun\tStatus\tOrientation\tConcurrency\tDurationMs\tNodes\tRelationships\tCompressedBytes\tDeltaRelationships\tDeltaBytes\tDigestChanged\n")
	for _, point := range points {
		run := point.Run
		buf.WriteString(fmt.Sprintf(
			"%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%t\n",
			run.StartedAt.Format(time.RFC3339),
			run.ID,
			run.Status,
			run.Orientation,
			run.Concurrency,
			run.Duration.Milliseconds(),
			run.NodeCount,
			run.RelationshipCount,
			run.CompressedBytes,
			point.DeltaRelationships,
			point.DeltaBytes,
			point.DigestChanged,
		))
	}

	return []byte(buf.String()), nil
}

func RenderTrendJSON(points []history.TrendPoint) ([]byte, error) {
	return json.MarshalIndent(points, "", "  ")
}

func RenderTrendMarkdown(points []history.TrendPoint) string {
	var buf strings.Builder
	buf.WriteString("| Started | Status | Orientation | Relationships | Δ | Compressed | Digest changed |\n")
	buf.WriteString("|---|---|---|---:|---:|---:|---|\n")
	for _, point := range points {
		run := point.Run
		buf.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %+d | %s | %t |\n",
			run.StartedAt.Format(time.RFC3339),
			run.Status,
			run.Orientation,
			run.RelationshipCount,
			point.DeltaRelationships,
			formatBytes(run.CompressedBytes),
			point.DigestChanged,
		))
	}
	return buf.String()
}

// WriteTrend renders points in the format implied by the file extension:
// .json, .md or TSV otherwise. An existing markdown file with trend markers
// gets only the marked block replaced.
func WriteTrend(path string, points []history.TrendPoint) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err := RenderTrendJSON(points)
		if err != nil {
			return err
		}
		return util.WriteFileWithDirs(path, data, 0o644)
	case ".md":
		table := RenderTrendMarkdown(points)
		content, err := os.ReadFile(path)
		if err == nil && strings.Contains(string(content), markerStart(trendMarker)) {
			return InjectBlock(path, trendMarker, table)
		}
		return util.WriteStringWithDirs(path, "# Import trend\n\n"+table, 0o644)
	default:
		data, err := RenderTrendTSV(points)
		if err != nil {
			return err
		}
		return util.WriteFileWithDirs(path, data, 0o644)
	}
}
