package history

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one recorded import.
type Run struct {
	ID                string
	StartedAt         time.Time
	Duration          time.Duration
	StorePath         string
	Orientation       string
	Concurrency       int
	NodeCount         int64
	RelationshipCount int64
	CompressedBytes   int64
	Digest            string
	Status            Status
	Error             string
}

// NewRun starts a run record with a fresh id.
func NewRun(orientation string, concurrency int, started time.Time) Run {
	return Run{
		ID:          uuid.NewString(),
		StartedAt:   started.UTC(),
		Orientation: orientation,
		Concurrency: concurrency,
	}
}

// TrendPoint compares a run with the successful run before it.
type TrendPoint struct {
	Run                Run
	DeltaRelationships int64
	DeltaBytes         int64
	DigestChanged      bool
}

// BuildTrend walks runs oldest first and diffs every successful run against
// the previous successful one. Failed runs are reported without deltas.
func BuildTrend(runs []Run) []TrendPoint {
	points := make([]TrendPoint, 0, len(runs))
	var prev *Run
	for i := range runs {
		p := TrendPoint{Run: runs[i]}
		if runs[i].Status == StatusSucceeded {
			if prev != nil {
				p.DeltaRelationships = runs[i].RelationshipCount - prev.RelationshipCount
				p.DeltaBytes = runs[i].CompressedBytes - prev.CompressedBytes
				p.DigestChanged = runs[i].Digest != prev.Digest
			}
			prev = &runs[i]
		}
		points = append(points, p)
	}
	return points
}
