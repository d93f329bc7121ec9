package util

import (
	"runtime"
)

const bytesPerMB = 1024 * 1024

// HeapStats is a point-in-time view of the Go heap.
type HeapStats struct {
	AllocMB uint64
	SysMB   uint64
	NumGC   uint32
}

// ReadHeapStats samples runtime memory statistics. It stops the world
// briefly, so callers sample once per import rather than per batch.
func ReadHeapStats() HeapStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return HeapStats{
		AllocMB: m.Alloc / bytesPerMB,
		SysMB:   m.Sys / bytesPerMB,
		NumGC:   m.NumGC,
	}
}
