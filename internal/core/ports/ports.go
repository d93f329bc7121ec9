package ports

import (
	"context"

	"graphloader/internal/data/history"
)

// HistoryStore abstracts run persistence for health and trend workflows.
type HistoryStore interface {
	SaveRun(ctx context.Context, run history.Run) error
	LoadRuns(ctx context.Context, limit int) ([]history.Run, error)
	LatestRun(ctx context.Context) (history.Run, bool, error)
	Close() error
}

var _ HistoryStore = (*history.Store)(nil)
