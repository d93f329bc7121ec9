package app

import (
	"context"
	"fmt"
	"time"

	"graphloader/internal/data/history"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
	LastRun    *history.Run      `json:"last_run,omitempty"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	if n, err := s.app.Store.RelationshipCount(ctx); err != nil {
		status.Status = "degraded"
		status.Components["store"] = fmt.Sprintf("error: %v", err)
	} else {
		status.Components["store"] = fmt.Sprintf("ok (%d relationships)", n)
	}

	if s.app.History != nil {
		status.Components["history"] = "ok"
	} else if s.app.Config().History.IsEnabled() {
		status.Status = "degraded"
		status.Components["history"] = "missing but enabled in config"
	} else {
		status.Components["history"] = "disabled"
	}

	run, ok := s.app.LastRun()
	switch {
	case !ok:
		status.Components["import"] = "not run"
	case run.Status == history.StatusFailed:
		status.Status = "degraded"
		status.Components["import"] = "failed: " + run.Error
		status.LastRun = &run
	default:
		status.Components["import"] = fmt.Sprintf("ok (%d relationships, %d bytes)", run.RelationshipCount, run.CompressedBytes)
		status.LastRun = &run
	}

	return status
}
