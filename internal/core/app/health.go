package app

import (
	"context"
	"fmt"
	"time"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

// Check is "up" while the last rerun succeeded and "degraded" after a failed
// one; the previous order stays available either way.
func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	if s.app.Parser != nil {
		status.Components["parser"] = "ok (" + s.app.Parser.Frontend().Name() + ")"
	} else {
		status.Status = "degraded"
		status.Components["parser"] = "missing"
	}

	last, err := s.app.Last()
	switch {
	case err != nil:
		status.Status = "degraded"
		status.Components["last_run"] = err.Error()
	case last == nil:
		status.Components["last_run"] = "pending"
	default:
		status.Components["last_run"] = fmt.Sprintf("ok (%d files, %d ordered, %d omitted)",
			len(last.Files), len(last.Order), len(last.Omitted))
	}

	if s.app.cache != nil {
		status.Components["parse_cache"] = fmt.Sprintf("ok (%d entries)", s.app.cache.len())
	}
	return status
}
