package pipeline

import (
	"context"

	"github.com/scriptorium-ai/scriptorium/internal/cache"
	"github.com/scriptorium-ai/scriptorium/internal/lifecycle"
	"github.com/scriptorium-ai/scriptorium/internal/router"
	"github.com/scriptorium-ai/scriptorium/internal/state"
)

// BackendStatus pairs a backend's rolling metrics with its residency.
type BackendStatus struct {
	Capability router.Capability
	Loaded     bool
}

// Status is a point-in-time snapshot of the pipeline for the status
// command.
type Status struct {
	Backends     []BackendStatus
	LoadedModels []lifecycle.Info
	TotalGB      float64
	BudgetGB     float64
	Cache        cache.Stats
	VectorCount  int
	RecentRuns   []state.RunSummary
}

// Status reports backend metrics, residency, cache effectiveness, the
// vector index size, and recent runs. VectorCount is -1 when the store
// is unavailable.
func (p *Pipeline) Status(ctx context.Context) Status {
	s := Status{
		LoadedModels: p.manager.Loaded(),
		TotalGB:      p.manager.TotalGB(),
		BudgetGB:     p.cfg.Model.BudgetGB,
		Cache:        p.cache.Stats(),
		VectorCount:  -1,
		RecentRuns:   p.store.RecentRuns(10),
	}
	for _, cap := range p.router.Snapshot() {
		s.Backends = append(s.Backends, BackendStatus{
			Capability: cap,
			Loaded:     p.manager.IsLoaded(cap.Name),
		})
	}
	if p.vectors != nil {
		if n, err := p.vectors.Count(ctx); err == nil {
			s.VectorCount = n
		} else {
			p.logger.Printf("pipeline: counting vector passages: %v", err)
		}
	}
	return s
}
