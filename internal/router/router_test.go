package router

import (
	"log"
	"math"
	"os"
	"testing"
)

type stubResidency map[string]bool

func (s stubResidency) IsLoaded(name string) bool { return s[name] }

func newTestRouter(res Residency) *Router {
	return New(res, log.New(os.Stderr, "", 0))
}

func TestRegisterDuplicate(t *testing.T) {
	r := newTestRouter(nil)
	if err := r.Register("writer", []string{"generation"}); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := r.Register("writer", []string{"general"}); err != ErrAlreadyRegistered {
		t.Errorf("second Register error = %v, want ErrAlreadyRegistered", err)
	}
}

func TestRouteFiltersByTags(t *testing.T) {
	r := newTestRouter(nil)
	r.Register("writer", []string{"generation"})
	r.Register("classifier", []string{"classification"})

	name, ok := r.Route(TaskEntry)
	if !ok || name != "writer" {
		t.Errorf("Route(entry) = %q, %v, want writer, true", name, ok)
	}
}

func TestRouteNoCandidate(t *testing.T) {
	r := newTestRouter(nil)
	r.Register("classifier", []string{"classification"})

	if name, ok := r.Route(TaskEntry); ok {
		t.Errorf("Route(entry) = %q, want no candidate", name)
	}
}

func TestRouteUnknownTaskType(t *testing.T) {
	r := newTestRouter(nil)
	r.Register("writer", []string{"general"})

	if name, ok := r.Route("telepathy"); ok {
		t.Errorf("Route(telepathy) = %q, want no candidate", name)
	}
}

func TestRouteDeterministic(t *testing.T) {
	r := newTestRouter(nil)
	r.Register("alpha", []string{"generation"})
	r.Register("beta", []string{"generation"})
	r.UpdateMetrics("alpha", 0.9, true, 5)
	r.UpdateMetrics("beta", 0.7, true, 5)

	first, ok := r.Route(TaskEntry)
	if !ok {
		t.Fatal("no candidate")
	}
	for i := 0; i < 20; i++ {
		got, ok := r.Route(TaskEntry)
		if !ok || got != first {
			t.Fatalf("call %d: Route = %q, %v, want stable %q", i, got, ok, first)
		}
	}
}

func TestExactTieGoesToEarlierRegistration(t *testing.T) {
	r := newTestRouter(nil)
	// "zulu" registered before "alpha"; identical metrics must keep zulu.
	r.Register("zulu", []string{"generation"})
	r.Register("alpha", []string{"generation"})

	name, ok := r.Route(TaskEntry)
	if !ok || name != "zulu" {
		t.Errorf("Route = %q, %v, want zulu (earlier registration)", name, ok)
	}
}

func TestHigherQualityWins(t *testing.T) {
	r := newTestRouter(nil)
	r.Register("mediocre", []string{"generation"})
	r.Register("strong", []string{"generation"})
	for i := 0; i < 10; i++ {
		r.UpdateMetrics("mediocre", 0.4, true, 5)
		r.UpdateMetrics("strong", 0.95, true, 5)
	}

	name, _ := r.Route(TaskEntry)
	if name != "strong" {
		t.Errorf("Route = %q, want strong", name)
	}
}

func TestLatencyBonusFavorsFasterBackend(t *testing.T) {
	r := newTestRouter(nil)
	// slow registered first so only the latency term can flip the choice.
	r.Register("slow", []string{"generation"})
	r.Register("fast", []string{"generation"})
	for i := 0; i < 60; i++ {
		r.UpdateMetrics("slow", 0.8, true, 120)
		r.UpdateMetrics("fast", 0.8, true, 2)
	}

	name, _ := r.Route(TaskEntry)
	if name != "fast" {
		t.Errorf("Route = %q, want fast", name)
	}
}

func TestResidencyBonusBreaksCloseRace(t *testing.T) {
	res := stubResidency{"resident": true}
	r := newTestRouter(res)
	r.Register("resident", []string{"generation"})
	r.Register("slightly-better", []string{"generation"})

	// Nudge the non-resident slightly ahead on quality; the 0.05 residency
	// bonus outweighs a 0.6*0.03 quality edge.
	for i := 0; i < 50; i++ {
		r.UpdateMetrics("resident", 0.80, true, 0)
		r.UpdateMetrics("slightly-better", 0.83, true, 0)
	}

	name, _ := r.Route(TaskEntry)
	if name != "resident" {
		t.Errorf("Route = %q, want resident", name)
	}
}

func TestUpdateMetricsEMA(t *testing.T) {
	r := newTestRouter(nil)
	r.Register("m", []string{"general"})

	r.UpdateMetrics("m", 1.0, false, 10)

	snap := r.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("Snapshot() len = %d", len(snap))
	}
	cap := snap[0]

	wantQuality := 0.8*initialQuality + 0.2*1.0
	wantSuccess := 0.95*initialSuccess + 0.05*0.0
	wantLatency := 0.9*initialLatency + 0.1*10

	if math.Abs(cap.QualityScore-wantQuality) > 1e-9 {
		t.Errorf("QualityScore = %v, want %v", cap.QualityScore, wantQuality)
	}
	if math.Abs(cap.SuccessRate-wantSuccess) > 1e-9 {
		t.Errorf("SuccessRate = %v, want %v", cap.SuccessRate, wantSuccess)
	}
	if math.Abs(cap.AvgLatency-wantLatency) > 1e-9 {
		t.Errorf("AvgLatency = %v, want %v", cap.AvgLatency, wantLatency)
	}
}

func TestUpdateMetricsUnknownIsNoOp(t *testing.T) {
	r := newTestRouter(nil)
	r.Register("known", []string{"general"})

	before := r.Snapshot()
	r.UpdateMetrics("phantom", 1.0, true, 1)
	after := r.Snapshot()

	if len(after) != len(before) {
		t.Fatalf("capability count changed: %d -> %d", len(before), len(after))
	}
	if after[0].QualityScore != before[0].QualityScore {
		t.Error("known backend mutated by update for unknown name")
	}
}

func TestOverridePinsBackend(t *testing.T) {
	r := newTestRouter(nil)
	r.Register("scored-winner", []string{"generation"})
	r.Register("pinned", []string{"generation"})
	for i := 0; i < 20; i++ {
		r.UpdateMetrics("scored-winner", 0.99, true, 1)
		r.UpdateMetrics("pinned", 0.1, false, 300)
	}
	r.SetOverrides(map[string]string{TaskEntry: "pinned"})

	if name, ok := r.Route(TaskEntry); !ok || name != "pinned" {
		t.Errorf("Route = %q, %v, want pinned override", name, ok)
	}
	// Other task types still score normally.
	if name, _ := r.Route(TaskRefine); name != "scored-winner" {
		t.Errorf("Route(refine) = %q, want scored-winner", name)
	}
}

func TestOverrideUnregisteredFallsThrough(t *testing.T) {
	r := newTestRouter(nil)
	r.Register("only", []string{"generation"})
	r.SetOverrides(map[string]string{TaskEntry: "ghost"})

	if name, ok := r.Route(TaskEntry); !ok || name != "only" {
		t.Errorf("Route = %q, %v, want only via fallback", name, ok)
	}
}

func TestRestoreSeedsMetrics(t *testing.T) {
	r := newTestRouter(nil)
	r.Register("writer", []string{"generation"})
	r.Register("sketcher", []string{"outline"})

	r.Restore([]Capability{
		{Name: "writer", Tags: []string{"stale-tag"}, QualityScore: 0.42, SuccessRate: 0.5, AvgLatency: 12},
		{Name: "ghost", QualityScore: 0.9},
	})

	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot len = %d, want 2", len(snap))
	}
	if snap[0].QualityScore != 0.42 || snap[0].SuccessRate != 0.5 || snap[0].AvgLatency != 12 {
		t.Errorf("writer metrics = %+v, want restored values", snap[0])
	}
	// Tags come from registration, not the snapshot.
	if len(snap[0].Tags) != 1 || snap[0].Tags[0] != "generation" {
		t.Errorf("writer tags = %v, want [generation]", snap[0].Tags)
	}
	// Unrestored backend keeps its starting metrics.
	if snap[1].QualityScore != 0.5 {
		t.Errorf("sketcher quality = %v, want initial 0.5", snap[1].QualityScore)
	}
}
