package state

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/scriptorium-ai/scriptorium/internal/cache"
	"github.com/scriptorium-ai/scriptorium/internal/router"
)

func quietStore(dir string, maxRuns int) *Store {
	return NewStore(dir, maxRuns, log.New(bytes.NewBuffer(nil), "", 0))
}

func TestNewStore_Defaults(t *testing.T) {
	s := NewStore("/var/lib/scriptorium", 0, nil)
	if s.maxRuns != DefaultMaxRuns {
		t.Errorf("expected maxRuns %d, got %d", DefaultMaxRuns, s.maxRuns)
	}
	if s.filePath != "/var/lib/scriptorium/state.json" {
		t.Errorf("unexpected filePath: %s", s.filePath)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	s := quietStore(t.TempDir(), 0)
	if err := s.Load(); err != nil {
		t.Fatalf("Load on missing file should not error: %v", err)
	}
	if len(s.Runs()) != 0 {
		t.Errorf("expected empty runs, got %d", len(s.Runs()))
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "state.json"), []byte("not json"), 0644)

	var buf bytes.Buffer
	s := NewStore(dir, 0, log.New(&buf, "", 0))
	if err := s.Load(); err != nil {
		t.Fatalf("Load on invalid JSON should not error: %v", err)
	}
	if len(s.Runs()) != 0 {
		t.Errorf("expected empty runs after invalid JSON, got %d", len(s.Runs()))
	}
	if !bytes.Contains(buf.Bytes(), []byte("starting fresh")) {
		t.Errorf("expected a warning about the unreadable file, log was %q", buf.String())
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := quietStore(dir, 0)
	s.RecordRun(RunSummary{
		RunID:    "run-ab12cd34",
		Subject:  "Grace",
		Backend:  "scholar-13b",
		Score:    88.5,
		Tier:     "strong",
		Attempts: 2,
	})
	s.SetCapabilities([]router.Capability{
		{Name: "scholar-13b", Tags: []string{"generation"}, QualityScore: 0.8, SuccessRate: 0.9, AvgLatency: 4.2},
	})
	s.SetCacheStats(cache.Stats{Hits: 3, Misses: 7, Requests: 10, HitRate: 0.3})

	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	s2 := quietStore(dir, 0)
	if err := s2.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	runs := s2.Runs()
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].Subject != "Grace" || runs[0].Score != 88.5 {
		t.Errorf("unexpected run: %+v", runs[0])
	}
	if runs[0].FinishedAt.IsZero() {
		t.Error("expected RecordRun to stamp FinishedAt")
	}
	caps := s2.Capabilities()
	if len(caps) != 1 || caps[0].Name != "scholar-13b" || caps[0].QualityScore != 0.8 {
		t.Errorf("unexpected capabilities: %+v", caps)
	}
	if got := s2.CacheStats(); got.Hits != 3 || got.HitRate != 0.3 {
		t.Errorf("unexpected cache stats: %+v", got)
	}
}

func TestSave_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	s := quietStore(dir, 0)

	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "state.json")); err != nil {
		t.Errorf("state file not created: %v", err)
	}
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := quietStore(dir, 0)
	s.RecordRun(RunSummary{RunID: "run-11112222", Subject: "Hope"})

	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "state.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected only state.json, got %v", names)
	}
}

func TestRecordRun_PrunesOldest(t *testing.T) {
	s := quietStore(t.TempDir(), 3)

	var pruned int
	for i := 1; i <= 5; i++ {
		pruned += s.RecordRun(RunSummary{RunID: fmt.Sprintf("run-%08d", i), Subject: "Faith"})
	}

	if pruned != 2 {
		t.Errorf("expected 2 pruned, got %d", pruned)
	}
	runs := s.Runs()
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs after prune, got %d", len(runs))
	}
	if runs[0].RunID != "run-00000003" {
		t.Errorf("expected oldest surviving run run-00000003, got %s", runs[0].RunID)
	}
}

func TestRecentRuns_NewestFirst(t *testing.T) {
	s := quietStore(t.TempDir(), 0)
	for i := 1; i <= 4; i++ {
		s.RecordRun(RunSummary{RunID: fmt.Sprintf("run-%08d", i)})
	}

	recent := s.RecentRuns(2)
	if len(recent) != 2 {
		t.Fatalf("expected 2 recent runs, got %d", len(recent))
	}
	if recent[0].RunID != "run-00000004" || recent[1].RunID != "run-00000003" {
		t.Errorf("unexpected order: %s, %s", recent[0].RunID, recent[1].RunID)
	}

	if got := s.RecentRuns(10); len(got) != 4 {
		t.Errorf("RecentRuns(10) = %d runs, want all 4", len(got))
	}
	if got := s.RecentRuns(0); got != nil {
		t.Errorf("RecentRuns(0) = %v, want nil", got)
	}
}
