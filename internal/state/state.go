// Package state persists capability metrics, cache statistics, and run
// summaries between invocations. Persistence is best effort: a missing
// or unreadable file starts the store empty.
package state

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/scriptorium-ai/scriptorium/internal/cache"
	"github.com/scriptorium-ai/scriptorium/internal/router"
)

// DefaultMaxRuns caps how many run summaries the store keeps.
const DefaultMaxRuns = 50

const fileName = "state.json"

// RunSummary records the outcome of one generation run.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Subject    string    `json:"subject"`
	Backend    string    `json:"backend,omitempty"`
	Score      float64   `json:"score"`
	Tier       string    `json:"tier,omitempty"`
	Attempts   int       `json:"attempts"`
	Exhausted  bool      `json:"exhausted,omitempty"`
	Failed     bool      `json:"failed,omitempty"`
	Error      string    `json:"error,omitempty"`
	OutputPath string    `json:"output_path,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// Data is the on-disk representation of the state store.
type Data struct {
	Version      string              `json:"version"`
	Capabilities []router.Capability `json:"capabilities,omitempty"`
	CacheStats   cache.Stats         `json:"cache_stats"`
	Runs         []RunSummary        `json:"runs"`
}

// Store manages the persisted pipeline state.
type Store struct {
	filePath string
	data     *Data
	maxRuns  int
	logger   *log.Logger
}

// NewStore creates a state store rooted at stateDir. maxRuns <= 0 uses
// DefaultMaxRuns.
func NewStore(stateDir string, maxRuns int, logger *log.Logger) *Store {
	if maxRuns <= 0 {
		maxRuns = DefaultMaxRuns
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Store{
		filePath: filepath.Join(stateDir, fileName),
		data:     &Data{Version: "1", Runs: []RunSummary{}},
		maxRuns:  maxRuns,
		logger:   logger,
	}
}

// Load reads the state file from disk. A missing file starts the store
// empty without error; an unreadable one does the same with a warning.
func (s *Store) Load() error {
	raw, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		s.logger.Printf("state: %s unreadable, starting fresh: %v", s.filePath, err)
		return nil
	}
	s.data = &data
	return nil
}

// Save writes the state to disk via a temp file and rename so a crash
// mid-write never leaves a truncated file.
func (s *Store) Save() error {
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".state-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.filePath); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// RecordRun appends a run summary, stamping FinishedAt if unset, and
// prunes the oldest summaries beyond the cap. Returns the number pruned.
func (s *Store) RecordRun(run RunSummary) int {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	s.data.Runs = append(s.data.Runs, run)
	return s.prune()
}

// SetCapabilities replaces the persisted capability snapshot.
func (s *Store) SetCapabilities(caps []router.Capability) {
	s.data.Capabilities = caps
}

// Capabilities returns the persisted capability snapshot.
func (s *Store) Capabilities() []router.Capability {
	return s.data.Capabilities
}

// SetCacheStats replaces the persisted cache statistics.
func (s *Store) SetCacheStats(stats cache.Stats) {
	s.data.CacheStats = stats
}

// CacheStats returns the persisted cache statistics.
func (s *Store) CacheStats() cache.Stats {
	return s.data.CacheStats
}

// Runs returns the recorded run summaries, oldest first.
func (s *Store) Runs() []RunSummary {
	return s.data.Runs
}

// RecentRuns returns up to n summaries, newest first.
func (s *Store) RecentRuns(n int) []RunSummary {
	if n <= 0 || len(s.data.Runs) == 0 {
		return nil
	}
	if n > len(s.data.Runs) {
		n = len(s.data.Runs)
	}
	out := make([]RunSummary, 0, n)
	for i := len(s.data.Runs) - 1; i >= len(s.data.Runs)-n; i-- {
		out = append(out, s.data.Runs[i])
	}
	return out
}

// prune drops the oldest run summaries when the store exceeds maxRuns.
// Returns the number of summaries removed.
func (s *Store) prune() int {
	if len(s.data.Runs) <= s.maxRuns {
		return 0
	}
	excess := len(s.data.Runs) - s.maxRuns
	s.data.Runs = s.data.Runs[excess:]
	return excess
}
