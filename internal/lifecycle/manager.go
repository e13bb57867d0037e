// Package lifecycle manages loaded inference backends under a memory
// budget. Loading a model that would push the estimated total past the
// budget evicts the least recently used backend first; the budget is
// advisory, so when nothing is left to evict the load proceeds with a
// warning rather than failing on what is only an estimate.
package lifecycle

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/scriptorium-ai/scriptorium/internal/backend"
	"github.com/scriptorium-ai/scriptorium/internal/lru"
)

// Defaults applied when the config leaves fields zero.
const (
	DefaultSafetyFactor        = 0.95
	DefaultFootprintMultiplier = 1.1
	DefaultLoadTimeout         = 5 * time.Minute
)

// Config controls the budget and estimation behavior.
type Config struct {
	// BudgetGB is the memory budget for all loaded backends combined.
	BudgetGB float64

	// SafetyFactor shrinks the usable budget to leave headroom for
	// estimation error. Effective budget = BudgetGB * SafetyFactor.
	SafetyFactor float64

	// FootprintMultiplier scales a model's file size into its estimated
	// resident footprint.
	FootprintMultiplier float64

	// LoadTimeout bounds a single loader invocation.
	LoadTimeout time.Duration
}

// Estimator predicts the resident footprint in GB for a model file.
// The default stats the file and applies the configured multiplier.
type Estimator func(path string) (float64, error)

// FileSizeEstimator returns the default estimation strategy.
func FileSizeEstimator(multiplier float64) Estimator {
	return func(path string) (float64, error) {
		info, err := os.Stat(path)
		if err != nil {
			return 0, fmt.Errorf("stat model file: %w", err)
		}
		const gb = 1 << 30
		return float64(info.Size()) / gb * multiplier, nil
	}
}

// LoadError reports a failed backend load. The budget ledger is never
// mutated when a load fails.
type LoadError struct {
	Name string
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("lifecycle: loading %s from %s: %v", e.Name, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Info is a snapshot of one loaded backend for status reporting.
type Info struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	FootprintGB float64   `json:"footprint_gb"`
	LastUsed    time.Time `json:"last_used"`
}

type loadedBackend struct {
	handle      backend.Handle
	path        string
	footprintGB float64
	lastUsed    time.Time
}

// Manager owns all loaded backends and the budget ledger. A single mutex
// guards the ledger; access is sequential generation traffic, not
// high-frequency concurrency.
type Manager struct {
	mu     sync.Mutex
	cfg    Config
	est    Estimator
	logger *log.Logger
	now    func() time.Time

	loaded  map[string]*loadedBackend
	totalGB float64
}

// New creates a manager. A nil estimator selects the file-size strategy.
func New(cfg Config, est Estimator, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.SafetyFactor <= 0 {
		cfg.SafetyFactor = DefaultSafetyFactor
	}
	if cfg.FootprintMultiplier <= 0 {
		cfg.FootprintMultiplier = DefaultFootprintMultiplier
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = DefaultLoadTimeout
	}
	if est == nil {
		est = FileSizeEstimator(cfg.FootprintMultiplier)
	}
	return &Manager{
		cfg:    cfg,
		est:    est,
		logger: logger,
		now:    time.Now,
		loaded: make(map[string]*loadedBackend),
	}
}

// EnsureLoaded returns a handle for name, loading it if necessary. An
// already-loaded backend only has its last-used timestamp refreshed.
// Before a fresh load, least-recently-used backends are evicted until the
// estimated total fits the effective budget or nothing is left to evict;
// in the latter case the load still proceeds and the overflow is logged.
func (m *Manager) EnsureLoaded(ctx context.Context, name, path string, loader backend.Loader, opts backend.Options) (backend.Handle, error) {
	m.mu.Lock()
	if lb, ok := m.loaded[name]; ok {
		lb.lastUsed = m.now()
		handle := lb.handle
		m.mu.Unlock()
		return handle, nil
	}
	m.mu.Unlock()

	estimated, err := m.est(path)
	if err != nil {
		return nil, &LoadError{Name: name, Path: path, Err: err}
	}

	m.mu.Lock()
	m.evictForLocked(estimated)
	if over := m.totalGB + estimated - m.effectiveBudgetLocked(); over > 0 {
		m.logger.Printf("lifecycle: warning: %s estimated at %.2f GB exceeds budget by %.2f GB with nothing left to evict, proceeding anyway",
			name, estimated, over)
	}
	m.mu.Unlock()

	loadCtx, cancel := context.WithTimeout(ctx, m.cfg.LoadTimeout)
	defer cancel()

	handle, err := loader(loadCtx, path, opts)
	if err != nil {
		return nil, &LoadError{Name: name, Path: path, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// The load ran unlocked; re-check the budget before committing.
	m.evictForLocked(estimated)
	m.loaded[name] = &loadedBackend{
		handle:      handle,
		path:        path,
		footprintGB: estimated,
		lastUsed:    m.now(),
	}
	m.totalGB += estimated
	m.logger.Printf("lifecycle: loaded %s (%.2f GB estimated, %.2f/%.2f GB total)",
		name, estimated, m.totalGB, m.cfg.BudgetGB)
	return handle, nil
}

func (m *Manager) effectiveBudgetLocked() float64 {
	return m.cfg.BudgetGB * m.cfg.SafetyFactor
}

// evictForLocked frees room for an incoming backend of the estimated size,
// evicting least-recently-used backends until the total fits or the ledger
// is empty.
func (m *Manager) evictForLocked(estimated float64) {
	effective := m.effectiveBudgetLocked()
	for m.totalGB+estimated > effective && len(m.loaded) > 0 {
		lastUsed := make(map[string]time.Time, len(m.loaded))
		for name, lb := range m.loaded {
			lastUsed[name] = lb.lastUsed
		}
		victim, ok := lru.OldestByTime(lastUsed)
		if !ok {
			break
		}
		m.evictLocked(victim)
	}
}

// Evict releases the named backend and returns its footprint to the budget.
func (m *Manager) Evict(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.loaded[name]; !ok {
		return fmt.Errorf("lifecycle: backend %q not loaded", name)
	}
	return m.evictLocked(name)
}

func (m *Manager) evictLocked(name string) error {
	lb := m.loaded[name]
	delete(m.loaded, name)
	m.totalGB -= lb.footprintGB
	if m.totalGB < 0 {
		m.totalGB = 0
	}

	if err := lb.handle.Close(); err != nil {
		m.logger.Printf("lifecycle: releasing %s: %v", name, err)
		return fmt.Errorf("lifecycle: releasing %s: %w", name, err)
	}
	m.logger.Printf("lifecycle: evicted %s (%.2f GB freed, %.2f GB in use)", name, lb.footprintGB, m.totalGB)
	return nil
}

// Close evicts every loaded backend. The first release error is returned
// after all backends are released.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var first error
	for _, name := range m.namesLocked() {
		if err := m.evictLocked(name); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// IsLoaded reports whether name currently holds a loaded backend. The
// router uses this for its residency bonus.
func (m *Manager) IsLoaded(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.loaded[name]
	return ok
}

// TotalGB returns the current estimated memory in use.
func (m *Manager) TotalGB() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalGB
}

// Loaded returns snapshots of all loaded backends, sorted by name.
func (m *Manager) Loaded() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos := make([]Info, 0, len(m.loaded))
	for name, lb := range m.loaded {
		infos = append(infos, Info{
			Name:        name,
			Path:        lb.path,
			FootprintGB: lb.footprintGB,
			LastUsed:    lb.lastUsed,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

func (m *Manager) namesLocked() []string {
	names := make([]string, 0, len(m.loaded))
	for name := range m.loaded {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
