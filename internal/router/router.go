// Package router selects which backend serves a task. Selection weighs
// each registered backend's rolling quality, success rate, and latency,
// with a small bonus for backends already resident in memory so the
// pipeline avoids needless reloads. Configuration may pin a backend per
// task type, overriding the scored choice.
package router

import (
	"errors"
	"log"
	"sync"
)

// Task types the pipeline routes.
const (
	TaskEntry   = "entry"
	TaskSection = "section"
	TaskRefine  = "refine"
	TaskOutline = "outline"
)

// taskTags maps each task type to the capability tags that qualify a
// backend for it. A backend qualifies when any of its declared tags is in
// the set.
var taskTags = map[string]map[string]bool{
	TaskEntry:   {"entry": true, "generation": true, "longform": true, "general": true},
	TaskSection: {"section": true, "generation": true, "writing": true, "general": true},
	TaskRefine:  {"refine": true, "editing": true, "generation": true, "general": true},
	TaskOutline: {"outline": true, "structure": true, "planning": true, "general": true},
}

// Score weights and the residency bonus.
const (
	weightQuality  = 0.6
	weightSuccess  = 0.3
	weightLatency  = 0.1
	residencyBonus = 0.05

	// latencyHorizon is the average latency in seconds at which the
	// latency bonus reaches zero.
	latencyHorizon = 60.0
)

// Exponential moving average weights: how much of the old value survives
// each update.
const (
	emaQuality = 0.8
	emaSuccess = 0.95
	emaLatency = 0.9
)

// Starting metrics for a freshly registered backend.
const (
	initialQuality = 0.5
	initialSuccess = 1.0
	initialLatency = 0.0
)

// ErrAlreadyRegistered is returned when a backend name is registered twice.
var ErrAlreadyRegistered = errors.New("router: backend already registered")

// Capability is the rolling performance record for one backend.
type Capability struct {
	Name         string   `json:"name"`
	Tags         []string `json:"tags"`
	QualityScore float64  `json:"quality_score"`
	SuccessRate  float64  `json:"success_rate"`
	AvgLatency   float64  `json:"avg_latency_seconds"`
}

// Residency reports whether a backend is currently loaded. The lifecycle
// manager satisfies this.
type Residency interface {
	IsLoaded(name string) bool
}

// Router holds the capability records. Records live for the process
// lifetime; there is no persistence guarantee.
type Router struct {
	mu        sync.RWMutex
	caps      map[string]*Capability
	order     []string
	overrides map[string]string
	residency Residency
	logger    *log.Logger
}

// New creates a router. residency may be nil, disabling the bonus.
func New(residency Residency, logger *log.Logger) *Router {
	if logger == nil {
		logger = log.Default()
	}
	return &Router{
		caps:      make(map[string]*Capability),
		overrides: make(map[string]string),
		residency: residency,
		logger:    logger,
	}
}

// Register adds a backend with its capability tags. Registering an existing
// name fails with ErrAlreadyRegistered.
func (r *Router) Register(name string, tags []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.caps[name]; ok {
		return ErrAlreadyRegistered
	}
	r.caps[name] = &Capability{
		Name:         name,
		Tags:         append([]string(nil), tags...),
		QualityScore: initialQuality,
		SuccessRate:  initialSuccess,
		AvgLatency:   initialLatency,
	}
	r.order = append(r.order, name)
	return nil
}

// SetOverrides installs per-task-type pinned backends from configuration.
func (r *Router) SetOverrides(overrides map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides = make(map[string]string, len(overrides))
	for task, name := range overrides {
		r.overrides[task] = name
	}
}

// Route picks the backend for taskType. It returns false when no
// registered backend qualifies; that is an expected outcome the caller
// handles, not an error.
func (r *Router) Route(taskType string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if pinned, ok := r.overrides[taskType]; ok {
		if _, registered := r.caps[pinned]; registered {
			return pinned, true
		}
		r.logger.Printf("router: override %q for task %q is not registered, falling back to scoring", pinned, taskType)
	}

	required, ok := taskTags[taskType]
	if !ok {
		r.logger.Printf("router: unknown task type %q", taskType)
		return "", false
	}

	best := ""
	bestScore := 0.0
	for _, name := range r.order {
		cap := r.caps[name]
		if !tagsQualify(cap.Tags, required) {
			continue
		}
		s := r.scoreLocked(cap)
		// Strict comparison keeps the earliest-registered candidate on
		// exact ties.
		if best == "" || s > bestScore {
			best = name
			bestScore = s
		}
	}
	return best, best != ""
}

// UpdateMetrics folds one observed generation into the backend's rolling
// averages. Unknown names are logged and ignored.
func (r *Router) UpdateMetrics(name string, quality float64, success bool, latencySeconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cap, ok := r.caps[name]
	if !ok {
		r.logger.Printf("router: update_metrics for unregistered backend %q ignored", name)
		return
	}

	successValue := 0.0
	if success {
		successValue = 1.0
	}
	cap.QualityScore = emaQuality*cap.QualityScore + (1-emaQuality)*quality
	cap.SuccessRate = emaSuccess*cap.SuccessRate + (1-emaSuccess)*successValue
	cap.AvgLatency = emaLatency*cap.AvgLatency + (1-emaLatency)*latencySeconds
}

// Restore overwrites the rolling metrics of already-registered backends
// from a persisted snapshot. Tags stay as registered; names with no
// matching registration are ignored.
func (r *Router) Restore(caps []Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, saved := range caps {
		cap, ok := r.caps[saved.Name]
		if !ok {
			continue
		}
		cap.QualityScore = saved.QualityScore
		cap.SuccessRate = saved.SuccessRate
		cap.AvgLatency = saved.AvgLatency
	}
}

// Snapshot returns copies of all capability records in registration order.
func (r *Router) Snapshot() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Capability, 0, len(r.order))
	for _, name := range r.order {
		cap := *r.caps[name]
		cap.Tags = append([]string(nil), r.caps[name].Tags...)
		out = append(out, cap)
	}
	return out
}

func (r *Router) scoreLocked(cap *Capability) float64 {
	latencyBonus := 1.0 - cap.AvgLatency/latencyHorizon
	if latencyBonus < 0 {
		latencyBonus = 0
	}
	score := weightQuality*cap.QualityScore + weightSuccess*cap.SuccessRate + weightLatency*latencyBonus
	if r.residency != nil && r.residency.IsLoaded(cap.Name) {
		score += residencyBonus
	}
	return score
}

func tagsQualify(tags []string, required map[string]bool) bool {
	for _, tag := range tags {
		if required[tag] {
			return true
		}
	}
	return false
}
