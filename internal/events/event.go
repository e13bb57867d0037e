// Package events records the lifecycle of a generation run as a JSONL
// stream, one file per run. The status command and tests read the
// streams back.
package events

import (
	"time"
)

// EventType identifies the category of a run event.
type EventType string

const (
	// EventRunStarted marks the beginning of a run.
	EventRunStarted EventType = "run_started"
	// EventCacheHit is a cache lookup that returned content.
	EventCacheHit EventType = "cache_hit"
	// EventModelSelected records the routing decision for the run.
	EventModelSelected EventType = "model_selected"
	// EventAttempt records one generate-assess cycle.
	EventAttempt EventType = "attempt"
	// EventWarning is a recoverable problem the run survived.
	EventWarning EventType = "warning"
	// EventRunCompleted marks a run that produced accepted content.
	EventRunCompleted EventType = "run_completed"
	// EventRunFailed marks a run that produced no accepted content.
	EventRunFailed EventType = "run_failed"
)

// RunEvent is one entry in a run's JSONL stream.
type RunEvent struct {
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// RunID identifies the generation run.
	RunID string `json:"run_id"`

	// Subject is the entry subject the run works on.
	Subject string `json:"subject,omitempty"`

	// Stage is the pipeline stage that emitted the event
	// (route, cache, generate, validate, export).
	Stage string `json:"stage,omitempty"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// Attempt is the 1-indexed generate-assess cycle, for attempt events.
	Attempt int `json:"attempt,omitempty"`

	// Score is the composite quality score, where the stage produced one.
	Score float64 `json:"score,omitempty"`

	// Tier is the quality tier label matching Score.
	Tier string `json:"tier,omitempty"`

	// Backend is the model backend serving the run, for routing events.
	Backend string `json:"backend,omitempty"`

	// Message is a short human-readable description.
	Message string `json:"message,omitempty"`
}
