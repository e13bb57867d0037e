// Package refine drives the bounded validate-refine loop: generate an
// entry, score it, apply targeted refinement operations to the deficient
// dimensions, and repeat until the composite score clears the threshold
// or attempts run out. Attempts are strictly sequential; attempt k+1
// always observes the fully-applied result of attempt k.
package refine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/scriptorium-ai/scriptorium/internal/validate"
)

// Generator produces entry text for a prompt. The pipeline wires this to
// the routed inference backend.
type Generator func(ctx context.Context, prompt string) (string, error)

// Assessor scores content. *validate.Composite is the production
// implementation.
type Assessor interface {
	Assess(ctx context.Context, content string) (validate.Assessment, error)
}

// Loop defaults.
const (
	DefaultThreshold   = 85.0
	DefaultMaxAttempts = 3
)

// Config bounds the loop.
type Config struct {
	// Threshold is the composite score that counts as success.
	Threshold float64

	// MaxAttempts caps how many scored attempts the loop may consume.
	MaxAttempts int

	// CriticalVeto blocks success while any CRITICAL finding remains and
	// adds the offending dimensions to the refinement set even when
	// their sub-scores clear their floors.
	CriticalVeto bool

	// OpTimeout bounds each generation call. Zero leaves the caller's
	// context as the only bound.
	OpTimeout time.Duration
}

// AttemptSummary is the retained trace of one attempt. Superseded
// content is discarded; only the best attempt's text survives the loop.
type AttemptSummary struct {
	Index    int      `json:"index"`
	Score    float64  `json:"score"`
	Tier     string   `json:"tier,omitempty"`
	Failing  []string `json:"failing,omitempty"`
	Ops      []string `json:"ops,omitempty"`
	GenError string   `json:"gen_error,omitempty"`
}

// Outcome is the loop's terminal result. Exhausted distinguishes "met
// the bar" from "best effort after max attempts".
type Outcome struct {
	Content    string
	Score      float64
	Tier       string
	Assessment validate.Assessment
	Attempts   int
	Exhausted  bool
	Trail      []AttemptSummary
}

// Refiner runs the validate-refine loop.
type Refiner struct {
	gen      Generator
	assessor Assessor
	cfg      Config
	logger   *log.Logger
}

// New creates a Refiner. Zero config fields select the defaults.
func New(gen Generator, assessor Assessor, cfg Config, logger *log.Logger) *Refiner {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Refiner{gen: gen, assessor: assessor, cfg: cfg, logger: logger}
}

// Run generates fresh content from initialPrompt and refines it to the
// threshold.
func (r *Refiner) Run(ctx context.Context, initialPrompt string) (Outcome, error) {
	return r.loop(ctx, initialPrompt, "")
}

// RunSeed refines existing content, skipping the initial generation
// call.
func (r *Refiner) RunSeed(ctx context.Context, seed string) (Outcome, error) {
	return r.loop(ctx, "", seed)
}

func (r *Refiner) loop(ctx context.Context, initialPrompt, content string) (Outcome, error) {
	var (
		out         Outcome
		lastErr     error
		best        validate.Assessment
		bestContent string
		haveBest    bool
	)

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		out.Attempts = attempt
		summary := AttemptSummary{Index: attempt}

		// First entry generates unless seeded; later entries reuse the
		// current content, refined in place by the previous attempt.
		if content == "" && initialPrompt != "" {
			text, err := r.generate(ctx, initialPrompt)
			if err != nil {
				if ctx.Err() != nil {
					return out, ctx.Err()
				}
				lastErr = err
				summary.GenError = err.Error()
				out.Trail = append(out.Trail, summary)
				r.logger.Printf("refine: attempt %d/%d generation failed: %v", attempt, r.cfg.MaxAttempts, err)
				continue
			}
			content = text
		}

		a, err := r.assessor.Assess(ctx, content)
		if err != nil {
			return out, fmt.Errorf("refine: assess attempt %d: %w", attempt, err)
		}
		summary.Score = a.Score
		summary.Tier = a.Tier
		summary.Failing = append([]string(nil), a.Failing...)

		if !haveBest || a.Score > best.Score {
			best = a
			bestContent = content
			haveBest = true
		}

		vetoed := r.cfg.CriticalVeto && a.HasCritical()
		if a.Score >= r.cfg.Threshold && !vetoed {
			out.Trail = append(out.Trail, summary)
			out.Content = content
			out.Score = a.Score
			out.Tier = a.Tier
			out.Assessment = a
			r.logger.Printf("refine: attempt %d/%d scored %.1f (%s), threshold %.1f met",
				attempt, r.cfg.MaxAttempts, a.Score, a.Tier, r.cfg.Threshold)
			return out, nil
		}

		if attempt == r.cfg.MaxAttempts {
			out.Trail = append(out.Trail, summary)
			break
		}

		targets := refineTargets(a, vetoed)
		r.logger.Printf("refine: attempt %d/%d scored %.1f (%s), refining %v",
			attempt, r.cfg.MaxAttempts, a.Score, a.Tier, targets)

		for _, dim := range targets {
			op, ok := opForDimension[dim]
			if !ok {
				r.logger.Printf("refine: no operation for dimension %q, skipping", dim)
				continue
			}
			text, err := r.generate(ctx, buildPrompt(op, content, dimensionFindings(a.Results, dim)))
			if err != nil {
				if ctx.Err() != nil {
					return out, ctx.Err()
				}
				lastErr = err
				summary.GenError = err.Error()
				r.logger.Printf("refine: attempt %d %s failed: %v", attempt, op, err)
				break
			}
			content = text
			summary.Ops = append(summary.Ops, string(op))
		}
		out.Trail = append(out.Trail, summary)
	}

	if !haveBest {
		if lastErr != nil {
			return out, fmt.Errorf("refine: no attempt produced content: %w", lastErr)
		}
		return out, fmt.Errorf("refine: no attempt produced content")
	}

	out.Content = bestContent
	out.Score = best.Score
	out.Tier = best.Tier
	out.Assessment = best
	out.Exhausted = true
	r.logger.Printf("refine: exhausted %d attempts, returning best score %.1f (%s)",
		r.cfg.MaxAttempts, best.Score, best.Tier)
	return out, nil
}

// generate bounds one generation call with the configured per-operation
// timeout.
func (r *Refiner) generate(ctx context.Context, prompt string) (string, error) {
	if r.cfg.OpTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.OpTimeout)
		defer cancel()
	}
	return r.gen(ctx, prompt)
}

// refineTargets merges floor failures with veto sources, deduplicated,
// floor failures first. When nothing failed outright but the composite
// still misses the threshold, the weakest dimension is targeted so the
// loop never spins without acting.
func refineTargets(a validate.Assessment, vetoed bool) []string {
	targets := append([]string(nil), a.Failing...)
	if vetoed {
		seen := make(map[string]bool, len(targets))
		for _, dim := range targets {
			seen[dim] = true
		}
		for _, dim := range a.Critical {
			if !seen[dim] {
				targets = append(targets, dim)
				seen[dim] = true
			}
		}
	}
	if len(targets) == 0 {
		if dim, ok := lowestDimension(a.SubScores); ok {
			targets = []string{dim}
		}
	}
	return targets
}

// lowestDimension returns the weakest sub-score's dimension, ties broken
// by the lexicographically smaller name for determinism.
func lowestDimension(subScores map[string]float64) (string, bool) {
	name := ""
	low := 0.0
	for dim, score := range subScores {
		if name == "" || score < low || (score == low && dim < name) {
			name = dim
			low = score
		}
	}
	return name, name != ""
}
