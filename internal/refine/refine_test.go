package refine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/scriptorium-ai/scriptorium/internal/validate"
)

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type genStep struct {
	text string
	err  error
}

// scriptedGen returns canned outputs in call order and records every
// prompt it was given.
type scriptedGen struct {
	steps   []genStep
	prompts []string
}

func (g *scriptedGen) generate(_ context.Context, prompt string) (string, error) {
	i := len(g.prompts)
	g.prompts = append(g.prompts, prompt)
	if i >= len(g.steps) {
		return "", errors.New("unexpected generation call")
	}
	return g.steps[i].text, g.steps[i].err
}

// mapAssessor scores by exact content lookup.
type mapAssessor struct {
	byContent map[string]validate.Assessment
	calls     int
}

func (m *mapAssessor) Assess(_ context.Context, content string) (validate.Assessment, error) {
	m.calls++
	a, ok := m.byContent[content]
	if !ok {
		return validate.Assessment{}, fmt.Errorf("unexpected content %q", content)
	}
	return a, nil
}

func scored(score float64, failing ...string) validate.Assessment {
	return validate.Assessment{
		Scored:    true,
		Score:     score,
		Tier:      "test",
		Failing:   failing,
		SubScores: map[string]float64{},
	}
}

func vetoedAssessment(score float64, dim string) validate.Assessment {
	a := scored(score)
	a.Critical = []string{dim}
	a.Results = []validate.Result{{
		Dimension: dim,
		Severity:  validate.SeverityCritical,
		Issue:     "polemical phrasing",
	}}
	return a
}

func TestRunSucceedsFirstAttempt(t *testing.T) {
	gen := &scriptedGen{steps: []genStep{{text: "good entry"}}}
	assessor := &mapAssessor{byContent: map[string]validate.Assessment{
		"good entry": scored(90),
	}}
	r := New(gen.generate, assessor, Config{Threshold: 85, MaxAttempts: 3}, discardLogger())

	out, err := r.Run(context.Background(), "write the entry")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Exhausted {
		t.Error("threshold met on first attempt should not be exhausted")
	}
	if out.Attempts != 1 || out.Content != "good entry" || out.Score != 90 {
		t.Errorf("outcome = %d attempts, %q, %.1f", out.Attempts, out.Content, out.Score)
	}
	if len(gen.prompts) != 1 || gen.prompts[0] != "write the entry" {
		t.Errorf("prompts = %v, want the initial prompt only", gen.prompts)
	}
}

func TestRunTerminatesWhenNeverImproving(t *testing.T) {
	// Generation keeps returning the same weak entry; the loop must still
	// stop at the attempt cap and hand back the best it saw.
	gen := &scriptedGen{steps: []genStep{{text: "weak"}, {text: "weak"}, {text: "weak"}}}
	assessor := &mapAssessor{byContent: map[string]validate.Assessment{
		"weak": scored(40, validate.DimensionLength),
	}}
	r := New(gen.generate, assessor, Config{Threshold: 85, MaxAttempts: 3}, discardLogger())

	out, err := r.Run(context.Background(), "write the entry")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.Exhausted {
		t.Error("unmet threshold should be marked exhausted")
	}
	if out.Attempts != 3 || out.Content != "weak" || out.Score != 40 {
		t.Errorf("outcome = %d attempts, %q, %.1f", out.Attempts, out.Content, out.Score)
	}
	if len(out.Trail) != 3 {
		t.Errorf("trail length = %d, want 3", len(out.Trail))
	}
	// Initial generation plus one expand op on each non-final attempt.
	if len(gen.prompts) != 3 {
		t.Errorf("generation calls = %d, want 3", len(gen.prompts))
	}
	if len(out.Trail[0].Ops) != 1 || out.Trail[0].Ops[0] != string(OpExpand) {
		t.Errorf("attempt 1 ops = %v, want [expand]", out.Trail[0].Ops)
	}
}

func TestRunExpandsShortEntry(t *testing.T) {
	long := strings.TrimSpace(strings.Repeat("lorem ", 200))

	comp, err := validate.NewComposite(validate.CompositeConfig{
		Weights: map[string]float64{validate.DimensionLength: 1.0},
	}, []validate.Validator{validate.NewLength(100, 300)}, discardLogger())
	if err != nil {
		t.Fatalf("NewComposite: %v", err)
	}

	gen := &scriptedGen{steps: []genStep{{text: "short"}, {text: long}}}
	r := New(gen.generate, comp, Config{Threshold: 80, MaxAttempts: 2}, discardLogger())

	out, err := r.Run(context.Background(), "write about grace")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Exhausted {
		t.Error("expanded entry should clear the threshold")
	}
	if out.Attempts != 2 || out.Content != long {
		t.Errorf("attempts = %d, content %q...", out.Attempts, out.Content[:20])
	}
	if out.Score != 100 {
		t.Errorf("score = %.1f, want 100", out.Score)
	}
	if !strings.Contains(gen.prompts[1], "Expand") {
		t.Error("refinement prompt should carry the expand instruction")
	}
	if !strings.Contains(gen.prompts[1], "short") {
		t.Error("refinement prompt should embed the current content")
	}
}

func TestRunKeepsBestAttempt(t *testing.T) {
	// Scores go 70, 50, 60; the loop must return the first attempt's
	// content, not the last.
	gen := &scriptedGen{steps: []genStep{{text: "A"}, {text: "B"}, {text: "C"}}}
	assessor := &mapAssessor{byContent: map[string]validate.Assessment{
		"A": scored(70, validate.DimensionDepth),
		"B": scored(50, validate.DimensionDepth),
		"C": scored(60, validate.DimensionDepth),
	}}
	r := New(gen.generate, assessor, Config{Threshold: 95, MaxAttempts: 3}, discardLogger())

	out, err := r.Run(context.Background(), "write the entry")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.Exhausted {
		t.Error("should be exhausted")
	}
	if out.Content != "A" || out.Score != 70 {
		t.Errorf("best = %q at %.1f, want A at 70", out.Content, out.Score)
	}
}

func TestRunCriticalVetoForcesRefinement(t *testing.T) {
	gen := &scriptedGen{steps: []genStep{{text: "hot"}, {text: "cool"}}}
	assessor := &mapAssessor{byContent: map[string]validate.Assessment{
		"hot":  vetoedAssessment(95, validate.DimensionBalance),
		"cool": scored(95),
	}}
	r := New(gen.generate, assessor, Config{Threshold: 85, MaxAttempts: 3, CriticalVeto: true}, discardLogger())

	out, err := r.Run(context.Background(), "write the entry")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Attempts != 2 || out.Content != "cool" {
		t.Errorf("outcome = %d attempts, %q; veto should force a second attempt", out.Attempts, out.Content)
	}
	if len(out.Trail[0].Ops) != 1 || out.Trail[0].Ops[0] != string(OpRebalance) {
		t.Errorf("attempt 1 ops = %v, want [rebalance]", out.Trail[0].Ops)
	}
}

func TestRunCriticalVetoDisabled(t *testing.T) {
	gen := &scriptedGen{steps: []genStep{{text: "hot"}}}
	assessor := &mapAssessor{byContent: map[string]validate.Assessment{
		"hot": vetoedAssessment(95, validate.DimensionBalance),
	}}
	r := New(gen.generate, assessor, Config{Threshold: 85, MaxAttempts: 3}, discardLogger())

	out, err := r.Run(context.Background(), "write the entry")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Attempts != 1 || out.Content != "hot" || out.Exhausted {
		t.Errorf("without the veto a critical finding must not block success: %+v", out)
	}
}

func TestRunGenerationFailureConsumesAttempt(t *testing.T) {
	gen := &scriptedGen{steps: []genStep{
		{err: errors.New("backend crashed")},
		{text: "fine"},
	}}
	assessor := &mapAssessor{byContent: map[string]validate.Assessment{
		"fine": scored(90),
	}}
	r := New(gen.generate, assessor, Config{Threshold: 85, MaxAttempts: 3}, discardLogger())

	out, err := r.Run(context.Background(), "write the entry")
	if err != nil {
		t.Fatalf("a failed generation should consume the attempt, not abort: %v", err)
	}
	if out.Attempts != 2 || out.Content != "fine" || out.Exhausted {
		t.Errorf("outcome = %+v", out)
	}
	if out.Trail[0].GenError == "" {
		t.Error("trail should record the generation error")
	}
}

func TestRunAllGenerationsFail(t *testing.T) {
	errDown := errors.New("backend down")
	gen := &scriptedGen{steps: []genStep{{err: errDown}, {err: errDown}, {err: errDown}}}
	assessor := &mapAssessor{byContent: map[string]validate.Assessment{}}
	r := New(gen.generate, assessor, Config{Threshold: 85, MaxAttempts: 3}, discardLogger())

	_, err := r.Run(context.Background(), "write the entry")
	if !errors.Is(err, errDown) {
		t.Errorf("err = %v, want wrapped backend error", err)
	}
	if assessor.calls != 0 {
		t.Errorf("assessor called %d times with no content", assessor.calls)
	}
}

func TestRunSeedSkipsInitialGeneration(t *testing.T) {
	gen := &scriptedGen{}
	assessor := &mapAssessor{byContent: map[string]validate.Assessment{
		"seeded": scored(90),
	}}
	r := New(gen.generate, assessor, Config{Threshold: 85, MaxAttempts: 3}, discardLogger())

	out, err := r.RunSeed(context.Background(), "seeded")
	if err != nil {
		t.Fatalf("RunSeed: %v", err)
	}
	if out.Content != "seeded" || out.Attempts != 1 {
		t.Errorf("outcome = %+v", out)
	}
	if len(gen.prompts) != 0 {
		t.Errorf("seeded run made %d generation calls, want 0", len(gen.prompts))
	}
}

func TestRunParentCancellationAborts(t *testing.T) {
	genFn := func(ctx context.Context, _ string) (string, error) {
		return "", ctx.Err()
	}
	assessor := &mapAssessor{byContent: map[string]validate.Assessment{}}
	r := New(genFn, assessor, Config{Threshold: 85, MaxAttempts: 3}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx, "write the entry")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled, not a consumed attempt", err)
	}
}

func TestRunFallsBackToWeakestDimension(t *testing.T) {
	// All floors pass but the composite misses the threshold; the loop
	// must still act instead of revalidating identical content.
	stuck := scored(70)
	stuck.SubScores = map[string]float64{
		validate.DimensionDepth:  60,
		validate.DimensionLength: 80,
	}
	gen := &scriptedGen{steps: []genStep{{text: "meh"}, {text: "better"}}}
	assessor := &mapAssessor{byContent: map[string]validate.Assessment{
		"meh":    stuck,
		"better": scored(90),
	}}
	r := New(gen.generate, assessor, Config{Threshold: 85, MaxAttempts: 3}, discardLogger())

	out, err := r.Run(context.Background(), "write the entry")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Attempts != 2 || out.Content != "better" {
		t.Errorf("outcome = %+v", out)
	}
	if len(out.Trail[0].Ops) != 1 || out.Trail[0].Ops[0] != string(OpDeepen) {
		t.Errorf("attempt 1 ops = %v, want [deepen] for the weakest dimension", out.Trail[0].Ops)
	}
}

func TestRunScoreTrendsUpward(t *testing.T) {
	gen := &scriptedGen{steps: []genStep{{text: "v1"}, {text: "v2"}, {text: "v3"}}}
	assessor := &mapAssessor{byContent: map[string]validate.Assessment{
		"v1": scored(40, validate.DimensionDepth),
		"v2": scored(60, validate.DimensionDepth),
		"v3": scored(85),
	}}
	r := New(gen.generate, assessor, Config{Threshold: 85, MaxAttempts: 3}, discardLogger())

	out, err := r.Run(context.Background(), "write the entry")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Exhausted {
		t.Error("final attempt met the threshold")
	}
	for i := 1; i < len(out.Trail); i++ {
		if out.Trail[i].Score < out.Trail[i-1].Score {
			t.Errorf("score regressed between attempts %d and %d: %.1f -> %.1f",
				i, i+1, out.Trail[i-1].Score, out.Trail[i].Score)
		}
	}
}
