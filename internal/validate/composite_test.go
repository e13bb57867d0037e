package validate

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
)

type stubValidator struct {
	name     string
	category Category
	report   Report
	err      error
	panicMsg string
}

func (s *stubValidator) Name() string       { return s.name }
func (s *stubValidator) Category() Category { return s.category }

func (s *stubValidator) Validate(string) (Report, error) {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	return s.report, s.err
}

func scoredStub(name string, score float64) *stubValidator {
	return &stubValidator{
		name:     name,
		category: CategoryStructural,
		report:   Report{Score: score},
	}
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestCompositeWeightedScore(t *testing.T) {
	c, err := NewComposite(CompositeConfig{
		Weights: map[string]float64{"alpha": 0.6, "beta": 0.4},
	}, []Validator{scoredStub("alpha", 80), scoredStub("beta", 50)}, discardLogger())
	if err != nil {
		t.Fatalf("NewComposite: %v", err)
	}

	a, err := c.Assess(context.Background(), "content")
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if !a.Scored {
		t.Error("assessment should be marked scored")
	}
	if !almostEqual(a.Score, 68) {
		t.Errorf("score = %.2f, want 68", a.Score)
	}
	if a.SubScores["alpha"] != 80 || a.SubScores["beta"] != 50 {
		t.Errorf("sub-scores = %v", a.SubScores)
	}
}

func TestCompositeIsolatesErroringValidator(t *testing.T) {
	broken := &stubValidator{
		name:     "beta",
		category: CategoryStyle,
		err:      errors.New("regex exploded"),
	}
	c, err := NewComposite(CompositeConfig{
		Weights: map[string]float64{"alpha": 0.6, "beta": 0.4},
		Floors:  map[string]float64{"alpha": 50, "beta": 50},
	}, []Validator{scoredStub("alpha", 80), broken}, discardLogger())
	if err != nil {
		t.Fatalf("NewComposite: %v", err)
	}

	a, err := c.Assess(context.Background(), "content")
	if err != nil {
		t.Fatalf("Assess should absorb validator errors, got %v", err)
	}
	if !almostEqual(a.Score, 48) {
		t.Errorf("score = %.2f, want 48 (broken dimension contributes zero)", a.Score)
	}
	if a.SubScores["beta"] != 0 {
		t.Errorf("beta sub-score = %.1f, want 0", a.SubScores["beta"])
	}
	if !hasSeverity(a.Results, SeverityWarning) {
		t.Error("broken validator should leave a warning diagnostic")
	}
	if len(a.Failing) != 1 || a.Failing[0] != "beta" {
		t.Errorf("failing = %v, want [beta]", a.Failing)
	}
}

func TestCompositeIsolatesPanickingValidator(t *testing.T) {
	panicky := &stubValidator{
		name:     "beta",
		category: CategoryStyle,
		panicMsg: "index out of range",
	}
	c, err := NewComposite(CompositeConfig{
		Weights: map[string]float64{"alpha": 0.5, "beta": 0.5},
	}, []Validator{scoredStub("alpha", 100), panicky}, discardLogger())
	if err != nil {
		t.Fatalf("NewComposite: %v", err)
	}

	a, err := c.Assess(context.Background(), "content")
	if err != nil {
		t.Fatalf("Assess should absorb validator panics, got %v", err)
	}
	if !almostEqual(a.Score, 50) {
		t.Errorf("score = %.2f, want 50", a.Score)
	}
	diagnosed := false
	for _, r := range a.Results {
		if strings.Contains(r.Issue, "panicked") {
			diagnosed = true
		}
	}
	if !diagnosed {
		t.Error("panic should surface as a diagnostic finding")
	}
}

func TestCompositeFailingRespectsBatteryOrder(t *testing.T) {
	c, err := NewComposite(CompositeConfig{
		Weights: map[string]float64{"alpha": 0.5, "beta": 0.5, "gamma": 0},
		Floors:  map[string]float64{"gamma": 85},
	}, []Validator{
		scoredStub("alpha", 40),
		scoredStub("beta", 95),
		scoredStub("gamma", 60),
	}, discardLogger())
	if err != nil {
		t.Fatalf("NewComposite: %v", err)
	}

	a, err := c.Assess(context.Background(), "content")
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	// alpha misses the default floor, gamma misses its explicit floor even
	// though its weight is zero; beta clears 90.
	if len(a.Failing) != 2 || a.Failing[0] != "alpha" || a.Failing[1] != "gamma" {
		t.Errorf("failing = %v, want [alpha gamma]", a.Failing)
	}
}

func TestCompositeConfigRejectsBadWeights(t *testing.T) {
	battery := []Validator{scoredStub("alpha", 0), scoredStub("beta", 0)}

	if _, err := NewComposite(CompositeConfig{
		Weights: map[string]float64{"alpha": 0.6, "beta": 0.6},
	}, battery, discardLogger()); err == nil {
		t.Error("weights summing to 1.2 should be rejected")
	}
	if _, err := NewComposite(CompositeConfig{
		Weights: map[string]float64{"alpha": 0.6, "delta": 0.4},
	}, battery, discardLogger()); err == nil {
		t.Error("weight for an unknown dimension should be rejected")
	}
	if _, err := NewComposite(CompositeConfig{
		Weights: map[string]float64{"alpha": 1.0},
		Floors:  map[string]float64{"delta": 50},
	}, battery, discardLogger()); err == nil {
		t.Error("floor for an unknown dimension should be rejected")
	}
	if _, err := NewComposite(CompositeConfig{
		Weights: map[string]float64{"alpha": 1.0},
	}, nil, discardLogger()); err == nil {
		t.Error("empty battery should be rejected")
	}
}

func TestCompositeConfigRejectsBadBands(t *testing.T) {
	battery := []Validator{scoredStub("alpha", 0)}
	weights := map[string]float64{"alpha": 1.0}

	if _, err := NewComposite(CompositeConfig{
		Weights: weights,
		Bands: []Band{
			{Min: 0, Max: 50, Label: "draft"},
			{Min: 60, Max: 100, Label: "strong"},
		},
	}, battery, discardLogger()); err == nil {
		t.Error("gap between bands should be rejected")
	}
	if _, err := NewComposite(CompositeConfig{
		Weights: weights,
		Bands: []Band{
			{Min: 10, Max: 100, Label: "strong"},
		},
	}, battery, discardLogger()); err == nil {
		t.Error("bands not starting at 0 should be rejected")
	}
	if _, err := NewComposite(CompositeConfig{
		Weights: weights,
		Bands: []Band{
			{Min: 0, Max: 90, Label: "draft"},
		},
	}, battery, discardLogger()); err == nil {
		t.Error("bands not ending at 100 should be rejected")
	}
}

func TestCompositeTiers(t *testing.T) {
	c, err := NewComposite(CompositeConfig{
		Weights: map[string]float64{"alpha": 1.0},
	}, []Validator{scoredStub("alpha", 0)}, discardLogger())
	if err != nil {
		t.Fatalf("NewComposite: %v", err)
	}

	cases := []struct {
		score float64
		tier  string
	}{
		{100, "reference"},
		{95, "reference"},
		{94.9, "strong"},
		{85, "strong"},
		{70, "adequate"},
		{50, "weak"},
		{0, "draft"},
	}
	for _, tc := range cases {
		if got := c.tierFor(tc.score); got != tc.tier {
			t.Errorf("tierFor(%.1f) = %q, want %q", tc.score, got, tc.tier)
		}
	}
}

func TestCompositeCancelledContext(t *testing.T) {
	c, err := NewComposite(CompositeConfig{
		Weights: map[string]float64{"alpha": 1.0},
	}, []Validator{scoredStub("alpha", 100)}, discardLogger())
	if err != nil {
		t.Fatalf("NewComposite: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Assess(ctx, "content"); !errors.Is(err, context.Canceled) {
		t.Errorf("Assess on cancelled context = %v, want context.Canceled", err)
	}
}

func TestCompositeCollectsCriticalDimensions(t *testing.T) {
	hot := &stubValidator{
		name:     "beta",
		category: CategoryTheological,
		report: Report{
			Score:   95,
			Results: []Result{{Severity: SeverityCritical, Issue: "polemical"}},
		},
	}
	c, err := NewComposite(CompositeConfig{
		Weights: map[string]float64{"alpha": 0.5, "beta": 0.5},
	}, []Validator{scoredStub("alpha", 95), hot}, discardLogger())
	if err != nil {
		t.Fatalf("NewComposite: %v", err)
	}

	a, err := c.Assess(context.Background(), "content")
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	// beta clears its floor yet still lands on the critical list.
	if len(a.Failing) != 0 {
		t.Errorf("failing = %v, want none", a.Failing)
	}
	if len(a.Critical) != 1 || a.Critical[0] != "beta" {
		t.Errorf("critical = %v, want [beta]", a.Critical)
	}
	if !a.HasCritical() {
		t.Error("HasCritical should be true")
	}
}

func TestAssessmentHasCritical(t *testing.T) {
	a := Assessment{Results: []Result{{Severity: SeverityWarning}}}
	if a.HasCritical() {
		t.Error("warning-only assessment should not report critical")
	}
	a.Results = append(a.Results, Result{Severity: SeverityCritical})
	if !a.HasCritical() {
		t.Error("assessment with a critical finding should report it")
	}
}

func TestDefaultBatteryWiring(t *testing.T) {
	battery := DefaultBattery(0, 0)
	c, err := NewComposite(CompositeConfig{
		Weights: DefaultWeights(),
		Floors:  DefaultFloors(),
	}, battery, discardLogger())
	if err != nil {
		t.Fatalf("default battery should satisfy the composite config: %v", err)
	}

	want := []string{
		DimensionDepth, DimensionLength, DimensionCoherence,
		DimensionBalance, DimensionVoice, DimensionCitations,
	}
	got := c.Dimensions()
	if len(got) != len(want) {
		t.Fatalf("dimensions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("dimensions[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	sum := 0.0
	for _, w := range DefaultWeights() {
		sum += w
	}
	if !almostEqual(sum, 1.0) {
		t.Errorf("default weights sum to %.3f, want 1.0", sum)
	}
}
