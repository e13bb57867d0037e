package validate

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Band maps a composite score range to a quality tier label.
type Band struct {
	Min   float64 `json:"min" mapstructure:"min"`
	Max   float64 `json:"max" mapstructure:"max"`
	Label string  `json:"label" mapstructure:"label"`
}

// DefaultBands covers [0,100] in five tiers.
func DefaultBands() []Band {
	return []Band{
		{Min: 95, Max: 100, Label: "reference"},
		{Min: 85, Max: 95, Label: "strong"},
		{Min: 70, Max: 85, Label: "adequate"},
		{Min: 50, Max: 70, Label: "weak"},
		{Min: 0, Max: 50, Label: "draft"},
	}
}

// Default pool size and per-dimension floor.
const (
	DefaultWorkers = 4
	DefaultFloor   = 90.0
)

// CompositeConfig wires weights, floors, the tier table, and the worker
// pool bound. Weights must sum to 1.0 over the registered dimensions;
// dimensions absent from the map carry weight zero but still gate
// refinement through their floor.
type CompositeConfig struct {
	Weights      map[string]float64
	Floors       map[string]float64
	DefaultFloor float64
	Workers      int
	Bands        []Band
}

// Assessment is the outcome of one composite evaluation. The zero value
// is the unscored state; Assess returns it with Scored set.
type Assessment struct {
	Scored    bool               `json:"scored"`
	Score     float64            `json:"score"`
	Tier      string             `json:"tier"`
	SubScores map[string]float64 `json:"sub_scores"`
	Results   []Result           `json:"results"`

	// Failing lists dimensions whose sub-score fell below their floor,
	// in battery order. The refiner applies one operation per entry.
	Failing []string `json:"failing,omitempty"`

	// Critical lists dimensions that produced a CRITICAL finding, in
	// battery order. Refiners configured with a critical veto target
	// these even when the sub-score clears its floor.
	Critical []string `json:"critical,omitempty"`
}

// HasCritical reports whether any finding carries CRITICAL severity.
func (a Assessment) HasCritical() bool {
	for _, r := range a.Results {
		if r.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// Composite fans content out to every validator on a bounded pool and
// folds the reports into one score. A validator that fails or panics is
// isolated: it contributes a zero sub-score and a diagnostic finding,
// never an aborted assessment.
type Composite struct {
	validators   []Validator
	weights      map[string]float64
	floors       map[string]float64
	defaultFloor float64
	workers      int
	bands        []Band
	lowestTier   string
	logger       *log.Logger
}

// NewComposite builds the engine. The validator slice order is the
// refinement discovery order.
func NewComposite(cfg CompositeConfig, validators []Validator, logger *log.Logger) (*Composite, error) {
	if logger == nil {
		logger = log.Default()
	}
	if len(validators) == 0 {
		return nil, fmt.Errorf("validate: no validators configured")
	}

	known := make(map[string]bool, len(validators))
	for _, v := range validators {
		if known[v.Name()] {
			return nil, fmt.Errorf("validate: duplicate dimension %q", v.Name())
		}
		known[v.Name()] = true
	}

	sum := 0.0
	for name, w := range cfg.Weights {
		if !known[name] {
			return nil, fmt.Errorf("validate: weight for unknown dimension %q", name)
		}
		if w < 0 {
			return nil, fmt.Errorf("validate: negative weight for %q", name)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-3 {
		return nil, fmt.Errorf("validate: dimension weights sum to %.3f, want 1.0", sum)
	}
	for name := range cfg.Floors {
		if !known[name] {
			return nil, fmt.Errorf("validate: floor for unknown dimension %q", name)
		}
	}

	bands := cfg.Bands
	if len(bands) == 0 {
		bands = DefaultBands()
	}
	lowest, err := CheckBands(bands)
	if err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	floor := cfg.DefaultFloor
	if floor <= 0 {
		floor = DefaultFloor
	}

	return &Composite{
		validators:   validators,
		weights:      cfg.Weights,
		floors:       cfg.Floors,
		defaultFloor: floor,
		workers:      workers,
		bands:        bands,
		lowestTier:   lowest,
		logger:       logger,
	}, nil
}

// CheckBands verifies the tier table is non-overlapping and covers
// [0,100], returning the lowest band's label as the fallback tier.
func CheckBands(bands []Band) (string, error) {
	if len(bands) == 0 {
		return "", fmt.Errorf("validate: tier band table is empty")
	}
	sorted := append([]Band(nil), bands...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Min < sorted[j].Min })

	if sorted[0].Min != 0 {
		return "", fmt.Errorf("validate: tier bands start at %.1f, want 0", sorted[0].Min)
	}
	for i, b := range sorted {
		if b.Max <= b.Min {
			return "", fmt.Errorf("validate: tier band %q has max %.1f <= min %.1f", b.Label, b.Max, b.Min)
		}
		if i > 0 && b.Min != sorted[i-1].Max {
			return "", fmt.Errorf("validate: tier bands leave a gap between %.1f and %.1f", sorted[i-1].Max, b.Min)
		}
	}
	if last := sorted[len(sorted)-1]; last.Max != 100 {
		return "", fmt.Errorf("validate: tier bands end at %.1f, want 100", last.Max)
	}
	return sorted[0].Label, nil
}

// Dimensions returns the battery's dimension names in discovery order.
func (c *Composite) Dimensions() []string {
	names := make([]string, len(c.validators))
	for i, v := range c.validators {
		names[i] = v.Name()
	}
	return names
}

// Assess runs every validator against content and combines their reports.
// The only error path is context cancellation; validator malfunctions are
// absorbed per dimension.
func (c *Composite) Assess(ctx context.Context, content string) (Assessment, error) {
	reports := make([]Report, len(c.validators))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, v := range c.validators {
		i, v := i, v
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			reports[i] = c.runIsolated(v, content)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Assessment{}, fmt.Errorf("validate: assessment aborted: %w", err)
	}

	a := Assessment{
		Scored:    true,
		SubScores: make(map[string]float64, len(c.validators)),
	}
	for i, v := range c.validators {
		name := v.Name()
		sub := reports[i].Score
		a.SubScores[name] = sub
		a.Score += c.weights[name] * sub
		if sub < c.floorFor(name) {
			a.Failing = append(a.Failing, name)
		}
		critical := false
		for _, res := range reports[i].Results {
			res.Dimension = name
			a.Results = append(a.Results, res)
			critical = critical || res.Severity == SeverityCritical
		}
		if critical {
			a.Critical = append(a.Critical, name)
		}
	}
	a.Tier = c.tierFor(a.Score)
	return a, nil
}

// runIsolated shields the assessment from a malfunctioning validator.
func (c *Composite) runIsolated(v Validator, content string) (report Report) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Printf("validate: %s panicked: %v", v.Name(), r)
			report = neutralReport(v, fmt.Sprintf("validator panicked: %v", r))
		}
	}()

	rep, err := v.Validate(content)
	if err != nil {
		c.logger.Printf("validate: %s failed: %v", v.Name(), err)
		return neutralReport(v, fmt.Sprintf("validator failed: %v", err))
	}
	return rep
}

func neutralReport(v Validator, issue string) Report {
	return Report{
		Score: 0,
		Results: []Result{{
			Category:   v.Category(),
			Severity:   SeverityWarning,
			Issue:      fmt.Sprintf("%s dimension unavailable: %s", v.Name(), issue),
			Suggestion: "inspect the validator diagnostic in the logs",
		}},
	}
}

func (c *Composite) floorFor(name string) float64 {
	if f, ok := c.floors[name]; ok {
		return f
	}
	return c.defaultFloor
}

func (c *Composite) tierFor(score float64) string {
	for _, b := range c.bands {
		if score >= b.Min && (score < b.Max || b.Max == 100) {
			return b.Label
		}
	}
	return c.lowestTier
}
