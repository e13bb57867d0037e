// Package validate scores encyclopedia entries against independent
// heuristic validators and combines their sub-scores into a single
// weighted composite. Validators are stateless pure functions over the
// content string; they share no mutable state and are safe to run
// concurrently.
package validate

import "sort"

// Category groups validators by the kind of rule they check.
type Category string

const (
	CategoryTheological Category = "THEOLOGICAL"
	CategoryStyle       Category = "STYLE"
	CategoryCitation    Category = "CITATION"
	CategoryStructural  Category = "STRUCTURAL"
)

// Dimension names of the standard battery.
const (
	DimensionDepth     = "depth"
	DimensionLength    = "length"
	DimensionCoherence = "coherence"
	DimensionBalance   = "balance"
	DimensionVoice     = "voice"
	DimensionCitations = "citations"
)

// Severity ranks how much a finding matters. CRITICAL findings inform
// review and reporting; whether they gate success is the refiner's
// decision, not the validator's.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
	SeverityInfo     Severity = "INFO"
)

// Result is one finding from one validator. Results are produced fresh on
// every validation call and never mutated. Dimension is stamped by the
// composite engine; individual validators leave it empty.
type Result struct {
	Dimension  string   `json:"dimension,omitempty"`
	Category   Category `json:"category"`
	Passed     bool     `json:"passed"`
	Severity   Severity `json:"severity"`
	Issue      string   `json:"issue"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Report is a validator's full output for one content string: its
// dimension sub-score on the 0..100 scale plus individual findings and
// raw metrics for diagnostics.
type Report struct {
	Score   float64            `json:"score"`
	Results []Result           `json:"results,omitempty"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// Validator scores one quality dimension of an entry.
type Validator interface {
	// Name is the dimension identifier used for weights, floors, and
	// refinement targeting.
	Name() string

	// Category classifies the validator's findings.
	Category() Category

	// Validate scores content. Implementations must not retain or
	// mutate shared state.
	Validate(content string) (Report, error)
}

func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// RankResults orders findings most severe first, preserving the original
// order within a severity. Used for console summaries and reports.
func RankResults(results []Result) []Result {
	ranked := append([]Result(nil), results...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return severityRank(ranked[i].Severity) < severityRank(ranked[j].Severity)
	})
	return ranked
}
