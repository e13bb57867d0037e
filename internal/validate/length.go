package validate

import "fmt"

// Default word-count band for a full encyclopedia entry.
const (
	DefaultMinWords = 2000
	DefaultMaxWords = 6000
)

// lengthValidator checks the entry's word count against the configured
// band. Under-length entries score proportionally to how close they come
// to the minimum; over-length entries lose up to 30 points.
type lengthValidator struct {
	minWords int
	maxWords int
}

// NewLength creates the length validator. Zero bounds select the defaults.
func NewLength(minWords, maxWords int) Validator {
	if minWords <= 0 {
		minWords = DefaultMinWords
	}
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	return &lengthValidator{minWords: minWords, maxWords: maxWords}
}

func (v *lengthValidator) Name() string       { return DimensionLength }
func (v *lengthValidator) Category() Category { return CategoryStructural }

func (v *lengthValidator) Validate(content string) (Report, error) {
	words := wordCount(content)
	report := Report{
		Metrics: map[string]float64{
			"word_count": float64(words),
			"min_words":  float64(v.minWords),
			"max_words":  float64(v.maxWords),
		},
	}

	switch {
	case words < v.minWords:
		report.Score = float64(words) / float64(v.minWords) * 100
		severity := SeverityWarning
		if words < v.minWords/2 {
			severity = SeverityCritical
		}
		report.Results = append(report.Results, Result{
			Category: CategoryStructural,
			Severity: severity,
			Issue:    fmt.Sprintf("entry is %d words, below the %d-word minimum", words, v.minWords),
			Suggestion: "expand under-developed sections with historical context and doctrinal detail",
		})
	case words > v.maxWords:
		over := float64(words-v.maxWords) / float64(v.maxWords) * 100
		if over > 30 {
			over = 30
		}
		report.Score = 100 - over
		report.Results = append(report.Results, Result{
			Category:   CategoryStructural,
			Passed:     true,
			Severity:   SeverityInfo,
			Issue:      fmt.Sprintf("entry is %d words, above the %d-word target", words, v.maxWords),
			Suggestion: "tighten digressive passages",
		})
	default:
		report.Score = 100
		report.Results = append(report.Results, Result{
			Category: CategoryStructural,
			Passed:   true,
			Severity: SeverityInfo,
			Issue:    fmt.Sprintf("entry length %d words is within the target band", words),
		})
	}

	return report, nil
}
