package validate

import (
	"fmt"
	"regexp"
)

// scripturePattern matches well-formed scripture references such as
// "John 3:16", "1 Corinthians 13:4-7", or "Genesis 1:1". Shared with the
// depth validator.
var scripturePattern = regexp.MustCompile(`\b(?:[1-3]\s)?[A-Z][a-z]+(?:\s[A-Z][a-z]+)?\s\d{1,3}:\d{1,3}(?:[-–]\d{1,3})?\b`)

// bareRefPattern catches chapter:verse fragments with no book name, the
// most common malformation in generated text. Times of day (12:30) are
// indistinguishable, so findings stay at WARNING.
var bareRefPattern = regexp.MustCompile(`(?:^|[\s(])(\d{1,3}:\d{1,3}(?:[-–]\d{1,3})?)\b`)

const citationTargetPer1000 = 2.0

// citationsValidator checks that scripture references are present and
// well-formed. The score mixes formation quality (60%) with reference
// density (40%).
type citationsValidator struct{}

// NewCitations creates the citation validator.
func NewCitations() Validator { return &citationsValidator{} }

func (v *citationsValidator) Name() string       { return DimensionCitations }
func (v *citationsValidator) Category() Category { return CategoryCitation }

func (v *citationsValidator) Validate(content string) (Report, error) {
	words := wordCount(content)
	wellFormed := scripturePattern.FindAllString(content, -1)

	// A bare fragment inside a well-formed reference is not malformed;
	// count only fragments the full pattern did not claim.
	total := len(bareRefPattern.FindAllString(content, -1))
	malformed := total - len(wellFormed)
	if malformed < 0 {
		malformed = 0
	}

	formation := 1.0
	if len(wellFormed)+malformed > 0 {
		formation = float64(len(wellFormed)) / float64(len(wellFormed)+malformed)
	}
	density := per1000(len(wellFormed), words)
	score := formation*60 + ratioScore(density, citationTargetPer1000)*0.4

	report := Report{
		Score: score,
		Metrics: map[string]float64{
			"well_formed":    float64(len(wellFormed)),
			"malformed":      float64(malformed),
			"refs_per_1000":  density,
			"formation_rate": formation,
		},
	}

	if malformed > 0 {
		report.Results = append(report.Results, Result{
			Category:   CategoryCitation,
			Severity:   SeverityWarning,
			Issue:      fmt.Sprintf("%d bare chapter:verse fragments lack a book name", malformed),
			Suggestion: "cite scripture in Book chapter:verse form",
		})
	}
	if density < citationTargetPer1000 {
		report.Results = append(report.Results, Result{
			Category:   CategoryCitation,
			Severity:   SeverityWarning,
			Issue:      fmt.Sprintf("%.1f scripture citations per 1000 words; expected %.0f", density, citationTargetPer1000),
			Suggestion: "add citations where doctrinal claims rest on scripture",
		})
	}
	if len(report.Results) == 0 {
		report.Results = append(report.Results, Result{
			Category: CategoryCitation,
			Passed:   true,
			Severity: SeverityInfo,
			Issue:    "citations are present and well-formed",
		})
	}

	return report, nil
}
