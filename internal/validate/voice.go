package validate

import (
	"fmt"
	"regexp"
)

// Register violations: an encyclopedia speaks in the third person, without
// contractions, slang, or exhortation.
var (
	personalPattern    = regexp.MustCompile(`(?i)\b(i|we|you|my|our|your)\b`)
	contractionPattern = regexp.MustCompile(`\b\w+'(t|s|re|ll|ve|d)\b`)
	colloquialPattern  = regexp.MustCompile(`(?i)\b(a lot|basically|pretty much|kind of|sort of|stuff|awesome|amazing)\b`)
	exclamationPattern = regexp.MustCompile(`!`)
)

// voiceValidator scores adherence to the academic reference register.
// Each violation class costs points per occurrence per 1000 words.
type voiceValidator struct{}

// NewVoice creates the voice validator.
func NewVoice() Validator { return &voiceValidator{} }

func (v *voiceValidator) Name() string       { return DimensionVoice }
func (v *voiceValidator) Category() Category { return CategoryStyle }

func (v *voiceValidator) Validate(content string) (Report, error) {
	words := wordCount(content)

	personal := len(personalPattern.FindAllString(content, -1))
	contractions := len(contractionPattern.FindAllString(content, -1))
	colloquial := len(colloquialPattern.FindAllString(content, -1))
	exclamations := len(exclamationPattern.FindAllString(content, -1))

	// Per-1000-word penalty weights; personal address is the worst
	// offense for a reference work.
	penalty := per1000(personal, words)*8 +
		per1000(contractions, words)*4 +
		per1000(colloquial, words)*6 +
		per1000(exclamations, words)*5
	score := 100 - penalty
	if score < 0 {
		score = 0
	}

	report := Report{
		Score: score,
		Metrics: map[string]float64{
			"personal_pronouns": float64(personal),
			"contractions":      float64(contractions),
			"colloquialisms":    float64(colloquial),
			"exclamations":      float64(exclamations),
		},
	}

	if personal > 0 {
		report.Results = append(report.Results, Result{
			Category:   CategoryStyle,
			Severity:   SeverityWarning,
			Issue:      fmt.Sprintf("%d first/second-person pronouns break the reference register", personal),
			Suggestion: "recast in the third person",
		})
	}
	if contractions > 0 {
		report.Results = append(report.Results, Result{
			Category:   CategoryStyle,
			Severity:   SeverityInfo,
			Issue:      fmt.Sprintf("%d contractions found", contractions),
			Suggestion: "expand contractions",
		})
	}
	if colloquial > 0 {
		report.Results = append(report.Results, Result{
			Category:   CategoryStyle,
			Severity:   SeverityWarning,
			Issue:      fmt.Sprintf("%d colloquialisms found", colloquial),
			Suggestion: "replace informal phrasing with precise terms",
		})
	}
	if exclamations > 0 {
		report.Results = append(report.Results, Result{
			Category:   CategoryStyle,
			Severity:   SeverityInfo,
			Issue:      fmt.Sprintf("%d exclamation marks found", exclamations),
			Suggestion: "state emphasis through argument, not punctuation",
		})
	}
	if len(report.Results) == 0 {
		report.Results = append(report.Results, Result{
			Category: CategoryStyle,
			Passed:   true,
			Severity: SeverityInfo,
			Issue:    "entry holds the academic register",
		})
	}

	return report, nil
}
