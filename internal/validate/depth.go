package validate

import (
	"fmt"
	"regexp"
	"strings"
)

// Depth targets: a serious entry has multiple sections, engages primary
// sources, and uses the technical vocabulary of the field.
const (
	depthTargetSections    = 4.0
	depthTargetRefsPer1000 = 2.0
	depthTargetTermsPer1000 = 8.0
)

// theologicalTerms is the technical vocabulary scanned for term density.
// Domain content, not algorithmic design; extend freely.
var theologicalTerms = []string{
	"atonement", "christology", "covenant", "doctrine", "ecclesiology",
	"eschatology", "exegesis", "grace", "hermeneutic", "incarnation",
	"justification", "kenosis", "liturgy", "ontological", "patristic",
	"pneumatology", "redemption", "righteousness", "sacrament",
	"salvation", "sanctification", "soteriology", "theodicy", "trinity",
	"typology",
}

var termPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(theologicalTerms, "|") + `)\w*\b`)

// depthValidator measures whether the entry goes beyond surface summary:
// section structure, scripture engagement, and terminology density.
type depthValidator struct{}

// NewDepth creates the depth validator.
func NewDepth() Validator { return &depthValidator{} }

func (v *depthValidator) Name() string       { return DimensionDepth }
func (v *depthValidator) Category() Category { return CategoryStructural }

func (v *depthValidator) Validate(content string) (Report, error) {
	words := wordCount(content)
	sections := headingCount(content)
	refs := len(scripturePattern.FindAllString(content, -1))
	terms := len(termPattern.FindAllString(content, -1))

	refDensity := per1000(refs, words)
	termDensity := per1000(terms, words)

	sectionScore := ratioScore(float64(sections), depthTargetSections)
	refScore := ratioScore(refDensity, depthTargetRefsPer1000)
	termScore := ratioScore(termDensity, depthTargetTermsPer1000)
	score := (sectionScore + refScore + termScore) / 3

	report := Report{
		Score: score,
		Metrics: map[string]float64{
			"sections":          float64(sections),
			"scripture_refs":    float64(refs),
			"refs_per_1000":     refDensity,
			"term_occurrences":  float64(terms),
			"terms_per_1000":    termDensity,
		},
	}

	if sections < int(depthTargetSections) {
		report.Results = append(report.Results, Result{
			Category:   CategoryStructural,
			Severity:   SeverityWarning,
			Issue:      fmt.Sprintf("only %d sections; expected at least %.0f", sections, depthTargetSections),
			Suggestion: "add sections covering historical development and contemporary significance",
		})
	}
	if refDensity < depthTargetRefsPer1000 {
		report.Results = append(report.Results, Result{
			Category:   CategoryStructural,
			Severity:   SeverityWarning,
			Issue:      fmt.Sprintf("%.1f scripture references per 1000 words; expected %.0f", refDensity, depthTargetRefsPer1000),
			Suggestion: "engage primary texts directly where claims rest on them",
		})
	}
	if termDensity < depthTargetTermsPer1000 {
		report.Results = append(report.Results, Result{
			Category:   CategoryStructural,
			Severity:   SeverityInfo,
			Issue:      fmt.Sprintf("technical vocabulary density %.1f per 1000 words is low", termDensity),
			Suggestion: "name the doctrines and movements under discussion precisely",
		})
	}
	if len(report.Results) == 0 {
		report.Results = append(report.Results, Result{
			Category: CategoryStructural,
			Passed:   true,
			Severity: SeverityInfo,
			Issue:    "entry shows expected structural depth",
		})
	}

	return report, nil
}
