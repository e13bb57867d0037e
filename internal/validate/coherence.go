package validate

import (
	"fmt"
	"regexp"
	"strings"
)

// transitionPattern matches discourse markers that bind paragraphs into an
// argument rather than a list of facts.
var transitionPattern = regexp.MustCompile(`(?i)\b(however|moreover|therefore|consequently|furthermore|nevertheless|by contrast|in turn|likewise|similarly|thus|accordingly)\b`)

const (
	coherenceTargetTransitions = 0.5 // per paragraph
	coherenceTargetLexical     = 0.4 // distinct ratio among substantive words
)

// coherenceValidator measures whether the entry reads as connected prose:
// transition-marker coverage, opening-word variety, and lexical range.
type coherenceValidator struct{}

// NewCoherence creates the coherence validator.
func NewCoherence() Validator { return &coherenceValidator{} }

func (v *coherenceValidator) Name() string       { return DimensionCoherence }
func (v *coherenceValidator) Category() Category { return CategoryStyle }

func (v *coherenceValidator) Validate(content string) (Report, error) {
	paras := paragraphs(content)
	transitions := len(transitionPattern.FindAllString(content, -1))

	perPara := 0.0
	if len(paras) > 0 {
		perPara = float64(transitions) / float64(len(paras))
	}

	repeats := repeatedOpeners(paras)
	lexical := lexicalVariety(content)

	transitionScore := ratioScore(perPara, coherenceTargetTransitions)
	varietyScore := 100.0
	if len(paras) > 1 {
		varietyScore = (1 - float64(repeats)/float64(len(paras)-1)) * 100
	}
	lexicalScore := ratioScore(lexical, coherenceTargetLexical)
	score := transitionScore*0.4 + varietyScore*0.3 + lexicalScore*0.3

	report := Report{
		Score: score,
		Metrics: map[string]float64{
			"paragraphs":               float64(len(paras)),
			"transitions_per_paragraph": perPara,
			"repeated_openers":         float64(repeats),
			"lexical_variety":          lexical,
		},
	}

	if perPara < coherenceTargetTransitions {
		report.Results = append(report.Results, Result{
			Category:   CategoryStyle,
			Severity:   SeverityWarning,
			Issue:      fmt.Sprintf("%.2f transition markers per paragraph; argument flow may be choppy", perPara),
			Suggestion: "connect paragraphs with explicit transitions between claims",
		})
	}
	if repeats > 0 {
		report.Results = append(report.Results, Result{
			Category:   CategoryStyle,
			Severity:   SeverityInfo,
			Issue:      fmt.Sprintf("%d consecutive paragraphs open with the same word", repeats+1),
			Suggestion: "vary paragraph openings",
		})
	}
	if lexical < coherenceTargetLexical {
		report.Results = append(report.Results, Result{
			Category:   CategoryStyle,
			Severity:   SeverityWarning,
			Issue:      fmt.Sprintf("lexical variety %.2f is low; phrasing may be repetitive", lexical),
			Suggestion: "rework repeated phrasings and stock sentences",
		})
	}
	if len(report.Results) == 0 {
		report.Results = append(report.Results, Result{
			Category: CategoryStyle,
			Passed:   true,
			Severity: SeverityInfo,
			Issue:    "prose reads as connected argument",
		})
	}

	return report, nil
}

// repeatedOpeners counts adjacent paragraph pairs sharing a first word.
func repeatedOpeners(paras []string) int {
	repeats := 0
	prev := ""
	for _, p := range paras {
		fields := strings.Fields(p)
		if len(fields) == 0 {
			continue
		}
		opener := strings.ToLower(strings.Trim(fields[0], ".,;:"))
		if opener != "" && opener == prev {
			repeats++
		}
		prev = opener
	}
	return repeats
}

// lexicalVariety is the distinct ratio among words longer than four
// characters, a cheap proxy for repetitive phrasing.
func lexicalVariety(content string) float64 {
	seen := make(map[string]bool)
	total := 0
	for _, w := range strings.Fields(content) {
		w = strings.ToLower(strings.Trim(w, ".,;:()\"'"))
		if len(w) <= 4 {
			continue
		}
		total++
		seen[w] = true
	}
	if total == 0 {
		return 0
	}
	return float64(len(seen)) / float64(total)
}
