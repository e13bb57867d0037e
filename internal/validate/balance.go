package validate

import (
	"fmt"
	"regexp"
)

// traditionPatterns groups the major traditions an encyclopedia entry is
// expected to engage. Balance is judged by how many groups appear, not by
// favoring any of them.
var traditionPatterns = map[string]*regexp.Regexp{
	"catholic":   regexp.MustCompile(`(?i)\b(catholic|roman catholicism|magisterium|papal)\b`),
	"orthodox":   regexp.MustCompile(`(?i)\b(orthodox|byzantine|eastern church)\b`),
	"protestant": regexp.MustCompile(`(?i)\b(protestant|reformed|lutheran|evangelical|calvinis\w+|wesleyan)\b`),
	"patristic":  regexp.MustCompile(`(?i)\b(patristic|church fathers|augustine|athanasius|chrysostom|origen)\b`),
	"scholastic": regexp.MustCompile(`(?i)\b(scholastic|aquinas|medieval theology|summa)\b`),
}

// polemicalPatterns flags sweeping absolutist phrasing that has no place
// in a reference work. Any match is a CRITICAL finding.
var polemicalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bthe only true (church|faith|tradition)\b`),
	regexp.MustCompile(`(?i)\ball other (traditions|churches|denominations) are\b`),
	regexp.MustCompile(`(?i)\b(heretic|heretical)s?\b[^.]{0,40}\b(deserve|must be)\b`),
	regexp.MustCompile(`(?i)\bfalse church(es)?\b`),
}

const balanceTargetTraditions = 3.0

// balanceValidator checks that the entry engages multiple traditions and
// avoids one-sided or polemical treatment.
type balanceValidator struct{}

// NewBalance creates the balance validator.
func NewBalance() Validator { return &balanceValidator{} }

func (v *balanceValidator) Name() string       { return DimensionBalance }
func (v *balanceValidator) Category() Category { return CategoryTheological }

func (v *balanceValidator) Validate(content string) (Report, error) {
	counts := make(map[string]int, len(traditionPatterns))
	total := 0
	engaged := 0
	for name, pattern := range traditionPatterns {
		n := len(pattern.FindAllString(content, -1))
		counts[name] = n
		total += n
		if n > 0 {
			engaged++
		}
	}

	score := ratioScore(float64(engaged), balanceTargetTraditions)

	report := Report{
		Score: score,
		Metrics: map[string]float64{
			"traditions_engaged": float64(engaged),
			"tradition_mentions": float64(total),
		},
	}

	if engaged < int(balanceTargetTraditions) {
		report.Results = append(report.Results, Result{
			Category:   CategoryTheological,
			Severity:   SeverityWarning,
			Issue:      fmt.Sprintf("only %d of %d tradition groups engaged", engaged, len(traditionPatterns)),
			Suggestion: "present how the major traditions treat the subject",
		})
	}

	// Dominance check: one tradition carrying >80% of mentions reads as
	// advocacy rather than survey.
	for name, n := range counts {
		if total >= 5 && float64(n)/float64(total) > 0.8 {
			report.Results = append(report.Results, Result{
				Category:   CategoryTheological,
				Severity:   SeverityWarning,
				Issue:      fmt.Sprintf("treatment leans heavily on the %s perspective (%d of %d mentions)", name, n, total),
				Suggestion: "give comparable space to other traditions",
			})
		}
	}

	for _, pattern := range polemicalPatterns {
		if m := pattern.FindString(content); m != "" {
			report.Results = append(report.Results, Result{
				Category:   CategoryTheological,
				Severity:   SeverityCritical,
				Issue:      fmt.Sprintf("polemical phrasing: %q", m),
				Suggestion: "describe positions; do not adjudicate between traditions",
			})
		}
	}

	if len(report.Results) == 0 {
		report.Results = append(report.Results, Result{
			Category: CategoryTheological,
			Passed:   true,
			Severity: SeverityInfo,
			Issue:    "traditions receive balanced treatment",
		})
	}

	return report, nil
}
