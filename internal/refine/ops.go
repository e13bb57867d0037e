package refine

import (
	"fmt"
	"strings"

	"github.com/scriptorium-ai/scriptorium/internal/validate"
	"github.com/scriptorium-ai/scriptorium/prompts/ops"
)

// Operation is one targeted refinement pass over existing content.
type Operation string

const (
	OpExpand    Operation = "expand"
	OpDeepen    Operation = "deepen"
	OpSmooth    Operation = "smooth"
	OpRebalance Operation = "rebalance"
	OpRetone    Operation = "retone"
	OpCite      Operation = "cite"
)

// opForDimension maps a deficient quality dimension to the operation
// that addresses it.
var opForDimension = map[string]Operation{
	validate.DimensionDepth:     OpDeepen,
	validate.DimensionLength:    OpExpand,
	validate.DimensionCoherence: OpSmooth,
	validate.DimensionBalance:   OpRebalance,
	validate.DimensionVoice:     OpRetone,
	validate.DimensionCitations: OpCite,
}

// buildPrompt assembles a refinement prompt from the operation's
// embedded instruction, the findings that triggered it, and the current
// content.
func buildPrompt(op Operation, content string, findings []validate.Result) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(ops.Get(string(op))))
	if len(findings) > 0 {
		b.WriteString("\n\nFindings to address:\n")
		for _, r := range validate.RankResults(findings) {
			fmt.Fprintf(&b, "- [%s] %s", r.Severity, r.Issue)
			if r.Suggestion != "" {
				fmt.Fprintf(&b, " (%s)", r.Suggestion)
			}
			b.WriteByte('\n')
		}
	}
	b.WriteString("\nEntry:\n\n")
	b.WriteString(content)
	return b.String()
}

// dimensionFindings filters an assessment's findings to one dimension,
// dropping passed checks.
func dimensionFindings(results []validate.Result, dimension string) []validate.Result {
	var out []validate.Result
	for _, r := range results {
		if r.Dimension == dimension && !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
