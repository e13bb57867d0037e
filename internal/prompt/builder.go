package prompt

import (
	"fmt"
	"strings"
)

// ContextPassage is a retrieved reference excerpt included in the entry
// prompt.
type ContextPassage struct {
	Source  string
	Ref     string
	Content string
}

// BuildEntryPrompt assembles the initial generation prompt for one
// encyclopedia subject: the writing task, the length and structure
// requirements, and any retrieved reference passages.
func BuildEntryPrompt(subject string, passages []ContextPassage, minWords, maxWords int) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Write a complete encyclopedia entry on %q.\n\n", subject))

	sb.WriteString("## Requirements\n\n")
	sb.WriteString(fmt.Sprintf("- Length: between %d and %d words.\n", minWords, maxWords))
	sb.WriteString("- Structure: at least four `##` sections covering definition and scope, " +
		"historical development, the positions of the major traditions, and contemporary significance.\n")
	sb.WriteString("- Cite scripture in Book chapter:verse form wherever doctrinal claims rest on biblical texts.\n")
	sb.WriteString("- Engage the Catholic, Orthodox, and Protestant traditions without adjudicating between them.\n")
	sb.WriteString("- Hold the third-person academic register throughout: no personal address, " +
		"contractions, or exhortation.\n")

	if len(passages) > 0 {
		sb.WriteString("\n## Reference Passages\n\n")
		sb.WriteString("Draw on the following passages where relevant; paraphrase rather than quote wholesale.\n")
		for _, p := range passages {
			sb.WriteString("\n### ")
			sb.WriteString(p.Source)
			if p.Ref != "" {
				sb.WriteString(fmt.Sprintf(" (%s)", p.Ref))
			}
			sb.WriteString("\n\n")
			sb.WriteString(strings.TrimSpace(p.Content))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}
