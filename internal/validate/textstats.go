package validate

import (
	"regexp"
	"strings"
)

var headingPattern = regexp.MustCompile(`(?m)^#{2,4}\s+\S`)

func wordCount(content string) int {
	return len(strings.Fields(content))
}

// paragraphs splits on blank lines, dropping headings and empties.
func paragraphs(content string) []string {
	blocks := strings.Split(content, "\n\n")
	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		b = strings.TrimSpace(b)
		if b == "" || strings.HasPrefix(b, "#") {
			continue
		}
		out = append(out, b)
	}
	return out
}

func headingCount(content string) int {
	return len(headingPattern.FindAllString(content, -1))
}

// per1000 normalizes a raw count by entry length so short and long entries
// are judged on the same scale.
func per1000(count, words int) float64 {
	if words == 0 {
		return 0
	}
	return float64(count) / float64(words) * 1000
}

// ratioScore maps actual/target to 0..100, saturating at the target.
func ratioScore(actual, target float64) float64 {
	if target <= 0 {
		return 100
	}
	r := actual / target
	if r > 1 {
		r = 1
	}
	return r * 100
}
