package export

import "strings"

// Slug converts a subject into a stable lowercase filename stem:
// ASCII letters and digits survive, every other run of characters
// collapses to a single hyphen.
func Slug(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			pending = false
			b.WriteRune(r)
		default:
			pending = true
		}
	}
	if b.Len() == 0 {
		return "entry"
	}
	return b.String()
}
