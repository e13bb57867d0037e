// Package template provides Mustache-style rendering for prompt files.
// Workspace prompt overrides reference generation settings through
// {{variable}} placeholders instead of hardcoding them.
package template

import "regexp"

// variablePattern matches {{variable}} placeholders. Names follow Go
// identifier rules; anything else is left untouched.
var variablePattern = regexp.MustCompile(`\{\{([a-zA-Z_][a-zA-Z0-9_]*)\}\}`)

// RenderPrompt substitutes {{variable}} placeholders in the prompt with
// values from the variables map. Placeholders with no mapping stay in
// the output verbatim, so a prompt referencing an unset variable is
// visible rather than silently blanked.
func RenderPrompt(prompt string, variables map[string]string) string {
	if len(variables) == 0 {
		return prompt
	}
	return variablePattern.ReplaceAllStringFunc(prompt, func(match string) string {
		name := match[2 : len(match)-2]
		if value, ok := variables[name]; ok {
			return value
		}
		return match
	})
}

// MergeVariables overlays variable maps left to right; a later map wins
// on name collision, which lets user-configured values override the
// built-ins. Returns nil when every map is empty.
func MergeVariables(maps ...map[string]string) map[string]string {
	size := 0
	for _, m := range maps {
		size += len(m)
	}
	if size == 0 {
		return nil
	}

	merged := make(map[string]string, size)
	for _, m := range maps {
		for k, v := range m {
			merged[k] = v
		}
	}
	return merged
}
