// Package ops holds the embedded instruction prompts for the targeted
// refinement operations. Each operation's prompt scopes one regeneration
// call to a single narrow objective.
package ops

import (
	_ "embed"
	"strings"
)

//go:embed expand.md
var expand string

//go:embed deepen.md
var deepen string

//go:embed smooth.md
var smooth string

//go:embed rebalance.md
var rebalance string

//go:embed retone.md
var retone string

//go:embed cite.md
var cite string

// promptMap maps operation names to their embedded prompt content.
var promptMap = map[string]string{
	"EXPAND":    expand,
	"DEEPEN":    deepen,
	"SMOOTH":    smooth,
	"REBALANCE": rebalance,
	"RETONE":    retone,
	"CITE":      cite,
}

// Get returns the static instruction prompt for the given operation.
// Operation should be one of: expand, deepen, smooth, rebalance, retone,
// cite. Returns empty string for unknown operations.
func Get(operation string) string {
	return promptMap[strings.ToUpper(operation)]
}

// Ops returns the known operation names.
func Ops() []string {
	return []string{"expand", "deepen", "smooth", "rebalance", "retone", "cite"}
}
