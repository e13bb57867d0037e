// Package prompts embeds the default generation prompts shipped with
// the binary. A prompts/SYSTEM.md in the working directory overrides
// the embedded copy.
package prompts

import _ "embed"

//go:embed SYSTEM.md
var System string
