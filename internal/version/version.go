// Package version exposes the build identity stamped into the binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Stamped at release time via ldflags, for example:
//
//	go build -ldflags="-X github.com/scriptorium-ai/scriptorium/internal/version.Version=v1.0.0"
//
// A plain `go build` leaves Commit and BuildDate empty; the VCS
// metadata the toolchain embeds fills the gaps.
var (
	// Version is the semantic version tag.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = ""

	// BuildDate is the RFC3339 timestamp of the build.
	BuildDate = ""
)

// Short returns the bare version tag, "dev" for unstamped builds.
func Short() string {
	return Version
}

// Info returns the one-line form used by the version command.
// Format: "scriptorium v1.2.3 (commit: abc1234, built: 2024-01-15T10:30:00Z, go: go1.24.x)"
func Info() string {
	commit := resolveCommit()
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("scriptorium %s (commit: %s, built: %s, go: %s)",
		Version, commit, resolveBuildDate(), runtime.Version())
}

// Full returns the multi-line form used by `version --full`.
func Full() string {
	return fmt.Sprintf(`scriptorium %s
  Commit:     %s
  Built:      %s
  Go version: %s
  OS/Arch:    %s/%s`,
		Version, resolveCommit(), resolveBuildDate(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// resolveCommit prefers the ldflags stamp, then the VCS revision the
// toolchain recorded, then "unknown".
func resolveCommit() string {
	if Commit != "" {
		return Commit
	}
	return buildSetting("vcs.revision")
}

func resolveBuildDate() string {
	if BuildDate != "" {
		return BuildDate
	}
	return buildSetting("vcs.time")
}

func buildSetting(key string) string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == key {
				return s.Value
			}
		}
	}
	return "unknown"
}
