// Package version holds build-time variables injected by goreleaser ldflags.
package version

import "fmt"

// These vars are overwritten at link time:
//
//	-X github.com/d9705996/marknote/internal/version.Version=v1.2.3
//	-X github.com/d9705996/marknote/internal/version.Commit=abc1234
//	-X github.com/d9705996/marknote/internal/version.Date=2026-02-26T00:00:00Z
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders the build info as printed by `marknote version`.
func String() string {
	return fmt.Sprintf("marknote %s (commit %s, built %s)", Version, Commit, Date)
}
