// Package version holds build metadata of the shipwright binary.
package version

import "fmt"

// Version is set at build time:
// go build -ldflags "-X git.home.luguber.info/inful/shipwright/internal/version.Version=v1.0.0".
var Version = "unknown"

// Build metadata, set the same way.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String is the one-line version banner printed by --version.
func String() string {
	return fmt.Sprintf("shipwright %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
