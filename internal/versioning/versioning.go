// Package versioning computes release and next development versions from
// the project version, the configured strategy and the commit history.
package versioning

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"git.home.luguber.info/inful/shipwright/internal/config"
	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
)

// SnapshotSuffix marks development versions.
const SnapshotSuffix = "SNAPSHOT"

// Bump is a semantic version increment.
type Bump int

const (
	BumpNone Bump = iota
	BumpPatch
	BumpMinor
	BumpMajor
)

func (b Bump) String() string {
	switch b {
	case BumpPatch:
		return "patch"
	case BumpMinor:
		return "minor"
	case BumpMajor:
		return "major"
	default:
		return "none"
	}
}

// Plan is the outcome of version resolution.
type Plan struct {
	Current  string // project version as configured
	Previous string // version of the latest release tag, empty if none
	Release  string // version to tag and publish
	Next     string // next development version
	Bump     Bump
}

// History is what strategies may consult: the latest released version and
// the commit messages after it.
type History struct {
	Previous *semver.Version
	Commits  []string
}

// IsSnapshot reports whether v is a development version.
func IsSnapshot(v string) bool {
	return strings.HasSuffix(strings.ToUpper(v), "-"+SnapshotSuffix)
}

// Resolve computes the release plan for current under strategy.
//
//   - unsnapshot: drop the -SNAPSHOT prerelease
//   - patch|minor|major: increment the latest released version, or use the
//     current base version when nothing was released yet
//   - conventional: like above, with the increment derived from commits
func Resolve(current, strategy string, h History) (Plan, error) {
	v, err := semver.NewVersion(current)
	if err != nil {
		return Plan{}, ferrors.ValidationError(fmt.Sprintf("project version %q is not a semantic version", current)).
			WithCause(err).
			Build()
	}
	base := semver.New(v.Major(), v.Minor(), v.Patch(), "", "")
	plan := Plan{Current: current}
	if h.Previous != nil {
		plan.Previous = h.Previous.String()
	}

	var release *semver.Version
	switch strategy {
	case "", config.StrategyUnsnapshot:
		release = base
		if !IsSnapshot(current) {
			release = v
		}
	case config.StrategyPatch:
		plan.Bump = BumpPatch
	case config.StrategyMinor:
		plan.Bump = BumpMinor
	case config.StrategyMajor:
		plan.Bump = BumpMajor
	case config.StrategyConventional:
		plan.Bump = BumpFromCommits(h.Commits)
	default:
		return Plan{}, ferrors.ValidationError(fmt.Sprintf("unknown version strategy %q", strategy)).Build()
	}

	if release == nil {
		release = increment(base, h.Previous, plan.Bump)
	}
	if h.Previous != nil && !release.GreaterThan(h.Previous) {
		return Plan{}, ferrors.ReleaseError(fmt.Sprintf("release version %s is not newer than the latest release %s", release, h.Previous)).
			WithContext("strategy", strategy).
			Build()
	}

	plan.Release = release.String()
	plan.Next = NextSnapshot(release)
	return plan, nil
}

func increment(base, previous *semver.Version, bump Bump) *semver.Version {
	if previous == nil {
		return base
	}
	var next semver.Version
	switch bump {
	case BumpMajor:
		next = previous.IncMajor()
	case BumpMinor:
		next = previous.IncMinor()
	default:
		next = previous.IncPatch()
	}
	// The configured version may already be ahead of the bump.
	if base.GreaterThan(&next) {
		return base
	}
	return &next
}

// NextSnapshot is the development version following release.
func NextSnapshot(release *semver.Version) string {
	next := release.IncPatch()
	return next.String() + "-" + SnapshotSuffix
}
