// Package release drives a release run: branch gate, tag, publish.
package release

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
)

// State of a release run.
type State string

const (
	StateIdle          State = "idle"
	StateBranchChecked State = "branch_checked"
	StateTagged        State = "tagged"
	StatePublishing    State = "publishing"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }

// Reason explains a Failed state.
type Reason string

const (
	ReasonBranchMismatch   Reason = "BranchMismatch"
	ReasonTagError         Reason = "TagError"
	ReasonBuildError       Reason = "BuildError"
	ReasonNothingToPublish Reason = "NothingToPublish"
	ReasonPublishError     Reason = "PublishError"
)

// Pair names one failed submission.
type Pair struct {
	Module string
	Target string
}

func (p Pair) String() string { return p.Module + "@" + p.Target }

// Error is the failure of a release run. From is the state the run was in
// when it failed.
type Error struct {
	Reason Reason
	From   State
	Failed []Pair // PublishError only, sorted
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "release failed in %s: %s", e.From, e.Reason)
	if len(e.Failed) > 0 {
		parts := make([]string, len(e.Failed))
		for i, p := range e.Failed {
			parts[i] = p.String()
		}
		fmt.Fprintf(&b, " [%s]", strings.Join(parts, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func sortPairs(pairs []Pair) {
	slices.SortFunc(pairs, func(a, b Pair) int {
		if c := cmp.Compare(a.Module, b.Module); c != 0 {
			return c
		}
		return cmp.Compare(a.Target, b.Target)
	})
}

func classified(e *Error) error {
	b := ferrors.WrapError(e, ferrors.CategoryRelease, "release "+string(e.Reason)).
		WithContext("reason", string(e.Reason)).
		WithContext("state", string(e.From))
	if e.Reason != ReasonPublishError {
		b = b.Fatal()
	}
	return b.Build()
}

// Transition is one recorded state change.
type Transition struct {
	From   State
	To     State
	Reason Reason
	At     time.Time
}
