package graph

import (
	"cmp"
	"errors"
	"slices"
	"time"
)

// Status is the terminal state of a node.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// ErrDependencyFailed marks nodes skipped because a hard dependency did not succeed.
var ErrDependencyFailed = errors.New("dependency did not succeed")

// Result is the outcome of one node.
type Result struct {
	ID       NodeID
	Kind     NodeKind
	Module   string
	Status   Status
	Value    any // set even when the task failed, if it returned one
	Err      error
	Started  time.Time
	Finished time.Time
}

func (r Result) Duration() time.Duration {
	if r.Started.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

func (r Result) Succeeded() bool { return r.Status == StatusSucceeded }

// Results maps node ids to outcomes.
type Results map[NodeID]Result

// ByKind returns the results of one kind, in id order.
func (rs Results) ByKind(kind NodeKind) []Result {
	var out []Result
	for _, r := range rs {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b Result) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Value returns the value of a succeeded node.
func (rs Results) Value(id NodeID) (any, bool) {
	r, ok := rs[id]
	if !ok || !r.Succeeded() {
		return nil, false
	}
	return r.Value, true
}
