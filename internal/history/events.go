package history

import "time"

// RunStarted is recorded when a command starts a run.
type RunStarted struct {
	Command string `json:"command"`
	Project string `json:"project"`
	Version string `json:"version"`
	Modules int    `json:"modules"`
}

// StepFinished is recorded for every terminal graph node.
type StepFinished struct {
	Step       string `json:"step"`
	Module     string `json:"module,omitempty"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// SubmissionFinished is recorded for every (module, target) submission.
type SubmissionFinished struct {
	Module     string `json:"module"`
	Target     string `json:"target"`
	OK         bool   `json:"ok"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// ReleaseTransition is recorded for every coordinator state change.
type ReleaseTransition struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
	Tag    string `json:"tag,omitempty"`
}

// RunCompleted closes a run.
type RunCompleted struct {
	Status     string            `json:"status"`
	DurationMS int64             `json:"duration_ms"`
	Excluded   []string          `json:"excluded,omitempty"`
	Artifacts  map[string]string `json:"artifacts,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// NewRunStarted creates a RunStarted event.
func NewRunStarted(runID string, p RunStarted) (*Event, error) {
	return newEvent(runID, TypeRunStarted, p)
}

// NewStepFinished creates a StepFinished event.
func NewStepFinished(runID, step, module, status string, d time.Duration, err error) (*Event, error) {
	p := StepFinished{Step: step, Module: module, Status: status, DurationMS: d.Milliseconds()}
	if err != nil {
		p.Error = err.Error()
	}
	return newEvent(runID, TypeStepFinished, p)
}

// NewSubmissionFinished creates a SubmissionFinished event.
func NewSubmissionFinished(runID, module, target string, d time.Duration, err error) (*Event, error) {
	p := SubmissionFinished{Module: module, Target: target, OK: err == nil, DurationMS: d.Milliseconds()}
	if err != nil {
		p.Error = err.Error()
	}
	return newEvent(runID, TypeSubmissionFinished, p)
}

// NewReleaseTransition creates a ReleaseTransition event.
func NewReleaseTransition(runID string, p ReleaseTransition) (*Event, error) {
	return newEvent(runID, TypeReleaseTransition, p)
}

// NewRunCompleted creates a RunCompleted event.
func NewRunCompleted(runID string, p RunCompleted) (*Event, error) {
	return newEvent(runID, TypeRunCompleted, p)
}
