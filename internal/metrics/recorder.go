package metrics

import "time"

// ResultLabel enumerates step and submission result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
	ResultSkipped ResultLabel = "skipped"
)

// Recorder defines observability hooks for run, step and submission metrics.
type Recorder interface {
	ObserveStepDuration(step string, d time.Duration)
	IncStepResult(step string, result ResultLabel)
	ObserveSubmitDuration(target string, d time.Duration)
	IncSubmitResult(target string, result ResultLabel)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(outcome string) // success|partial|failure
	SetExcludedModules(n int)
	IncReleaseState(state string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStepDuration(string, time.Duration)   {}
func (NoopRecorder) IncStepResult(string, ResultLabel)           {}
func (NoopRecorder) ObserveSubmitDuration(string, time.Duration) {}
func (NoopRecorder) IncSubmitResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveRunDuration(time.Duration)            {}
func (NoopRecorder) IncRunOutcome(string)                        {}
func (NoopRecorder) SetExcludedModules(int)                      {}
func (NoopRecorder) IncReleaseState(string)                      {}
