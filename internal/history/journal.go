package history

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/shipwright/internal/logfields"
)

// Journal appends events for one run. A nil store makes every call a no-op.
// Append failures are logged and never fail the run.
type Journal struct {
	store Store
	runID string
}

// NewJournal binds store to runID.
func NewJournal(store Store, runID string) *Journal {
	return &Journal{store: store, runID: runID}
}

// RunID returns the bound run id.
func (j *Journal) RunID() string { return j.runID }

func (j *Journal) record(ctx context.Context, e *Event, err error) {
	if j == nil || j.store == nil {
		return
	}
	if err == nil {
		err = j.store.Append(context.WithoutCancel(ctx), e)
	}
	if err != nil {
		slog.Warn("Failed to record run history", logfields.RunID(j.runID), logfields.Error(err))
	}
}

// Started records RunStarted.
func (j *Journal) Started(ctx context.Context, p RunStarted) {
	if j == nil {
		return
	}
	e, err := NewRunStarted(j.runID, p)
	j.record(ctx, e, err)
}

// Step records StepFinished.
func (j *Journal) Step(ctx context.Context, step, module, status string, d time.Duration, stepErr error) {
	if j == nil {
		return
	}
	e, err := NewStepFinished(j.runID, step, module, status, d, stepErr)
	j.record(ctx, e, err)
}

// Submission records SubmissionFinished.
func (j *Journal) Submission(ctx context.Context, module, target string, d time.Duration, subErr error) {
	if j == nil {
		return
	}
	e, err := NewSubmissionFinished(j.runID, module, target, d, subErr)
	j.record(ctx, e, err)
}

// Transition records ReleaseTransition.
func (j *Journal) Transition(ctx context.Context, p ReleaseTransition) {
	if j == nil {
		return
	}
	e, err := NewReleaseTransition(j.runID, p)
	j.record(ctx, e, err)
}

// Completed records RunCompleted.
func (j *Journal) Completed(ctx context.Context, p RunCompleted) {
	if j == nil {
		return
	}
	e, err := NewRunCompleted(j.runID, p)
	j.record(ctx, e, err)
}
