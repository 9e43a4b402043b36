package engine

import (
	"context"
	"time"

	"git.home.luguber.info/inful/shipwright/internal/graph"
	"git.home.luguber.info/inful/shipwright/internal/history"
	"git.home.luguber.info/inful/shipwright/internal/logfields"
	"git.home.luguber.info/inful/shipwright/internal/metrics"
	"git.home.luguber.info/inful/shipwright/internal/observability"
	"git.home.luguber.info/inful/shipwright/internal/publication"
)

// stepObserver feeds graph progress into metrics, logs and the run history.
type stepObserver struct {
	ctx      context.Context
	recorder metrics.Recorder
	journal  *history.Journal
}

func (o *stepObserver) NodeStarted(n graph.Node) {
	observability.DebugContext(o.ctx, "Step started", logfields.Step(string(n.ID)))
}

func (o *stepObserver) NodeFinished(n graph.Node, r graph.Result) {
	step := string(n.Kind)
	label := metrics.ResultSuccess
	switch r.Status {
	case graph.StatusFailed:
		label = metrics.ResultFailed
	case graph.StatusSkipped:
		label = metrics.ResultSkipped
	}
	o.recorder.ObserveStepDuration(step, r.Duration())
	o.recorder.IncStepResult(step, label)
	o.journal.Step(o.ctx, step, n.Module, string(r.Status), r.Duration(), r.Err)

	switch r.Status {
	case graph.StatusFailed:
		observability.WarnContext(o.ctx, "Step failed", logfields.Step(string(n.ID)), logfields.Error(r.Err))
	case graph.StatusSkipped:
		observability.DebugContext(o.ctx, "Step skipped", logfields.Step(string(n.ID)), logfields.Error(r.Err))
	default:
		observability.DebugContext(o.ctx, "Step finished", logfields.Step(string(n.ID)), logfields.Duration(r.Duration()))
	}
}

// publisher is what Submitter offers; kept narrow for the journal wrapper.
type publisher interface {
	Submit(ctx context.Context, pub *publication.Publication, targets []publication.Target) []publication.TargetResult
}

// journalPublisher records every submission result in the run history.
type journalPublisher struct {
	inner   publisher
	journal *history.Journal
}

func (p journalPublisher) Submit(ctx context.Context, pub *publication.Publication, targets []publication.Target) []publication.TargetResult {
	start := time.Now()
	results := p.inner.Submit(ctx, pub, targets)
	for _, r := range results {
		d := r.Duration
		if d == 0 {
			d = time.Since(start)
		}
		p.journal.Submission(ctx, r.Module, r.Target, d, r.Err)
	}
	return results
}
