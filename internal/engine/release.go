package engine

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/shipwright/internal/history"
	"git.home.luguber.info/inful/shipwright/internal/logfields"
	"git.home.luguber.info/inful/shipwright/internal/notify"
	"git.home.luguber.info/inful/shipwright/internal/observability"
	"git.home.luguber.info/inful/shipwright/internal/publication"
	"git.home.luguber.info/inful/shipwright/internal/release"
	"git.home.luguber.info/inful/shipwright/internal/versioning"
)

// Release runs the release coordinator: branch gate, build at the release
// version, tag and push, then publish to every target. A pushed tag is
// left in place when publishing fails; the report notes it.
func (e *Engine) Release(ctx context.Context) (*Report, error) {
	r := e.begin(ctx, "release", "")

	repo, err := e.repository()
	if err != nil {
		r.report.Err = err
		return e.finish(r)
	}
	targets, err := e.selectTargets(nil)
	if err != nil {
		r.report.Err = err
		return e.finish(r)
	}
	pub, err := e.submitter(r.journal)
	if err != nil {
		r.report.Err = err
		return e.finish(r)
	}

	settings := release.Settings{
		ReleaseConfig: e.cfg.Release,
		Project:       e.cfg.Project.Name,
		Version:       e.cfg.Project.Version,
		Properties:    e.cfg.Properties,
	}
	coord := release.NewCoordinator(repo, pub, targets, settings,
		release.WithRecorder(e.recorder),
		release.WithObserver(e.transitionObserver(r)),
	)

	prepare := func(_ context.Context, plan versioning.Plan) ([]*publication.Publication, error) {
		r.report.Version = plan.Release
		if err := e.execute(r, BuildOptions{Mode: ModeBuild, Version: plan.Release}); err != nil {
			return nil, err
		}
		return r.report.Publications, nil
	}

	outcome, err := coord.Run(r.ctx, prepare)
	r.report.Release = outcome
	r.report.Submissions = outcome.Results
	if err != nil {
		r.report.Err = err
	}
	if outcome.State == release.StateFailed && outcome.Reason == release.ReasonPublishError {
		r.report.Notes = append(r.report.Notes,
			fmt.Sprintf("tag %s stays pushed although %d submission(s) failed; republish the failed targets with `publish --target`",
				outcome.Tag, len(publication.Failed(outcome.Results))))
	}
	if outcome.State == release.StateDone && outcome.Plan.Next != "" {
		observability.InfoContext(r.ctx, "Next development version", logfields.Version(outcome.Plan.Next))
	}
	return e.finish(r)
}

// transitionObserver journals and announces every coordinator transition.
func (e *Engine) transitionObserver(r *run) func(release.Transition, *release.Outcome) {
	return func(t release.Transition, o *release.Outcome) {
		r.journal.Transition(r.ctx, history.ReleaseTransition{
			From:   string(t.From),
			To:     string(t.To),
			Reason: string(t.Reason),
			Tag:    o.Tag,
		})
		event := notify.Event{
			Type:    notify.TypeRelease,
			RunID:   r.report.RunID,
			Project: e.cfg.Project.Name,
			Version: o.Plan.Release,
			State:   string(t.To),
			Reason:  string(t.Reason),
			Tag:     o.Tag,
		}
		for _, f := range publication.Failed(o.Results) {
			event.Failed = append(event.Failed, f.Module+"@"+f.Target)
		}
		if err := e.notifier.Notify(context.WithoutCancel(r.ctx), event); err != nil {
			observability.WarnContext(r.ctx, "Failed to send release notification", logfields.Error(err))
		}
	}
}
