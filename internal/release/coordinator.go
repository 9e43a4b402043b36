package release

import (
	"context"
	"errors"
	"fmt"
	"time"

	"git.home.luguber.info/inful/shipwright/internal/config"
	"git.home.luguber.info/inful/shipwright/internal/logfields"
	"git.home.luguber.info/inful/shipwright/internal/metrics"
	"git.home.luguber.info/inful/shipwright/internal/observability"
	"git.home.luguber.info/inful/shipwright/internal/publication"
	"git.home.luguber.info/inful/shipwright/internal/scm"
	"git.home.luguber.info/inful/shipwright/internal/versioning"
)

// PrepareFunc builds the publications of a release once the branch gate
// passed. It receives the resolved version plan.
type PrepareFunc func(ctx context.Context, plan versioning.Plan) ([]*publication.Publication, error)

// Publisher submits one publication to every target.
type Publisher interface {
	Submit(ctx context.Context, pub *publication.Publication, targets []publication.Target) []publication.TargetResult
}

// Settings is the release configuration plus the project values tag
// templates may reference.
type Settings struct {
	config.ReleaseConfig
	Project    string
	Version    string
	Properties map[string]string
}

// Outcome is the record of one release run.
type Outcome struct {
	State       State
	Reason      Reason
	Plan        versioning.Plan
	Tag         string
	Results     []publication.TargetResult
	Transitions []Transition
}

// Coordinator runs the release state machine. Transitions are strictly
// sequential; it is the only writer of the release tag.
type Coordinator struct {
	repo      scm.Repository
	publisher Publisher
	targets   []publication.Target
	settings  Settings
	recorder  metrics.Recorder
	observers []func(Transition, *Outcome)

	state   State
	outcome *Outcome
}

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithRecorder(r metrics.Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// WithObserver is called after every transition.
func WithObserver(fn func(Transition, *Outcome)) Option {
	return func(c *Coordinator) { c.observers = append(c.observers, fn) }
}

func NewCoordinator(repo scm.Repository, publisher Publisher, targets []publication.Target, settings Settings, opts ...Option) *Coordinator {
	c := &Coordinator{
		repo:      repo,
		publisher: publisher,
		targets:   targets,
		settings:  settings,
		recorder:  metrics.NoopRecorder{},
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Coordinator) State() State { return c.state }

// Run executes one release. The returned outcome is always non-nil; the
// error is non-nil exactly when the run ended in StateFailed.
//
// A tag that was pushed stays in place when publishing fails.
func (c *Coordinator) Run(ctx context.Context, prepare PrepareFunc) (*Outcome, error) {
	c.outcome = &Outcome{State: c.state}
	if c.state != StateIdle {
		return c.outcome, fmt.Errorf("release already ran (state %s)", c.state)
	}
	ctx = observability.WithStage(ctx, "release")

	if err := c.checkBranch(ctx); err != nil {
		return c.outcome, err
	}
	c.transition(ctx, StateBranchChecked, "")

	plan, tag, err := c.planTag(ctx)
	if err != nil {
		return c.outcome, c.fail(ctx, ReasonTagError, err, nil)
	}
	c.outcome.Plan, c.outcome.Tag = plan, tag

	pubs, err := prepare(ctx, plan)
	if err != nil {
		return c.outcome, c.fail(ctx, ReasonBuildError, err, nil)
	}
	if len(pubs) == 0 {
		return c.outcome, c.fail(ctx, ReasonNothingToPublish, errors.New("no module produced a publication"), nil)
	}

	if err := c.createAndPushTag(ctx, plan, tag); err != nil {
		return c.outcome, c.fail(ctx, ReasonTagError, err, nil)
	}
	c.transition(ctx, StateTagged, "")

	c.transition(ctx, StatePublishing, "")
	var failed []Pair
	for _, pub := range pubs {
		results := c.publisher.Submit(ctx, pub, c.targets)
		c.outcome.Results = append(c.outcome.Results, results...)
		for _, r := range results {
			if !r.OK() {
				failed = append(failed, Pair{Module: r.Module, Target: r.Target})
			}
		}
	}
	if len(failed) > 0 {
		sortPairs(failed)
		return c.outcome, c.fail(ctx, ReasonPublishError, fmt.Errorf("%d of %d submissions failed", len(failed), len(c.outcome.Results)), failed)
	}

	c.transition(ctx, StateDone, "")
	return c.outcome, nil
}

func (c *Coordinator) checkBranch(ctx context.Context) error {
	branch, err := c.repo.CurrentBranch(ctx)
	if err != nil {
		return c.fail(ctx, ReasonBranchMismatch, err, nil)
	}
	if branch != c.settings.RequireBranch {
		return c.fail(ctx, ReasonBranchMismatch,
			fmt.Errorf("current branch %q, release requires %q", branch, c.settings.RequireBranch), nil)
	}
	observability.DebugContext(ctx, "Branch check passed", logfields.Branch(branch))
	return nil
}

// planTag resolves the release version and tag name and verifies the tag
// can be created and pushed. Nothing is mutated.
func (c *Coordinator) planTag(ctx context.Context) (versioning.Plan, string, error) {
	data := versioning.TagData{Project: c.settings.Project, Properties: c.settings.Properties}

	tags, err := c.repo.Tags(ctx)
	if err != nil {
		return versioning.Plan{}, "", err
	}
	latestTag, previous, err := versioning.LatestRelease(tags, c.settings.TagTemplate, data)
	if err != nil {
		return versioning.Plan{}, "", err
	}
	history := versioning.History{Previous: previous}
	if c.settings.VersionStrategy == config.StrategyConventional {
		history.Commits, err = c.repo.CommitsSince(ctx, latestTag)
		if err != nil {
			return versioning.Plan{}, "", err
		}
	}
	plan, err := versioning.Resolve(c.settings.Version, c.settings.VersionStrategy, history)
	if err != nil {
		return versioning.Plan{}, "", err
	}

	data.Version = plan.Release
	tag, err := versioning.RenderTag(c.settings.TagTemplate, data)
	if err != nil {
		return plan, "", err
	}
	exists, err := c.repo.TagExists(ctx, tag)
	if err != nil {
		return plan, tag, err
	}
	if exists {
		return plan, tag, fmt.Errorf("%w: %s", scm.ErrTagExists, tag)
	}
	ok, err := c.repo.HasRemote(ctx, c.settings.PushToRemote)
	if err != nil {
		return plan, tag, err
	}
	if !ok {
		return plan, tag, fmt.Errorf("%w: %s", scm.ErrRemoteNotFound, c.settings.PushToRemote)
	}
	return plan, tag, nil
}

// createAndPushTag creates the tag and waits for the remote to accept it.
// When the push fails the local tag is removed again, since the remote
// never saw it.
func (c *Coordinator) createAndPushTag(ctx context.Context, plan versioning.Plan, tag string) error {
	msgTmpl := c.settings.TagMessage
	if msgTmpl == "" {
		msgTmpl = "Release {{ .Version }}"
	}
	message, err := versioning.RenderTag(msgTmpl, versioning.TagData{
		Version:    plan.Release,
		Project:    c.settings.Project,
		Properties: c.settings.Properties,
	})
	if err != nil {
		return err
	}
	if err := c.repo.CreateTag(ctx, tag, message); err != nil {
		return err
	}
	if err := c.repo.PushTag(ctx, c.settings.PushToRemote, tag); err != nil {
		if derr := c.repo.DeleteTag(context.WithoutCancel(ctx), tag); derr != nil {
			observability.WarnContext(ctx, "Failed to remove local tag after rejected push",
				logfields.Tag(tag), logfields.Error(derr))
		}
		return err
	}
	observability.InfoContext(ctx, "Release tag pushed",
		logfields.Tag(tag), logfields.Remote(c.settings.PushToRemote), logfields.Version(plan.Release))
	return nil
}

func (c *Coordinator) fail(ctx context.Context, reason Reason, cause error, pairs []Pair) error {
	e := &Error{Reason: reason, From: c.state, Failed: pairs, Err: cause}
	c.outcome.Reason = reason
	c.transition(ctx, StateFailed, reason)
	observability.ErrorContext(ctx, "Release failed", logfields.Status(string(reason)), logfields.Error(e))
	return classified(e)
}

func (c *Coordinator) transition(ctx context.Context, to State, reason Reason) {
	t := Transition{From: c.state, To: to, Reason: reason, At: time.Now()}
	c.state = to
	c.outcome.State = to
	c.outcome.Transitions = append(c.outcome.Transitions, t)
	c.recorder.IncReleaseState(string(to))
	observability.DebugContext(ctx, "Release transition", logfields.State(string(to)))
	for _, fn := range c.observers {
		fn(t, c.outcome)
	}
}
