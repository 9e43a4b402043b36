package release

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/shipwright/internal/config"
	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
	"git.home.luguber.info/inful/shipwright/internal/publication"
	"git.home.luguber.info/inful/shipwright/internal/scm"
	"git.home.luguber.info/inful/shipwright/internal/versioning"
)

type fakeRepo struct {
	mu       sync.Mutex
	branch   string
	remotes  []string
	tags     []string
	commits  []string
	pushErr  error
	created  []string
	pushed   []string
	deleted  []string
	branchFn func() (string, error)
}

func (f *fakeRepo) CurrentBranch(context.Context) (string, error) {
	if f.branchFn != nil {
		return f.branchFn()
	}
	return f.branch, nil
}

func (f *fakeRepo) HasRemote(_ context.Context, name string) (bool, error) {
	return slices.Contains(f.remotes, name), nil
}

func (f *fakeRepo) TagExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Contains(f.tags, name), nil
}

func (f *fakeRepo) CreateTag(_ context.Context, name, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if slices.Contains(f.tags, name) {
		return scm.ErrTagExists
	}
	f.tags = append(f.tags, name)
	f.created = append(f.created, name)
	return nil
}

func (f *fakeRepo) PushTag(_ context.Context, _ string, name string) error {
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushed = append(f.pushed, name)
	return nil
}

func (f *fakeRepo) DeleteTag(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags = slices.DeleteFunc(f.tags, func(t string) bool { return t == name })
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeRepo) Tags(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Sorted(slices.Values(f.tags)), nil
}

func (f *fakeRepo) CommitsSince(context.Context, string) ([]string, error) {
	return f.commits, nil
}

type fakePublisher struct {
	mu      sync.Mutex
	reject  map[string]bool // target name -> reject
	submits int
}

func (f *fakePublisher) Submit(_ context.Context, pub *publication.Publication, targets []publication.Target) []publication.TargetResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	var out []publication.TargetResult
	for _, t := range targets {
		r := publication.TargetResult{Module: pub.Module, Target: t.Name}
		if f.reject[t.Name] {
			r.Err = errors.New("rejected by " + t.Name)
		}
		out = append(out, r)
	}
	return out
}

var targets = []publication.Target{{Name: "bintray"}, {Name: "mavenLocal"}}

func settings() Settings {
	return Settings{
		ReleaseConfig: config.ReleaseConfig{
			TagTemplate:     "acra-{{ .Version }}",
			RequireBranch:   "master",
			PushToRemote:    "ACRA",
			VersionStrategy: config.StrategyUnsnapshot,
		},
		Project: "acra",
		Version: "5.7.1-SNAPSHOT",
	}
}

func preparing(modules ...string) (PrepareFunc, *int) {
	calls := 0
	return func(_ context.Context, plan versioning.Plan) ([]*publication.Publication, error) {
		calls++
		var pubs []*publication.Publication
		for _, m := range modules {
			pubs = append(pubs, &publication.Publication{Module: m, Coordinates: publication.Coordinates{Artifact: m, Version: plan.Release}})
		}
		return pubs, nil
	}, &calls
}

func states(o *Outcome) []State {
	var out []State
	for _, t := range o.Transitions {
		out = append(out, t.To)
	}
	return out
}

func TestReleaseDone(t *testing.T) {
	repo := &fakeRepo{branch: "master", remotes: []string{"ACRA"}}
	pub := &fakePublisher{}
	var observed []State
	c := NewCoordinator(repo, pub, targets, settings(), WithObserver(func(tr Transition, _ *Outcome) {
		observed = append(observed, tr.To)
	}))

	prepare, calls := preparing("acra-core", "acra-mail")
	out, err := c.Run(context.Background(), prepare)
	require.NoError(t, err)
	require.Equal(t, StateDone, out.State)
	require.Equal(t, []State{StateBranchChecked, StateTagged, StatePublishing, StateDone}, states(out))
	require.Equal(t, observed, states(out))
	require.Equal(t, "acra-5.7.1", out.Tag)
	require.Equal(t, "5.7.1", out.Plan.Release)
	require.Equal(t, "5.7.2-SNAPSHOT", out.Plan.Next)
	require.Equal(t, []string{"acra-5.7.1"}, repo.pushed)
	require.Equal(t, 1, *calls)
	require.Equal(t, 2, pub.submits)
	require.Len(t, out.Results, 4)
}

func TestReleaseBranchMismatch(t *testing.T) {
	repo := &fakeRepo{branch: "dev", remotes: []string{"ACRA"}}
	pub := &fakePublisher{}
	c := NewCoordinator(repo, pub, targets, settings())

	prepare, calls := preparing("acra-core")
	out, err := c.Run(context.Background(), prepare)
	require.Error(t, err)

	var relErr *Error
	require.True(t, errors.As(err, &relErr))
	require.Equal(t, ReasonBranchMismatch, relErr.Reason)
	require.Equal(t, StateIdle, relErr.From)
	require.True(t, ferrors.IsFatal(err))
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryRelease))

	require.Equal(t, StateFailed, out.State)
	require.Equal(t, ReasonBranchMismatch, out.Reason)
	require.Empty(t, repo.created)
	require.Empty(t, repo.pushed)
	require.Zero(t, pub.submits)
	require.Zero(t, *calls)
}

func TestReleaseTagExists(t *testing.T) {
	repo := &fakeRepo{branch: "master", remotes: []string{"ACRA"}, tags: []string{"acra-5.7.1"}}
	// unsnapshot of 5.7.1 when 5.7.1 was already released is rejected as not newer
	pub := &fakePublisher{}
	c := NewCoordinator(repo, pub, targets, settings())
	prepare, calls := preparing("acra-core")
	out, err := c.Run(context.Background(), prepare)

	var relErr *Error
	require.True(t, errors.As(err, &relErr))
	require.Equal(t, ReasonTagError, relErr.Reason)
	require.Equal(t, StateBranchChecked, relErr.From)
	require.Equal(t, StateFailed, out.State)
	require.Zero(t, *calls)
	require.Zero(t, pub.submits)
}

func TestReleaseTagNameCollision(t *testing.T) {
	s := settings()
	s.TagTemplate = "release"
	repo := &fakeRepo{branch: "master", remotes: []string{"ACRA"}, tags: []string{"release"}}
	c := NewCoordinator(repo, &fakePublisher{}, targets, s)
	prepare, _ := preparing("acra-core")
	_, err := c.Run(context.Background(), prepare)
	require.Error(t, err)
	var relErr *Error
	require.True(t, errors.As(err, &relErr))
	require.Equal(t, ReasonTagError, relErr.Reason)
}

func TestReleaseMissingRemote(t *testing.T) {
	repo := &fakeRepo{branch: "master", remotes: []string{"origin"}}
	c := NewCoordinator(repo, &fakePublisher{}, targets, settings())
	prepare, calls := preparing("acra-core")
	_, err := c.Run(context.Background(), prepare)
	require.ErrorIs(t, err, scm.ErrRemoteNotFound)
	require.Zero(t, *calls)
	require.Empty(t, repo.created)
}

func TestReleasePushRejectedRemovesLocalTag(t *testing.T) {
	repo := &fakeRepo{branch: "master", remotes: []string{"ACRA"}, pushErr: scm.ErrPushRejected}
	pub := &fakePublisher{}
	c := NewCoordinator(repo, pub, targets, settings())
	prepare, _ := preparing("acra-core")
	out, err := c.Run(context.Background(), prepare)

	require.ErrorIs(t, err, scm.ErrPushRejected)
	require.Equal(t, ReasonTagError, out.Reason)
	require.Equal(t, []string{"acra-5.7.1"}, repo.created)
	require.Equal(t, []string{"acra-5.7.1"}, repo.deleted)
	require.Zero(t, pub.submits)
}

func TestReleaseNothingToPublish(t *testing.T) {
	repo := &fakeRepo{branch: "master", remotes: []string{"ACRA"}}
	c := NewCoordinator(repo, &fakePublisher{}, targets, settings())
	prepare, _ := preparing()
	out, err := c.Run(context.Background(), prepare)
	require.Error(t, err)
	require.Equal(t, ReasonNothingToPublish, out.Reason)
	require.Empty(t, repo.created)
}

func TestReleaseBuildError(t *testing.T) {
	repo := &fakeRepo{branch: "master", remotes: []string{"ACRA"}}
	c := NewCoordinator(repo, &fakePublisher{}, targets, settings())
	boom := errors.New("module layout unreadable")
	out, err := c.Run(context.Background(), func(context.Context, versioning.Plan) ([]*publication.Publication, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, ReasonBuildError, out.Reason)
	require.Empty(t, repo.created)
}

func TestReleasePartialPublishKeepsTag(t *testing.T) {
	repo := &fakeRepo{branch: "master", remotes: []string{"ACRA"}}
	pub := &fakePublisher{reject: map[string]bool{"bintray": true}}
	c := NewCoordinator(repo, pub, targets, settings())
	prepare, _ := preparing("acra-mail", "acra-core")
	out, err := c.Run(context.Background(), prepare)

	var relErr *Error
	require.True(t, errors.As(err, &relErr))
	require.Equal(t, ReasonPublishError, relErr.Reason)
	require.Equal(t, StatePublishing, relErr.From)
	require.Equal(t, []Pair{{Module: "acra-core", Target: "bintray"}, {Module: "acra-mail", Target: "bintray"}}, relErr.Failed)
	require.False(t, ferrors.IsFatal(err))
	require.Contains(t, err.Error(), "acra-core@bintray")

	require.Equal(t, StateFailed, out.State)
	require.Equal(t, []State{StateBranchChecked, StateTagged, StatePublishing, StateFailed}, states(out))
	require.Contains(t, repo.tags, "acra-5.7.1")
	require.Empty(t, repo.deleted)
}

func TestReleaseConventionalStrategyUsesCommits(t *testing.T) {
	s := settings()
	s.VersionStrategy = config.StrategyConventional
	repo := &fakeRepo{branch: "master", remotes: []string{"ACRA"}, tags: []string{"acra-5.7.0"}, commits: []string{"feat: new sender"}}
	c := NewCoordinator(repo, &fakePublisher{}, targets, s)
	prepare, _ := preparing("acra-core")
	out, err := c.Run(context.Background(), prepare)
	require.NoError(t, err)
	require.Equal(t, "5.8.0", out.Plan.Release)
	require.Equal(t, "acra-5.8.0", out.Tag)
}

func TestCoordinatorRunsOnce(t *testing.T) {
	repo := &fakeRepo{branch: "master", remotes: []string{"ACRA"}}
	c := NewCoordinator(repo, &fakePublisher{}, targets, settings())
	prepare, _ := preparing("acra-core")
	_, err := c.Run(context.Background(), prepare)
	require.NoError(t, err)
	_, err = c.Run(context.Background(), prepare)
	require.ErrorContains(t, err, "already ran")
}
