package versioning

import (
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/shipwright/internal/config"
	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
)

func TestResolve(t *testing.T) {
	prev := semver.MustParse("5.7.0")
	tests := []struct {
		name     string
		current  string
		strategy string
		history  History
		release  string
		next     string
		wantErr  bool
	}{
		{name: "unsnapshot", current: "5.7.1-SNAPSHOT", strategy: config.StrategyUnsnapshot, release: "5.7.1", next: "5.7.2-SNAPSHOT"},
		{name: "unsnapshot default", current: "5.7.1-SNAPSHOT", release: "5.7.1", next: "5.7.2-SNAPSHOT"},
		{name: "unsnapshot release version", current: "5.7.1", strategy: config.StrategyUnsnapshot, release: "5.7.1", next: "5.7.2-SNAPSHOT"},
		{name: "patch from tag", current: "5.7.1-SNAPSHOT", strategy: config.StrategyPatch, history: History{Previous: prev}, release: "5.7.1", next: "5.7.2-SNAPSHOT"},
		{name: "minor from tag", current: "5.7.1-SNAPSHOT", strategy: config.StrategyMinor, history: History{Previous: prev}, release: "5.8.0", next: "5.8.1-SNAPSHOT"},
		{name: "major from tag", current: "5.7.1-SNAPSHOT", strategy: config.StrategyMajor, history: History{Previous: prev}, release: "6.0.0", next: "6.0.1-SNAPSHOT"},
		{name: "patch without tags", current: "1.0.0-SNAPSHOT", strategy: config.StrategyPatch, release: "1.0.0", next: "1.0.1-SNAPSHOT"},
		{name: "configured version ahead of bump", current: "6.0.0-SNAPSHOT", strategy: config.StrategyPatch, history: History{Previous: prev}, release: "6.0.0", next: "6.0.1-SNAPSHOT"},
		{name: "conventional feat", current: "5.7.1-SNAPSHOT", strategy: config.StrategyConventional, history: History{Previous: prev, Commits: []string{"fix: a", "feat(mail): b"}}, release: "5.8.0", next: "5.8.1-SNAPSHOT"},
		{name: "conventional breaking", current: "5.7.1-SNAPSHOT", strategy: config.StrategyConventional, history: History{Previous: prev, Commits: []string{"feat!: drop api 14"}}, release: "6.0.0", next: "6.0.1-SNAPSHOT"},
		{name: "already released", current: "5.7.0", strategy: config.StrategyUnsnapshot, history: History{Previous: prev}, wantErr: true},
		{name: "not semver", current: "banana", wantErr: true},
		{name: "unknown strategy", current: "1.0.0", strategy: "calver", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Resolve(tt.current, tt.strategy, tt.history)
			if tt.wantErr {
				require.Error(t, err)
				_, ok := ferrors.AsClassified(err)
				require.True(t, ok)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.release, plan.Release)
			require.Equal(t, tt.next, plan.Next)
			require.Equal(t, tt.current, plan.Current)
		})
	}
}

func TestBumpFromCommits(t *testing.T) {
	tests := []struct {
		name    string
		commits []string
		want    Bump
	}{
		{name: "empty", want: BumpPatch},
		{name: "fix only", commits: []string{"fix: null check"}, want: BumpPatch},
		{name: "feat", commits: []string{"docs: readme", "feat: dialog"}, want: BumpMinor},
		{name: "breaking footer", commits: []string{"refactor: x\n\nBREAKING CHANGE: removed y"}, want: BumpMajor},
		{name: "bang", commits: []string{"fix!: behaviour change"}, want: BumpMajor},
		{name: "free form", commits: []string{"Merge branch 'dev'"}, want: BumpPatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, BumpFromCommits(tt.commits))
		})
	}
}

func TestRenderTag(t *testing.T) {
	tag, err := RenderTag("acra-{{ .Version }}", TagData{Version: "5.7.1"})
	require.NoError(t, err)
	require.Equal(t, "acra-5.7.1", tag)

	tag, err = RenderTag("{{ .Project }}/v{{ .Version }}", TagData{Version: "1.0.0", Project: "acra"})
	require.NoError(t, err)
	require.Equal(t, "acra/v1.0.0", tag)

	_, err = RenderTag("{{ .Nope }}", TagData{})
	require.Error(t, err)
	_, err = RenderTag("  ", TagData{})
	require.Error(t, err)
}

func TestLatestRelease(t *testing.T) {
	tags := []string{"acra-5.6.0", "acra-5.10.0", "acra-5.9.3", "acra-6.0.0-rc1", "other-9.9.9", "acra-"}
	tag, v, err := LatestRelease(tags, "acra-{{ .Version }}", TagData{})
	require.NoError(t, err)
	require.Equal(t, "acra-5.10.0", tag)
	require.Equal(t, "5.10.0", v.String())

	tag, v, err = LatestRelease([]string{"x"}, "acra-{{ .Version }}", TagData{})
	require.NoError(t, err)
	require.Empty(t, tag)
	require.Nil(t, v)

	_, _, err = LatestRelease(tags, "static", TagData{})
	require.Error(t, err)
}
