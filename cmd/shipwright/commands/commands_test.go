package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/shipwright/internal/config"
	"git.home.luguber.info/inful/shipwright/internal/engine"
	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
	"git.home.luguber.info/inful/shipwright/internal/history"
	"git.home.luguber.info/inful/shipwright/internal/release"
)

func newParser(t *testing.T, cli *CLI) *kong.Kong {
	t.Helper()
	parser, err := kong.New(cli,
		kong.Name("shipwright"),
		kong.Vars{"version": "test"},
		kong.Bind(&Global{}, cli),
		kong.Exit(func(int) { t.Fatal("unexpected exit") }),
	)
	require.NoError(t, err)
	return parser
}

// run parses args and runs the selected command.
func run(t *testing.T, args ...string) error {
	t.Helper()
	var cli CLI
	ctx, err := newParser(t, &cli).Parse(args)
	require.NoError(t, err)
	return ctx.Run()
}

func TestParseFlags(t *testing.T) {
	var cli CLI
	ctx, err := newParser(t, &cli).Parse([]string{"publish", "--target", "central", "-t", "mirror", "--retries", "2"})
	require.NoError(t, err)
	require.Equal(t, "publish", ctx.Command())
	require.Equal(t, "shipwright.yaml", cli.Config)
	require.Equal(t, []string{"central", "mirror"}, cli.Publish.Target)
	require.Equal(t, 2, cli.Publish.Retries)

	cli = CLI{}
	ctx, err = newParser(t, &cli).Parse([]string{"-c", "other.yaml", "clean", "--keep-store"})
	require.NoError(t, err)
	require.Equal(t, "clean", ctx.Command())
	require.Equal(t, "other.yaml", cli.Config)
	require.True(t, cli.Clean.KeepStore)

	cli = CLI{}
	_, err = newParser(t, &cli).Parse([]string{"publish"})
	require.NoError(t, err)
	require.Equal(t, -1, cli.Publish.Retries)

	cli = CLI{}
	ctx, err = newParser(t, &cli).Parse([]string{"history", "run-1", "-n", "3"})
	require.NoError(t, err)
	require.Equal(t, "history <run>", ctx.Command())
	require.Equal(t, "run-1", cli.History.RunID)
	require.Equal(t, 3, cli.History.Limit)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		env     string
		verbose bool
		want    string
	}{
		{"", false, "INFO"},
		{"", true, "DEBUG"},
		{"debug", false, "DEBUG"},
		{"WARN", false, "WARN"},
		{"error", false, "ERROR"},
		{"error", true, "DEBUG"},
		{"chatty", false, "INFO"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%v", tt.env, tt.verbose), func(t *testing.T) {
			t.Setenv(LogLevelEnv, tt.env)
			require.Equal(t, tt.want, parseLogLevel(tt.verbose).String())
		})
	}
}

func TestInitRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, run(t, "init", "-o", dir))

	cfg, err := config.Load(filepath.Join(dir, config.DefaultConfigFile))
	require.NoError(t, err)
	require.Equal(t, "acra", cfg.Project.Name)

	err = run(t, "init", "-o", dir)
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
	require.NoError(t, run(t, "init", "-o", dir, "--force"))
}

const projectConfig = `
project:
  name: demo
  group: org.example
  version: 1.2.0-SNAPSHOT
toolchain:
  compiler:
    command: sh
    args:
      - -c
      - "mkdir -p '{{ .Module.OutputDir }}/outputs' && printf 'compiled {{ .Module.Name }}' > '{{ .Module.OutputDir }}/outputs/{{ .Module.Name }}.jar'"
    output: "{{ .Module.OutputDir }}/outputs/{{ .Module.Name }}.jar"
  doc_generator:
    command: sh
    args:
      - -c
      - "mkdir -p '{{ .OutputDir }}' && echo '<html>{{ .Title }}</html>' > '{{ .OutputDir }}/index.html'"
repositories:
  - name: central
    url: file://%s
`

// newProject writes a project whose toolchain is plain shell commands.
func newProject(t *testing.T, modules map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, kind := range modules {
		src := filepath.Join(root, name, "src", "main", "java", "org", "example")
		require.NoError(t, os.MkdirAll(src, 0o750))
		require.NoError(t, os.WriteFile(filepath.Join(root, name, "module.yaml"), []byte("kind: "+kind+"\n"), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(src, "Api.java"), []byte("package org.example;\n"), 0o600))
	}
	path := filepath.Join(root, config.DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(projectConfig, filepath.Join(root, "repo"))), 0o600))
	return path
}

func TestPublishEndToEnd(t *testing.T) {
	cfgPath := newProject(t, map[string]string{"core": "plain", "extras": "java-library"})
	root := filepath.Dir(cfgPath)

	require.NoError(t, run(t, "-c", cfgPath, "publish"))

	dir := filepath.Join(root, "repo", "org", "example", "core", "1.2.0-SNAPSHOT")
	data, err := os.ReadFile(filepath.Join(dir, "core-1.2.0-SNAPSHOT.jar"))
	require.NoError(t, err)
	require.Equal(t, "compiled core", string(data))
	require.FileExists(t, filepath.Join(dir, "core-1.2.0-SNAPSHOT-sources.jar"))
	require.FileExists(t, filepath.Join(dir, "core-1.2.0-SNAPSHOT-javadoc.jar"))
	require.FileExists(t, filepath.Join(dir, "core-1.2.0-SNAPSHOT.pom"))
	require.FileExists(t, filepath.Join(root, "build", "demo-1.2.0-SNAPSHOT-javadoc.zip"))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	store, err := history.NewSQLiteStore(cfg.ResolvePath(cfg.State.HistoryDB))
	require.NoError(t, err)
	p := history.NewProjection(store, 10)
	require.NoError(t, p.Rebuild(context.Background()))
	require.NoError(t, store.Close())
	runs := p.Recent(10)
	require.Len(t, runs, 1)
	require.Equal(t, "publish", runs[0].Command)
	require.Equal(t, "success", runs[0].Status)
	require.Equal(t, 2, runs[0].Submissions)

	require.NoError(t, run(t, "-c", cfgPath, "history"))
	require.NoError(t, run(t, "-c", cfgPath, "history", runs[0].RunID))
	require.Error(t, run(t, "-c", cfgPath, "history", "no-such-run"))

	require.NoError(t, run(t, "-c", cfgPath, "clean", "--keep-store"))
	require.NoDirExists(t, filepath.Join(root, "core", "build"))
	require.FileExists(t, cfg.ResolvePath(cfg.State.HistoryDB))
}

func TestBuildWithUnknownKindExitsPartial(t *testing.T) {
	cfgPath := newProject(t, map[string]string{"core": "plain", "weird": "gradle-plugin"})

	err := run(t, "-c", cfgPath, "build")
	require.Error(t, err)
	adapter := ferrors.NewCLIErrorAdapter(false, nil)
	require.Equal(t, 3, adapter.ExitCodeFor(err))
}

func TestPlanAndPrintVersion(t *testing.T) {
	cfgPath := newProject(t, map[string]string{"core": "plain"})
	require.NoError(t, run(t, "-c", cfgPath, "plan"))
	require.NoError(t, run(t, "-c", cfgPath, "plan", "--docs"))
	require.NoError(t, run(t, "-c", cfgPath, "print-version"))
}

func TestNightlyRequiresSchedule(t *testing.T) {
	cfgPath := newProject(t, map[string]string{"core": "plain"})
	err := run(t, "-c", cfgPath, "nightly")
	require.Error(t, err)
	require.Equal(t, 7, ferrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestMissingConfigIsConfigError(t *testing.T) {
	err := run(t, "-c", filepath.Join(t.TempDir(), "absent.yaml"), "build")
	require.Error(t, err)
	require.NotEqual(t, 0, ferrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestPrintReport(t *testing.T) {
	rep := &engine.Report{
		Command: "release",
		Project: "acra",
		Version: "5.7.1",
		Status:  engine.StatusSuccess,
		Modules: []engine.ModuleReport{
			{Name: "acra-core", Profile: "library", Status: engine.ModuleOK},
			{Name: "weird", Status: engine.ModuleExcluded, Err: errors.New(`module weird has unknown kind "gradle-plugin"`)},
		},
		Release: &release.Outcome{State: release.StateDone, Tag: "acra-5.7.1"},
		Notes:   []string{"remember the changelog"},
		Started: time.Now(),
	}
	rep.Release.Plan.Next = "5.7.2-SNAPSHOT"

	var buf bytes.Buffer
	PrintReport(&buf, rep)
	out := buf.String()
	require.Contains(t, out, "release acra 5.7.1: success (1/2 modules) tag acra-5.7.1")
	require.Contains(t, out, "acra-core")
	require.Contains(t, out, `unknown kind "gradle-plugin"`)
	require.Contains(t, out, "next development version: 5.7.2-SNAPSHOT")
	require.Contains(t, out, "note: remember the changelog")
}

func TestPrintHistory(t *testing.T) {
	completed := time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC)
	runs := []history.RunSummary{{
		RunID: "run-2", Command: "release", Project: "acra", Version: "5.7.1", Status: "partial",
		StartedAt: completed.Add(-5 * time.Second), CompletedAt: &completed, Duration: 5 * time.Second,
		Submissions: 4, SubmissionsFailed: 1, ReleaseState: "failed", Tag: "acra-5.7.1",
		Failures: []history.StepFinished{{Step: "docs:weird", Module: "weird", Error: "no documentable sources"}},
	}}

	var buf bytes.Buffer
	PrintHistory(&buf, runs)
	require.Contains(t, buf.String(), "run-2")
	require.Contains(t, buf.String(), "partial")

	buf.Reset()
	PrintRun(&buf, runs[0])
	require.Contains(t, buf.String(), "release:     failed acra-5.7.1")
	require.Contains(t, buf.String(), "submissions: 4 (1 failed)")
	require.Contains(t, buf.String(), "failed:      docs:weird weird: no documentable sources")
}
