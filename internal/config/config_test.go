package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
project:
  name: acra
  version: 5.7.1-SNAPSHOT
repositories:
  - name: mavenLocal
    url: local
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, ".", cfg.Project.Root)
	require.Equal(t, DefaultOutputDir, cfg.Project.Output)
	require.Equal(t, "1.8", cfg.Platform.JavaCompatibility)
	require.Equal(t, []string{".java"}, cfg.Docs.SourceExtensions)
	require.Equal(t, []string{".kt"}, cfg.Docs.ExcludeExtensions)
	require.Equal(t, DefaultGeneratedDirs, cfg.Docs.GeneratedDirs)
	require.Equal(t, "{{ .Version }}", cfg.Release.TagTemplate)
	require.Equal(t, "master", cfg.Release.RequireBranch)
	require.Equal(t, "origin", cfg.Release.PushToRemote)
	require.Equal(t, StrategyUnsnapshot, cfg.Release.VersionStrategy)
	require.Equal(t, runtime.NumCPU(), cfg.Build.Concurrency)
	require.Equal(t, 2*time.Second, cfg.Watch.Debounce)
	require.Equal(t, "acra", cfg.Metadata.Name)

	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	require.Equal(t, abs, cfg.ProjectRoot())
	require.Equal(t, filepath.Join(abs, "build"), cfg.OutputDir())
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("SHIPWRIGHT_TEST_SDK", "/opt/android-sdk")
	dir := t.TempDir()
	path := writeConfig(t, dir, `
project:
  version: 1.0.0
platform:
  sdk_dir: ${SHIPWRIGHT_TEST_SDK}
toolchain:
  timeout: 90s
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/opt/android-sdk", cfg.Platform.SDKDir)
	require.Equal(t, 90*time.Second, cfg.Toolchain.Timeout)
}

func TestLoadReadsDotEnvWithoutOverriding(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SHIPWRIGHT_TEST_KEEP", "process")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SHIPWRIGHT_TEST_KEEP=file\nSHIPWRIGHT_TEST_GROUP=ch.acra\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("SHIPWRIGHT_TEST_GROUP") })
	path := writeConfig(t, dir, `
project:
  version: 1.0.0
  group: ${SHIPWRIGHT_TEST_GROUP}
  name: ${SHIPWRIGHT_TEST_KEEP}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "ch.acra", cfg.Project.Group)
	require.Equal(t, "process", cfg.Project.Name)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		ok   bool
	}{
		{"minimal", "project: {version: 1.0.0}", true},
		{"missing version", "project: {name: x}", false},
		{"bad strategy", "project: {version: 1.0.0}\nrelease: {version_strategy: sideways}", false},
		{"bad template", "project: {version: 1.0.0}\nrelease: {tag_template: \"{{ .Version \"}", false},
		{"bad backoff", "project: {version: 1.0.0}\nbuild: {retry_backoff: quadratic}", false},
		{"duplicate target", "project: {version: 1.0.0}\nrepositories: [{name: a, url: local}, {name: a, url: local}]", false},
		{"target without url", "project: {version: 1.0.0}\nrepositories: [{name: a}]", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
		})
	}
}

func TestInitWritesLoadableExample(t *testing.T) {
	t.Setenv("ANDROID_HOME", "/sdk")
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFile)

	require.NoError(t, Init(path, false))
	require.Error(t, Init(path, false), "second init without force must fail")
	require.NoError(t, Init(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "acra-{{ .Version }}", cfg.Release.TagTemplate)
	require.Equal(t, "/sdk", cfg.Platform.SDKDir)
	require.Len(t, cfg.Repositories, 2)
	require.Equal(t, 10*time.Minute, cfg.Toolchain.Timeout)
}

func TestNormalizeRetryBackoff(t *testing.T) {
	require.Equal(t, RetryBackoffExponential, NormalizeRetryBackoff(" Exponential "))
	require.Equal(t, RetryBackoffMode(""), NormalizeRetryBackoff("later"))
}
