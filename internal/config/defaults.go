package config

import (
	"path/filepath"
	"runtime"
	"time"
)

const (
	DefaultConfigFile    = "shipwright.yaml"
	DefaultOutputDir     = "build"
	DefaultNotifySubject = "shipwright.releases"
	// StateDirName lives under the project output directory.
	StateDirName = ".shipwright"
)

// DefaultGeneratedDirs are the generated-source directories fed to the
// documentation generator, relative to a module's output directory.
var DefaultGeneratedDirs = []string{
	"generated/source/buildConfig/release",
	"generated/ap_generated_sources/release/out",
}

func (c *Config) applyDefaults() {
	if c.Project.Root == "" {
		c.Project.Root = "."
	}
	if c.Project.Output == "" {
		c.Project.Output = DefaultOutputDir
	}
	if c.Project.Name == "" {
		c.Project.Name = "project"
	}

	if c.Platform.JavaCompatibility == "" {
		c.Platform.JavaCompatibility = "1.8"
	}

	if c.Toolchain.Timeout <= 0 {
		c.Toolchain.Timeout = 10 * time.Minute
	}

	if len(c.Docs.SourceExtensions) == 0 {
		c.Docs.SourceExtensions = []string{".java"}
	}
	if c.Docs.ExcludeExtensions == nil {
		c.Docs.ExcludeExtensions = []string{".kt"}
	}
	if c.Docs.GeneratedDirs == nil {
		c.Docs.GeneratedDirs = append([]string(nil), DefaultGeneratedDirs...)
	}
	if c.Docs.Overview == "" {
		c.Docs.Overview = "README.md"
	}
	if c.Docs.Title == "" {
		c.Docs.Title = c.Project.Name + " " + c.Project.Version
	}

	if c.Metadata.Name == "" {
		c.Metadata.Name = c.Project.Name
	}

	if c.Release.TagTemplate == "" {
		c.Release.TagTemplate = "{{ .Version }}"
	}
	if c.Release.TagMessage == "" {
		c.Release.TagMessage = "Release {{ .Version }}"
	}
	if c.Release.RequireBranch == "" {
		c.Release.RequireBranch = "master"
	}
	if c.Release.PushToRemote == "" {
		c.Release.PushToRemote = "origin"
	}
	if c.Release.VersionStrategy == "" {
		c.Release.VersionStrategy = StrategyUnsnapshot
	}

	if c.Build.Concurrency <= 0 {
		c.Build.Concurrency = runtime.NumCPU()
	}
	if c.Build.RetryBackoff == "" {
		c.Build.RetryBackoff = string(RetryBackoffLinear)
	}
	if c.Build.RetryInitialDelay <= 0 {
		c.Build.RetryInitialDelay = time.Second
	}
	if c.Build.RetryMaxDelay <= 0 {
		c.Build.RetryMaxDelay = 30 * time.Second
	}

	if c.State.HistoryDB == "" {
		c.State.HistoryDB = filepath.Join(c.Project.Output, StateDirName, "history.db")
	}
	if c.Notify.Subject == "" {
		c.Notify.Subject = DefaultNotifySubject
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = 2 * time.Second
	}
}
