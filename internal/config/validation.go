package config

import (
	"fmt"
	"strings"
	"text/template"

	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
)

// Validate checks the configuration for problems that would make every run fail.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Project.Version) == "" {
		problems = append(problems, "project.version is required")
	}

	switch c.Release.VersionStrategy {
	case StrategyUnsnapshot, StrategyPatch, StrategyMinor, StrategyMajor, StrategyConventional:
	default:
		problems = append(problems, fmt.Sprintf("release.version_strategy %q is not one of unsnapshot|patch|minor|major|conventional", c.Release.VersionStrategy))
	}
	if _, err := template.New("tag").Parse(c.Release.TagTemplate); err != nil {
		problems = append(problems, fmt.Sprintf("release.tag_template: %v", err))
	}

	if a := c.Release.Auth; !a.IsZero() {
		switch a.Type {
		case AuthTypeSSH, AuthTypeToken, AuthTypeBasic:
		default:
			problems = append(problems, fmt.Sprintf("release.auth.type %q is not one of ssh|token|basic|none", a.Type))
		}
	}

	if NormalizeRetryBackoff(c.Build.RetryBackoff) == "" {
		problems = append(problems, fmt.Sprintf("build.retry_backoff %q is not one of fixed|linear|exponential", c.Build.RetryBackoff))
	}
	if c.Build.MaxRetries < 0 {
		problems = append(problems, "build.max_retries cannot be negative")
	}

	seen := make(map[string]bool, len(c.Repositories))
	for i, repo := range c.Repositories {
		if repo.Name == "" {
			problems = append(problems, fmt.Sprintf("repositories[%d].name is required", i))
		} else if seen[repo.Name] {
			problems = append(problems, fmt.Sprintf("repositories[%d]: duplicate name %q", i, repo.Name))
		}
		seen[repo.Name] = true
		if repo.URL == "" {
			problems = append(problems, fmt.Sprintf("repositories[%d].url is required", i))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return ferrors.ConfigError("invalid configuration: "+strings.Join(problems, "; ")).
		WithContext("problems", problems).
		Build()
}
