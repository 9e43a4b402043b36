package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"

	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
	"git.home.luguber.info/inful/shipwright/internal/logfields"
	"git.home.luguber.info/inful/shipwright/internal/observability"
	"git.home.luguber.info/inful/shipwright/internal/publication"
	"git.home.luguber.info/inful/shipwright/internal/retry"
)

// PublishOptions modifies Publish.
type PublishOptions struct {
	// Retries is how many times failed targets are resubmitted; negative uses build.max_retries.
	Retries int
	// Targets restricts publishing to the named repositories.
	Targets []string
	// Version overrides module versions, as in BuildOptions.
	Version string
	Command string
}

// Publish builds every module and submits each publication to every
// target. No tag is created. Failed targets are resubmitted up to
// opts.Retries times with the configured backoff.
func (e *Engine) Publish(ctx context.Context, opts PublishOptions) (*Report, error) {
	command := opts.Command
	if command == "" {
		command = "publish"
	}
	r := e.begin(ctx, command, opts.Version)

	targets, err := e.selectTargets(opts.Targets)
	if err != nil {
		r.report.Err = err
		return e.finish(r)
	}
	if err := e.execute(r, BuildOptions{Mode: ModeBuild, Version: opts.Version}); err != nil {
		r.report.Err = err
		return e.finish(r)
	}
	pub, err := e.submitter(r.journal)
	if err != nil {
		r.report.Err = err
		return e.finish(r)
	}

	retries := opts.Retries
	if retries < 0 {
		retries = e.cfg.Build.MaxRetries
	}
	policy := retry.FromConfig(e.cfg.Build)
	ctx = observability.WithStage(r.ctx, "publish")
	for _, p := range r.report.Publications {
		results := submitWithRetry(ctx, pub, p, targets, policy, retries)
		r.report.Submissions = append(r.report.Submissions, results...)
	}
	return e.finish(r)
}

// selectTargets resolves the configured repositories, keeping only names
// when given. Unknown names are a configuration error.
func (e *Engine) selectTargets(names []string) ([]publication.Target, error) {
	all, err := e.Targets()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ferrors.ConfigError("no repositories configured").Build()
	}
	if len(names) == 0 {
		return all, nil
	}
	var out []publication.Target
	for _, name := range names {
		i := slices.IndexFunc(all, func(t publication.Target) bool { return t.Name == name })
		if i < 0 {
			known := make([]string, 0, len(all))
			for _, t := range all {
				known = append(known, t.Name)
			}
			return nil, ferrors.ConfigError(fmt.Sprintf("unknown repository %q (known: %s)", name, strings.Join(known, ", "))).Build()
		}
		out = append(out, all[i])
	}
	return out, nil
}

// submitWithRetry submits pub to targets, then resubmits only the failed
// targets while retries remain. Authentication failures are not retried.
// The returned slice has one final result per target, ordered by target.
func submitWithRetry(ctx context.Context, pub publisher, p *publication.Publication, targets []publication.Target, policy retry.Policy, retries int) []publication.TargetResult {
	results := pub.Submit(ctx, p, targets)
	for attempt := 1; attempt <= retries; attempt++ {
		var again []publication.Target
		for _, r := range results {
			if r.OK() || ferrors.HasCategory(r.Err, ferrors.CategoryAuth) {
				continue
			}
			if i := slices.IndexFunc(targets, func(t publication.Target) bool { return t.Name == r.Target }); i >= 0 {
				again = append(again, targets[i])
			}
		}
		if len(again) == 0 {
			break
		}
		observability.InfoContext(ctx, "Retrying failed submissions",
			logfields.Module(p.Module), logfields.Count(len(again)), logfields.Attempt(attempt))
		if err := policy.Wait(ctx, attempt); err != nil {
			break
		}
		for _, r := range pub.Submit(ctx, p, again) {
			i := slices.IndexFunc(results, func(old publication.TargetResult) bool { return old.Target == r.Target })
			results[i] = r
		}
	}
	return results
}
