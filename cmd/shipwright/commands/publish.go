package commands

import (
	"context"
	"os"

	"git.home.luguber.info/inful/shipwright/internal/engine"
)

// PublishCmd implements the 'publish' command.
type PublishCmd struct {
	Retries   int      `help:"Resubmit failed targets up to N times (-1 uses build.max_retries)" default:"-1"`
	Target    []string `name:"target" short:"t" help:"Only publish to these repositories (repeatable)"`
	AsVersion string   `name:"as-version" help:"Publish with this version instead of the configured one"`
}

func (p *PublishCmd) Run(_ *Global, root *CLI) error {
	return runReport(root, os.Stdout, func(ctx context.Context, e *engine.Engine) (*engine.Report, error) {
		return e.Publish(ctx, engine.PublishOptions{
			Retries: p.Retries,
			Targets: p.Target,
			Version: p.AsVersion,
		})
	})
}

// ReleaseCmd implements the 'release' command.
type ReleaseCmd struct{}

func (r *ReleaseCmd) Run(_ *Global, root *CLI) error {
	return runReport(root, os.Stdout, func(ctx context.Context, e *engine.Engine) (*engine.Report, error) {
		return e.Release(ctx)
	})
}
