package commands

import (
	"context"
	"fmt"
	"os"

	"git.home.luguber.info/inful/shipwright/internal/engine"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	AsVersion string `name:"as-version" help:"Package every module with this version instead of the configured one"`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	return runReport(root, os.Stdout, func(ctx context.Context, e *engine.Engine) (*engine.Report, error) {
		return e.Build(ctx, engine.BuildOptions{Version: b.AsVersion})
	})
}

// AggregateDocsCmd implements the 'aggregate-docs' command.
type AggregateDocsCmd struct{}

func (a *AggregateDocsCmd) Run(_ *Global, root *CLI) error {
	return runReport(root, os.Stdout, func(ctx context.Context, e *engine.Engine) (*engine.Report, error) {
		return e.AggregateDocs(ctx)
	})
}

// PlanCmd implements the 'plan' command.
type PlanCmd struct {
	Docs bool `help:"Show the documentation-only graph used by aggregate-docs"`
}

func (p *PlanCmd) Run(_ *Global, root *CLI) error {
	s, err := openSession(root)
	if err != nil {
		return err
	}
	defer s.Close()

	mode := engine.ModeBuild
	if p.Docs {
		mode = engine.ModeDocs
	}
	steps, err := s.engine.Plan(context.Background(), mode)
	if err != nil {
		return err
	}
	for i, step := range steps {
		fmt.Printf("%3d  %s\n", i+1, step)
	}
	return nil
}
