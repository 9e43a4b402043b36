package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/shipwright/internal/engine"
	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
	"git.home.luguber.info/inful/shipwright/internal/logfields"
	"git.home.luguber.info/inful/shipwright/internal/schedule"
)

// NightlyJob names the scheduled snapshot publish.
const NightlyJob = "snapshot-publish"

// NightlyCmd implements the 'nightly' command.
type NightlyCmd struct {
	Cron string `help:"Cron expression (overrides schedule.snapshot)"`
	Now  bool   `help:"Publish once immediately before waiting for the schedule"`
}

func (n *NightlyCmd) Run(_ *Global, root *CLI) error {
	s, err := openSession(root)
	if err != nil {
		return err
	}
	defer s.Close()

	expr := s.cfg.Schedule.Snapshot
	if n.Cron != "" {
		expr = n.Cron
	}
	if expr == "" {
		return ferrors.ConfigError("no snapshot schedule: set schedule.snapshot or pass --cron").Build()
	}

	publish := func(ctx context.Context) error {
		rep, err := s.engine.Publish(ctx, engine.PublishOptions{Retries: -1, Command: "nightly"})
		if rep != nil {
			PrintReport(os.Stdout, rep)
		}
		s.flushMetrics()
		return err
	}

	sched, err := schedule.New()
	if err != nil {
		return err
	}
	if _, err := sched.Cron(NightlyJob, expr, publish); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if n.Now {
		if err := publish(ctx); err != nil {
			slog.Warn("Initial snapshot publish did not succeed", logfields.Error(err))
		}
	}

	sched.Start()
	if next, ok := sched.NextRun(NightlyJob); ok {
		fmt.Printf("next snapshot publish at %s\n", next.Local().Format("2006-01-02 15:04:05"))
	}
	<-ctx.Done()
	return sched.Stop()
}
