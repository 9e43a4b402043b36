package commands

import (
	"context"
	"log/slog"
	"os"
	"time"

	"git.home.luguber.info/inful/shipwright/internal/engine"
	"git.home.luguber.info/inful/shipwright/internal/logfields"
	"git.home.luguber.info/inful/shipwright/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Debounce time.Duration `help:"Quiet window before rebuilding (overrides watch.debounce)"`
	Docs     bool          `help:"Only regenerate documentation"`
}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	s, err := openSession(root)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := signalContext()
	defer cancel()

	modules, err := s.engine.Modules(ctx)
	if err != nil {
		return err
	}
	roots := make([]string, 0, len(modules))
	ignore := []string{s.cfg.OutputDir()}
	for _, m := range modules {
		roots = append(roots, m.Dir)
		ignore = append(ignore, m.OutputDir)
	}

	debounce := s.cfg.Watch.Debounce
	if w.Debounce > 0 {
		debounce = w.Debounce
	}
	watcher, err := watch.New(roots, watch.Options{Debounce: debounce, Ignore: ignore})
	if err != nil {
		return err
	}

	rebuild := func(ctx context.Context) {
		var rep *engine.Report
		if w.Docs {
			rep, _ = s.engine.AggregateDocs(ctx)
		} else {
			rep, _ = s.engine.Build(ctx, engine.BuildOptions{Command: "watch"})
		}
		PrintReport(os.Stdout, rep)
		s.flushMetrics()
	}

	rebuild(ctx)
	err = watcher.Run(ctx, func(ctx context.Context, b watch.Batch) {
		slog.Info("Rebuilding", logfields.Count(len(b.Paths)), slog.String("cause", b.Cause))
		rebuild(ctx)
	})
	slog.Info("Watch stopped")
	return err
}
