package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/shipwright/internal/config"
	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
	"git.home.luguber.info/inful/shipwright/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int    `short:"n" help:"Number of runs to show" default:"10"`
	JSON  bool   `name:"json" help:"Print summaries as JSON"`
	RunID string `arg:"" optional:"" name:"run" help:"Show a single run"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	store, err := history.NewSQLiteStore(cfg.ResolvePath(cfg.State.HistoryDB))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := h.load(context.Background(), store)
	if err != nil {
		return err
	}
	if h.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	if h.RunID != "" {
		PrintRun(os.Stdout, runs[0])
		return nil
	}
	PrintHistory(os.Stdout, runs)
	return nil
}

func (h *HistoryCmd) load(ctx context.Context, store history.Store) ([]history.RunSummary, error) {
	p := history.NewProjection(store, max(h.Limit, 1))
	if h.RunID == "" {
		if err := p.Rebuild(ctx); err != nil {
			return nil, err
		}
		return p.Recent(h.Limit), nil
	}
	events, err := store.ByRun(ctx, h.RunID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ferrors.ValidationError("no run with id " + h.RunID).Build()
	}
	for _, e := range events {
		p.Apply(e)
	}
	s, _ := p.Run(h.RunID)
	return []history.RunSummary{s}, nil
}

// PrintHistory renders one line per run, newest first.
func PrintHistory(w io.Writer, runs []history.RunSummary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN\tCOMMAND\tVERSION\tSTATUS\tSTARTED\tDURATION\tFAILED")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			r.RunID, r.Command, r.Version, r.Status,
			r.StartedAt.Local().Format(time.DateTime), r.Duration.Round(time.Millisecond),
			r.StepsFailed+r.SubmissionsFailed)
	}
	_ = tw.Flush()
}

// PrintRun renders a single run with its failures.
func PrintRun(w io.Writer, r history.RunSummary) {
	_, _ = fmt.Fprintf(w, "run %s: %s %s %s\n", r.RunID, r.Command, r.Project, r.Version)
	_, _ = fmt.Fprintf(w, "  status:      %s\n", r.Status)
	_, _ = fmt.Fprintf(w, "  started:     %s\n", r.StartedAt.Local().Format(time.DateTime))
	if r.CompletedAt != nil {
		_, _ = fmt.Fprintf(w, "  duration:    %s\n", r.Duration.Round(time.Millisecond))
	}
	_, _ = fmt.Fprintf(w, "  steps:       %d (%d failed)\n", r.Steps, r.StepsFailed)
	_, _ = fmt.Fprintf(w, "  submissions: %d (%d failed)\n", r.Submissions, r.SubmissionsFailed)
	if r.ReleaseState != "" {
		_, _ = fmt.Fprintf(w, "  release:     %s %s\n", r.ReleaseState, r.Tag)
	}
	for _, m := range r.Excluded {
		_, _ = fmt.Fprintf(w, "  excluded:    %s\n", m)
	}
	for _, f := range r.Failures {
		_, _ = fmt.Fprintf(w, "  failed:      %s %s: %s\n", f.Step, f.Module, f.Error)
	}
	if r.Error != "" {
		_, _ = fmt.Fprintf(w, "  error:       %s\n", r.Error)
	}
}
