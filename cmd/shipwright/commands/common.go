package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/shipwright/internal/config"
	"git.home.luguber.info/inful/shipwright/internal/engine"
	"git.home.luguber.info/inful/shipwright/internal/history"
	"git.home.luguber.info/inful/shipwright/internal/logfields"
	"git.home.luguber.info/inful/shipwright/internal/metrics"
	"git.home.luguber.info/inful/shipwright/internal/notify"
)

// LogLevelEnv overrides the log level when -v is not given.
const LogLevelEnv = "SHIPWRIGHT_LOG_LEVEL"

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"shipwright.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build         BuildCmd         `cmd:"" help:"Package every module and aggregate documentation"`
	Publish       PublishCmd       `cmd:"" help:"Build and submit every publication to every repository (no tag)"`
	Release       ReleaseCmd       `cmd:"" help:"Check the branch, tag the release, build and publish"`
	Clean         CleanCmd         `cmd:"" help:"Remove generated module and project outputs"`
	PrintVersion  PrintVersionCmd  `cmd:"" name:"print-version" help:"Print the project version"`
	AggregateDocs AggregateDocsCmd `cmd:"" name:"aggregate-docs" help:"Generate per-module and aggregated documentation only"`
	Plan          PlanCmd          `cmd:"" help:"Print the step graph in execution order"`
	History       HistoryCmd       `cmd:"" help:"List recent runs"`
	Init          InitCmd          `cmd:"" help:"Initialize a new configuration file"`
	Watch         WatchCmd         `cmd:"" help:"Rebuild when module sources change"`
	Nightly       NightlyCmd       `cmd:"" help:"Publish snapshots on the configured schedule"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(c.Verbose)}))
	slog.SetDefault(logger)
	g.Logger = logger
	return nil
}

func parseLogLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv(LogLevelEnv))) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// session bundles an engine with the collaborators the CLI owns: the
// metrics registry, the run history store and the notifier.
type session struct {
	cfg      *config.Config
	engine   *engine.Engine
	registry *prom.Registry
	history  *history.SQLiteStore
}

func openSession(root *CLI, opts ...engine.Option) (*session, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	return newSession(cfg, opts...)
}

func newSession(cfg *config.Config, opts ...engine.Option) (*session, error) {
	s := &session{cfg: cfg, registry: prom.NewRegistry()}

	hist, err := history.NewSQLiteStore(cfg.ResolvePath(cfg.State.HistoryDB))
	if err != nil {
		return nil, err
	}
	s.history = hist

	notifier, err := notify.Connect(cfg.Notify)
	if err != nil {
		slog.Warn("Notifications disabled", logfields.URL(cfg.Notify.NATSURL), logfields.Error(err))
		notifier = notify.Noop{}
	}

	base := []engine.Option{
		engine.WithRecorder(metrics.NewPrometheusRecorder(s.registry)),
		engine.WithHistory(hist),
		engine.WithNotifier(notifier),
	}
	s.engine, err = engine.New(cfg, append(base, opts...)...)
	if err != nil {
		_ = notifier.Close()
		_ = hist.Close()
		return nil, err
	}
	return s, nil
}

// flushMetrics writes the metrics textfile when one is configured.
func (s *session) flushMetrics() {
	path := s.cfg.Monitoring.MetricsTextfile
	if path == "" {
		return
	}
	path = s.cfg.ResolvePath(path)
	if err := metrics.WriteTextfile(path, s.registry); err != nil {
		slog.Warn("Failed to write metrics textfile", logfields.Path(path), logfields.Error(err))
	}
}

func (s *session) Close() {
	s.flushMetrics()
	if err := s.engine.Close(); err != nil {
		slog.Warn("Failed to close engine", logfields.Error(err))
	}
}

// runReport runs fn inside a session and prints the resulting report.
func runReport(root *CLI, w io.Writer, fn func(context.Context, *engine.Engine) (*engine.Report, error), opts ...engine.Option) error {
	s, err := openSession(root, opts...)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := signalContext()
	defer cancel()

	rep, err := fn(ctx, s.engine)
	if rep != nil {
		PrintReport(w, rep)
	}
	return err
}

// PrintReport writes the human-readable run summary.
func PrintReport(w io.Writer, rep *engine.Report) {
	_, _ = fmt.Fprintln(w, rep.Summary())
	for _, m := range rep.Modules {
		line := fmt.Sprintf("  %-20s %-8s %s", m.Name, m.Status, m.Profile)
		if m.Err != nil {
			line += "  " + m.Err.Error()
		}
		_, _ = fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
	if rep.Docs != nil && rep.Docs.Artifact.Path != "" {
		_, _ = fmt.Fprintf(w, "  docs: %s (%d modules)\n", rep.Docs.Artifact.Path, len(rep.Docs.Included))
	}
	if rep.DocsErr != nil {
		_, _ = fmt.Fprintf(w, "  docs: %v\n", rep.DocsErr)
	}
	for _, f := range rep.FailedSubmissions() {
		_, _ = fmt.Fprintf(w, "  rejected: %s@%s: %v\n", f.Module, f.Target, f.Err)
	}
	if rep.Release != nil && rep.Release.Plan.Next != "" && rep.Status == engine.StatusSuccess {
		_, _ = fmt.Fprintf(w, "  next development version: %s\n", rep.Release.Plan.Next)
	}
	for _, n := range rep.Notes {
		_, _ = fmt.Fprintf(w, "  note: %s\n", n)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
