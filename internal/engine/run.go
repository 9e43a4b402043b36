package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/opencontainers/go-digest"

	"git.home.luguber.info/inful/shipwright/internal/docs"
	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
	"git.home.luguber.info/inful/shipwright/internal/graph"
	"git.home.luguber.info/inful/shipwright/internal/history"
	"git.home.luguber.info/inful/shipwright/internal/logfields"
	"git.home.luguber.info/inful/shipwright/internal/notify"
	"git.home.luguber.info/inful/shipwright/internal/observability"
	"git.home.luguber.info/inful/shipwright/internal/packager"
	"git.home.luguber.info/inful/shipwright/internal/publication"
	"git.home.luguber.info/inful/shipwright/internal/workspace"
)

// BuildOptions modifies a build run.
type BuildOptions struct {
	Mode Mode
	// Version overrides every module version; empty keeps descriptor versions.
	Version string
	// Command names the run in reports and history; defaults from Mode.
	Command string
}

// run carries the per-run state shared by the run helpers.
type run struct {
	ctx     context.Context
	report  *Report
	journal *history.Journal
}

func (e *Engine) begin(ctx context.Context, command, version string) *run {
	id := e.newRunID()
	ctx = observability.WithRunID(ctx, id)
	if version == "" {
		version = e.cfg.Project.Version
	}
	r := &run{
		ctx: ctx,
		report: &Report{
			RunID:   id,
			Command: command,
			Project: e.cfg.Project.Name,
			Version: version,
			Started: time.Now(),
		},
		journal: history.NewJournal(e.history, id),
	}
	r.journal.Started(ctx, history.RunStarted{Command: command, Project: e.cfg.Project.Name, Version: version})
	observability.InfoContext(ctx, "Run started", logfields.Stage(command), logfields.Version(version))
	return r
}

func (e *Engine) finish(r *run) (*Report, error) {
	rep := r.report
	rep.Finished = time.Now()
	rep.decide()

	e.recorder.ObserveRunDuration(rep.Duration())
	e.recorder.IncRunOutcome(string(rep.Status))

	excluded := make([]string, 0)
	for _, m := range rep.Excluded() {
		excluded = append(excluded, m.Name)
	}
	completed := history.RunCompleted{
		Status:     string(rep.Status),
		DurationMS: rep.Duration().Milliseconds(),
		Excluded:   excluded,
		Artifacts:  map[string]string{},
	}
	for _, m := range rep.Modules {
		for _, a := range m.Artifacts {
			completed.Artifacts[a.FileName()] = a.Digest.String()
		}
	}
	if rep.Docs != nil && rep.Docs.Artifact.Digest != "" {
		completed.Artifacts[rep.Docs.Artifact.FileName()] = rep.Docs.Artifact.Digest.String()
	}
	runErr := rep.Error()
	if runErr != nil {
		completed.Error = runErr.Error()
	}
	r.journal.Completed(r.ctx, completed)

	event := notify.Event{
		Type:     notify.TypeRunCompleted,
		RunID:    rep.RunID,
		Project:  rep.Project,
		Version:  rep.Version,
		Command:  rep.Command,
		Status:   string(rep.Status),
		Excluded: excluded,
	}
	for _, s := range rep.FailedSubmissions() {
		event.Failed = append(event.Failed, s.Module+"@"+s.Target)
	}
	if rep.Release != nil {
		event.Tag = rep.Release.Tag
		event.State = string(rep.Release.State)
		event.Reason = string(rep.Release.Reason)
	}
	if err := e.notifier.Notify(context.WithoutCancel(r.ctx), event); err != nil {
		observability.WarnContext(r.ctx, "Failed to send run notification", logfields.Error(err))
	}

	attrs := []slog.Attr{logfields.Status(string(rep.Status)), logfields.Duration(rep.Duration())}
	for _, m := range rep.Excluded() {
		observability.WarnContext(r.ctx, "Module not completed",
			logfields.Module(m.Name), logfields.Status(string(m.Status)), logfields.Error(m.Err))
	}
	for _, note := range rep.Notes {
		observability.WarnContext(r.ctx, note)
	}
	observability.InfoContext(r.ctx, "Run finished", attrs...)
	return rep, runErr
}

// Build runs the step graph. The report is always returned; the error is
// rep.Error(), classified for exit codes.
func (e *Engine) Build(ctx context.Context, opts BuildOptions) (*Report, error) {
	command := opts.Command
	if command == "" {
		command = "build"
		if opts.Mode == ModeDocs {
			command = "aggregate-docs"
		}
	}
	r := e.begin(ctx, command, opts.Version)
	if err := e.execute(r, opts); err != nil {
		r.report.Err = err
	}
	return e.finish(r)
}

// AggregateDocs runs profile, compile and docs steps plus the aggregate.
func (e *Engine) AggregateDocs(ctx context.Context) (*Report, error) {
	return e.Build(ctx, BuildOptions{Mode: ModeDocs})
}

// execute enumerates modules, runs the graph and fills the report. The
// returned error is fatal for the run; module failures are only reported.
func (e *Engine) execute(r *run, opts BuildOptions) error {
	ctx := observability.WithStage(r.ctx, opts.Mode.String())
	rep := r.report
	rep.Mode = opts.Mode

	modules, err := e.registry.ListModules(ctx)
	if err != nil {
		return err
	}
	if opts.Version != "" {
		for i := range modules {
			modules[i].Version = opts.Version
		}
	}

	store, err := e.store()
	if err != nil {
		return err
	}
	ws := workspace.NewManager(filepath.Join(e.cfg.OutputDir(), "tmp"), "run")
	if err := ws.Create(); err != nil {
		return ferrors.FileSystemError("failed to create workspace").WithCause(err).Build()
	}
	defer func() {
		if err := ws.Cleanup(); err != nil {
			observability.WarnContext(ctx, "Failed to cleanup workspace", logfields.Error(err))
		}
	}()

	s := &steps{
		platform: e.cfg.Platform,
		group:    e.cfg.Project.Group,
		metadata: e.cfg.Metadata,
		packager: packager.New(store, e.compiler, e.docgen, ws, packager.Options{
			SourceExtensions:  e.cfg.Docs.SourceExtensions,
			ExcludeExtensions: e.cfg.Docs.ExcludeExtensions,
		}),
		aggregator: docs.NewAggregator(e.docgen, store, docs.Options{
			Project:   e.cfg.Project.Name,
			Version:   rep.Version,
			Title:     e.cfg.Docs.Title,
			OutputDir: e.cfg.OutputDir(),
		}),
	}
	g, err := buildGraph(modules, opts.Mode, s)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "invalid step graph").Build()
	}

	observability.InfoContext(ctx, "Executing steps", logfields.Count(g.Len()))
	exec := graph.NewExecutor(
		graph.WithConcurrency(e.cfg.Build.Concurrency),
		graph.WithObserver(&stepObserver{ctx: ctx, recorder: e.recorder, journal: r.journal}),
	)
	results, err := exec.Run(ctx, g)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "invalid step graph").Build()
	}

	rep.Steps = results
	rep.Modules = moduleReports(modules, results, s.cause)
	rep.Publications = rep.Publications[:0]
	for _, m := range rep.Modules {
		if m.Publication != nil {
			rep.Publications = append(rep.Publications, m.Publication)
		}
	}
	sortPublications(rep.Publications)

	agg := results[graph.ID(graph.KindAggregate, "")]
	if res, ok := agg.Value.(*docs.Result); ok {
		rep.Docs = res
		e.recorder.SetExcludedModules(len(res.Excluded))
	}
	if !agg.Succeeded() {
		rep.DocsErr = agg.Err
	}

	if refs, ok := store.(RunRefs); ok {
		if err := refs.AddRunRef(rep.RunID, reportDigests(rep)); err != nil {
			observability.WarnContext(ctx, "Failed to record run references", logfields.Error(err))
		}
	}
	return ctx.Err()
}

func reportDigests(rep *Report) []digest.Digest {
	var out []digest.Digest
	for _, m := range rep.Modules {
		for _, a := range m.Artifacts {
			if a.Digest != "" {
				out = append(out, a.Digest)
			}
		}
	}
	if rep.Docs != nil && rep.Docs.Artifact.Digest != "" {
		out = append(out, rep.Docs.Artifact.Digest)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// CleanOptions modifies Clean.
type CleanOptions struct {
	// KeepStore keeps the artifact store and drops only objects no run references.
	KeepStore bool
}

// Clean removes each module's generated output and the project output dir.
// It returns the removed paths.
func (e *Engine) Clean(ctx context.Context, opts CleanOptions) ([]string, error) {
	modules, err := e.registry.ListModules(ctx)
	if err != nil {
		return nil, err
	}
	root, err := filepath.Abs(e.cfg.ProjectRoot())
	if err != nil {
		return nil, ferrors.FileSystemError("resolve project root").WithCause(err).Build()
	}

	var removed []string
	remove := func(path string) error {
		if path == "" {
			return nil
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if abs == root || abs == string(filepath.Separator) {
			return ferrors.ValidationError("refusing to remove " + abs).Build()
		}
		if _, err := os.Stat(abs); errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err := os.RemoveAll(abs); err != nil {
			return ferrors.FileSystemError("failed to remove " + abs).WithCause(err).Build()
		}
		removed = append(removed, abs)
		observability.InfoContext(ctx, "Removed", logfields.Path(abs))
		return nil
	}

	for _, m := range modules {
		if err := remove(m.OutputDir); err != nil {
			return removed, err
		}
	}

	out := e.cfg.OutputDir()
	if !opts.KeepStore {
		return removed, remove(out)
	}
	entries, err := os.ReadDir(out)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return removed, ferrors.FileSystemError("failed to read output dir").WithCause(err).Build()
	}
	for _, entry := range entries {
		if entry.Name() == StoreDir {
			continue
		}
		if err := remove(filepath.Join(out, entry.Name())); err != nil {
			return removed, err
		}
	}
	store, err := e.store()
	if err != nil {
		return removed, err
	}
	if gc, ok := store.(interface {
		GC(context.Context) (int, error)
	}); ok {
		n, err := gc.GC(ctx)
		if err != nil {
			return removed, ferrors.FileSystemError("artifact store gc failed").WithCause(err).Build()
		}
		observability.InfoContext(ctx, "Collected unreferenced artifacts", logfields.Count(n))
	}
	return removed, nil
}

// PlannedStep is one node of the step graph in execution order.
type PlannedStep struct {
	ID        graph.NodeID
	Kind      graph.NodeKind
	Module    string
	DependsOn []graph.NodeID
	WaitsFor  []graph.NodeID
}

// Plan returns the step graph for mode without running it.
func (e *Engine) Plan(ctx context.Context, mode Mode) ([]PlannedStep, error) {
	modules, err := e.registry.ListModules(ctx)
	if err != nil {
		return nil, err
	}
	g, err := buildGraph(modules, mode, &steps{})
	if err != nil {
		return nil, err
	}
	order, err := g.Sort()
	if err != nil {
		return nil, err
	}
	plan := make([]PlannedStep, 0, len(order))
	for _, id := range order {
		n, _ := g.Node(id)
		step := PlannedStep{ID: id, Kind: n.Kind, Module: n.Module}
		for _, edge := range g.Dependencies(id) {
			if edge.Tolerant {
				step.WaitsFor = append(step.WaitsFor, edge.From)
			} else {
				step.DependsOn = append(step.DependsOn, edge.From)
			}
		}
		plan = append(plan, step)
	}
	return plan, nil
}

func (p PlannedStep) String() string {
	s := string(p.ID)
	if len(p.DependsOn) > 0 {
		s += fmt.Sprintf(" after %v", p.DependsOn)
	}
	if len(p.WaitsFor) > 0 {
		s += fmt.Sprintf(" waits for %v", p.WaitsFor)
	}
	return s
}

func (e *Engine) submitter(j *history.Journal) (publisher, error) {
	store, err := e.store()
	if err != nil {
		return nil, err
	}
	sub := publication.NewSubmitter(store,
		publication.WithTransportFactory(e.factory),
		publication.WithRecorder(e.recorder),
		publication.WithConcurrency(max(e.cfg.Build.Concurrency, 1)),
	)
	return journalPublisher{inner: sub, journal: j}, nil
}
