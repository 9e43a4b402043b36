package engine

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"git.home.luguber.info/inful/shipwright/internal/artifact"
	"git.home.luguber.info/inful/shipwright/internal/docs"
	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
	"git.home.luguber.info/inful/shipwright/internal/graph"
	"git.home.luguber.info/inful/shipwright/internal/profile"
	"git.home.luguber.info/inful/shipwright/internal/project"
	"git.home.luguber.info/inful/shipwright/internal/publication"
	"git.home.luguber.info/inful/shipwright/internal/release"
)

// Status is the overall outcome of a run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailure Status = "failure"
)

// ModuleStatus is the outcome of one module across its steps.
type ModuleStatus string

const (
	ModuleOK       ModuleStatus = "ok"
	ModuleFailed   ModuleStatus = "failed"
	ModuleExcluded ModuleStatus = "excluded" // no profile applies
)

// ModuleReport summarizes one module.
type ModuleReport struct {
	Name        string
	Kind        string
	Profile     string
	Status      ModuleStatus
	Err         error
	Artifacts   []artifact.Artifact
	Publication *publication.Publication
}

// Report is the summary every run ends with.
type Report struct {
	RunID   string
	Command string
	Project string
	Version string
	Mode    Mode

	Status       Status
	Modules      []ModuleReport
	Publications []*publication.Publication
	Docs         *docs.Result
	DocsErr      error
	Submissions  []publication.TargetResult
	Release      *release.Outcome
	Steps        graph.Results

	// Err is the fatal error that stopped the run, if any.
	Err error
	// Notes lists known gaps, such as a pushed tag left in place.
	Notes []string

	Started  time.Time
	Finished time.Time
}

func (r *Report) Duration() time.Duration { return r.Finished.Sub(r.Started) }

// Excluded returns modules left out of the run, with reasons.
func (r *Report) Excluded() []ModuleReport {
	var out []ModuleReport
	for _, m := range r.Modules {
		if m.Status != ModuleOK {
			out = append(out, m)
		}
	}
	return out
}

// FailedSubmissions returns the (module, target) submissions that failed.
func (r *Report) FailedSubmissions() []publication.TargetResult {
	return publication.Failed(r.Submissions)
}

// Summary is a one-line description of the run.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s: %s", r.Command, r.Project, r.Version, r.Status)
	ok := 0
	for _, m := range r.Modules {
		if m.Status == ModuleOK {
			ok++
		}
	}
	fmt.Fprintf(&b, " (%d/%d modules", ok, len(r.Modules))
	if len(r.Submissions) > 0 {
		fmt.Fprintf(&b, ", %d/%d submissions", len(r.Submissions)-len(r.FailedSubmissions()), len(r.Submissions))
	}
	b.WriteString(")")
	if r.Release != nil && r.Release.Tag != "" {
		fmt.Fprintf(&b, " tag %s", r.Release.Tag)
	}
	return b.String()
}

// Error converts a non-successful report into a classified error the CLI
// maps to an exit code. It is nil on success.
func (r *Report) Error() error {
	switch r.Status {
	case StatusSuccess:
		return nil
	case StatusPartial:
		var parts []string
		for _, m := range r.Excluded() {
			parts = append(parts, fmt.Sprintf("%s: %s", m.Name, m.Status))
		}
		for _, s := range r.FailedSubmissions() {
			parts = append(parts, fmt.Sprintf("%s@%s: rejected", s.Module, s.Target))
		}
		if r.DocsErr != nil {
			parts = append(parts, "aggregate docs: failed")
		}
		b := ferrors.NewError(ferrors.CategoryPartial, "run finished with failures: "+strings.Join(parts, ", ")).
			WithContext("run_id", r.RunID)
		if r.Err != nil {
			b = b.WithCause(r.Err)
		}
		return b.Build()
	}
	if r.Err != nil {
		return r.Err
	}
	return ferrors.RuntimeError("run failed: no module completed").WithContext("run_id", r.RunID).Build()
}

// moduleReports folds graph results into per-module summaries.
func moduleReports(modules []project.Module, results graph.Results, causes func(string) error) []ModuleReport {
	kinds := []graph.NodeKind{graph.KindProfile, graph.KindMain, graph.KindSources, graph.KindDocs, graph.KindCompose}
	out := make([]ModuleReport, 0, len(modules))
	for _, m := range modules {
		mr := ModuleReport{Name: m.Name, Kind: m.Kind, Status: ModuleOK}
		for _, k := range kinds {
			res, ok := results[graph.ID(k, m.Name)]
			if !ok {
				continue
			}
			if !res.Succeeded() {
				mr.Status = ModuleFailed
				if mr.Err == nil {
					mr.Err = res.Err
				}
				continue
			}
			switch v := res.Value.(type) {
			case profileOut:
				mr.Profile = v.Profile.Name()
			case mainOut:
				mr.Artifacts = append(mr.Artifacts, v.Artifact)
			case artifact.Artifact:
				mr.Artifacts = append(mr.Artifacts, v)
			case docsOut:
				mr.Artifacts = append(mr.Artifacts, v.Artifact)
			case *publication.Publication:
				mr.Publication = v
			}
		}
		if mr.Status != ModuleOK {
			if cause := causes(m.Name); cause != nil {
				mr.Err = cause
			}
			var unknown *profile.UnknownProfileError
			if errors.As(mr.Err, &unknown) {
				mr.Status = ModuleExcluded
			}
		}
		out = append(out, mr)
	}
	return out
}

// decide applies the status rules: failure when the run stopped, when no
// module completed, or when submissions were made and none succeeded;
// partial when any module, submission or the aggregate failed.
func (r *Report) decide() {
	ok := 0
	for _, m := range r.Modules {
		if m.Status == ModuleOK {
			ok++
		}
	}
	failedSubs := len(r.FailedSubmissions())
	switch {
	case r.Err != nil && !releasePublishFailure(r.Release):
		r.Status = StatusFailure
	case ok == 0:
		r.Status = StatusFailure
	case len(r.Submissions) > 0 && failedSubs == len(r.Submissions):
		r.Status = StatusFailure
	case ok < len(r.Modules) || failedSubs > 0 || r.DocsErr != nil:
		r.Status = StatusPartial
	default:
		r.Status = StatusSuccess
	}
}

func releasePublishFailure(o *release.Outcome) bool {
	return o != nil && o.State == release.StateFailed && o.Reason == release.ReasonPublishError
}

func sortPublications(pubs []*publication.Publication) {
	slices.SortFunc(pubs, func(a, b *publication.Publication) int { return strings.Compare(a.Module, b.Module) })
}
