// Package docs builds the project-wide documentation bundle once every
// module's documentation step has finished.
package docs

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"git.home.luguber.info/inful/shipwright/internal/artifact"
	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
	"git.home.luguber.info/inful/shipwright/internal/logfields"
	"git.home.luguber.info/inful/shipwright/internal/observability"
	"git.home.luguber.info/inful/shipwright/internal/packager"
	"git.home.luguber.info/inful/shipwright/internal/profile"
	"git.home.luguber.info/inful/shipwright/internal/storage"
	"git.home.luguber.info/inful/shipwright/internal/toolchain"
)

// ErrNoInputs is returned when no module contributed documentation inputs.
var ErrNoInputs = errors.New("no module produced documentation inputs")

// Contribution is the outcome of one module's documentation step as seen
// by the barrier. Inputs is only meaningful when Err is nil.
type Contribution struct {
	Module string
	Inputs packager.DocInputs
	Err    error
}

// Exclusion names a module left out of the aggregate and why.
type Exclusion struct {
	Module string
	Reason string
}

// Result describes the combined documentation bundle.
type Result struct {
	Artifact  artifact.Artifact
	OutputDir string
	Included  []string
	Excluded  []Exclusion
	Sources   []string
	Classpath []string
	Links     []profile.DocLink
}

// Options configures an Aggregator.
type Options struct {
	Project   string
	Version   string
	Title     string
	OutputDir string // project output dir; docs go to <OutputDir>/javadoc
}

// Aggregator runs the documentation generator once over the union of
// every contributing module's inputs.
type Aggregator struct {
	generator toolchain.DocGenerator
	store     storage.ObjectStore
	opts      Options
}

func NewAggregator(generator toolchain.DocGenerator, store storage.ObjectStore, opts Options) *Aggregator {
	if opts.Title == "" {
		opts.Title = opts.Project + " " + opts.Version
	}
	return &Aggregator{generator: generator, store: store, opts: opts}
}

// Merge unions the inputs of successful contributions. Sources and
// classpath are deduplicated and sorted; links are deduplicated by URL.
// Contributions are visited in module order so the result does not depend
// on completion order.
func Merge(contribs []Contribution) Result {
	sorted := slices.Clone(contribs)
	slices.SortFunc(sorted, func(a, b Contribution) int { return cmp.Compare(a.Module, b.Module) })

	var res Result
	var sources, classpath []string
	seenLinks := map[string]bool{}
	for _, c := range sorted {
		if c.Err != nil {
			res.Excluded = append(res.Excluded, Exclusion{Module: c.Module, Reason: c.Err.Error()})
			continue
		}
		res.Included = append(res.Included, c.Module)
		sources = append(sources, c.Inputs.Sources...)
		classpath = append(classpath, c.Inputs.Classpath...)
		for _, l := range c.Inputs.Links {
			if seenLinks[l.URL] {
				continue
			}
			seenLinks[l.URL] = true
			res.Links = append(res.Links, l)
		}
	}
	res.Sources = sortedUnique(sources)
	res.Classpath = sortedUnique(classpath)
	return res
}

// Aggregate generates the combined documentation and packages it as
// <project>-<version>-javadoc.zip. Excluded modules are reported in the
// result; an error means no bundle was produced.
func (a *Aggregator) Aggregate(ctx context.Context, contribs []Contribution) (*Result, error) {
	res := Merge(contribs)
	for _, ex := range res.Excluded {
		observability.WarnContext(ctx, "Module excluded from aggregated docs",
			logfields.Module(ex.Module), slog.String("reason", ex.Reason))
	}
	if len(res.Included) == 0 {
		return &res, docsFailure(ErrNoInputs)
	}
	if a.generator == nil {
		return &res, docsFailure(toolchain.ErrToolUnavailable)
	}

	res.OutputDir = filepath.Join(a.opts.OutputDir, "javadoc")
	if err := os.RemoveAll(res.OutputDir); err != nil {
		return &res, docsFailure(err)
	}
	if err := os.MkdirAll(res.OutputDir, 0o750); err != nil {
		return &res, docsFailure(err)
	}

	readmes := make(map[string]string)
	for _, c := range contribs {
		if c.Err == nil && c.Inputs.Readme != "" {
			readmes[c.Module] = c.Inputs.Readme
		}
	}
	overview, err := WriteOverview(filepath.Join(a.opts.OutputDir, "overview.html"), a.opts.Title, res.Included, readmes)
	if err != nil {
		return &res, docsFailure(err)
	}

	req := toolchain.DocRequest{
		Title:     a.opts.Title,
		Sources:   res.Sources,
		Classpath: res.Classpath,
		Links:     res.Links,
		Overview:  overview,
		OutputDir: res.OutputDir,
	}
	if err := a.generator.Generate(ctx, req); err != nil {
		return &res, docsFailure(err)
	}

	entries, err := artifact.CollectEntries([]string{res.OutputDir}, nil)
	if err != nil {
		return &res, docsFailure(err)
	}
	data, err := artifact.ZipBytes(entries)
	if err != nil {
		return &res, docsFailure(err)
	}

	res.Artifact = artifact.Artifact{
		Kind:       artifact.KindDocs,
		Module:     a.opts.Project,
		Version:    a.opts.Version,
		Classifier: artifact.ClassifierDocs,
		Extension:  "zip",
		Path:       filepath.Join(a.opts.OutputDir, artifact.FileName(a.opts.Project, a.opts.Version, artifact.ClassifierDocs, "zip")),
		Size:       int64(len(data)),
	}
	if a.store != nil {
		dgst, err := a.store.Put(ctx, data, storage.Metadata{
			Kind:      string(artifact.KindDocs),
			MediaType: artifact.MediaType(res.Artifact.Path),
			Custom:    map[string]string{"aggregate": "true", "file": res.Artifact.FileName()},
		})
		if err != nil {
			return &res, docsFailure(err)
		}
		res.Artifact.Digest = dgst
	}
	if err := os.WriteFile(res.Artifact.Path, data, 0o644); err != nil {
		return &res, docsFailure(err)
	}

	observability.InfoContext(ctx, "Aggregated documentation",
		logfields.Artifact(res.Artifact.FileName()),
		logfields.Count(len(res.Included)))
	return &res, nil
}

func docsFailure(err error) error {
	return ferrors.WrapError(err, ferrors.CategoryDocs, "documentation aggregation failed").Build()
}

func sortedUnique(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}

// String renders an exclusion for reports.
func (e Exclusion) String() string {
	return fmt.Sprintf("%s (%s)", e.Module, e.Reason)
}
