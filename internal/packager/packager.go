// Package packager turns a module's sources, compiled output and generated
// documentation into artifacts.
package packager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/shipwright/internal/artifact"
	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
	"git.home.luguber.info/inful/shipwright/internal/logfields"
	"git.home.luguber.info/inful/shipwright/internal/observability"
	"git.home.luguber.info/inful/shipwright/internal/profile"
	"git.home.luguber.info/inful/shipwright/internal/project"
	"git.home.luguber.info/inful/shipwright/internal/storage"
	"git.home.luguber.info/inful/shipwright/internal/toolchain"
	"git.home.luguber.info/inful/shipwright/internal/workspace"
)

// PackagingError reports a failed packaging step for one module. Siblings
// are unaffected.
type PackagingError struct {
	Module string
	Step   string
	Err    error
}

func (e *PackagingError) Error() string {
	return fmt.Sprintf("packaging %s for %s: %v", e.Step, e.Module, e.Err)
}

func (e *PackagingError) Unwrap() error { return e.Err }

func packagingFailure(m project.Module, step string, err error) error {
	return ferrors.PackagingError(step+" failed").
		WithCause(&PackagingError{Module: m.Name, Step: step, Err: err}).
		WithContext("module", m.Name).
		Build()
}

// Options selects which files count as public API sources.
type Options struct {
	SourceExtensions  []string
	ExcludeExtensions []string
}

// Packager produces main, sources and docs artifacts.
type Packager struct {
	store    storage.ObjectStore
	compiler toolchain.Compiler
	docs     toolchain.DocGenerator
	ws       *workspace.Manager
	opts     Options
}

func New(store storage.ObjectStore, compiler toolchain.Compiler, docs toolchain.DocGenerator, ws *workspace.Manager, opts Options) *Packager {
	return &Packager{store: store, compiler: compiler, docs: docs, ws: ws, opts: opts}
}

// PackageMain compiles m and records the produced file as its main artifact.
func (p *Packager) PackageMain(ctx context.Context, m project.Module, s profile.Settings) (artifact.Artifact, toolchain.CompileOutput, error) {
	if p.compiler == nil {
		return artifact.Artifact{}, toolchain.CompileOutput{}, packagingFailure(m, "main", toolchain.ErrToolUnavailable)
	}
	out, err := p.compiler.Compile(ctx, toolchain.CompileRequest{Module: m, Settings: s})
	if err != nil {
		return artifact.Artifact{}, toolchain.CompileOutput{}, packagingFailure(m, "main", err)
	}
	// #nosec G304 - path reported by the compiler for this module
	data, err := os.ReadFile(out.MainFile)
	if err != nil {
		return artifact.Artifact{}, toolchain.CompileOutput{}, packagingFailure(m, "main", err)
	}
	a, err := p.record(ctx, m, artifact.KindMain, "", s.MainExtension, data)
	if err != nil {
		return artifact.Artifact{}, toolchain.CompileOutput{}, packagingFailure(m, "main", err)
	}
	return a, out, nil
}

// PackageSources archives every file under the declared source directories
// verbatim. Identical inputs produce byte-identical archives.
func (p *Packager) PackageSources(ctx context.Context, m project.Module) (artifact.Artifact, error) {
	entries, err := artifact.CollectEntries(m.SourceDirs, nil)
	if err != nil {
		return artifact.Artifact{}, packagingFailure(m, "sources", err)
	}
	if len(entries) == 0 {
		return artifact.Artifact{}, packagingFailure(m, "sources", fmt.Errorf("no source files under %v", m.SourceDirs))
	}
	data, err := artifact.ZipBytes(entries)
	if err != nil {
		return artifact.Artifact{}, packagingFailure(m, "sources", err)
	}
	a, err := p.record(ctx, m, artifact.KindSources, artifact.ClassifierSources, "jar", data)
	if err != nil {
		return artifact.Artifact{}, packagingFailure(m, "sources", err)
	}
	return a, nil
}

// PackageDocs runs the documentation generator over in and archives its output.
func (p *Packager) PackageDocs(ctx context.Context, m project.Module, in DocInputs) (artifact.Artifact, error) {
	if p.docs == nil {
		return artifact.Artifact{}, packagingFailure(m, "docs", toolchain.ErrToolUnavailable)
	}
	out, err := p.ws.Subdir(filepath.Join("docs", m.Name))
	if err != nil {
		return artifact.Artifact{}, packagingFailure(m, "docs", err)
	}
	req := toolchain.DocRequest{
		Title:     m.Name + " " + m.Version,
		Sources:   in.Sources,
		Classpath: in.Classpath,
		Links:     in.Links,
		OutputDir: out,
	}
	if err := p.docs.Generate(ctx, req); err != nil {
		return artifact.Artifact{}, packagingFailure(m, "docs", err)
	}
	entries, err := artifact.CollectEntries([]string{out}, nil)
	if err != nil {
		return artifact.Artifact{}, packagingFailure(m, "docs", err)
	}
	data, err := artifact.ZipBytes(entries)
	if err != nil {
		return artifact.Artifact{}, packagingFailure(m, "docs", err)
	}
	a, err := p.record(ctx, m, artifact.KindDocs, artifact.ClassifierDocs, "jar", data)
	if err != nil {
		return artifact.Artifact{}, packagingFailure(m, "docs", err)
	}
	return a, nil
}

// record stores data by digest and writes the conventional copy under the
// module's libs directory.
func (p *Packager) record(ctx context.Context, m project.Module, kind artifact.Kind, classifier, ext string, data []byte) (artifact.Artifact, error) {
	a := artifact.Artifact{
		Kind:       kind,
		Module:     m.Name,
		Version:    m.Version,
		Classifier: classifier,
		Extension:  ext,
		Size:       int64(len(data)),
	}
	a.Path = filepath.Join(m.LibsDir(), a.FileName())

	dgst, err := p.store.Put(ctx, data, storage.Metadata{
		Kind:      string(kind),
		MediaType: artifact.MediaType(a.FileName()),
		Custom:    map[string]string{"module": m.Name, "file": a.FileName()},
	})
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("store %s: %w", a.FileName(), err)
	}
	a.Digest = dgst

	if err := writeFileAtomic(a.Path, data); err != nil {
		return artifact.Artifact{}, err
	}
	observability.DebugContext(ctx, "Packaged artifact", logfields.Artifact(a.FileName()), logfields.Digest(dgst.String()))
	return a, nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit %s: %w", path, err)
	}
	return nil
}
