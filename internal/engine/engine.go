// Package engine runs the step graph of a project: profile dispatch,
// packaging, composition, documentation aggregation, publishing and
// releases. All CLI commands route through an Engine.
package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"

	"git.home.luguber.info/inful/shipwright/internal/auth"
	"git.home.luguber.info/inful/shipwright/internal/config"
	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
	"git.home.luguber.info/inful/shipwright/internal/history"
	"git.home.luguber.info/inful/shipwright/internal/metrics"
	"git.home.luguber.info/inful/shipwright/internal/notify"
	"git.home.luguber.info/inful/shipwright/internal/project"
	"git.home.luguber.info/inful/shipwright/internal/publication"
	"git.home.luguber.info/inful/shipwright/internal/scm"
	"git.home.luguber.info/inful/shipwright/internal/storage"
	"git.home.luguber.info/inful/shipwright/internal/toolchain"
)

// StoreDir is the artifact store location under the project output dir.
const StoreDir = config.StateDirName

// ModuleLister enumerates the modules of the project.
type ModuleLister interface {
	ListModules(ctx context.Context) ([]project.Module, error)
}

// RunRefs records which stored objects a run produced.
type RunRefs interface {
	AddRunRef(runID string, dgsts []digest.Digest) error
}

// Engine wires the project configuration to its collaborators.
type Engine struct {
	cfg *config.Config

	registry ModuleLister
	compiler toolchain.Compiler
	docgen   toolchain.DocGenerator
	resolver auth.Resolver
	factory  publication.TransportFactory
	repo     scm.Repository
	recorder metrics.Recorder
	history  history.Store
	notifier notify.Notifier
	newRunID func() string

	storeOnce func() (storage.ObjectStore, error)
}

// Option configures an Engine.
type Option func(*Engine)

func WithRegistry(r ModuleLister) Option               { return func(e *Engine) { e.registry = r } }
func WithCompiler(c toolchain.Compiler) Option         { return func(e *Engine) { e.compiler = c } }
func WithDocGenerator(g toolchain.DocGenerator) Option { return func(e *Engine) { e.docgen = g } }
func WithResolver(r auth.Resolver) Option              { return func(e *Engine) { e.resolver = r } }
func WithRepository(r scm.Repository) Option           { return func(e *Engine) { e.repo = r } }
func WithRecorder(r metrics.Recorder) Option           { return func(e *Engine) { e.recorder = r } }
func WithHistory(s history.Store) Option               { return func(e *Engine) { e.history = s } }
func WithNotifier(n notify.Notifier) Option            { return func(e *Engine) { e.notifier = n } }
func WithRunIDs(fn func() string) Option               { return func(e *Engine) { e.newRunID = fn } }

// WithTransportFactory replaces the URL-scheme based transport selection.
func WithTransportFactory(f publication.TransportFactory) Option {
	return func(e *Engine) { e.factory = f }
}

// WithStore replaces the filesystem artifact store.
func WithStore(s storage.ObjectStore) Option {
	return func(e *Engine) {
		e.storeOnce = func() (storage.ObjectStore, error) { return s, nil }
	}
}

// New builds an engine for cfg. Collaborators not given as options are
// built from the configuration; the exec-backed toolchain is left unset
// when no command is configured, which fails the steps needing it.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, ferrors.ConfigError("config required").Build()
	}
	e := &Engine{
		cfg:      cfg,
		resolver: auth.EnvResolver{},
		factory:  publication.NewTransport,
		recorder: metrics.NoopRecorder{},
		notifier: notify.Noop{},
		newRunID: uuid.NewString,
	}
	e.storeOnce = sync.OnceValues(func() (storage.ObjectStore, error) {
		s, err := storage.NewFSStore(filepath.Join(cfg.OutputDir(), StoreDir))
		if err != nil {
			return nil, ferrors.FileSystemError("failed to open artifact store").WithCause(err).Build()
		}
		return s, nil
	})
	for _, opt := range opts {
		opt(e)
	}

	if e.registry == nil {
		e.registry = project.NewRegistry(project.Options{
			Root:          cfg.ProjectRoot(),
			Modules:       cfg.Project.Modules,
			Version:       cfg.Project.Version,
			GeneratedDirs: cfg.Docs.GeneratedDirs,
			Readme:        cfg.Docs.Overview,
		})
	}
	if e.compiler == nil {
		c, err := toolchain.NewExecCompiler(cfg.Toolchain, cfg.ProjectRoot())
		switch {
		case err == nil:
			e.compiler = c
		case !errors.Is(err, toolchain.ErrToolUnavailable):
			return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid compiler configuration").Build()
		}
	}
	if e.docgen == nil {
		g, err := toolchain.NewExecDocGenerator(cfg.Toolchain, cfg.ProjectRoot())
		switch {
		case err == nil:
			e.docgen = g
		case !errors.Is(err, toolchain.ErrToolUnavailable):
			return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid documentation generator configuration").Build()
		}
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() *config.Config { return e.cfg }

// Modules lists the project modules.
func (e *Engine) Modules(ctx context.Context) ([]project.Module, error) {
	return e.registry.ListModules(ctx)
}

// Targets resolves the configured repositories.
func (e *Engine) Targets() ([]publication.Target, error) {
	return publication.ResolveTargets(e.cfg.Repositories, e.resolver)
}

// Close releases the engine's store and notifier.
func (e *Engine) Close() error {
	var errs []error
	if e.notifier != nil {
		errs = append(errs, e.notifier.Close())
	}
	if e.history != nil {
		errs = append(errs, e.history.Close())
	}
	return errors.Join(errs...)
}

func (e *Engine) store() (storage.ObjectStore, error) {
	return e.storeOnce()
}

func (e *Engine) repository() (scm.Repository, error) {
	if e.repo != nil {
		return e.repo, nil
	}
	method, err := auth.GitAuth(e.cfg.Release.Auth)
	if err != nil {
		return nil, err
	}
	repo, err := scm.Open(e.cfg.ProjectRoot(), scm.WithAuth(method))
	if err != nil {
		return nil, err
	}
	e.repo = repo
	return repo, nil
}
