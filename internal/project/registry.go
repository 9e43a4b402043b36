package project

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
	"git.home.luguber.info/inful/shipwright/internal/logfields"
)

// DescriptorFile marks a directory as a module.
const DescriptorFile = "module.yaml"

// descriptor is the on-disk module.yaml schema.
type descriptor struct {
	Name        string   `yaml:"name"`
	Kind        string   `yaml:"kind"`
	Version     string   `yaml:"version"`
	Sources     []string `yaml:"sources"`
	Generated   []string `yaml:"generated"`
	Classpath   []string `yaml:"classpath"`
	Description string   `yaml:"description"`
	Publish     *bool    `yaml:"publish"`
}

// Options configures a Registry.
type Options struct {
	Root    string
	Modules []string // explicit module directories relative to Root; empty scans Root
	Version string   // project version, used when a descriptor has none
	// GeneratedDirs are appended to every module's generated roots, relative to its output dir.
	GeneratedDirs []string
	Readme        string
}

// Registry reads module descriptors from the project layout. It only reads.
type Registry struct {
	opts Options
}

func NewRegistry(opts Options) *Registry {
	if opts.Readme == "" {
		opts.Readme = "README.md"
	}
	return &Registry{opts: opts}
}

// ListModules returns every module ordered by name.
func (r *Registry) ListModules(ctx context.Context) ([]Module, error) {
	dirs, err := r.moduleDirs()
	if err != nil {
		return nil, err
	}

	modules := make([]Module, 0, len(dirs))
	seen := make(map[string]string, len(dirs))
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := r.readModule(dir)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[m.Name]; dup {
			return nil, discoveryFailure(dir, fmt.Errorf("module name %q already declared in %s", m.Name, prev))
		}
		seen[m.Name] = dir
		modules = append(modules, m)
	}

	slices.SortFunc(modules, func(a, b Module) int { return cmp.Compare(a.Name, b.Name) })
	slog.Debug("Discovered modules", logfields.Count(len(modules)), logfields.Path(r.opts.Root))
	return modules, nil
}

func (r *Registry) moduleDirs() ([]string, error) {
	root := r.opts.Root
	info, err := os.Stat(root)
	if err != nil {
		return nil, discoveryFailure(root, err)
	}
	if !info.IsDir() {
		return nil, discoveryFailure(root, errors.New("project root is not a directory"))
	}

	if len(r.opts.Modules) > 0 {
		dirs := make([]string, 0, len(r.opts.Modules))
		for _, name := range r.opts.Modules {
			dirs = append(dirs, filepath.Join(root, name))
		}
		return dirs, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, discoveryFailure(root, err)
	}
	var dirs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if _, err := os.Stat(filepath.Join(dir, DescriptorFile)); err == nil {
			dirs = append(dirs, dir)
		}
	}
	return dirs, nil
}

func (r *Registry) readModule(dir string) (Module, error) {
	path := filepath.Join(dir, DescriptorFile)
	// #nosec G304 - descriptor paths come from the configured project root
	data, err := os.ReadFile(path)
	if err != nil {
		return Module{}, discoveryFailure(path, err)
	}
	var d descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Module{}, discoveryFailure(path, err)
	}

	m := Module{
		Name:        d.Name,
		Kind:        d.Kind,
		Version:     d.Version,
		Dir:         dir,
		OutputDir:   filepath.Join(dir, "build"),
		Classpath:   d.Classpath,
		Description: d.Description,
		Publish:     d.Publish == nil || *d.Publish,
	}
	if m.Name == "" {
		m.Name = filepath.Base(dir)
	}
	if m.Version == "" {
		m.Version = r.opts.Version
	}

	sources := d.Sources
	if len(sources) == 0 {
		sources = []string{filepath.Join("src", "main", "java")}
	}
	for _, s := range sources {
		m.SourceDirs = append(m.SourceDirs, filepath.Join(dir, s))
	}
	for _, g := range d.Generated {
		m.GeneratedDirs = append(m.GeneratedDirs, filepath.Join(dir, g))
	}
	for _, g := range r.opts.GeneratedDirs {
		m.GeneratedDirs = append(m.GeneratedDirs, filepath.Join(m.OutputDir, g))
	}

	readme := filepath.Join(dir, r.opts.Readme)
	if _, err := os.Stat(readme); err == nil {
		m.Readme = readme
	}
	return m, nil
}

func discoveryFailure(path string, err error) error {
	return ferrors.DiscoveryError("project discovery failed").
		WithCause(&DiscoveryError{Path: path, Err: err}).
		WithContext("path", path).
		Build()
}
