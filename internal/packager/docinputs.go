package packager

import (
	"fmt"
	"path/filepath"
	"slices"

	"git.home.luguber.info/inful/shipwright/internal/artifact"
	"git.home.luguber.info/inful/shipwright/internal/profile"
	"git.home.luguber.info/inful/shipwright/internal/project"
	"git.home.luguber.info/inful/shipwright/internal/toolchain"
)

// DocInputs is what one module contributes to documentation generation:
// the filtered source set, the classpath and offline links. The aggregator
// unions these across modules.
type DocInputs struct {
	Module    string
	Sources   []string
	Classpath []string
	Links     []profile.DocLink
	Readme    string
}

// CollectDocInputs gathers public-API sources from the declared and
// generated source roots and builds the documentation classpath from the
// settings boot classpath, the module classpath and the compiler's classpath.
func (p *Packager) CollectDocInputs(m project.Module, s profile.Settings, compiled toolchain.CompileOutput) (DocInputs, error) {
	roots := slices.Concat(m.SourceDirs, m.GeneratedDirs)
	entries, err := artifact.CollectEntries(roots, artifact.ExtensionFilter(p.opts.SourceExtensions, p.opts.ExcludeExtensions))
	if err != nil {
		return DocInputs{}, packagingFailure(m, "docs", err)
	}
	if len(entries) == 0 {
		return DocInputs{}, packagingFailure(m, "docs", fmt.Errorf("no documentable sources under %v", roots))
	}

	in := DocInputs{Module: m.Name, Links: slices.Clone(s.DocLinks), Readme: m.Readme}
	for _, e := range entries {
		in.Sources = append(in.Sources, e.Path)
	}

	moduleClasspath := make([]string, 0, len(m.Classpath))
	for _, c := range m.Classpath {
		if !filepath.IsAbs(c) {
			c = filepath.Join(m.Dir, c)
		}
		moduleClasspath = append(moduleClasspath, c)
	}
	in.Classpath = Dedupe(slices.Concat(s.BootClasspath, moduleClasspath, compiled.Classpath))
	return in, nil
}

// Dedupe drops repeated entries, keeping first occurrences in order.
func Dedupe(list []string) []string {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
