// Package publication groups a module's artifacts into a publication and
// submits it to repository targets.
package publication

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/shipwright/internal/artifact"
	"git.home.luguber.info/inful/shipwright/internal/config"
	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
	"git.home.luguber.info/inful/shipwright/internal/project"
)

// InvalidPublicationError reports an artifact set that does not form a
// valid publication.
type InvalidPublicationError struct {
	Module string
	Reason string
}

func (e *InvalidPublicationError) Error() string {
	return fmt.Sprintf("invalid publication for %s: %s", e.Module, e.Reason)
}

func invalid(module, format string, args ...any) error {
	return ferrors.WrapError(&InvalidPublicationError{Module: module, Reason: fmt.Sprintf(format, args...)},
		ferrors.CategoryPublication, "invalid publication").
		WithContext("module", module).
		Build()
}

// Coordinates identify a publication in a repository.
type Coordinates struct {
	Group    string
	Artifact string
	Version  string
}

func (c Coordinates) String() string {
	return c.Group + ":" + c.Artifact + ":" + c.Version
}

// Dir is the Maven 2 layout directory of the coordinates.
func (c Coordinates) Dir() string {
	return strings.ReplaceAll(c.Group, ".", "/") + "/" + c.Artifact + "/" + c.Version
}

// Publication is one module's main artifact, its optional sources and docs
// companions, and descriptive metadata.
type Publication struct {
	Module      string
	Coordinates Coordinates
	Packaging   string
	Description string

	Main    artifact.Artifact
	Sources *artifact.Artifact
	Docs    *artifact.Artifact

	Metadata config.Metadata
}

// Artifacts returns main, sources and docs, in that order, skipping absent ones.
func (p *Publication) Artifacts() []artifact.Artifact {
	out := []artifact.Artifact{p.Main}
	if p.Sources != nil {
		out = append(out, *p.Sources)
	}
	if p.Docs != nil {
		out = append(out, *p.Docs)
	}
	return out
}

// Compose validates arts for module m and groups them into a publication:
// exactly one main artifact, at most one sources and at most one docs
// artifact, all belonging to m.
func Compose(m project.Module, group string, arts []artifact.Artifact, meta config.Metadata) (*Publication, error) {
	pub := &Publication{
		Module:      m.Name,
		Coordinates: Coordinates{Group: group, Artifact: m.Name, Version: m.Version},
		Description: m.Description,
		Metadata:    meta,
	}
	if pub.Description == "" {
		pub.Description = meta.Description
	}

	var mains int
	for i := range arts {
		a := arts[i]
		if a.Module != m.Name {
			return nil, invalid(m.Name, "artifact %s belongs to module %q", a.FileName(), a.Module)
		}
		switch a.Kind {
		case artifact.KindMain:
			mains++
			pub.Main = a
		case artifact.KindSources:
			if pub.Sources != nil {
				return nil, invalid(m.Name, "more than one sources artifact")
			}
			pub.Sources = &a
		case artifact.KindDocs:
			if pub.Docs != nil {
				return nil, invalid(m.Name, "more than one docs artifact")
			}
			pub.Docs = &a
		default:
			return nil, invalid(m.Name, "unknown artifact kind %q", a.Kind)
		}
	}
	switch {
	case mains == 0:
		return nil, invalid(m.Name, "no main artifact")
	case mains > 1:
		return nil, invalid(m.Name, "%d main artifacts", mains)
	}
	pub.Packaging = pub.Main.Extension
	return pub, nil
}
