package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"git.home.luguber.info/inful/shipwright/internal/artifact"
	"git.home.luguber.info/inful/shipwright/internal/config"
	"git.home.luguber.info/inful/shipwright/internal/docs"
	"git.home.luguber.info/inful/shipwright/internal/graph"
	"git.home.luguber.info/inful/shipwright/internal/observability"
	"git.home.luguber.info/inful/shipwright/internal/packager"
	"git.home.luguber.info/inful/shipwright/internal/profile"
	"git.home.luguber.info/inful/shipwright/internal/project"
	"git.home.luguber.info/inful/shipwright/internal/publication"
	"git.home.luguber.info/inful/shipwright/internal/toolchain"
)

// Mode selects which steps a run contains.
type Mode int

const (
	// ModeBuild runs every step: profile, main, sources, docs, compose and aggregate.
	ModeBuild Mode = iota
	// ModeDocs runs profile, main, docs and aggregate only.
	ModeDocs
)

func (m Mode) String() string {
	if m == ModeDocs {
		return "docs"
	}
	return "build"
}

type profileOut struct {
	Profile  profile.Profile
	Settings profile.Settings
}

type mainOut struct {
	Artifact artifact.Artifact
	Compiled toolchain.CompileOutput
	Settings profile.Settings
}

type docsOut struct {
	Artifact artifact.Artifact
	Inputs   packager.DocInputs
}

// steps holds what the node tasks of one run share.
type steps struct {
	platform   config.Platform
	group      string
	metadata   config.Metadata
	packager   *packager.Packager
	aggregator *docs.Aggregator

	mu     sync.Mutex
	causes map[string]error // first failure per module
}

func (s *steps) fail(module string, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.causes == nil {
		s.causes = map[string]error{}
	}
	if _, ok := s.causes[module]; !ok {
		s.causes[module] = err
	}
	return err
}

func (s *steps) cause(module string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.causes[module]
}

// buildGraph computes the step DAG from the module list. Per module:
// profile → main → docs, profile → sources, and compose after main,
// sources and docs. The aggregate node waits for every docs node through
// tolerant edges so it runs once all of them are terminal.
func buildGraph(modules []project.Module, mode Mode, s *steps) (*graph.Graph, error) {
	g := graph.New()
	add := func(kind graph.NodeKind, module string, task graph.Task) (graph.NodeID, error) {
		id := graph.ID(kind, module)
		return id, g.Add(graph.Node{ID: id, Kind: kind, Module: module, Run: task})
	}

	var docNodes []graph.NodeID
	for _, m := range modules {
		profileID, err := add(graph.KindProfile, m.Name, s.profileTask(m))
		if err != nil {
			return nil, err
		}
		mainID, err := add(graph.KindMain, m.Name, s.mainTask(m, profileID))
		if err != nil {
			return nil, err
		}
		docsID, err := add(graph.KindDocs, m.Name, s.docsTask(m, mainID))
		if err != nil {
			return nil, err
		}
		edges := [][2]graph.NodeID{{mainID, profileID}, {docsID, mainID}}
		docNodes = append(docNodes, docsID)

		if mode == ModeBuild {
			sourcesID, err := add(graph.KindSources, m.Name, s.sourcesTask(m))
			if err != nil {
				return nil, err
			}
			edges = append(edges, [2]graph.NodeID{sourcesID, profileID})
			if m.Publish {
				composeID, err := add(graph.KindCompose, m.Name, s.composeTask(m, mainID, sourcesID, docsID))
				if err != nil {
					return nil, err
				}
				edges = append(edges,
					[2]graph.NodeID{composeID, mainID},
					[2]graph.NodeID{composeID, sourcesID},
					[2]graph.NodeID{composeID, docsID})
			}
		}
		for _, e := range edges {
			if err := g.DependsOn(e[0], e[1]); err != nil {
				return nil, err
			}
		}
	}

	aggID, err := add(graph.KindAggregate, "", s.aggregateTask(modules, docNodes))
	if err != nil {
		return nil, err
	}
	for _, id := range docNodes {
		if err := g.WaitsFor(aggID, id); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (s *steps) profileTask(m project.Module) graph.Task {
	return func(ctx context.Context, _ graph.Results) (any, error) {
		p, err := profile.Resolve(m)
		if err != nil {
			return nil, s.fail(m.Name, err)
		}
		settings, err := profile.Apply(m, p, s.platform)
		if err != nil {
			return nil, s.fail(m.Name, err)
		}
		observability.DebugContext(observability.WithModule(ctx, m.Name), "Resolved profile")
		return profileOut{Profile: p, Settings: settings}, nil
	}
}

func (s *steps) mainTask(m project.Module, profileID graph.NodeID) graph.Task {
	return func(ctx context.Context, deps graph.Results) (any, error) {
		v, _ := deps.Value(profileID)
		p, ok := v.(profileOut)
		if !ok {
			return nil, fmt.Errorf("missing profile for %s", m.Name)
		}
		a, compiled, err := s.packager.PackageMain(ctx, m, p.Settings)
		if err != nil {
			return nil, s.fail(m.Name, err)
		}
		return mainOut{Artifact: a, Compiled: compiled, Settings: p.Settings}, nil
	}
}

func (s *steps) sourcesTask(m project.Module) graph.Task {
	return func(ctx context.Context, _ graph.Results) (any, error) {
		a, err := s.packager.PackageSources(ctx, m)
		if err != nil {
			return nil, s.fail(m.Name, err)
		}
		return a, nil
	}
}

func (s *steps) docsTask(m project.Module, mainID graph.NodeID) graph.Task {
	return func(ctx context.Context, deps graph.Results) (any, error) {
		v, _ := deps.Value(mainID)
		mo, ok := v.(mainOut)
		if !ok {
			return nil, fmt.Errorf("missing main output for %s", m.Name)
		}
		in, err := s.packager.CollectDocInputs(m, mo.Settings, mo.Compiled)
		if err != nil {
			return nil, s.fail(m.Name, err)
		}
		a, err := s.packager.PackageDocs(ctx, m, in)
		if err != nil {
			return nil, s.fail(m.Name, err)
		}
		return docsOut{Artifact: a, Inputs: in}, nil
	}
}

func (s *steps) composeTask(m project.Module, mainID, sourcesID, docsID graph.NodeID) graph.Task {
	return func(_ context.Context, deps graph.Results) (any, error) {
		var arts []artifact.Artifact
		if v, ok := deps.Value(mainID); ok {
			arts = append(arts, v.(mainOut).Artifact)
		}
		if v, ok := deps.Value(sourcesID); ok {
			arts = append(arts, v.(artifact.Artifact))
		}
		if v, ok := deps.Value(docsID); ok {
			arts = append(arts, v.(docsOut).Artifact)
		}
		pub, err := publication.Compose(m, s.group, arts, s.metadata)
		if err != nil {
			return nil, s.fail(m.Name, err)
		}
		return pub, nil
	}
}

// aggregateTask turns the terminal docs results into contributions. A
// module whose docs node did not succeed contributes its first recorded
// failure as the exclusion reason.
func (s *steps) aggregateTask(modules []project.Module, docNodes []graph.NodeID) graph.Task {
	return func(ctx context.Context, deps graph.Results) (any, error) {
		contribs := make([]docs.Contribution, 0, len(modules))
		for i, m := range modules {
			r := deps[docNodes[i]]
			c := docs.Contribution{Module: m.Name}
			if out, ok := r.Value.(docsOut); ok && r.Succeeded() {
				c.Inputs = out.Inputs
			} else {
				c.Err = s.cause(m.Name)
				if c.Err == nil {
					c.Err = r.Err
				}
				if c.Err == nil {
					c.Err = errors.New("documentation step did not run")
				}
			}
			contribs = append(contribs, c)
		}
		return s.aggregator.Aggregate(ctx, contribs)
	}
}
