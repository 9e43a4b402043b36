// Package graph holds the explicit step DAG of a run: typed nodes, hard
// dependency edges and tolerant (barrier) edges, ordered with Kahn's
// algorithm and executed with bounded parallelism.
package graph

import (
	"context"
	"fmt"
	"slices"
	"sort"
)

// NodeKind classifies a step.
type NodeKind string

const (
	KindProfile   NodeKind = "profile"
	KindMain      NodeKind = "main"
	KindSources   NodeKind = "sources"
	KindDocs      NodeKind = "docs"
	KindCompose   NodeKind = "compose"
	KindAggregate NodeKind = "aggregate"
)

// NodeID identifies a node, e.g. "docs:acra-core".
type NodeID string

// ID builds the id of a module-scoped node; module may be empty for project nodes.
func ID(kind NodeKind, module string) NodeID {
	if module == "" {
		return NodeID(kind)
	}
	return NodeID(string(kind) + ":" + module)
}

// Task is the work of a node. deps holds the results of the node's direct
// dependencies, including tolerant ones that may have failed.
type Task func(ctx context.Context, deps Results) (any, error)

// Node is one step of the DAG.
type Node struct {
	ID     NodeID
	Kind   NodeKind
	Module string
	Run    Task
}

// Edge means To cannot start before From is terminal. A hard edge also
// requires From to have succeeded; a tolerant edge only waits.
type Edge struct {
	From     NodeID
	To       NodeID
	Tolerant bool
}

// Graph is a DAG under construction. It is not safe for concurrent mutation.
type Graph struct {
	nodes map[NodeID]Node
	order []NodeID
	deps  map[NodeID][]Edge
}

func New() *Graph {
	return &Graph{nodes: map[NodeID]Node{}, deps: map[NodeID][]Edge{}}
}

// Add inserts a node. Ids are unique.
func (g *Graph) Add(n Node) error {
	if n.ID == "" {
		n.ID = ID(n.Kind, n.Module)
	}
	if _, exists := g.nodes[n.ID]; exists {
		return fmt.Errorf("duplicate node %q", n.ID)
	}
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
	return nil
}

// DependsOn adds a hard edge: node runs only after dep succeeded.
func (g *Graph) DependsOn(node, dep NodeID) error {
	return g.addEdge(Edge{From: dep, To: node})
}

// WaitsFor adds a tolerant barrier edge: node runs once dep is terminal,
// whatever its outcome.
func (g *Graph) WaitsFor(node, dep NodeID) error {
	return g.addEdge(Edge{From: dep, To: node, Tolerant: true})
}

func (g *Graph) addEdge(e Edge) error {
	if _, ok := g.nodes[e.From]; !ok {
		return fmt.Errorf("edge %s -> %s: unknown node %q", e.From, e.To, e.From)
	}
	if _, ok := g.nodes[e.To]; !ok {
		return fmt.Errorf("edge %s -> %s: unknown node %q", e.From, e.To, e.To)
	}
	if e.From == e.To {
		return fmt.Errorf("node %q cannot depend on itself", e.From)
	}
	g.deps[e.To] = append(g.deps[e.To], e)
	return nil
}

// Node returns the node with id.
func (g *Graph) Node(id NodeID) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Len is the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Dependencies returns the incoming edges of id.
func (g *Graph) Dependencies(id NodeID) []Edge {
	return slices.Clone(g.deps[id])
}

// dependents returns, for every node, the nodes that depend on it.
func (g *Graph) dependents() map[NodeID][]NodeID {
	out := make(map[NodeID][]NodeID, len(g.nodes))
	for to, edges := range g.deps {
		for _, e := range edges {
			out[e.From] = append(out[e.From], to)
		}
	}
	for id := range out {
		sort.Slice(out[id], func(i, j int) bool { return out[id][i] < out[id][j] })
	}
	return out
}

// Sort returns node ids in dependency order. Among ready nodes the order is
// lexical, so the result is deterministic. A cycle is an error naming the
// nodes involved.
func (g *Graph) Sort() ([]NodeID, error) {
	inDegree := make(map[NodeID]int, len(g.nodes))
	for _, id := range g.order {
		inDegree[id] = len(g.deps[id])
	}
	dependents := g.dependents()

	var queue []NodeID
	for _, id := range g.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	slices.Sort(queue)

	result := make([]NodeID, 0, len(g.nodes))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		for _, next := range dependents[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
				slices.Sort(queue)
			}
		}
	}

	if len(result) != len(g.nodes) {
		var stuck []NodeID
		for _, id := range g.order {
			if inDegree[id] > 0 {
				stuck = append(stuck, id)
			}
		}
		slices.Sort(stuck)
		return nil, fmt.Errorf("circular dependency detected involving nodes: %v", stuck)
	}
	return result, nil
}
