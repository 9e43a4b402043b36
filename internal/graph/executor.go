package graph

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"
)

// Observer is notified as nodes start and finish. Calls come from the
// executor goroutine, never concurrently.
type Observer interface {
	NodeStarted(n Node)
	NodeFinished(n Node, r Result)
}

// Executor runs a Graph with bounded parallelism.
type Executor struct {
	concurrency int
	observer    Observer
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithConcurrency bounds the number of tasks running at once. Values < 1 use NumCPU.
func WithConcurrency(n int) ExecutorOption {
	return func(e *Executor) { e.concurrency = n }
}

// WithObserver registers an observer.
func WithObserver(o Observer) ExecutorOption {
	return func(e *Executor) { e.observer = o }
}

func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	if e.concurrency < 1 {
		e.concurrency = runtime.NumCPU()
	}
	return e
}

type completion struct {
	node   Node
	result Result
}

// Run executes every node exactly once and returns all results. A node
// starts once all of its dependencies are terminal; it is skipped when a
// hard dependency did not succeed, or when ctx is done before it started.
// Task failures are reported in the results, not as the returned error,
// which is reserved for an invalid graph.
func (e *Executor) Run(ctx context.Context, g *Graph) (Results, error) {
	order, err := g.Sort()
	if err != nil {
		return nil, err
	}

	pending := make(map[NodeID]int, len(order))
	for _, id := range order {
		pending[id] = len(g.deps[id])
	}
	dependents := g.dependents()
	results := make(Results, len(order))

	var ready []NodeID
	for _, id := range order {
		if pending[id] == 0 {
			ready = append(ready, id)
		}
	}

	// Buffered to the node count so workers never block on send while the
	// scheduler is waiting for a free slot.
	done := make(chan completion, len(order))
	var eg errgroup.Group
	eg.SetLimit(e.concurrency)

	inFlight := 0
	finish := func(n Node, r Result) {
		results[n.ID] = r
		if e.observer != nil {
			e.observer.NodeFinished(n, r)
		}
		for _, next := range dependents[n.ID] {
			pending[next]--
			if pending[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	for len(results) < len(order) {
		for len(ready) > 0 {
			id := ready[0]
			ready = ready[1:]
			n := g.nodes[id]

			if r, skip := e.skipReason(ctx, g, n, results); skip {
				finish(n, r)
				continue
			}

			deps := make(Results, len(g.deps[id]))
			for _, edge := range g.deps[id] {
				deps[edge.From] = results[edge.From]
			}
			if e.observer != nil {
				e.observer.NodeStarted(n)
			}
			inFlight++
			eg.Go(func() error {
				done <- completion{node: n, result: execute(ctx, n, deps)}
				return nil
			})
		}
		if inFlight == 0 {
			break
		}
		c := <-done
		inFlight--
		finish(c.node, c.result)
	}

	_ = eg.Wait()
	return results, nil
}

func (e *Executor) skipReason(ctx context.Context, g *Graph, n Node, results Results) (Result, bool) {
	base := Result{ID: n.ID, Kind: n.Kind, Module: n.Module, Status: StatusSkipped}
	for _, edge := range g.deps[n.ID] {
		if edge.Tolerant {
			continue
		}
		if dep := results[edge.From]; !dep.Succeeded() {
			base.Err = fmt.Errorf("%w: %s is %s", ErrDependencyFailed, edge.From, dep.Status)
			return base, true
		}
	}
	if err := ctx.Err(); err != nil {
		base.Err = err
		return base, true
	}
	return Result{}, false
}

func execute(ctx context.Context, n Node, deps Results) (r Result) {
	r = Result{ID: n.ID, Kind: n.Kind, Module: n.Module, Started: time.Now()}
	defer func() {
		if rec := recover(); rec != nil {
			r.Status = StatusFailed
			r.Err = fmt.Errorf("panic in %s: %v\n%s", n.ID, rec, debug.Stack())
		}
		r.Finished = time.Now()
	}()

	if n.Run == nil {
		r.Status = StatusSucceeded
		return r
	}
	value, err := n.Run(ctx, deps)
	r.Value = value
	if err != nil {
		r.Status = StatusFailed
		r.Err = err
		return r
	}
	r.Status = StatusSucceeded
	return r
}
