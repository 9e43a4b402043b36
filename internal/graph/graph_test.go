package graph

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func noop(context.Context, Results) (any, error) { return nil, nil }

func mustAdd(t *testing.T, g *Graph, kind NodeKind, module string, run Task) NodeID {
	t.Helper()
	id := ID(kind, module)
	require.NoError(t, g.Add(Node{ID: id, Kind: kind, Module: module, Run: run}))
	return id
}

func TestSortDeterministic(t *testing.T) {
	g := New()
	b := mustAdd(t, g, KindMain, "b", noop)
	a := mustAdd(t, g, KindMain, "a", noop)
	agg := mustAdd(t, g, KindAggregate, "", noop)
	pa := mustAdd(t, g, KindProfile, "a", noop)
	require.NoError(t, g.DependsOn(a, pa))
	require.NoError(t, g.WaitsFor(agg, a))
	require.NoError(t, g.WaitsFor(agg, b))

	order, err := g.Sort()
	require.NoError(t, err)
	require.Equal(t, []NodeID{"main:b", "profile:a", "main:a", "aggregate"}, order)
}

func TestSortCycle(t *testing.T) {
	g := New()
	a := mustAdd(t, g, KindMain, "a", noop)
	b := mustAdd(t, g, KindMain, "b", noop)
	require.NoError(t, g.DependsOn(a, b))
	require.NoError(t, g.DependsOn(b, a))

	_, err := g.Sort()
	require.ErrorContains(t, err, "circular dependency")
	require.ErrorContains(t, err, "main:a")
}

func TestGraphRejectsBadEdges(t *testing.T) {
	g := New()
	a := mustAdd(t, g, KindMain, "a", noop)
	require.Error(t, g.Add(Node{ID: a, Kind: KindMain}))
	require.Error(t, g.DependsOn(a, "missing"))
	require.Error(t, g.DependsOn(a, a))
}

func TestExecutorHardDependencySkips(t *testing.T) {
	g := New()
	boom := errors.New("compile failed")
	main := mustAdd(t, g, KindMain, "core", func(context.Context, Results) (any, error) { return nil, boom })
	var docsRan atomic.Bool
	docs := mustAdd(t, g, KindDocs, "core", func(context.Context, Results) (any, error) {
		docsRan.Store(true)
		return nil, nil
	})
	compose := mustAdd(t, g, KindCompose, "core", noop)
	require.NoError(t, g.DependsOn(docs, main))
	require.NoError(t, g.DependsOn(compose, docs))

	results, err := NewExecutor(WithConcurrency(2)).Run(context.Background(), g)
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, StatusFailed, results[main].Status)
	require.ErrorIs(t, results[main].Err, boom)
	require.Equal(t, StatusSkipped, results[docs].Status)
	require.ErrorIs(t, results[docs].Err, ErrDependencyFailed)
	require.Equal(t, StatusSkipped, results[compose].Status)
	require.False(t, docsRan.Load())
}

func TestExecutorBarrierWaitsForAll(t *testing.T) {
	g := New()
	var finished atomic.Int32
	slow := func(ok bool) Task {
		return func(context.Context, Results) (any, error) {
			time.Sleep(10 * time.Millisecond)
			finished.Add(1)
			if !ok {
				return nil, errors.New("docs failed")
			}
			return "docs", nil
		}
	}
	a := mustAdd(t, g, KindDocs, "a", slow(true))
	b := mustAdd(t, g, KindDocs, "b", slow(false))
	c := mustAdd(t, g, KindDocs, "c", slow(true))

	var seen Results
	var finishedAtStart int32
	agg := mustAdd(t, g, KindAggregate, "", func(_ context.Context, deps Results) (any, error) {
		finishedAtStart = finished.Load()
		seen = deps
		return nil, nil
	})
	for _, id := range []NodeID{a, b, c} {
		require.NoError(t, g.WaitsFor(agg, id))
	}

	results, err := NewExecutor(WithConcurrency(3)).Run(context.Background(), g)
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, results[agg].Status)
	require.EqualValues(t, 3, finishedAtStart)
	require.Len(t, seen, 3)
	require.Equal(t, StatusFailed, seen[b].Status)
	v, ok := seen.Value(a)
	require.True(t, ok)
	require.Equal(t, "docs", v)
}

func TestExecutorBoundsConcurrency(t *testing.T) {
	g := New()
	var running, peak atomic.Int32
	task := func(context.Context, Results) (any, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return nil, nil
	}
	for _, m := range []string{"a", "b", "c", "d", "e", "f"} {
		mustAdd(t, g, KindMain, m, task)
	}

	results, err := NewExecutor(WithConcurrency(2)).Run(context.Background(), g)
	require.NoError(t, err)
	require.Len(t, results, 6)
	require.LessOrEqual(t, peak.Load(), int32(2))
}

func TestExecutorCancelledContextSkipsPending(t *testing.T) {
	g := New()
	ctx, cancel := context.WithCancel(context.Background())
	first := mustAdd(t, g, KindMain, "a", func(context.Context, Results) (any, error) {
		cancel()
		return nil, nil
	})
	second := mustAdd(t, g, KindDocs, "a", noop)
	require.NoError(t, g.DependsOn(second, first))

	results, err := NewExecutor(WithConcurrency(1)).Run(ctx, g)
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, results[first].Status)
	require.Equal(t, StatusSkipped, results[second].Status)
	require.ErrorIs(t, results[second].Err, context.Canceled)
}

func TestExecutorRecoversPanics(t *testing.T) {
	g := New()
	id := mustAdd(t, g, KindMain, "a", func(context.Context, Results) (any, error) { panic("boom") })

	results, err := NewExecutor().Run(context.Background(), g)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, results[id].Status)
	require.ErrorContains(t, results[id].Err, "panic in main:a")
}

type recordingObserver struct {
	mu       sync.Mutex
	started  []NodeID
	finished []NodeID
}

func (o *recordingObserver) NodeStarted(n Node) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, n.ID)
}

func (o *recordingObserver) NodeFinished(n Node, _ Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, n.ID)
}

func TestExecutorObserver(t *testing.T) {
	g := New()
	fail := mustAdd(t, g, KindMain, "a", func(context.Context, Results) (any, error) { return nil, errors.New("x") })
	skipped := mustAdd(t, g, KindDocs, "a", noop)
	require.NoError(t, g.DependsOn(skipped, fail))

	obs := &recordingObserver{}
	_, err := NewExecutor(WithObserver(obs)).Run(context.Background(), g)
	require.NoError(t, err)
	require.Equal(t, []NodeID{fail}, obs.started)
	require.Equal(t, []NodeID{fail, skipped}, obs.finished)
}

func TestResultsByKind(t *testing.T) {
	rs := Results{
		"docs:b": {ID: "docs:b", Kind: KindDocs},
		"docs:a": {ID: "docs:a", Kind: KindDocs},
		"main:a": {ID: "main:a", Kind: KindMain},
	}
	got := rs.ByKind(KindDocs)
	require.Len(t, got, 2)
	require.Equal(t, NodeID("docs:a"), got[0].ID)
}
