package publication

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
	"git.home.luguber.info/inful/shipwright/internal/logfields"
	"git.home.luguber.info/inful/shipwright/internal/metrics"
	"git.home.luguber.info/inful/shipwright/internal/observability"
)

// TargetResult is the outcome of submitting one publication to one target.
type TargetResult struct {
	Module   string
	Target   string
	Err      error
	Duration time.Duration
}

func (r TargetResult) OK() bool { return r.Err == nil }

// TransportFactory builds the transport for a target.
type TransportFactory func(Target) (Transport, error)

// Submitter sends publications to repository targets. Targets are
// attempted independently; one failing never prevents the others, and
// nothing is retried here.
type Submitter struct {
	loader      Loader
	factory     TransportFactory
	recorder    metrics.Recorder
	concurrency int
}

// SubmitterOption configures a Submitter.
type SubmitterOption func(*Submitter)

func WithTransportFactory(f TransportFactory) SubmitterOption {
	return func(s *Submitter) { s.factory = f }
}

func WithRecorder(r metrics.Recorder) SubmitterOption {
	return func(s *Submitter) { s.recorder = r }
}

// WithConcurrency bounds parallel target submissions per publication.
func WithConcurrency(n int) SubmitterOption {
	return func(s *Submitter) { s.concurrency = n }
}

func NewSubmitter(loader Loader, opts ...SubmitterOption) *Submitter {
	s := &Submitter{loader: loader, factory: NewTransport, recorder: metrics.NoopRecorder{}, concurrency: 4}
	for _, opt := range opts {
		opt(s)
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	return s
}

// Submit publishes pub to every target and returns one result per target,
// ordered by target name.
func (s *Submitter) Submit(ctx context.Context, pub *Publication, targets []Target) []TargetResult {
	results := make([]TargetResult, 0, len(targets))
	files, err := pub.Files(ctx, s.loader)
	if err != nil {
		err = ferrors.WrapError(err, ferrors.CategoryPublication, "cannot read publication files").
			WithContext("module", pub.Module).
			Build()
		for _, t := range targets {
			results = append(results, TargetResult{Module: pub.Module, Target: t.Name, Err: err})
			s.recorder.IncSubmitResult(t.Name, metrics.ResultFailed)
		}
		return results
	}

	var mu sync.Mutex
	var eg errgroup.Group
	eg.SetLimit(s.concurrency)
	for _, t := range targets {
		eg.Go(func() error {
			r := s.submitOne(ctx, pub, files, t)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	slices.SortFunc(results, func(a, b TargetResult) int { return cmp.Compare(a.Target, b.Target) })
	return results
}

func (s *Submitter) submitOne(ctx context.Context, pub *Publication, files []File, t Target) TargetResult {
	start := time.Now()
	r := TargetResult{Module: pub.Module, Target: t.Name}

	transport, err := s.factory(t)
	if err == nil {
		err = transport.Publish(ctx, pub, files)
	}
	r.Duration = time.Since(start)
	s.recorder.ObserveSubmitDuration(t.Name, r.Duration)

	if err != nil {
		if _, ok := ferrors.AsClassified(err); !ok {
			err = ferrors.WrapError(err, ferrors.CategoryPublication, "publish failed").Build()
		}
		r.Err = fmt.Errorf("publish %s to %s: %w", pub.Coordinates, t.Name, err)
		s.recorder.IncSubmitResult(t.Name, metrics.ResultFailed)
		observability.WarnContext(ctx, "Publication rejected",
			logfields.Module(pub.Module), logfields.Target(t.Name), logfields.Error(err))
		return r
	}
	s.recorder.IncSubmitResult(t.Name, metrics.ResultSuccess)
	observability.InfoContext(ctx, "Published",
		logfields.Module(pub.Module), logfields.Target(t.Name),
		logfields.Version(pub.Coordinates.Version), logfields.Duration(r.Duration))
	return r
}

// Failed filters the failed results.
func Failed(results []TargetResult) []TargetResult {
	var out []TargetResult
	for _, r := range results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}
