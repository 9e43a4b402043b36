package history

import (
	"context"
	"slices"
	"sync"
	"time"
)

// StatusRunning marks a run with no RunCompleted event yet.
const StatusRunning = "running"

// RunSummary is a read model of one run.
type RunSummary struct {
	RunID             string         `json:"run_id"`
	Command           string         `json:"command"`
	Project           string         `json:"project"`
	Version           string         `json:"version"`
	Status            string         `json:"status"`
	StartedAt         time.Time      `json:"started_at"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`
	Duration          time.Duration  `json:"duration,omitempty"`
	Steps             int            `json:"steps"`
	StepsFailed       int            `json:"steps_failed"`
	Submissions       int            `json:"submissions"`
	SubmissionsFailed int            `json:"submissions_failed"`
	ReleaseState      string         `json:"release_state,omitempty"`
	Tag               string         `json:"tag,omitempty"`
	Excluded          []string       `json:"excluded,omitempty"`
	Error             string         `json:"error,omitempty"`
	Failures          []StepFinished `json:"failures,omitempty"`
}

// Projection rebuilds run summaries from the event store.
type Projection struct {
	mu      sync.RWMutex
	store   Store
	runs    map[string]*RunSummary
	maxSize int
}

// NewProjection creates a projection keeping at most maxSize runs.
func NewProjection(store Store, maxSize int) *Projection {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Projection{store: store, runs: map[string]*RunSummary{}, maxSize: maxSize}
}

// Rebuild reconstructs the projection from every stored event.
func (p *Projection) Rebuild(ctx context.Context) error {
	events, err := p.store.Range(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs = map[string]*RunSummary{}
	for _, e := range events {
		p.applyLocked(e)
	}
	return nil
}

// Apply folds a single event into the projection.
func (p *Projection) Apply(e *Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(e)
}

func (p *Projection) applyLocked(e *Event) {
	if e.RunID == "" {
		return
	}
	s, ok := p.runs[e.RunID]
	if !ok {
		s = &RunSummary{RunID: e.RunID, Status: StatusRunning, StartedAt: e.Timestamp}
		p.runs[e.RunID] = s
	}

	switch e.Type {
	case TypeRunStarted:
		var payload RunStarted
		if e.Decode(&payload) == nil {
			s.Command = payload.Command
			s.Project = payload.Project
			s.Version = payload.Version
		}
		s.StartedAt = e.Timestamp

	case TypeStepFinished:
		var payload StepFinished
		if e.Decode(&payload) == nil {
			s.Steps++
			if payload.Error != "" {
				s.StepsFailed++
				s.Failures = append(s.Failures, payload)
			}
		}

	case TypeSubmissionFinished:
		var payload SubmissionFinished
		if e.Decode(&payload) == nil {
			s.Submissions++
			if !payload.OK {
				s.SubmissionsFailed++
			}
		}

	case TypeReleaseTransition:
		var payload ReleaseTransition
		if e.Decode(&payload) == nil {
			s.ReleaseState = payload.To
			if payload.Tag != "" {
				s.Tag = payload.Tag
			}
		}

	case TypeRunCompleted:
		var payload RunCompleted
		if e.Decode(&payload) == nil {
			s.Status = payload.Status
			s.Excluded = payload.Excluded
			s.Error = payload.Error
		}
		done := e.Timestamp
		s.CompletedAt = &done
		s.Duration = done.Sub(s.StartedAt)
	}
}

// Recent returns up to n runs, newest first. n <= 0 uses the projection size.
func (p *Projection) Recent(n int) []RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if n <= 0 || n > p.maxSize {
		n = p.maxSize
	}
	out := make([]RunSummary, 0, len(p.runs))
	for _, s := range p.runs {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b RunSummary) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		if a.RunID < b.RunID {
			return -1
		}
		if a.RunID > b.RunID {
			return 1
		}
		return 0
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Run returns the summary for a run.
func (p *Projection) Run(runID string) (RunSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.runs[runID]
	if !ok {
		return RunSummary{}, false
	}
	return *s, true
}
