package watch

import (
	"context"
	"slices"
	"time"
)

// Batch is one coalesced burst of changes handed to the rebuild callback.
type Batch struct {
	Paths []string // sorted, unique
	First time.Time
	Last  time.Time
	Cause string // quiet | max_delay
}

// debouncer coalesces change notifications. It fires once the input has
// been quiet for quiet, or maxDelay after the first change of a burst,
// whichever comes first. fire runs on the loop goroutine, so changes that
// arrive during a rebuild queue up into exactly one follow-up batch.
type debouncer struct {
	quiet    time.Duration
	maxDelay time.Duration

	paths map[string]struct{}
	first time.Time
	last  time.Time
}

func newDebouncer(quiet, maxDelay time.Duration) *debouncer {
	if maxDelay < quiet {
		maxDelay = quiet
	}
	return &debouncer{quiet: quiet, maxDelay: maxDelay, paths: map[string]struct{}{}}
}

func (d *debouncer) run(ctx context.Context, in <-chan string, fire func(context.Context, Batch)) {
	quietTimer := stoppedTimer()
	maxTimer := stoppedTimer()
	var quietC, maxC <-chan time.Time

	emit := func(cause string) {
		quietC, maxC = nil, nil
		if len(d.paths) == 0 {
			return
		}
		b := Batch{First: d.first, Last: d.last, Cause: cause}
		for p := range d.paths {
			b.Paths = append(b.Paths, p)
		}
		slices.Sort(b.Paths)
		clear(d.paths)
		fire(ctx, b)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-in:
			if !ok {
				return
			}
			now := time.Now()
			if len(d.paths) == 0 {
				d.first = now
				resetTimer(maxTimer, d.maxDelay)
				maxC = maxTimer.C
			}
			d.paths[p] = struct{}{}
			d.last = now
			resetTimer(quietTimer, d.quiet)
			quietC = quietTimer.C
		case <-quietC:
			emit("quiet")
		case <-maxC:
			emit("max_delay")
		}
	}
}

func stoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	if !t.Stop() {
		<-t.C
	}
	return t
}

func resetTimer(t *time.Timer, after time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(after)
}
