// Package schedule runs recurring jobs such as the nightly snapshot publish.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"

	ferrors "git.home.luguber.info/inful/shipwright/internal/foundation/errors"
	"git.home.luguber.info/inful/shipwright/internal/logfields"
)

// Task is one scheduled unit of work. Its error is logged, not propagated.
type Task func(ctx context.Context) error

// Scheduler wraps a gocron scheduler. Jobs never overlap themselves: a run
// that is still going when the next one is due pushes that one back.
type Scheduler struct {
	scheduler gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
}

func New(opts ...gocron.SchedulerOption) (*Scheduler, error) {
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{scheduler: s, ctx: ctx, cancel: cancel}, nil
}

// Cron schedules task on a cron expression. Five fields are standard cron;
// six fields add a leading seconds field.
func (s *Scheduler) Cron(name, expr string, task Task) (string, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return "", ferrors.ConfigError("schedule expression is empty").WithContext("job", name).Build()
	}
	withSeconds := len(strings.Fields(expr)) == 6
	job, err := s.scheduler.NewJob(
		gocron.CronJob(expr, withSeconds),
		gocron.NewTask(s.run, name, task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryConfig, "invalid schedule").
			WithContext("job", name).
			WithContext("expression", expr).
			Build()
	}
	return job.ID().String(), nil
}

// NextRun reports when the named job fires next.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	for _, j := range s.scheduler.Jobs() {
		if j.Name() != name {
			continue
		}
		next, err := j.NextRun()
		if err != nil {
			return time.Time{}, false
		}
		return next, true
	}
	return time.Time{}, false
}

func (s *Scheduler) Start() {
	slog.Info("Starting scheduler", logfields.Count(len(s.scheduler.Jobs())))
	s.scheduler.Start()
}

// Stop cancels running tasks and waits for them to return.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	s.cancel()
	return s.scheduler.Shutdown()
}

func (s *Scheduler) run(name string, task Task) {
	start := time.Now()
	slog.Info("Executing scheduled job", logfields.Job(name))
	if err := task(s.ctx); err != nil {
		slog.Error("Scheduled job failed", logfields.Job(name), logfields.Duration(time.Since(start)), logfields.Error(err))
		return
	}
	slog.Info("Scheduled job finished", logfields.Job(name), logfields.Duration(time.Since(start)))
}
