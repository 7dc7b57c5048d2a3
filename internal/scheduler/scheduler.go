package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is what the scheduler triggers.
type Job func(ctx context.Context) error

// Scheduler runs a job on a cron schedule. A trigger that fires while the
// previous run is still going is skipped.
type Scheduler struct {
	cron *cron.Cron
	job  Job
	spec string
}

func New(spec string, loc *time.Location, job Job) (*Scheduler, error) {
	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	s := &Scheduler{cron: c, job: job, spec: spec}
	if _, err := c.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	slog.Info("scheduler: triggering run")
	if err := s.job(context.Background()); err != nil {
		slog.Error("scheduler: run failed", "error", err)
	}
}

// Start begins triggering runs in the background.
func (s *Scheduler) Start() {
	slog.Info("scheduler started", "schedule", s.spec)
	s.cron.Start()
}

// Stop stops triggering runs and waits for a running job to finish or ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
		slog.Info("scheduler stopped")
	case <-ctx.Done():
		slog.Warn("scheduler stop timed out")
	}
}

// cronLogger forwards cron's logging to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
