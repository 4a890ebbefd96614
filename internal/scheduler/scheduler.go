// Package scheduler triggers periodic syncs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "kal/internal/log"
)

// Job is one scheduled run. The context is canceled when the scheduler
// stops.
type Job func(ctx context.Context) error

// Scheduler runs a Job on a standard 5-field cron spec. A run that is still
// going when the next tick fires makes that tick a no-op.
type Scheduler struct {
	c      *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	spec   string
	id     cron.EntryID
}

// New parses spec in loc and registers job.
func New(spec string, loc *time.Location, job Job) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	logger := appLog.CronLogger{}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{c: c, ctx: ctx, cancel: cancel, spec: spec}

	id, err := c.AddFunc(spec, func() {
		start := time.Now()
		appLog.Info("scheduled sync start", "spec", spec)
		if err := job(s.ctx); err != nil {
			appLog.Error("scheduled sync failed", err, "took", time.Since(start))
			return
		}
		appLog.Info("scheduled sync done", "took", time.Since(start))
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("refresh schedule %q: %w", spec, err)
	}
	s.id = id
	return s, nil
}

// Start begins firing in the background.
func (s *Scheduler) Start() {
	s.c.Start()
	appLog.Info("scheduler started", "spec", s.spec, "next", s.Next())
}

// Next is the next planned run, zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.c.Entry(s.id).Next
}

// Stop cancels the running job, if any, and waits for it to return or for
// ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.c.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
