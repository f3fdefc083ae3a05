// Package scheduler drives the periodic reset check and sync poll.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sadopc/chorechart/internal/mirror"
	"github.com/sadopc/chorechart/internal/reset"
)

type Scheduler struct {
	cron   *cron.Cron
	engine *reset.Engine
	syncer *mirror.Syncer
	logger *slog.Logger
}

// New schedules a reset tick every resetEvery and, when syncer is non-nil,
// a sync poll every syncEvery. A run that is still going when its next
// turn comes is skipped.
func New(engine *reset.Engine, syncer *mirror.Syncer, resetEvery, syncEvery time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger}
	s := &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		engine: engine,
		syncer: syncer,
		logger: logger,
	}

	if _, err := s.cron.AddFunc(every(resetEvery), s.tick); err != nil {
		return nil, fmt.Errorf("schedule reset check: %w", err)
	}
	if syncer != nil {
		if _, err := s.cron.AddFunc(every(syncEvery), s.poll); err != nil {
			return nil, fmt.Errorf("schedule sync poll: %w", err)
		}
	}
	return s, nil
}

func every(d time.Duration) string {
	return "@every " + d.String()
}

// RunNow performs one poll and one reset check synchronously, in that
// order, so a freshly started device resets against the shared state.
func (s *Scheduler) RunNow() {
	if s.syncer != nil {
		s.poll()
	}
	s.tick()
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and returns a context that is done once running
// jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Jobs reports how many periodic jobs are registered.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) tick() {
	res, err := s.engine.Tick()
	if err != nil {
		s.logger.Error("reset check failed", "error", err)
		return
	}
	if res.Daily || res.Weekly {
		s.logger.Debug("reset check", "daily", res.Daily, "weekly", res.Weekly)
	}
}

func (s *Scheduler) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), mirror.DefaultPushTimeout)
	defer cancel()
	s.syncer.Poll(ctx)
}

// cronLogger routes cron's own logging through slog.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
