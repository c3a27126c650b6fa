// Package schedule repeats crawl runs on a cron expression and serves manual
// triggers without ever overlapping two runs.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/konut-crawler/internal/crawler"
)

// ErrStopped is returned by Trigger once the scheduler is shutting down.
var ErrStopped = errors.New("scheduler stopped")

// RunFunc performs one crawl run.
type RunFunc func(ctx context.Context) error

// Scheduler owns the cron loop and the single-run guard.
type Scheduler struct {
	cron    *cron.Cron
	run     RunFunc
	logger  *zap.Logger
	running atomic.Bool
	seq     atomic.Int64
	wg      sync.WaitGroup

	// mu guards baseCtx and stopped, and orders manual wg.Add calls before the
	// final wg.Wait in Start.
	mu      sync.Mutex
	baseCtx context.Context
	stopped bool
}

// New registers run on spec (standard five-field cron or a descriptor such as
// "@every 6h").
func New(spec string, run RunFunc, logger *zap.Logger) (*Scheduler, error) {
	if run == nil {
		return nil, errors.New("run func is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{s: logger.Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		run:    run,
		logger: logger,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.execute("schedule") }); err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return s, nil
}

// Start runs the cron loop until ctx ends, then waits for an active run to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info("scheduler started", zap.Time("next_run", e.Next))
	}
	<-ctx.Done()
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	cronDone := s.cron.Stop()
	<-cronDone.Done()
	s.wg.Wait()
	return nil
}

// Trigger starts a run in the background. It returns crawler.ErrRunInProgress
// when a run is already active and ErrStopped once Start's context has ended.
func (s *Scheduler) Trigger(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	base := s.baseCtx
	if base == nil {
		return "", errors.New("scheduler is not started")
	}
	if s.stopped || base.Err() != nil {
		return "", ErrStopped
	}
	if !s.running.CompareAndSwap(false, true) {
		return "", crawler.ErrRunInProgress
	}
	id := fmt.Sprintf("manual-%d", s.seq.Add(1))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.runOnce(base, id)
	}()
	return id, nil
}

// Running reports whether a run is active.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

func (s *Scheduler) execute(trigger string) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("skipping scheduled run; previous run still active")
		return
	}
	defer s.running.Store(false)
	s.mu.Lock()
	base := s.baseCtx
	s.mu.Unlock()
	if base == nil {
		base = context.Background()
	}
	s.runOnce(base, fmt.Sprintf("%s-%d", trigger, s.seq.Add(1)))
}

func (s *Scheduler) runOnce(ctx context.Context, id string) {
	logger := s.logger.With(zap.String("trigger", id))
	logger.Info("run starting")
	if err := s.run(ctx); err != nil {
		logger.Error("run failed", zap.Error(err))
		return
	}
	logger.Info("run finished")
}

// cronLogger adapts zap to cron.Logger. Cron's info chatter goes to debug.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
