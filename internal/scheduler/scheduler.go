package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const defaultCycleTimeout = 30 * time.Minute

// Job is a unit of periodic work.
type Job interface {
	RunCycle(ctx context.Context) error
}

type Option func(*Scheduler)

// WithSetup runs fn once before the first cycle. A setup error stops the
// scheduler.
func WithSetup(fn func(ctx context.Context) error) Option {
	return func(s *Scheduler) {
		s.setup = fn
	}
}

func WithCycleTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.cycleTimeout = d
		}
	}
}

type Scheduler struct {
	job          Job
	interval     time.Duration
	cycleTimeout time.Duration
	setup        func(ctx context.Context) error
	logger       *slog.Logger
}

func NewScheduler(job Job, interval time.Duration, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		job:          job,
		interval:     interval,
		cycleTimeout: defaultCycleTimeout,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs setup, one immediate cycle and then a cycle per interval until
// ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("invalid interval: %s", s.interval)
	}

	if s.setup != nil {
		if err := s.setup(ctx); err != nil {
			return fmt.Errorf("setup: %w", err)
		}
	}

	s.logger.Info("scheduler started", "interval", s.interval)

	s.runCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// Go runs Start in a new goroutine and returns a handle to stop it.
func (s *Scheduler) Go(ctx context.Context) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		err := s.Start(ctx)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		if err != nil {
			s.logger.Error("scheduler exited", "error", err)
		}
		h.err = err
	}()

	return h
}

func (s *Scheduler) runCycle(ctx context.Context) {
	cycleCtx, cancel := context.WithTimeout(ctx, s.cycleTimeout)
	defer cancel()

	start := time.Now()
	if err := s.job.RunCycle(cycleCtx); err != nil {
		s.logger.Error("cycle failed", "error", err, "duration", time.Since(start))
		return
	}
	s.logger.Debug("cycle completed", "duration", time.Since(start))
}

// Handle controls a scheduler started with Go.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Stop cancels the scheduler and waits for the running cycle to return.
func (h *Handle) Stop() {
	h.cancel()
	<-h.done
}

// Done is closed once the scheduler has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err reports why the scheduler exited. It is nil after Stop and only valid
// once Done is closed.
func (h *Handle) Err() error {
	<-h.done
	return h.err
}
