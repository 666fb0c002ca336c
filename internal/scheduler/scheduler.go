// Package scheduler publishes a track for a fixed prompt on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/automuse/internal/clock"
	"github.com/book-expert/automuse/internal/core"
)

// Defaults used by the loop mode.
const (
	DefaultInterval = time.Hour
	DefaultPrompt   = "an ambient futuristic synthwave tune"
)

const (
	logFmtStarted   = "Scheduler started: prompt='%s' interval=%s"
	logFmtCycle     = "Cycle %d: publishing prompt '%s'"
	logFmtPublished = "Cycle %d: published %s in %s"
	logFmtFailed    = "Cycle %d failed after %s: %v"
	logFmtWaiting   = "Waiting %s before the next cycle"
	logStopped      = "Scheduler stopped"
)

var (
	// ErrPublisherNil indicates a missing publisher.
	ErrPublisherNil = errors.New("publisher cannot be nil")
	// ErrClockNil indicates a missing clock.
	ErrClockNil = errors.New("clock cannot be nil")
	// ErrLoggerNil indicates a missing logger.
	ErrLoggerNil = errors.New("logger cannot be nil")
	// ErrInvalidInterval indicates a non-positive interval.
	ErrInvalidInterval = errors.New("interval must be positive")
)

// Config controls the loop.
type Config struct {
	Interval time.Duration
	Prompt   string
	// RunImmediately starts the first cycle without waiting one interval.
	RunImmediately bool
}

// Outcome is the result of one cycle.
type Outcome struct {
	Cycle       int
	Publication *core.Publication
	Err         error
	Elapsed     time.Duration
}

// Scheduler drives a publisher from a single goroutine.
type Scheduler struct {
	publisher core.Publisher
	cfg       Config
	clock     clock.Clock
	log       *logger.Logger
	cycle     int
}

// New creates a Scheduler. An empty prompt falls back to DefaultPrompt.
func New(publisher core.Publisher, cfg Config, clk clock.Clock, log *logger.Logger) (*Scheduler, error) {
	switch {
	case publisher == nil:
		return nil, ErrPublisherNil
	case clk == nil:
		return nil, ErrClockNil
	case log == nil:
		return nil, ErrLoggerNil
	case cfg.Interval <= 0:
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, cfg.Interval)
	}

	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}

	return &Scheduler{publisher: publisher, cfg: cfg, clock: clk, log: log, cycle: 0}, nil
}

// Run publishes, waits Interval, and repeats until ctx is cancelled. Cycle
// failures are logged and never stop the loop. A publish already in flight
// when ctx is cancelled runs to completion. Run returns nil on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info(logFmtStarted, s.cfg.Prompt, s.cfg.Interval)
	defer s.log.Info(logStopped)

	if !s.cfg.RunImmediately && !s.wait(ctx) {
		return nil
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		s.RunOnce(ctx)

		if !s.wait(ctx) {
			return nil
		}
	}
}

// RunOnce executes a single cycle and reports its outcome.
func (s *Scheduler) RunOnce(ctx context.Context) Outcome {
	s.cycle++
	cycle := s.cycle

	s.log.Info(logFmtCycle, cycle, s.cfg.Prompt)

	started := s.clock.Now()
	publication, err := s.publisher.Publish(context.WithoutCancel(ctx), s.cfg.Prompt)
	elapsed := s.clock.Now().Sub(started)

	if err != nil {
		s.log.Error(logFmtFailed, cycle, elapsed, err)
	} else {
		s.log.Info(logFmtPublished, cycle, publication.Locator, elapsed)
	}

	return Outcome{Cycle: cycle, Publication: publication, Err: err, Elapsed: elapsed}
}

// wait blocks for one interval and reports false if ctx ended first.
func (s *Scheduler) wait(ctx context.Context) bool {
	s.log.Info(logFmtWaiting, s.cfg.Interval)

	select {
	case <-ctx.Done():
		return false
	case <-s.clock.After(s.cfg.Interval):
		return true
	}
}
