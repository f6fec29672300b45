// Package sched triggers ingestion cycles at a fixed interval and on
// demand. It owns only the trigger timing; mutual exclusion across
// cycles comes from running them all on the scheduler goroutine.
package sched

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// CycleFunc runs one ingestion cycle.
type CycleFunc func(ctx context.Context) error

// Scheduler invokes a cycle function every interval. A manual check runs
// the cycle immediately and re-arms the next scheduled run one full
// interval later, so a manual check never stacks onto a scheduled one.
type Scheduler struct {
	interval time.Duration
	run      CycleFunc
	logger   *slog.Logger

	triggerCh chan struct{}
	stopCh    chan struct{}

	mu      sync.Mutex
	running bool
}

// New creates a Scheduler. A non-positive interval defaults to one hour.
func New(interval time.Duration, run CycleFunc, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		interval:  interval,
		run:       run,
		logger:    logger,
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Run executes cycles until ctx is cancelled or Stop is called. The
// first cycle runs immediately.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.cycle(ctx)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-timer.C:
			s.cycle(ctx)
			timer.Reset(s.interval)
		case <-s.triggerCh:
			s.cycle(ctx)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(s.interval)
		}
	}
}

// CheckNow requests an immediate cycle. It never blocks; a request is
// dropped if one is already pending.
func (s *Scheduler) CheckNow() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

// Stop halts the scheduler loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	close(s.stopCh)
	s.running = false
}

func (s *Scheduler) cycle(ctx context.Context) {
	if err := s.run(ctx); err != nil {
		s.logger.Warn("cycle finished with error", "err", err)
	}
}
