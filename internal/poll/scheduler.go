package poll

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Scheduler runs a unit of work on a fixed interval. The work runs
// synchronously inside the scheduler's own goroutine, so ticks are strictly
// sequential: a new timer is armed only after the previous invocation
// returned. The work is invoked immediately on Start, then every interval.
//
// The unit of work owns its own error handling; the scheduler never treats a
// failed invocation as a stop condition.
type Scheduler struct {
	logger *zap.Logger
	clk    clock.Clock

	mu       sync.Mutex
	interval time.Duration
	running  bool
	wake     chan struct{} // interval changed, re-arm
	stopCh   chan struct{}
	done     chan struct{}
}

// NewScheduler creates a stopped scheduler using the wall clock.
func NewScheduler(logger *zap.Logger) *Scheduler {
	return NewSchedulerWithClock(logger, clock.New())
}

// NewSchedulerWithClock creates a stopped scheduler on an injected clock.
func NewSchedulerWithClock(logger *zap.Logger, clk clock.Clock) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		logger: logger,
		clk:    clk,
	}
}

// Start begins invoking fn: once immediately, then every interval.
// Starting an already-running scheduler is a no-op.
func (s *Scheduler) Start(interval time.Duration, fn func()) {
	if interval <= 0 || fn == nil {
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.interval = interval
	s.running = true
	s.wake = make(chan struct{}, 1)
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	wake, stopCh, done := s.wake, s.stopCh, s.done
	s.mu.Unlock()

	go s.loop(fn, wake, stopCh, done)
}

// Stop halts the scheduler and blocks until no further invocation can fire.
// An in-flight invocation is allowed to finish first. Stop is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.done
	s.mu.Unlock()

	<-done
}

// SetInterval re-arms the scheduler with a new interval without dropping the
// enabled state. Any pending timer is cancelled before the new one is armed.
// On a stopped scheduler it only updates the value used by the next Start.
func (s *Scheduler) SetInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}

	s.mu.Lock()
	s.interval = interval
	running := s.running
	wake := s.wake
	s.mu.Unlock()

	if running {
		select {
		case wake <- struct{}{}:
		default: // a re-arm is already pending
		}
	}
}

// Running reports whether the scheduler is currently enabled.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Interval returns the currently configured interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *Scheduler) loop(fn func(), wake, stopCh chan struct{}, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		fn()

	wait:
		for {
			timer := s.clk.Timer(s.Interval())
			select {
			case <-timer.C:
				break wait
			case <-wake:
				// Cancel the pending timer and arm a fresh one with the
				// updated interval. Exactly one timer is live at any instant.
				timer.Stop()
			case <-stopCh:
				timer.Stop()
				return
			}
		}
	}
}
