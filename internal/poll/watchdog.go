package poll

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Watchdog detects heartbeat silence on a server-pushed stream. Beat must be
// called for every received message, server heartbeats included. When the
// configured timeout passes without a beat, onSilent fires exactly once; it
// will not fire again until a later Beat resets the episode.
type Watchdog struct {
	clk      clock.Clock
	timeout  time.Duration
	onSilent func()

	mu       sync.Mutex
	timer    *clock.Timer
	silent   bool
	stopped  bool
	lastBeat time.Time
}

// NewWatchdog creates a stopped watchdog. Call Arm to begin the first window.
func NewWatchdog(clk clock.Clock, timeout time.Duration, onSilent func()) *Watchdog {
	if clk == nil {
		clk = clock.New()
	}
	return &Watchdog{
		clk:      clk,
		timeout:  timeout,
		onSilent: onSilent,
	}
}

// Arm starts the silence window. Arming an armed watchdog resets it.
func (w *Watchdog) Arm() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopped = false
	w.silent = false
	w.resetTimerLocked()
}

// Beat records stream activity, ending any silence episode and restarting the
// window. Beats after Stop are ignored.
func (w *Watchdog) Beat() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	w.silent = false
	w.lastBeat = w.clk.Now()
	w.resetTimerLocked()
}

// Stop cancels the pending timer. No onSilent call fires after Stop returns.
// Stop is idempotent and safe on a never-armed watchdog.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// Silent reports whether the stream is currently in a silence episode.
func (w *Watchdog) Silent() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.silent
}

// LastBeat returns the time of the most recent beat, zero if none.
func (w *Watchdog) LastBeat() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastBeat
}

func (w *Watchdog) resetTimerLocked() {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = w.clk.AfterFunc(w.timeout, w.expire)
}

func (w *Watchdog) expire() {
	w.mu.Lock()
	if w.stopped || w.silent {
		w.mu.Unlock()
		return
	}
	w.silent = true
	w.timer = nil
	cb := w.onSilent
	w.mu.Unlock()

	// Fired outside the lock so the callback may call Beat or Stop.
	if cb != nil {
		cb()
	}
}
