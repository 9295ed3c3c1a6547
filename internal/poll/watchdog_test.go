package poll

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestWatchdogFiresOncePerSilenceEpisode(t *testing.T) {
	mock := clock.NewMock()
	var fired atomic.Int64
	w := NewWatchdog(mock, 20*time.Second, func() { fired.Add(1) })
	defer w.Stop()

	w.Arm()

	// Silence for longer than the timeout: exactly one signal, not one per
	// elapsed window.
	mock.Add(20 * time.Second)
	if fired.Load() != 1 {
		t.Fatalf("fired = %d after first timeout, want 1", fired.Load())
	}
	mock.Add(5 * time.Minute)
	if fired.Load() != 1 {
		t.Errorf("fired = %d during continued silence, want 1", fired.Load())
	}
	if !w.Silent() {
		t.Error("watchdog should report silent")
	}

	// A message resets the episode and the timer.
	w.Beat()
	if w.Silent() {
		t.Error("Beat should end the silence episode")
	}
	mock.Add(20 * time.Second)
	if fired.Load() != 2 {
		t.Errorf("fired = %d after second silence, want 2", fired.Load())
	}
}

func TestWatchdogBeatKeepsItQuiet(t *testing.T) {
	mock := clock.NewMock()
	var fired atomic.Int64
	w := NewWatchdog(mock, 20*time.Second, func() { fired.Add(1) })
	defer w.Stop()

	w.Arm()
	for i := 0; i < 10; i++ {
		mock.Add(15 * time.Second)
		w.Beat()
	}

	if fired.Load() != 0 {
		t.Errorf("fired = %d with regular beats, want 0", fired.Load())
	}
	if got := w.LastBeat(); got.IsZero() {
		t.Error("LastBeat should be recorded")
	}
}

func TestWatchdogStopReleasesTimer(t *testing.T) {
	mock := clock.NewMock()
	var fired atomic.Int64
	w := NewWatchdog(mock, 20*time.Second, func() { fired.Add(1) })

	w.Arm()
	w.Stop()

	mock.Add(time.Hour)
	if fired.Load() != 0 {
		t.Errorf("fired = %d after Stop, want 0", fired.Load())
	}

	// Beats after Stop are ignored; no timer comes back.
	w.Beat()
	mock.Add(time.Hour)
	if fired.Load() != 0 {
		t.Errorf("fired = %d after Stop+Beat, want 0", fired.Load())
	}
}

func TestWatchdogStopIsIdempotent(t *testing.T) {
	w := NewWatchdog(clock.NewMock(), time.Second, nil)

	// Stop before Arm, twice after: all must be safe.
	w.Stop()
	w.Arm()
	w.Stop()
	w.Stop()
}

func TestWatchdogRearmAfterStop(t *testing.T) {
	mock := clock.NewMock()
	var fired atomic.Int64
	w := NewWatchdog(mock, 20*time.Second, func() { fired.Add(1) })
	defer w.Stop()

	w.Arm()
	w.Stop()
	w.Arm()

	mock.Add(20 * time.Second)
	if fired.Load() != 1 {
		t.Errorf("fired = %d after re-arm, want 1", fired.Load())
	}
}
