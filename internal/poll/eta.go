package poll

import (
	"sync"
	"time"
)

// Estimate is the result of a two-point throughput extrapolation.
type Estimate struct {
	Rate      float64       // units per second
	Remaining time.Duration // estimated time until target is reached
	Known     bool
}

type progressSample struct {
	inserted int64
	at       time.Time
}

// ProgressEstimator estimates remaining time for long-running server tasks
// that expose a monotonically increasing counter and a fixed target. The
// estimate is a plain two-point linear extrapolation between the current and
// previous observation for the same task id; no smoothing is applied, and a
// task with no prior sample reports unknown.
type ProgressEstimator struct {
	mu      sync.Mutex
	samples map[string]progressSample
}

func NewProgressEstimator() *ProgressEstimator {
	return &ProgressEstimator{
		samples: make(map[string]progressSample),
	}
}

// Observe records the current counter value for the task and returns the
// estimate against the previous observation. Known is false when there is no
// prior sample, the rate is not positive, the target is unknown, or progress
// already reached the target; the result is never negative or infinite.
func (e *ProgressEstimator) Observe(id string, inserted, target int64, now time.Time) Estimate {
	e.mu.Lock()
	prev, had := e.samples[id]
	e.samples[id] = progressSample{inserted: inserted, at: now}
	e.mu.Unlock()

	if !had {
		return Estimate{}
	}
	if target <= 0 || inserted >= target {
		return Estimate{}
	}

	dt := now.Sub(prev.at)
	dIns := inserted - prev.inserted
	if dt <= 0 || dIns <= 0 {
		return Estimate{}
	}

	rate := float64(dIns) / dt.Seconds()
	remaining := float64(target-inserted) / rate

	return Estimate{
		Rate:      rate,
		Remaining: time.Duration(remaining * float64(time.Second)),
		Known:     true,
	}
}

// Forget drops the stored sample for a task id.
func (e *ProgressEstimator) Forget(id string) {
	e.mu.Lock()
	delete(e.samples, id)
	e.mu.Unlock()
}

// Prune evicts samples for tasks no longer present, so a reused id later
// starts from a clean slate instead of interpolating across runs.
func (e *ProgressEstimator) Prune(active map[string]bool) {
	e.mu.Lock()
	for id := range e.samples {
		if !active[id] {
			delete(e.samples, id)
		}
	}
	e.mu.Unlock()
}

// Size returns the number of tracked tasks.
func (e *ProgressEstimator) Size() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.samples)
}
