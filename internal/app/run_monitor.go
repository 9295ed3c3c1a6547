package app

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/wooyoung7703/pro11-sub001/clients/adminapi"
	"github.com/wooyoung7703/pro11-sub001/clients/notifier"
	"github.com/wooyoung7703/pro11-sub001/clients/runstream"
	"github.com/wooyoung7703/pro11-sub001/internal/poll"
)

// RunMonitorConfig holds configuration for backfill run tracking.
type RunMonitorConfig struct {
	PollInterval     time.Duration
	PageSize         int
	HeartbeatTimeout time.Duration // stream silence before the watchdog fires
	FreshThreshold   time.Duration
	StaleThreshold   time.Duration
}

// DefaultRunMonitorConfig returns sensible defaults.
func DefaultRunMonitorConfig() RunMonitorConfig {
	return RunMonitorConfig{
		PollInterval:     10 * time.Second,
		PageSize:         50,
		HeartbeatTimeout: 20 * time.Second,
		FreshThreshold:   20 * time.Second,
		StaleThreshold:   2 * time.Minute,
	}
}

// RunRow is one backfill run with its client-side ETA attached.
type RunRow struct {
	adminapi.Run
	ETA poll.Estimate
}

// RunSnapshot is the mutex-free copy handed to views.
type RunSnapshot struct {
	Runs            []RunRow
	Total           int
	StreamConnected bool
	StreamStats     runstream.StreamStats
	Reconnects      uint64
	LastUpdated     time.Time
	Freshness       poll.Freshness
	LastError       string
}

// RunMonitor tracks backfill runs from both the REST listing and the SSE
// stream. The server is the source of truth for run status; the monitor only
// reflects the last value seen per run id and derives ETAs for running jobs.
type RunMonitor struct {
	logger    *zap.Logger
	api       *adminapi.Client
	stream    *runstream.Client
	alerts    notifier.Notifier
	scheduler *poll.Scheduler
	watchdog  *poll.Watchdog
	estimator *poll.ProgressEstimator
	clk       clock.Clock
	config    RunMonitorConfig
	query     adminapi.RunsQuery

	mu         sync.RWMutex
	runs       map[int64]adminapi.Run
	order      []int64 // run ids, newest first
	etas       map[int64]poll.Estimate
	statuses   map[int64]string // previous status per id, for error-entry alerts
	total      int
	connected  bool
	reconnects uint64
	updatedAt  time.Time
	lastErr    string

	silenceCh chan struct{}
	stopCh    chan struct{}
	started   bool
	wg        sync.WaitGroup
}

// NewRunMonitor creates a run monitor. stream and alerts may be nil.
func NewRunMonitor(
	logger *zap.Logger,
	api *adminapi.Client,
	stream *runstream.Client,
	alerts notifier.Notifier,
	config RunMonitorConfig,
	query adminapi.RunsQuery,
) *RunMonitor {
	return newRunMonitorWithClock(logger, api, stream, alerts, config, query, clock.New())
}

func newRunMonitorWithClock(
	logger *zap.Logger,
	api *adminapi.Client,
	stream *runstream.Client,
	alerts notifier.Notifier,
	config RunMonitorConfig,
	query adminapi.RunsQuery,
	clk clock.Clock,
) *RunMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("run-monitor")

	if query.PageSize == 0 {
		query.PageSize = config.PageSize
	}

	rm := &RunMonitor{
		logger:    logger,
		api:       api,
		stream:    stream,
		alerts:    alerts,
		scheduler: poll.NewSchedulerWithClock(logger, clk),
		estimator: poll.NewProgressEstimator(),
		clk:       clk,
		config:    config,
		query:     query,
		runs:      make(map[int64]adminapi.Run),
		etas:      make(map[int64]poll.Estimate),
		statuses:  make(map[int64]string),
		silenceCh: make(chan struct{}, 1),
	}
	rm.watchdog = poll.NewWatchdog(clk, config.HeartbeatTimeout, rm.onSilent)
	return rm
}

// Start begins polling and, when a stream client is configured, the SSE
// consume/reconnect loop. Starting a started monitor is a no-op; a stopped
// monitor can be started again.
func (rm *RunMonitor) Start(ctx context.Context) {
	rm.mu.Lock()
	if rm.started {
		rm.mu.Unlock()
		return
	}
	rm.started = true
	rm.stopCh = make(chan struct{})
	stopCh := rm.stopCh
	rm.mu.Unlock()

	rm.scheduler.Start(rm.config.PollInterval, func() {
		rm.fetchRuns(ctx)
	})

	if rm.stream != nil {
		rm.wg.Add(1)
		go rm.runStream(ctx, stopCh)
	}
}

// Stop halts polling and the stream loop. Blocks until both are down.
func (rm *RunMonitor) Stop() {
	rm.mu.Lock()
	if !rm.started {
		rm.mu.Unlock()
		return
	}
	rm.started = false
	close(rm.stopCh)
	rm.mu.Unlock()

	rm.scheduler.Stop()
	rm.wg.Wait()
	rm.watchdog.Stop()
	if rm.stream != nil {
		_ = rm.stream.Close()
	}
}

// SetInterval re-arms the poll timer with a new interval.
func (rm *RunMonitor) SetInterval(d time.Duration) {
	rm.mu.Lock()
	rm.config.PollInterval = d
	rm.mu.Unlock()
	rm.scheduler.SetInterval(d)
}

// Refresh forces a single fetch outside the poll cadence.
func (rm *RunMonitor) Refresh(ctx context.Context) {
	rm.fetchRuns(ctx)
}

func (rm *RunMonitor) fetchRuns(ctx context.Context) {
	runs, total, err := rm.api.BackfillRuns(ctx, rm.query)
	if err != nil {
		rm.mu.Lock()
		rm.lastErr = err.Error()
		rm.mu.Unlock()
		rm.logger.Warn("backfill runs fetch failed", zap.Error(err))
		return
	}

	rm.applyRuns(runs, total, true)
}

// applyRuns merges run rows into the tracked set. A full fetch replaces the
// set; stream items only upsert. Within one batch the last row per id wins.
func (rm *RunMonitor) applyRuns(items []adminapi.Run, total int, replace bool) {
	now := rm.clk.Now()
	var failed []adminapi.Run

	rm.mu.Lock()
	if replace {
		rm.runs = make(map[int64]adminapi.Run, len(items))
		rm.total = total
	}
	for _, run := range items {
		prev, known := rm.statuses[run.ID]
		if run.Status == adminapi.RunStatusError && (!known || prev != adminapi.RunStatusError) {
			failed = append(failed, run)
		}
		rm.statuses[run.ID] = run.Status
		rm.runs[run.ID] = run

		if run.Status == adminapi.RunStatusRunning && run.Inserted != nil {
			var target int64
			if run.Target != nil {
				target = *run.Target
			}
			rm.etas[run.ID] = rm.estimator.Observe(runKey(run.ID), *run.Inserted, target, now)
		}
	}

	rm.order = rm.order[:0]
	for id := range rm.runs {
		rm.order = append(rm.order, id)
	}
	sort.Slice(rm.order, func(i, j int) bool { return rm.order[i] > rm.order[j] })

	if replace {
		// Evict estimator and alert state for runs that disappeared, so a
		// reused id never interpolates across runs.
		active := make(map[string]bool, len(rm.runs))
		for id := range rm.runs {
			active[runKey(id)] = true
		}
		rm.estimator.Prune(active)
		for id := range rm.etas {
			if _, ok := rm.runs[id]; !ok {
				delete(rm.etas, id)
			}
		}
		for id := range rm.statuses {
			if _, ok := rm.runs[id]; !ok {
				delete(rm.statuses, id)
			}
		}
	}

	rm.updatedAt = now
	rm.lastErr = ""
	rm.mu.Unlock()

	for _, run := range failed {
		rm.alertRunFailed(run, now)
	}
}

func (rm *RunMonitor) alertRunFailed(run adminapi.Run, now time.Time) {
	if rm.alerts == nil {
		return
	}

	rm.alerts.SendAlert(notifier.OpsAlert{
		Kind:     notifier.AlertKindBackfillFailed,
		Severity: notifier.SeverityCritical,
		Title:    fmt.Sprintf("Backfill run %d failed", run.ID),
		Summary:  nz(run.Error, "no error detail reported"),
		Fields: []notifier.Field{
			{Name: "Run", Value: runKey(run.ID)},
			{Name: "Symbol", Value: run.Symbol},
			{Name: "Interval", Value: run.Interval},
		},
		RunID:     run.ID,
		Symbol:    run.Symbol,
		Timestamp: now,
	})

	rm.logger.Warn("backfill run entered error state",
		zap.Int64("runID", run.ID),
		zap.String("symbol", run.Symbol),
		zap.String("error", run.Error),
	)
}

// runStream keeps the SSE subscription alive. Reconnect attempts are spaced
// by at least the heartbeat timeout so a flapping server is not hammered.
func (rm *RunMonitor) runStream(ctx context.Context, stopCh chan struct{}) {
	defer rm.wg.Done()

	backoff := rm.config.HeartbeatTimeout
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		if err := rm.stream.Connect(ctx); err != nil {
			rm.logger.Warn("stream connect failed", zap.Error(err))
			if !rm.sleep(ctx, stopCh, backoff) {
				return
			}
			continue
		}

		rm.setConnected(true)
		rm.drainSilence()
		rm.watchdog.Arm()
		rm.logger.Info("run stream connected")

		rm.consume(ctx, stopCh)

		rm.watchdog.Stop()
		rm.setConnected(false)
		_ = rm.stream.Close()

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		rm.mu.Lock()
		rm.reconnects++
		rm.mu.Unlock()

		if !rm.sleep(ctx, stopCh, backoff) {
			return
		}
	}
}

// consume drains stream channels until the stream errors, the watchdog
// declares silence, or shutdown.
func (rm *RunMonitor) consume(ctx context.Context, stopCh chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-rm.silenceCh:
			return
		case msg := <-rm.stream.Messages():
			rm.watchdog.Beat()
			rm.applyRuns(msg.Items, 0, false)
		case <-rm.stream.Beats():
			rm.watchdog.Beat()
		case err := <-rm.stream.Errors():
			rm.logger.Warn("run stream ended", zap.Error(err))
			return
		}
	}
}

// drainSilence discards a silence token left over from the previous session.
// The watchdog can fire while consume is already exiting on a stream error;
// without the drain that stale token would end the next healthy session
// immediately.
func (rm *RunMonitor) drainSilence() {
	select {
	case <-rm.silenceCh:
	default:
	}
}

// onSilent fires once per silence episode from the watchdog.
func (rm *RunMonitor) onSilent() {
	rm.setConnected(false)

	select {
	case rm.silenceCh <- struct{}{}:
	default:
	}

	timeout := rm.config.HeartbeatTimeout
	rm.logger.Warn("run stream silent past heartbeat timeout",
		zap.Duration("timeout", timeout),
	)

	if rm.alerts != nil {
		rm.alerts.SendAlert(notifier.OpsAlert{
			Kind:     notifier.AlertKindStreamStale,
			Severity: notifier.SeverityWarning,
			Title:    "Run stream stale",
			Summary:  fmt.Sprintf("no stream activity for %s, reconnecting", timeout),
			Fields: []notifier.Field{
				{Name: "Timeout", Value: timeout.String()},
			},
			Timestamp: rm.clk.Now(),
		})
	}
}

func (rm *RunMonitor) setConnected(v bool) {
	rm.mu.Lock()
	rm.connected = v
	rm.mu.Unlock()
}

// sleep waits for d or until shutdown; false means stop.
func (rm *RunMonitor) sleep(ctx context.Context, stopCh chan struct{}, d time.Duration) bool {
	t := rm.clk.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-stopCh:
		return false
	case <-t.C:
		return true
	}
}

// Snapshot returns a copy of the current run state, newest run first.
func (rm *RunMonitor) Snapshot() RunSnapshot {
	now := rm.clk.Now()

	rm.mu.RLock()
	defer rm.mu.RUnlock()

	rows := make([]RunRow, 0, len(rm.order))
	for _, id := range rm.order {
		rows = append(rows, RunRow{
			Run: rm.runs[id],
			ETA: rm.etas[id],
		})
	}

	snap := RunSnapshot{
		Runs:            rows,
		Total:           rm.total,
		StreamConnected: rm.connected,
		Reconnects:      rm.reconnects,
		LastUpdated:     rm.updatedAt,
		Freshness:       poll.Classify(rm.updatedAt, now, rm.config.FreshThreshold, rm.config.StaleThreshold),
		LastError:       rm.lastErr,
	}
	if rm.stream != nil {
		snap.StreamStats = rm.stream.Stats()
	}
	return snap
}

func runKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
