package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/wooyoung7703/pro11-sub001/clients/adminapi"
	"github.com/wooyoung7703/pro11-sub001/clients/notifier"
	"github.com/wooyoung7703/pro11-sub001/internal/poll"
)

// HealthMonitorConfig holds configuration for system health tracking.
type HealthMonitorConfig struct {
	PollInterval   time.Duration
	GaugeNames     []string // Prometheus gauges scraped from /metrics
	HistoryCap     int      // metric snapshots kept for sparklines
	FreshThreshold time.Duration
	StaleThreshold time.Duration
}

// DefaultHealthMonitorConfig returns sensible defaults.
func DefaultHealthMonitorConfig() HealthMonitorConfig {
	return HealthMonitorConfig{
		PollInterval: 15 * time.Second,
		GaugeNames: []string{
			"ingest_candle_lag_seconds",
			"inference_latency_seconds",
			"backfill_active_runs",
			"model_promotions_total",
		},
		HistoryCap:     200,
		FreshThreshold: 20 * time.Second,
		StaleThreshold: 2 * time.Minute,
	}
}

// MetricPoint is one scrape kept in the history ring.
type MetricPoint struct {
	At     time.Time
	Values map[string]float64
}

// HealthSnapshot is the mutex-free copy handed to views.
type HealthSnapshot struct {
	Gauges         map[string]float64
	Ingestion      *adminapi.IngestionStatus
	IngestionStale bool
	Seed           *adminapi.SeedStatus
	History        []MetricPoint
	LastUpdated    time.Time
	Freshness      poll.Freshness
	LastError      string
}

// HealthMonitor polls the backend's Prometheus exposition plus the ingestion
// and inference-seed status endpoints.
type HealthMonitor struct {
	logger    *zap.Logger
	api       *adminapi.Client
	alerts    notifier.Notifier
	scheduler *poll.Scheduler
	clk       clock.Clock
	config    HealthMonitorConfig

	mu             sync.RWMutex
	gauges         map[string]float64
	ingestion      *adminapi.IngestionStatus
	ingestionStale bool
	seed           *adminapi.SeedStatus
	history        *ring[MetricPoint]
	updatedAt      time.Time
	lastErr        string
}

// NewHealthMonitor creates a health monitor. alerts may be nil.
func NewHealthMonitor(
	logger *zap.Logger,
	api *adminapi.Client,
	alerts notifier.Notifier,
	config HealthMonitorConfig,
) *HealthMonitor {
	return newHealthMonitorWithClock(logger, api, alerts, config, clock.New())
}

func newHealthMonitorWithClock(
	logger *zap.Logger,
	api *adminapi.Client,
	alerts notifier.Notifier,
	config HealthMonitorConfig,
	clk clock.Clock,
) *HealthMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.HistoryCap <= 0 {
		config.HistoryCap = DefaultHealthMonitorConfig().HistoryCap
	}

	return &HealthMonitor{
		logger:    logger.Named("health-monitor"),
		api:       api,
		alerts:    alerts,
		scheduler: poll.NewSchedulerWithClock(logger, clk),
		clk:       clk,
		config:    config,
		history:   newRing[MetricPoint](config.HistoryCap),
	}
}

// Start begins periodic polling. The first fetch runs immediately.
func (hm *HealthMonitor) Start(ctx context.Context) {
	hm.scheduler.Start(hm.config.PollInterval, func() {
		hm.fetch(ctx)
	})
}

// Stop halts polling.
func (hm *HealthMonitor) Stop() {
	hm.scheduler.Stop()
}

// SetInterval re-arms the poll timer with a new interval.
func (hm *HealthMonitor) SetInterval(d time.Duration) {
	hm.scheduler.SetInterval(d)
}

// Refresh forces a single fetch outside the poll cadence.
func (hm *HealthMonitor) Refresh(ctx context.Context) {
	hm.fetch(ctx)
}

func (hm *HealthMonitor) fetch(ctx context.Context) {
	var fetchErr error

	gauges, err := hm.api.Gauges(ctx, hm.config.GaugeNames)
	if err != nil {
		fetchErr = err
		hm.logger.Warn("metrics scrape failed", zap.Error(err))
	}

	ingestion, err := hm.api.IngestionStatus(ctx)
	if err != nil {
		fetchErr = err
		hm.logger.Warn("ingestion status fetch failed", zap.Error(err))
	}

	seed, err := hm.api.SeedStatus(ctx)
	if err != nil {
		fetchErr = err
		hm.logger.Warn("seed status fetch failed", zap.Error(err))
	}

	now := hm.clk.Now()
	var wentStale bool

	hm.mu.Lock()
	if gauges != nil {
		hm.gauges = gauges
		hm.pushPointLocked(now, gauges)
	}
	if ingestion != nil {
		stale := ingestion.IsStale()
		wentStale = stale && !hm.ingestionStale
		hm.ingestion = ingestion
		hm.ingestionStale = stale
	}
	if seed != nil {
		hm.seed = seed
	}
	if fetchErr != nil {
		hm.lastErr = fetchErr.Error()
	} else {
		hm.lastErr = ""
		hm.updatedAt = now
	}
	staleNow := hm.ingestion
	hm.mu.Unlock()

	if wentStale && staleNow != nil {
		hm.alertIngestionStale(staleNow, now)
	}
}

// pushPointLocked appends a metric snapshot. Timestamps in the ring strictly
// increase; a scrape landing on the same instant is dropped rather than
// recorded out of order.
func (hm *HealthMonitor) pushPointLocked(now time.Time, gauges map[string]float64) {
	if last, ok := hm.history.last(); ok && !now.After(last.At) {
		return
	}

	values := make(map[string]float64, len(gauges))
	for k, v := range gauges {
		values[k] = v
	}
	hm.history.push(MetricPoint{At: now, Values: values})
}

func (hm *HealthMonitor) alertIngestionStale(status *adminapi.IngestionStatus, now time.Time) {
	if hm.alerts == nil {
		return
	}

	lagStr := "unknown"
	if lag, ok := status.Lag(); ok {
		lagStr = fmt.Sprintf("%.1fs", lag)
	}

	hm.alerts.SendAlert(notifier.OpsAlert{
		Kind:     notifier.AlertKindIngestionStale,
		Severity: notifier.SeverityWarning,
		Title:    "Candle ingestion stale",
		Summary:  fmt.Sprintf("ingestion lag %s exceeds threshold", lagStr),
		Fields: []notifier.Field{
			{Name: "Lag", Value: lagStr},
			{Name: "Threshold", Value: fmt.Sprintf("%.0fs", status.Thresholds.IngestionLagSec)},
		},
		Timestamp: now,
	})

	hm.logger.Warn("candle ingestion went stale", zap.String("lag", lagStr))
}

// Snapshot returns a copy of the current health state.
func (hm *HealthMonitor) Snapshot() HealthSnapshot {
	now := hm.clk.Now()

	hm.mu.RLock()
	defer hm.mu.RUnlock()

	gauges := make(map[string]float64, len(hm.gauges))
	for k, v := range hm.gauges {
		gauges[k] = v
	}

	return HealthSnapshot{
		Gauges:         gauges,
		Ingestion:      hm.ingestion,
		IngestionStale: hm.ingestionStale,
		Seed:           hm.seed,
		History:        hm.history.snapshot(),
		LastUpdated:    hm.updatedAt,
		Freshness:      poll.Classify(hm.updatedAt, now, hm.config.FreshThreshold, hm.config.StaleThreshold),
		LastError:      hm.lastErr,
	}
}
