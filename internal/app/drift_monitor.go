package app

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/wooyoung7703/pro11-sub001/clients/adminapi"
	"github.com/wooyoung7703/pro11-sub001/clients/notifier"
	"github.com/wooyoung7703/pro11-sub001/internal/poll"
)

// DriftMonitorConfig holds configuration for feature drift scanning.
type DriftMonitorConfig struct {
	PollInterval   time.Duration // how often to run a scan
	Window         int           // recent-sample window passed to the backend
	Features       []string      // feature names to scan
	Threshold      float64       // requested z-score threshold
	HistoryCap     int           // scan summaries kept for sparklines
	FreshThreshold time.Duration
	StaleThreshold time.Duration
}

// DefaultDriftMonitorConfig returns sensible defaults.
func DefaultDriftMonitorConfig() DriftMonitorConfig {
	return DriftMonitorConfig{
		PollInterval:   30 * time.Second,
		Window:         200,
		Features:       []string{"close", "volume", "rsi", "spread"},
		Threshold:      3.0,
		HistoryCap:     200,
		FreshThreshold: 20 * time.Second,
		StaleThreshold: 2 * time.Minute,
	}
}

// DriftRow is one feature's scan result with its name attached, ready for
// display.
type DriftRow struct {
	Name string
	adminapi.DriftFeature

	// Drifting is the client-side flag computed against the applied
	// threshold; the server's Drift field is kept alongside for reference.
	Drifting bool
}

// DriftPoint is one scan summary kept in the history ring.
type DriftPoint struct {
	At         time.Time
	DriftCount int
	MaxAbsZ    float64
}

// DriftSnapshot is the mutex-free copy handed to views.
type DriftSnapshot struct {
	Rows               []DriftRow
	Summary            adminapi.DriftSummary
	RequestedThreshold float64
	AppliedThreshold   float64
	ThresholdMismatch  bool
	History            []DriftPoint
	ScanCount          uint64
	LastUpdated        time.Time
	Freshness          poll.Freshness
	LastError          string
}

// DriftMonitor polls the drift scan endpoint and maintains a sorted,
// threshold-flagged view of every scanned feature.
type DriftMonitor struct {
	logger    *zap.Logger
	api       *adminapi.Client
	alerts    notifier.Notifier
	scheduler *poll.Scheduler
	clk       clock.Clock

	mu        sync.RWMutex
	config    DriftMonitorConfig
	rows      []DriftRow
	summary   adminapi.DriftSummary
	applied   float64
	history   *ring[DriftPoint]
	drifting  map[string]bool // edge detection for alerts
	scanCount uint64
	updatedAt time.Time
	lastErr   string
}

// NewDriftMonitor creates a drift monitor. alerts may be nil.
func NewDriftMonitor(
	logger *zap.Logger,
	api *adminapi.Client,
	alerts notifier.Notifier,
	config DriftMonitorConfig,
) *DriftMonitor {
	return newDriftMonitorWithClock(logger, api, alerts, config, clock.New())
}

func newDriftMonitorWithClock(
	logger *zap.Logger,
	api *adminapi.Client,
	alerts notifier.Notifier,
	config DriftMonitorConfig,
	clk clock.Clock,
) *DriftMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("drift-monitor")

	if config.HistoryCap <= 0 {
		config.HistoryCap = DefaultDriftMonitorConfig().HistoryCap
	}

	return &DriftMonitor{
		logger:    logger,
		api:       api,
		alerts:    alerts,
		scheduler: poll.NewSchedulerWithClock(logger, clk),
		clk:       clk,
		config:    config,
		history:   newRing[DriftPoint](config.HistoryCap),
		drifting:  make(map[string]bool),
	}
}

// Start begins periodic scanning. The first scan runs immediately.
func (dm *DriftMonitor) Start(ctx context.Context) {
	dm.scheduler.Start(dm.config.PollInterval, func() {
		dm.scan(ctx)
	})
}

// Stop halts scanning. Blocks until no further scan can fire.
func (dm *DriftMonitor) Stop() {
	dm.scheduler.Stop()
}

// SetInterval re-arms the poll timer with a new interval.
func (dm *DriftMonitor) SetInterval(d time.Duration) {
	dm.mu.Lock()
	dm.config.PollInterval = d
	dm.mu.Unlock()
	dm.scheduler.SetInterval(d)
}

// SetThreshold changes the requested z-score threshold for subsequent scans.
func (dm *DriftMonitor) SetThreshold(threshold float64) {
	dm.mu.Lock()
	dm.config.Threshold = threshold
	dm.mu.Unlock()
}

// Scan forces a single scan outside the poll cadence (manual refresh).
func (dm *DriftMonitor) Scan(ctx context.Context) {
	dm.scan(ctx)
}

func (dm *DriftMonitor) scan(ctx context.Context) {
	dm.mu.RLock()
	window := dm.config.Window
	features := dm.config.Features
	requested := dm.config.Threshold
	dm.mu.RUnlock()

	resp, err := dm.api.DriftScan(ctx, window, features, requested)
	if err != nil {
		dm.mu.Lock()
		dm.lastErr = err.Error()
		dm.mu.Unlock()
		dm.logger.Warn("drift scan failed", zap.Error(err))
		return
	}

	applied := appliedThreshold(resp, requested)

	rows := make([]DriftRow, 0, len(resp.Results))
	for name, feat := range resp.Results {
		rows = append(rows, DriftRow{
			Name:         name,
			DriftFeature: feat,
			Drifting:     isDrifting(feat, applied),
		})
	}
	sortDriftRows(rows)

	now := dm.clk.Now()
	var newlyDrifting []DriftRow

	dm.mu.Lock()
	dm.rows = rows
	dm.summary = resp.Summary
	dm.applied = applied
	dm.scanCount++
	dm.updatedAt = now
	dm.lastErr = ""
	dm.history.push(DriftPoint{
		At:         now,
		DriftCount: resp.Summary.DriftCount,
		MaxAbsZ:    resp.Summary.MaxAbsZ,
	})

	current := make(map[string]bool, len(rows))
	for _, row := range rows {
		current[row.Name] = row.Drifting
		if row.Drifting && !dm.drifting[row.Name] {
			newlyDrifting = append(newlyDrifting, row)
		}
	}
	dm.drifting = current
	dm.mu.Unlock()

	dm.logger.Debug("drift scan completed",
		zap.Int("features", len(rows)),
		zap.Int("drifting", resp.Summary.DriftCount),
		zap.Float64("maxAbsZ", resp.Summary.MaxAbsZ),
	)

	for _, row := range newlyDrifting {
		dm.alertDrift(row, applied, now)
	}
}

func (dm *DriftMonitor) alertDrift(row DriftRow, applied float64, now time.Time) {
	if dm.alerts == nil {
		return
	}

	z := math.NaN()
	if row.ZScore != nil {
		z = *row.ZScore
	}

	dm.alerts.SendAlert(notifier.OpsAlert{
		Kind:     notifier.AlertKindDrift,
		Severity: notifier.SeverityWarning,
		Title:    fmt.Sprintf("Feature drift: %s", row.Name),
		Summary:  fmt.Sprintf("z-score %.2f crossed threshold %.2f", z, applied),
		Fields: []notifier.Field{
			{Name: "Feature", Value: row.Name},
			{Name: "Z-Score", Value: fmt.Sprintf("%.3f", z)},
			{Name: "Threshold", Value: fmt.Sprintf("%.2f", applied)},
			{Name: "Samples", Value: fmt.Sprintf("%d/%d", row.NRecent, row.NBaseline)},
		},
		Feature:   row.Name,
		ZScore:    z,
		Threshold: applied,
		Timestamp: now,
	})

	dm.logger.Info("feature newly drifting",
		zap.String("feature", row.Name),
		zap.Float64("zScore", z),
		zap.Float64("threshold", applied),
	)
}

// Snapshot returns a copy of the current drift state.
func (dm *DriftMonitor) Snapshot() DriftSnapshot {
	now := dm.clk.Now()

	dm.mu.RLock()
	defer dm.mu.RUnlock()

	rows := make([]DriftRow, len(dm.rows))
	copy(rows, dm.rows)

	return DriftSnapshot{
		Rows:               rows,
		Summary:            dm.summary,
		RequestedThreshold: dm.config.Threshold,
		AppliedThreshold:   dm.applied,
		ThresholdMismatch:  dm.applied > 0 && dm.applied != dm.config.Threshold,
		History:            dm.history.snapshot(),
		ScanCount:          dm.scanCount,
		LastUpdated:        dm.updatedAt,
		Freshness:          poll.Classify(dm.updatedAt, now, dm.config.FreshThreshold, dm.config.StaleThreshold),
		LastError:          dm.lastErr,
	}
}

// appliedThreshold resolves the threshold the server actually used. The
// per-feature Threshold field carries it; when absent the requested value
// stands.
func appliedThreshold(resp *adminapi.DriftScanResponse, requested float64) float64 {
	for _, feat := range resp.Results {
		if feat.Threshold > 0 {
			return feat.Threshold
		}
	}
	return requested
}

// isDrifting flags a feature against the applied threshold. Features without
// a z-score fall back to the server's own flag.
func isDrifting(feat adminapi.DriftFeature, applied float64) bool {
	if feat.ZScore == nil || applied <= 0 {
		return feat.Drift
	}
	return math.Abs(*feat.ZScore) >= applied
}

// sortDriftRows orders rows by |z| descending with name ascending as the
// tiebreak. Rows without a z-score sort last.
func sortDriftRows(rows []DriftRow) {
	absZ := func(r DriftRow) float64 {
		if r.ZScore == nil {
			return math.Inf(-1)
		}
		return math.Abs(*r.ZScore)
	}
	sort.Slice(rows, func(i, j int) bool {
		zi, zj := absZ(rows[i]), absZ(rows[j])
		if zi != zj {
			return zi > zj
		}
		return rows[i].Name < rows[j].Name
	})
}
