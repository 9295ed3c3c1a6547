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

// ModelMonitorConfig holds configuration for model registry tracking.
type ModelMonitorConfig struct {
	PollInterval   time.Duration
	RecentLimit    int // recent model rows to request
	HistoryLimit   int // production history rows to request
	AuditLimit     int // promotion audit events to request
	FreshThreshold time.Duration
	StaleThreshold time.Duration
}

// DefaultModelMonitorConfig returns sensible defaults.
func DefaultModelMonitorConfig() ModelMonitorConfig {
	return ModelMonitorConfig{
		PollInterval:   30 * time.Second,
		RecentLimit:    20,
		HistoryLimit:   50,
		AuditLimit:     100,
		FreshThreshold: 20 * time.Second,
		StaleThreshold: 2 * time.Minute,
	}
}

// ModelSnapshot is the mutex-free copy handed to views.
type ModelSnapshot struct {
	Summary     adminapi.ModelsSummary
	History     []adminapi.HistoryRow
	Audit       []adminapi.AuditEvent
	Alert       adminapi.AlertStatus
	LastUpdated time.Time
	Freshness   poll.Freshness
	LastError   string
}

// ModelMonitor polls the model registry: summary, production history and the
// append-only promotion audit log. Manual promote/rollback/delete actions are
// passed straight through to the backend; the client never retries and never
// mutates audit state.
type ModelMonitor struct {
	logger    *zap.Logger
	api       *adminapi.Client
	alerts    notifier.Notifier
	scheduler *poll.Scheduler
	clk       clock.Clock

	mu          sync.RWMutex
	config      ModelMonitorConfig
	nameFilter  string
	typeFilter  string
	summary     adminapi.ModelsSummary
	history     []adminapi.HistoryRow
	audit       []adminapi.AuditEvent
	alertStatus adminapi.AlertStatus
	lastAuditID int64
	auditPrimed bool
	updatedAt   time.Time
	lastErr     string
}

// NewModelMonitor creates a model monitor. alerts may be nil.
func NewModelMonitor(
	logger *zap.Logger,
	api *adminapi.Client,
	alerts notifier.Notifier,
	config ModelMonitorConfig,
) *ModelMonitor {
	return newModelMonitorWithClock(logger, api, alerts, config, clock.New())
}

func newModelMonitorWithClock(
	logger *zap.Logger,
	api *adminapi.Client,
	alerts notifier.Notifier,
	config ModelMonitorConfig,
	clk clock.Clock,
) *ModelMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ModelMonitor{
		logger:    logger.Named("model-monitor"),
		api:       api,
		alerts:    alerts,
		scheduler: poll.NewSchedulerWithClock(logger, clk),
		clk:       clk,
		config:    config,
	}
}

// Start begins periodic polling. The first fetch runs immediately.
func (mm *ModelMonitor) Start(ctx context.Context) {
	mm.scheduler.Start(mm.config.PollInterval, func() {
		mm.fetch(ctx)
	})
}

// Stop halts polling.
func (mm *ModelMonitor) Stop() {
	mm.scheduler.Stop()
}

// SetInterval re-arms the poll timer with a new interval.
func (mm *ModelMonitor) SetInterval(d time.Duration) {
	mm.mu.Lock()
	mm.config.PollInterval = d
	mm.mu.Unlock()
	mm.scheduler.SetInterval(d)
}

// SetFilter narrows summary and history queries by model name and type.
// Takes effect on the next fetch.
func (mm *ModelMonitor) SetFilter(name, modelType string) {
	mm.mu.Lock()
	mm.nameFilter = name
	mm.typeFilter = modelType
	mm.mu.Unlock()
}

// Refresh forces a single fetch outside the poll cadence.
func (mm *ModelMonitor) Refresh(ctx context.Context) {
	mm.fetch(ctx)
}

// fetch pulls all registry views. Sections fail independently: a failed call
// keeps that section's previous data and records the error string.
func (mm *ModelMonitor) fetch(ctx context.Context) {
	mm.mu.RLock()
	cfg := mm.config
	name, modelType := mm.nameFilter, mm.typeFilter
	mm.mu.RUnlock()

	var fetchErr error

	summary, err := mm.api.ModelsSummary(ctx, cfg.RecentLimit, name, modelType)
	if err != nil {
		fetchErr = err
		mm.logger.Warn("models summary fetch failed", zap.Error(err))
	}

	history, err := mm.api.ProductionHistory(ctx, cfg.HistoryLimit, name, modelType)
	if err != nil {
		fetchErr = err
		mm.logger.Warn("production history fetch failed", zap.Error(err))
	}

	audit, err := mm.api.PromotionAudit(ctx, cfg.AuditLimit)
	if err != nil {
		fetchErr = err
		mm.logger.Warn("promotion audit fetch failed", zap.Error(err))
	}

	alertStatus, err := mm.api.PromotionAlertStatus(ctx)
	if err != nil {
		// Cooldown state is advisory; a miss only logs.
		mm.logger.Debug("promotion alert status fetch failed", zap.Error(err))
	}

	now := mm.clk.Now()
	var fresh []adminapi.AuditEvent

	mm.mu.Lock()
	if summary != nil {
		mm.summary = *summary
	}
	if history != nil {
		mm.history = history
	}
	if audit != nil {
		mm.audit = audit
		fresh = mm.newAuditEventsLocked(audit)
	}
	if alertStatus != nil {
		mm.alertStatus = *alertStatus
	}
	inCooldown := mm.alertStatus.InCooldown

	if fetchErr != nil {
		mm.lastErr = fetchErr.Error()
	} else {
		mm.lastErr = ""
		mm.updatedAt = now
	}
	mm.mu.Unlock()

	if !inCooldown {
		for _, ev := range fresh {
			mm.alertPromotion(ev, now)
		}
	}
}

// newAuditEventsLocked returns events not seen before and advances the
// high-water mark. The first fetch only primes the mark; old entries never
// alert on startup.
func (mm *ModelMonitor) newAuditEventsLocked(audit []adminapi.AuditEvent) []adminapi.AuditEvent {
	maxID := mm.lastAuditID
	var fresh []adminapi.AuditEvent

	for _, ev := range audit {
		if ev.ID > mm.lastAuditID && mm.auditPrimed {
			fresh = append(fresh, ev)
		}
		if ev.ID > maxID {
			maxID = ev.ID
		}
	}

	mm.lastAuditID = maxID
	mm.auditPrimed = true
	return fresh
}

func (mm *ModelMonitor) alertPromotion(ev adminapi.AuditEvent, now time.Time) {
	if mm.alerts == nil {
		return
	}
	if ev.Decision == adminapi.DecisionSkipped {
		return
	}

	severity := notifier.SeverityInfo
	if ev.Decision == adminapi.DecisionError {
		severity = notifier.SeverityCritical
	}

	mm.alerts.SendAlert(notifier.OpsAlert{
		Kind:     notifier.AlertKindPromotion,
		Severity: severity,
		Title:    fmt.Sprintf("Model promotion %s: %s", ev.Decision, shortID(ev.ModelID)),
		Summary:  nz(ev.Reason, "no reason recorded"),
		Fields: []notifier.Field{
			{Name: "Model", Value: ev.ModelID},
			{Name: "Decision", Value: ev.Decision},
			{Name: "Category", Value: nz(ev.ReasonCategory, "-")},
		},
		ModelID:        ev.ModelID,
		Decision:       ev.Decision,
		Reason:         ev.Reason,
		ReasonCategory: ev.ReasonCategory,
		Timestamp:      now,
	})
}

// Promote asks the backend to promote a model and refreshes on acceptance.
func (mm *ModelMonitor) Promote(ctx context.Context, id string) (*adminapi.PromotionResult, error) {
	res, err := mm.api.PromoteModel(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Accepted() {
		mm.logger.Info("model promoted", zap.String("model", shortID(id)))
		mm.fetch(ctx)
	}
	return res, nil
}

// Rollback asks the backend to roll back to a previous model.
func (mm *ModelMonitor) Rollback(ctx context.Context, id string) (*adminapi.PromotionResult, error) {
	res, err := mm.api.RollbackModel(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Accepted() {
		mm.logger.Info("model rolled back", zap.String("model", shortID(id)))
		mm.fetch(ctx)
	}
	return res, nil
}

// Delete removes a non-production model from the registry.
func (mm *ModelMonitor) Delete(ctx context.Context, id string) error {
	if err := mm.api.DeleteModel(ctx, id); err != nil {
		return err
	}
	mm.logger.Info("model deleted", zap.String("model", shortID(id)))
	mm.fetch(ctx)
	return nil
}

// Snapshot returns a copy of the current registry state.
func (mm *ModelMonitor) Snapshot() ModelSnapshot {
	now := mm.clk.Now()

	mm.mu.RLock()
	defer mm.mu.RUnlock()

	history := make([]adminapi.HistoryRow, len(mm.history))
	copy(history, mm.history)
	audit := make([]adminapi.AuditEvent, len(mm.audit))
	copy(audit, mm.audit)

	return ModelSnapshot{
		Summary:     mm.summary,
		History:     history,
		Audit:       audit,
		Alert:       mm.alertStatus,
		LastUpdated: mm.updatedAt,
		Freshness:   poll.Classify(mm.updatedAt, now, mm.config.FreshThreshold, mm.config.StaleThreshold),
		LastError:   mm.lastErr,
	}
}
