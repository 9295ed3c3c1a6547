package app

import (
	"context"
	"net/http"
	"runtime"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	clts "github.com/wooyoung7703/pro11-sub001/clients"
	"github.com/wooyoung7703/pro11-sub001/clients/adminapi"
	"github.com/wooyoung7703/pro11-sub001/config"
)

// Build info - populated from embedded VCS info at init time
var (
	BuildCommit = "dev"
	BuildTime   = "unknown"
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if setting.Value != "" {
					BuildCommit = setting.Value
				}
			case "vcs.time":
				BuildTime = setting.Value
			}
		}
	}
}

// Runner composes the monitors over one backend and owns their lifecycle.
type Runner struct {
	clients *clts.Clients
	cfg     *config.Config

	driftMonitor  *DriftMonitor
	runMonitor    *RunMonitor
	modelMonitor  *ModelMonitor
	healthMonitor *HealthMonitor

	statsServer *http.Server
	startTime   time.Time
}

// ServiceStats holds the /stats aggregate.
type ServiceStats struct {
	// Build info
	Build struct {
		Commit    string `json:"commit"`
		Time      string `json:"time,omitempty"`
		GoVersion string `json:"go_version"`
	} `json:"build"`

	// Service info
	StartTime string `json:"start_time"`
	Uptime    string `json:"uptime"`
	UptimeSec int64  `json:"uptime_seconds"`
	Backend   string `json:"backend"`

	// Run stream stats
	Stream struct {
		Connected      bool   `json:"connected"`
		MessageCount   uint64 `json:"message_count"`
		LastMessageAt  string `json:"last_message_at,omitempty"`
		LastMessageAgo string `json:"last_message_ago,omitempty"`
		Reconnects     uint64 `json:"reconnects"`
	} `json:"stream"`

	// Drift stats
	Drift struct {
		Freshness     string  `json:"freshness"`
		ScanCount     uint64  `json:"scan_count"`
		FeatureCount  int     `json:"feature_count"`
		DriftingCount int     `json:"drifting_count"`
		MaxAbsZ       float64 `json:"max_abs_z"`
		Threshold     float64 `json:"threshold"`
		LastError     string  `json:"last_error,omitempty"`
	} `json:"drift"`

	// Backfill run stats
	Runs struct {
		Freshness string `json:"freshness"`
		Tracked   int    `json:"tracked"`
		Total     int    `json:"total"`
		Running   int    `json:"running"`
		Failed    int    `json:"failed"`
		LastError string `json:"last_error,omitempty"`
	} `json:"runs"`

	// Model registry stats
	Models struct {
		Freshness   string `json:"freshness"`
		HasModel    bool   `json:"has_model"`
		Production  string `json:"production,omitempty"`
		RecentCount int    `json:"recent_count"`
		AuditCount  int    `json:"audit_count"`
		InCooldown  bool   `json:"in_cooldown"`
		LastError   string `json:"last_error,omitempty"`
	} `json:"models"`

	// Backend health stats
	Health struct {
		Freshness      string             `json:"freshness"`
		IngestionStale bool               `json:"ingestion_stale"`
		IngestionLag   *float64           `json:"ingestion_lag_sec,omitempty"`
		SeedActive     bool               `json:"seed_active"`
		Gauges         map[string]float64 `json:"gauges,omitempty"`
		LastError      string             `json:"last_error,omitempty"`
	} `json:"health"`

	// Runtime stats
	Runtime struct {
		Goroutines int    `json:"goroutines"`
		MemAllocMB uint64 `json:"mem_alloc_mb"`
	} `json:"runtime"`
}

// NewRunner builds the monitors from config. The backend base URL is the only
// required piece; alert channels come up disabled without credentials.
func NewRunner(clients *clts.Clients, cfg *config.Config) *Runner {
	r := &Runner{
		clients: clients,
		cfg:     cfg,
	}

	r.driftMonitor = NewDriftMonitor(clients.Logger, clients.API, clients.Notifier, DriftMonitorConfig{
		PollInterval:   cfg.Poll.DriftInterval,
		Window:         cfg.Drift.Window,
		Features:       cfg.Drift.Features,
		Threshold:      cfg.Drift.Threshold,
		HistoryCap:     cfg.Drift.HistoryCap,
		FreshThreshold: cfg.Poll.FreshThreshold,
		StaleThreshold: cfg.Poll.StaleThreshold,
	})

	r.runMonitor = NewRunMonitor(clients.Logger, clients.API, clients.Stream, clients.Notifier,
		RunMonitorConfig{
			PollInterval:     cfg.Poll.RunsInterval,
			PageSize:         cfg.Stream.Limit,
			HeartbeatTimeout: cfg.Stream.HeartbeatTimeout,
			FreshThreshold:   cfg.Poll.FreshThreshold,
			StaleThreshold:   cfg.Poll.StaleThreshold,
		},
		adminapi.RunsQuery{
			PageSize: cfg.Stream.Limit,
			Symbol:   cfg.Stream.Symbol,
			Interval: cfg.Stream.Interval,
			Status:   cfg.Stream.Status,
		},
	)

	modelCfg := DefaultModelMonitorConfig()
	modelCfg.PollInterval = cfg.Poll.ModelsInterval
	modelCfg.FreshThreshold = cfg.Poll.FreshThreshold
	modelCfg.StaleThreshold = cfg.Poll.StaleThreshold
	r.modelMonitor = NewModelMonitor(clients.Logger, clients.API, clients.Notifier, modelCfg)

	healthCfg := DefaultHealthMonitorConfig()
	healthCfg.PollInterval = cfg.Poll.HealthInterval
	healthCfg.FreshThreshold = cfg.Poll.FreshThreshold
	healthCfg.StaleThreshold = cfg.Poll.StaleThreshold
	r.healthMonitor = NewHealthMonitor(clients.Logger, clients.API, clients.Notifier, healthCfg)

	return r
}

// Monitor accessors for the terminal UI.

func (r *Runner) Drift() *DriftMonitor   { return r.driftMonitor }
func (r *Runner) Runs() *RunMonitor      { return r.runMonitor }
func (r *Runner) Models() *ModelMonitor  { return r.modelMonitor }
func (r *Runner) Health() *HealthMonitor { return r.healthMonitor }
func (r *Runner) Config() *config.Config { return r.cfg }
func (r *Runner) Clients() *clts.Clients { return r.clients }

// Start brings up every monitor and, when enabled, the stats server. It does
// not block; pair with Stop.
func (r *Runner) Start(ctx context.Context) {
	r.startTime = time.Now()
	logger := r.clients.Logger

	logger.Info("starting admin status monitors",
		zap.String("backend", r.clients.API.BaseURL()),
		zap.Duration("driftInterval", r.cfg.Poll.DriftInterval),
		zap.Duration("runsInterval", r.cfg.Poll.RunsInterval),
		zap.Duration("heartbeatTimeout", r.cfg.Stream.HeartbeatTimeout),
	)

	r.driftMonitor.Start(ctx)
	r.runMonitor.Start(ctx)
	r.modelMonitor.Start(ctx)
	r.healthMonitor.Start(ctx)

	if r.cfg.StatsServer.Enabled {
		r.startStatsServer(r.cfg.StatsServer.Port)
		logger.Info("stats server started", zap.Int("port", r.cfg.StatsServer.Port))
	}
}

// Stop shuts every monitor down. Blocks until no further poll can fire.
func (r *Runner) Stop() {
	r.clients.Logger.Info("runner shutting down")

	r.driftMonitor.Stop()
	r.runMonitor.Stop()
	r.modelMonitor.Stop()
	r.healthMonitor.Stop()
	r.stopStatsServer()
}

// Run starts the monitors and blocks until ctx is canceled (headless mode).
func (r *Runner) Run(ctx context.Context) error {
	r.Start(ctx)
	<-ctx.Done()
	r.Stop()
	return nil
}

// GetStats assembles the service-wide aggregate for /stats and /ws.
func (r *Runner) GetStats() ServiceStats {
	now := time.Now()

	var stats ServiceStats
	stats.Build.Commit = BuildCommit
	stats.Build.Time = BuildTime
	stats.Build.GoVersion = runtime.Version()

	stats.StartTime = r.startTime.UTC().Format(time.RFC3339)
	stats.Uptime = now.Sub(r.startTime).Round(time.Second).String()
	stats.UptimeSec = int64(now.Sub(r.startTime).Seconds())
	stats.Backend = r.clients.API.BaseURL()

	runSnap := r.runMonitor.Snapshot()
	stats.Stream.Connected = runSnap.StreamConnected
	stats.Stream.MessageCount = runSnap.StreamStats.MessageCount
	stats.Stream.Reconnects = runSnap.Reconnects
	if !runSnap.StreamStats.LastMessageAt.IsZero() {
		stats.Stream.LastMessageAt = runSnap.StreamStats.LastMessageAt.UTC().Format(time.RFC3339)
		stats.Stream.LastMessageAgo = formatAgo(runSnap.StreamStats.LastMessageAt, now)
	}

	stats.Runs.Freshness = runSnap.Freshness.String()
	stats.Runs.Tracked = len(runSnap.Runs)
	stats.Runs.Total = runSnap.Total
	stats.Runs.LastError = runSnap.LastError
	for _, row := range runSnap.Runs {
		switch row.Status {
		case adminapi.RunStatusRunning:
			stats.Runs.Running++
		case adminapi.RunStatusError:
			stats.Runs.Failed++
		}
	}

	driftSnap := r.driftMonitor.Snapshot()
	stats.Drift.Freshness = driftSnap.Freshness.String()
	stats.Drift.ScanCount = driftSnap.ScanCount
	stats.Drift.FeatureCount = len(driftSnap.Rows)
	stats.Drift.DriftingCount = driftSnap.Summary.DriftCount
	stats.Drift.MaxAbsZ = driftSnap.Summary.MaxAbsZ
	stats.Drift.Threshold = driftSnap.AppliedThreshold
	stats.Drift.LastError = driftSnap.LastError

	modelSnap := r.modelMonitor.Snapshot()
	stats.Models.Freshness = modelSnap.Freshness.String()
	stats.Models.HasModel = modelSnap.Summary.HasModel
	if modelSnap.Summary.Production != nil {
		stats.Models.Production = modelSnap.Summary.Production.ID
	}
	stats.Models.RecentCount = len(modelSnap.Summary.Recent)
	stats.Models.AuditCount = len(modelSnap.Audit)
	stats.Models.InCooldown = modelSnap.Alert.InCooldown
	stats.Models.LastError = modelSnap.LastError

	healthSnap := r.healthMonitor.Snapshot()
	stats.Health.Freshness = healthSnap.Freshness.String()
	stats.Health.IngestionStale = healthSnap.IngestionStale
	if healthSnap.Ingestion != nil {
		if lag, ok := healthSnap.Ingestion.Lag(); ok {
			stats.Health.IngestionLag = &lag
		}
	}
	if healthSnap.Seed != nil {
		stats.Health.SeedActive = healthSnap.Seed.Active
	}
	stats.Health.Gauges = healthSnap.Gauges
	stats.Health.LastError = healthSnap.LastError

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	stats.Runtime.Goroutines = runtime.NumGoroutine()
	stats.Runtime.MemAllocMB = mem.Alloc / 1024 / 1024

	return stats
}
