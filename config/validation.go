package config

import (
	"fmt"
	"strings"
)

// ValidationResult collects configuration problems.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Validate checks the config for values that would break the pollers at
// runtime. It returns all problems at once rather than failing on the first.
func (c *Config) Validate() ValidationResult {
	var errs []string

	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		errs = append(errs, "backend.base_url must not be empty")
	}
	if c.Backend.Timeout <= 0 {
		errs = append(errs, "backend.timeout must be positive")
	}

	for name, d := range map[string]int64{
		"poll.drift_interval":  int64(c.Poll.DriftInterval),
		"poll.runs_interval":   int64(c.Poll.RunsInterval),
		"poll.models_interval": int64(c.Poll.ModelsInterval),
		"poll.health_interval": int64(c.Poll.HealthInterval),
	} {
		if d <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be positive", name))
		}
	}

	if c.Poll.FreshThreshold <= 0 {
		errs = append(errs, "poll.fresh_threshold must be positive")
	}
	if c.Poll.StaleThreshold <= c.Poll.FreshThreshold {
		errs = append(errs, "poll.stale_threshold must exceed poll.fresh_threshold")
	}

	if c.Drift.Window < 2 {
		errs = append(errs, "drift.window must be at least 2")
	}
	if c.Drift.Threshold <= 0 {
		errs = append(errs, "drift.threshold must be positive")
	}
	if len(c.Drift.Features) == 0 {
		errs = append(errs, "drift.features must name at least one feature")
	}
	if c.Drift.HistoryCap <= 0 {
		errs = append(errs, "drift.history_cap must be positive")
	}

	if c.Stream.HeartbeatTimeout <= 0 {
		errs = append(errs, "stream.heartbeat_timeout must be positive")
	}

	if c.StatsServer.Enabled && (c.StatsServer.Port <= 0 || c.StatsServer.Port > 65535) {
		errs = append(errs, "stats_server.port must be a valid TCP port")
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
