package adminapi

import "encoding/json"

// ---- Feature drift ----

// DriftFeature is one feature's scan result. Numeric fields may be null when
// the server had too few samples; they stay nil rather than being coerced to
// zero.
type DriftFeature struct {
	ZScore       *float64 `json:"z_score"`
	BaselineMean *float64 `json:"baseline_mean"`
	RecentMean   *float64 `json:"recent_mean"`
	NBaseline    int      `json:"n_baseline"`
	NRecent      int      `json:"n_recent"`
	Drift        bool     `json:"drift"`
	Status       string   `json:"status"`
	Threshold    float64  `json:"threshold"` // threshold the server actually applied
}

// DriftSummary aggregates one scan.
type DriftSummary struct {
	DriftCount int     `json:"drift_count"`
	Total      int     `json:"total"`
	MaxAbsZ    float64 `json:"max_abs_z"`
	TopFeature string  `json:"top_feature"`
}

// DriftScanResponse is the /api/features/drift/scan payload.
type DriftScanResponse struct {
	Status  string                  `json:"status"`
	Results map[string]DriftFeature `json:"results"`
	Summary DriftSummary            `json:"summary"`
}

// DriftHistoryItem is one past scan summary from /api/features/drift/history.
type DriftHistoryItem struct {
	TS               float64 `json:"ts"`
	DriftCount       int     `json:"drift_count"`
	Total            int     `json:"total"`
	MaxAbsZ          float64 `json:"max_abs_z"`
	TopFeature       string  `json:"top_feature"`
	AppliedThreshold float64 `json:"applied_threshold"`
}

// ---- Backfill runs ----

// Run statuses as reported by the backend. The client only reflects the
// last-seen value; transitions are entirely server-driven.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusError   = "error"
)

// Run is one backfill run row, shared by the REST listing and the SSE stream.
type Run struct {
	ID         int64  `json:"id"`
	Symbol     string `json:"symbol"`
	Interval   string `json:"interval"`
	Status     string `json:"status"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	Error      string `json:"error"`

	// Progress counters; optional, absent for jobs without a known extent.
	Inserted *int64 `json:"inserted"`
	Target   *int64 `json:"target"`
}

// RunsQuery selects and orders backfill run rows.
type RunsQuery struct {
	Page     int
	PageSize int
	SortBy   string
	Order    string
	Status   string
	Symbol   string
	Interval string
}

// runsEnvelope is the paged shape; the endpoint may also return a bare array.
type runsEnvelope struct {
	Items []Run `json:"items"`
	Total int   `json:"total"`
}

// RunsMessage is one SSE payload on /stream/runs.
type RunsMessage struct {
	Items []Run `json:"items"`
}

// ---- Model registry ----

// ModelRow is one model registry entry. Metric values are nullable.
type ModelRow struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	ModelType string              `json:"model_type"`
	Version   string              `json:"version"`
	CreatedAt string              `json:"created_at"`
	Metrics   map[string]*float64 `json:"metrics"`
}

// ModelsSummary is the /api/models/summary payload.
type ModelsSummary struct {
	HasModel   bool       `json:"has_model"`
	Production *ModelRow  `json:"production"`
	Recent     []ModelRow `json:"recent"`
}

// PromotionResult is the response to promote/rollback actions. The backend
// answers either {promoted: bool} or {status: "..."} with an optional reason.
type PromotionResult struct {
	Promoted *bool  `json:"promoted"`
	Status   string `json:"status"`
	Reason   string `json:"reason"`
}

// Accepted reports whether the backend accepted the action.
func (r *PromotionResult) Accepted() bool {
	if r.Promoted != nil {
		return *r.Promoted
	}
	return r.Status == "ok" || r.Status == "promoted" || r.Status == "rolled_back"
}

// HistoryRow is one production history entry.
type HistoryRow struct {
	ModelID   string  `json:"model_id"`
	Name      string  `json:"name"`
	ModelType string  `json:"model_type"`
	Version   string  `json:"version"`
	Action    string  `json:"action"`
	TS        float64 `json:"ts"`
}

// Audit decisions for model promotion.
const (
	DecisionPromoted = "promoted"
	DecisionSkipped  = "skipped"
	DecisionError    = "error"
)

// AuditEvent is one append-only promotion audit log entry.
type AuditEvent struct {
	ID             int64               `json:"id"`
	TS             float64             `json:"ts"`
	ModelID        string              `json:"model_id"`
	Decision       string              `json:"decision"`
	Reason         string              `json:"reason"`
	ReasonCategory string              `json:"reason_category"`
	Deltas         map[string]*float64 `json:"deltas"`
}

// AlertStatus is the promotion alert cooldown state.
type AlertStatus struct {
	InCooldown    bool    `json:"in_cooldown"`
	NextAllowedTS float64 `json:"next_allowed_ts"`
}

// ---- Inference / ingestion health ----

// SeedStatus is the inference seed process state.
type SeedStatus struct {
	Active          bool     `json:"active"`
	DurationSeconds float64  `json:"duration_seconds"`
	LastExitTS      *float64 `json:"last_exit_ts"`
	StartedAt       *float64 `json:"started_at"`
}

// IngestionStatus reports candle ingestion lag. The backend has shipped both
// lag_sec and lag_seconds over time; Lag prefers the former.
type IngestionStatus struct {
	Stale         *bool    `json:"stale"`
	LagSec        *float64 `json:"lag_sec"`
	LagSeconds    *float64 `json:"lag_seconds"`
	LastMessageTS *float64 `json:"last_message_ts"`
	Thresholds    struct {
		IngestionLagSec float64 `json:"ingestion_lag_sec"`
	} `json:"thresholds"`
}

// Lag returns the reported lag in seconds, whichever field carried it.
func (s *IngestionStatus) Lag() (float64, bool) {
	if s.LagSec != nil {
		return *s.LagSec, true
	}
	if s.LagSeconds != nil {
		return *s.LagSeconds, true
	}
	return 0, false
}

// IsStale resolves the staleness signal: the explicit flag when present,
// otherwise lag compared against the server-advertised threshold.
func (s *IngestionStatus) IsStale() bool {
	if s.Stale != nil {
		return *s.Stale
	}
	if lag, ok := s.Lag(); ok && s.Thresholds.IngestionLagSec > 0 {
		return lag > s.Thresholds.IngestionLagSec
	}
	return false
}

// statusEnvelope wraps list endpoints that answer {status, items}.
type statusEnvelope struct {
	Status string          `json:"status"`
	Items  json.RawMessage `json:"items"`
	Rows   json.RawMessage `json:"rows"`
}
