package adminapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/wooyoung7703/pro11-sub001/config"
)

// Client talks to the admin backend's REST surface.
type Client struct {
	logger     *zap.Logger
	httpClient *http.Client
	baseURL    string
}

func NewClient(logger *zap.Logger, cfg *config.Config) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		logger: logger,
		httpClient: &http.Client{
			Timeout: cfg.Backend.Timeout,
		},
		baseURL: strings.TrimRight(cfg.Backend.BaseURL, "/"),
	}
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// DriftScan runs a feature drift scan for the given window and features.
// threshold is the requested z-score threshold; the server may clamp it, in
// which case each feature's Threshold field carries the applied value.
func (c *Client) DriftScan(
	ctx context.Context,
	window int,
	features []string,
	threshold float64,
) (*DriftScanResponse, error) {
	u, err := c.endpoint("/api/features/drift/scan")
	if err != nil {
		return nil, err
	}

	q := u.Query()
	if window > 0 {
		q.Set("window", fmt.Sprintf("%d", window))
	}
	if len(features) > 0 {
		q.Set("features", strings.Join(features, ","))
	}
	if threshold > 0 {
		q.Set("threshold", fmt.Sprintf("%g", threshold))
	}
	u.RawQuery = q.Encode()

	var resp DriftScanResponse
	if err := c.doGet(ctx, u.String(), &resp); err != nil {
		return nil, fmt.Errorf("drift scan: %w", err)
	}

	return &resp, nil
}

// DriftHistory fetches past scan summaries, newest last.
func (c *Client) DriftHistory(ctx context.Context, limit int) ([]DriftHistoryItem, error) {
	u, err := c.endpoint("/api/features/drift/history")
	if err != nil {
		return nil, err
	}

	q := u.Query()
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	u.RawQuery = q.Encode()

	var env statusEnvelope
	if err := c.doGet(ctx, u.String(), &env); err != nil {
		return nil, fmt.Errorf("drift history: %w", err)
	}

	var items []DriftHistoryItem
	if len(env.Items) > 0 {
		if err := json.Unmarshal(env.Items, &items); err != nil {
			return nil, fmt.Errorf("drift history items: %w", err)
		}
	}

	return items, nil
}

// BackfillRuns lists backfill run rows. The endpoint has answered both a bare
// array and a paged {items, total} envelope; both are accepted.
func (c *Client) BackfillRuns(ctx context.Context, query RunsQuery) ([]Run, int, error) {
	u, err := c.endpoint("/api/features/backfill/runs")
	if err != nil {
		return nil, 0, err
	}

	q := u.Query()
	if query.Page > 0 {
		q.Set("page", fmt.Sprintf("%d", query.Page))
	}
	if query.PageSize > 0 {
		q.Set("page_size", fmt.Sprintf("%d", query.PageSize))
	}
	if query.SortBy != "" {
		q.Set("sort_by", query.SortBy)
	}
	if query.Order != "" {
		q.Set("order", query.Order)
	}
	if query.Status != "" {
		q.Set("status", query.Status)
	}
	if query.Symbol != "" {
		q.Set("symbol", query.Symbol)
	}
	if query.Interval != "" {
		q.Set("interval", query.Interval)
	}
	u.RawQuery = q.Encode()

	raw, err := c.doGetRaw(ctx, u.String())
	if err != nil {
		return nil, 0, fmt.Errorf("backfill runs: %w", err)
	}

	var runs []Run
	if err := json.Unmarshal(raw, &runs); err == nil {
		return runs, len(runs), nil
	}

	var env runsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, 0, fmt.Errorf("backfill runs: unhandled shape: %w", err)
	}
	total := env.Total
	if total == 0 {
		total = len(env.Items)
	}
	return env.Items, total, nil
}

// ModelsSummary fetches the model registry summary.
func (c *Client) ModelsSummary(ctx context.Context, limit int, name, modelType string) (*ModelsSummary, error) {
	u, err := c.endpoint("/api/models/summary")
	if err != nil {
		return nil, err
	}

	q := u.Query()
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if name != "" {
		q.Set("name", name)
	}
	if modelType != "" {
		q.Set("model_type", modelType)
	}
	u.RawQuery = q.Encode()

	var resp ModelsSummary
	if err := c.doGet(ctx, u.String(), &resp); err != nil {
		return nil, fmt.Errorf("models summary: %w", err)
	}

	return &resp, nil
}

// PromoteModel promotes a candidate model to production.
func (c *Client) PromoteModel(ctx context.Context, id string) (*PromotionResult, error) {
	return c.modelAction(ctx, id, "promote")
}

// RollbackModel rolls production back to the previous model.
func (c *Client) RollbackModel(ctx context.Context, id string) (*PromotionResult, error) {
	return c.modelAction(ctx, id, "rollback")
}

func (c *Client) modelAction(ctx context.Context, id, action string) (*PromotionResult, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("model id is empty")
	}

	u, err := c.endpoint("/api/models/" + url.PathEscape(id) + "/" + action)
	if err != nil {
		return nil, err
	}

	var resp PromotionResult
	if err := c.doPost(ctx, u.String(), &resp); err != nil {
		return nil, fmt.Errorf("%s model %s: %w", action, id, err)
	}

	return &resp, nil
}

// DeleteModel removes a model from the registry.
func (c *Client) DeleteModel(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("model id is empty")
	}

	u, err := c.endpoint("/api/models/" + url.PathEscape(id))
	if err != nil {
		return err
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doDelete(ctx, u.String(), &resp); err != nil {
		return fmt.Errorf("delete model %s: %w", id, err)
	}
	if resp.Status != "deleted" {
		return fmt.Errorf("delete model %s: status=%s", id, resp.Status)
	}

	return nil
}

// ProductionHistory fetches the production model history.
func (c *Client) ProductionHistory(ctx context.Context, limit int, name, modelType string) ([]HistoryRow, error) {
	u, err := c.endpoint("/api/models/production/history")
	if err != nil {
		return nil, err
	}

	q := u.Query()
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if name != "" {
		q.Set("name", name)
	}
	if modelType != "" {
		q.Set("model_type", modelType)
	}
	u.RawQuery = q.Encode()

	var env statusEnvelope
	if err := c.doGet(ctx, u.String(), &env); err != nil {
		return nil, fmt.Errorf("production history: %w", err)
	}

	var rows []HistoryRow
	if len(env.Rows) > 0 {
		if err := json.Unmarshal(env.Rows, &rows); err != nil {
			return nil, fmt.Errorf("production history rows: %w", err)
		}
	}

	return rows, nil
}

// PromotionAudit fetches recent promotion audit events, an append-only log.
func (c *Client) PromotionAudit(ctx context.Context, limit int) ([]AuditEvent, error) {
	u, err := c.endpoint("/api/models/promotion/audit")
	if err != nil {
		return nil, err
	}

	q := u.Query()
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	u.RawQuery = q.Encode()

	var env statusEnvelope
	if err := c.doGet(ctx, u.String(), &env); err != nil {
		return nil, fmt.Errorf("promotion audit: %w", err)
	}

	var events []AuditEvent
	if len(env.Items) > 0 {
		if err := json.Unmarshal(env.Items, &events); err != nil {
			return nil, fmt.Errorf("promotion audit items: %w", err)
		}
	}

	return events, nil
}

// PromotionAlertStatus fetches the promotion alert cooldown state.
func (c *Client) PromotionAlertStatus(ctx context.Context) (*AlertStatus, error) {
	u, err := c.endpoint("/api/models/promotion/alert/status")
	if err != nil {
		return nil, err
	}

	var resp AlertStatus
	if err := c.doGet(ctx, u.String(), &resp); err != nil {
		return nil, fmt.Errorf("promotion alert status: %w", err)
	}

	return &resp, nil
}

// SeedStatus fetches the inference seed process state.
func (c *Client) SeedStatus(ctx context.Context) (*SeedStatus, error) {
	u, err := c.endpoint("/api/inference/seed/status")
	if err != nil {
		return nil, err
	}

	var resp SeedStatus
	if err := c.doGet(ctx, u.String(), &resp); err != nil {
		return nil, fmt.Errorf("seed status: %w", err)
	}

	return &resp, nil
}

// IngestionStatus fetches the candle ingestion lag report.
func (c *Client) IngestionStatus(ctx context.Context) (*IngestionStatus, error) {
	u, err := c.endpoint("/api/ingestion/status")
	if err != nil {
		return nil, err
	}

	var resp IngestionStatus
	if err := c.doGet(ctx, u.String(), &resp); err != nil {
		return nil, fmt.Errorf("ingestion status: %w", err)
	}

	return &resp, nil
}

// MetricsText fetches the raw Prometheus text exposition from /metrics.
func (c *Client) MetricsText(ctx context.Context) (string, error) {
	u, err := c.endpoint("/metrics")
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("status=%d body=%s", resp.StatusCode, truncate(string(body), 200))
	}

	return string(body), nil
}

// endpoint appends path to the configured base URL. The base may carry a
// path prefix of its own (reverse-proxied backends), so the two are joined
// rather than the path replaced.
func (c *Client) endpoint(path string) (*url.URL, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	return u, nil
}

func (c *Client) doGet(ctx context.Context, url string, dest any) error {
	return c.do(ctx, http.MethodGet, url, dest)
}

func (c *Client) doGetRaw(ctx context.Context, url string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, url, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) doPost(ctx context.Context, url string, dest any) error {
	return c.do(ctx, http.MethodPost, url, dest)
}

func (c *Client) doDelete(ctx context.Context, url string, dest any) error {
	return c.do(ctx, http.MethodDelete, url, dest)
}

func (c *Client) do(ctx context.Context, method, url string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, truncate(string(body), 200))
	}

	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
