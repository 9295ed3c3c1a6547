package adminapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wooyoung7703/pro11-sub001/config"
)

func testClient(serverURL string) *Client {
	cfg := &config.Config{
		Backend: config.BackendConfig{
			BaseURL: serverURL,
			Timeout: 5 * time.Second,
		},
	}
	return NewClient(nil, cfg)
}

func TestNewClient(t *testing.T) {
	cfg := &config.Config{
		Backend: config.BackendConfig{
			BaseURL: "http://backend.example.com/",
			Timeout: 5 * time.Second,
		},
	}

	client := NewClient(nil, cfg)

	if client.logger == nil {
		t.Error("expected logger to be set")
	}
	if client.baseURL != "http://backend.example.com" {
		t.Errorf("trailing slash should be stripped, got %s", client.baseURL)
	}
}

func TestBaseURLPathPrefixPreserved(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/api/models/summary" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"has_model": false})
	}))
	defer server.Close()

	// A reverse-proxied backend mounts the API under a prefix.
	client := testClient(server.URL + "/admin")

	if _, err := client.ModelsSummary(context.Background(), 0, "", ""); err != nil {
		t.Fatalf("ModelsSummary: %v", err)
	}
}

func TestDriftScan(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/features/drift/scan" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("window") != "200" {
			t.Errorf("unexpected window: %s", q.Get("window"))
		}
		if q.Get("features") != "close,volume" {
			t.Errorf("unexpected features: %s", q.Get("features"))
		}
		if q.Get("threshold") != "3" {
			t.Errorf("unexpected threshold: %s", q.Get("threshold"))
		}

		w.Write([]byte(`{
			"status": "ok",
			"results": {
				"close":  {"z_score": 3.4, "baseline_mean": 100.5, "recent_mean": 104.2, "n_baseline": 150, "n_recent": 50, "drift": true, "status": "ok", "threshold": 2.5},
				"volume": {"z_score": null, "n_baseline": 3, "n_recent": 1, "drift": false, "status": "insufficient_data", "threshold": 2.5}
			},
			"summary": {"drift_count": 1, "total": 2, "max_abs_z": 3.4, "top_feature": "close"}
		}`))
	}))
	defer server.Close()

	resp, err := testClient(server.URL).DriftScan(context.Background(), 200, []string{"close", "volume"}, 3.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	closeRow := resp.Results["close"]
	if closeRow.ZScore == nil || *closeRow.ZScore != 3.4 {
		t.Errorf("unexpected z_score: %v", closeRow.ZScore)
	}
	if !closeRow.Drift {
		t.Error("close should be flagged as drift")
	}
	if closeRow.Threshold != 2.5 {
		t.Errorf("applied threshold = %v, want 2.5", closeRow.Threshold)
	}

	volumeRow := resp.Results["volume"]
	if volumeRow.ZScore != nil {
		t.Error("null z_score must stay nil, not become zero")
	}

	if resp.Summary.TopFeature != "close" || resp.Summary.DriftCount != 1 {
		t.Errorf("unexpected summary: %+v", resp.Summary)
	}
}

func TestBackfillRunsEnvelopeShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("page_size") != "25" {
			t.Errorf("unexpected paging: %s", r.URL.RawQuery)
		}
		if q.Get("status") != "running" || q.Get("symbol") != "BTCUSDT" {
			t.Errorf("unexpected filters: %s", r.URL.RawQuery)
		}

		w.Write([]byte(`{
			"items": [
				{"id": 7, "symbol": "BTCUSDT", "interval": "1m", "status": "running", "inserted": 150, "target": 1000}
			],
			"total": 31
		}`))
	}))
	defer server.Close()

	runs, total, err := testClient(server.URL).BackfillRuns(context.Background(), RunsQuery{
		Page:     2,
		PageSize: 25,
		Status:   "running",
		Symbol:   "BTCUSDT",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 31 {
		t.Errorf("total = %d, want 31", total)
	}
	if len(runs) != 1 || runs[0].ID != 7 {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	if runs[0].Inserted == nil || *runs[0].Inserted != 150 {
		t.Errorf("unexpected inserted: %v", runs[0].Inserted)
	}
}

func TestBackfillRunsArrayShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id": 1, "status": "success"},
			{"id": 2, "status": "error", "error": "exchange timeout"}
		]`))
	}))
	defer server.Close()

	runs, total, err := testClient(server.URL).BackfillRuns(context.Background(), RunsQuery{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(runs) != 2 {
		t.Fatalf("unexpected result: total=%d runs=%+v", total, runs)
	}
	if runs[1].Error != "exchange timeout" {
		t.Errorf("unexpected error field: %q", runs[1].Error)
	}
	if runs[0].Inserted != nil {
		t.Error("absent progress counters must stay nil")
	}
}

func TestModelsSummary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/models/summary" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"has_model": true,
			"production": {"id": "m-42", "name": "lgbm", "model_type": "classifier", "version": "v3", "metrics": {"auc": 0.91, "brier": null}},
			"recent": [{"id": "m-43", "name": "lgbm", "version": "v4"}]
		}`))
	}))
	defer server.Close()

	resp, err := testClient(server.URL).ModelsSummary(context.Background(), 10, "lgbm", "classifier")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.HasModel || resp.Production == nil || resp.Production.ID != "m-42" {
		t.Fatalf("unexpected summary: %+v", resp)
	}
	if resp.Production.Metrics["brier"] != nil {
		t.Error("null metric must stay nil")
	}
	if len(resp.Recent) != 1 {
		t.Errorf("unexpected recent: %+v", resp.Recent)
	}
}

func TestPromoteModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if r.URL.Path != "/api/models/m-42/promote" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"promoted": true}`))
	}))
	defer server.Close()

	result, err := testClient(server.URL).PromoteModel(context.Background(), "m-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Accepted() {
		t.Error("expected accepted promotion")
	}
}

func TestPromoteModelRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"promoted": false, "reason": "cooldown active"}`))
	}))
	defer server.Close()

	result, err := testClient(server.URL).PromoteModel(context.Background(), "m-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Accepted() {
		t.Error("expected rejected promotion")
	}
	if result.Reason != "cooldown active" {
		t.Errorf("unexpected reason: %q", result.Reason)
	}
}

func TestPromoteModelEmptyID(t *testing.T) {
	if _, err := testClient("http://unused").PromoteModel(context.Background(), "  "); err == nil {
		t.Error("expected error for empty model id")
	}
}

func TestDeleteModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if r.URL.Path != "/api/models/m-42" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"status": "deleted"}`))
	}))
	defer server.Close()

	if err := testClient(server.URL).DeleteModel(context.Background(), "m-42"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDeleteModelUnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "pending"}`))
	}))
	defer server.Close()

	if err := testClient(server.URL).DeleteModel(context.Background(), "m-42"); err == nil {
		t.Error("expected error for non-deleted status")
	}
}

func TestPromotionAudit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "50" {
			t.Errorf("unexpected limit: %s", r.URL.Query().Get("limit"))
		}
		w.Write([]byte(`{
			"status": "ok",
			"items": [
				{"id": 9, "decision": "skipped", "reason": "auc delta below margin", "reason_category": "metric_margin", "deltas": {"auc": -0.003}}
			]
		}`))
	}))
	defer server.Close()

	events, err := testClient(server.URL).PromotionAudit(context.Background(), 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Decision != DecisionSkipped {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[0].ReasonCategory != "metric_margin" {
		t.Errorf("unexpected reason category: %q", events[0].ReasonCategory)
	}
}

func TestIngestionStatusLagFields(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantLag float64
		wantOK  bool
		stale   bool
	}{
		{
			"lag_sec field",
			`{"lag_sec": 4.5, "thresholds": {"ingestion_lag_sec": 30}}`,
			4.5, true, false,
		},
		{
			"legacy lag_seconds field",
			`{"lag_seconds": 61.0, "thresholds": {"ingestion_lag_sec": 30}}`,
			61.0, true, true,
		},
		{
			"explicit stale flag wins",
			`{"stale": true, "lag_sec": 1.0, "thresholds": {"ingestion_lag_sec": 30}}`,
			1.0, true, true,
		},
		{
			"no lag reported",
			`{"thresholds": {"ingestion_lag_sec": 30}}`,
			0, false, false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			status, err := testClient(server.URL).IngestionStatus(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			lag, ok := status.Lag()
			if ok != tt.wantOK || (ok && lag != tt.wantLag) {
				t.Errorf("Lag() = %v, %v; want %v, %v", lag, ok, tt.wantLag, tt.wantOK)
			}
			if status.IsStale() != tt.stale {
				t.Errorf("IsStale() = %v, want %v", status.IsStale(), tt.stale)
			}
		})
	}
}

func TestNon2xxSurfacesStatusAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`upstream down`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).SeedStatus(context.Background())
	if err == nil {
		t.Fatal("expected error for 502")
	}
}

func TestPromotionResultStatusShapes(t *testing.T) {
	boolTrue := true
	boolFalse := false

	tests := []struct {
		name   string
		result PromotionResult
		want   bool
	}{
		{"promoted true", PromotionResult{Promoted: &boolTrue}, true},
		{"promoted false", PromotionResult{Promoted: &boolFalse}, false},
		{"status ok", PromotionResult{Status: "ok"}, true},
		{"status rolled_back", PromotionResult{Status: "rolled_back"}, true},
		{"status rejected", PromotionResult{Status: "rejected"}, false},
		{"empty", PromotionResult{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Accepted(); got != tt.want {
				t.Errorf("Accepted() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunRowJSONShape(t *testing.T) {
	blob := `{"id": 3, "symbol": "ETHUSDT", "interval": "5m", "status": "running", "started_at": "2025-06-01T00:00:00Z", "inserted": 10, "target": 100}`

	var run Run
	if err := json.Unmarshal([]byte(blob), &run); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if run.Status != RunStatusRunning {
		t.Errorf("status = %q", run.Status)
	}
	if run.Target == nil || *run.Target != 100 {
		t.Errorf("target = %v", run.Target)
	}
}
