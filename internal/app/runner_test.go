package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	clts "github.com/wooyoung7703/pro11-sub001/clients"
	"github.com/wooyoung7703/pro11-sub001/config"
)

func newTestRunner(t *testing.T) *Runner {
	t.Helper()

	backend := httptest.NewServer(http.NewServeMux())
	t.Cleanup(backend.Close)

	cfg := config.Load()
	cfg.Backend.BaseURL = backend.URL
	cfg.StatsServer.Enabled = false

	clients := clts.NewClients(zap.NewNop(), cfg)
	r := NewRunner(clients, cfg)
	r.startTime = time.Now()
	return r
}

func TestRunnerComposesMonitors(t *testing.T) {
	r := newTestRunner(t)

	if r.Drift() == nil || r.Runs() == nil || r.Models() == nil || r.Health() == nil {
		t.Fatal("expected all monitors constructed")
	}
}

func TestRunnerGetStats(t *testing.T) {
	r := newTestRunner(t)

	stats := r.GetStats()
	if stats.Build.GoVersion == "" {
		t.Error("expected go version populated")
	}
	if stats.Backend == "" {
		t.Error("expected backend URL populated")
	}
	if stats.Drift.Freshness != "unknown" {
		t.Errorf("expected unknown drift freshness before any scan, got %s", stats.Drift.Freshness)
	}
	if stats.Runs.Freshness != "unknown" {
		t.Errorf("expected unknown runs freshness, got %s", stats.Runs.Freshness)
	}
}

func TestStatsServerEndpoints(t *testing.T) {
	r := newTestRunner(t)

	server := httptest.NewServer(r.statsHandler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from /health, got %d", resp.StatusCode)
	}

	resp, err = http.Get(server.URL + "/stats")
	if err != nil {
		t.Fatalf("stats request failed: %v", err)
	}
	defer resp.Body.Close()

	var stats ServiceStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if stats.Build.GoVersion == "" {
		t.Error("expected build info in /stats payload")
	}

	resp, err = http.Get(server.URL + "/")
	if err != nil {
		t.Fatalf("root request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from /, got %d", resp.StatusCode)
	}
}
