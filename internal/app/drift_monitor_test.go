package app

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/wooyoung7703/pro11-sub001/clients/adminapi"
	"github.com/wooyoung7703/pro11-sub001/clients/notifier"
	"github.com/wooyoung7703/pro11-sub001/internal/poll"
)

func driftScanHandler(t *testing.T, resp adminapi.DriftScanResponse) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/features/drift/scan", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	return mux
}

func newTestDriftMonitor(t *testing.T, handler http.Handler, alerts notifier.Notifier) (*DriftMonitor, *clock.Mock) {
	t.Helper()

	mock := clock.NewMock()
	mock.Add(time.Hour) // away from the zero time so freshness classifies

	cfg := DefaultDriftMonitorConfig()
	dm := newDriftMonitorWithClock(zap.NewNop(), testAPIClient(t, handler), alerts, cfg, mock)
	return dm, mock
}

func TestDriftMonitorScanSortsAndFlags(t *testing.T) {
	resp := adminapi.DriftScanResponse{
		Status: "ok",
		Results: map[string]adminapi.DriftFeature{
			"close":  {ZScore: f64(-4.2), Drift: true, Threshold: 3.0, NBaseline: 200, NRecent: 50},
			"volume": {ZScore: f64(1.1), Drift: false, Threshold: 3.0},
			"rsi":    {ZScore: f64(4.2), Drift: true, Threshold: 3.0},
			"spread": {ZScore: nil, Status: "insufficient_data", Threshold: 3.0},
		},
		Summary: adminapi.DriftSummary{DriftCount: 2, Total: 4, MaxAbsZ: 4.2, TopFeature: "close"},
	}

	dm, _ := newTestDriftMonitor(t, driftScanHandler(t, resp), nil)
	dm.Scan(context.Background())

	snap := dm.Snapshot()
	if len(snap.Rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(snap.Rows))
	}

	// |z| descending, name ascending on the 4.2 tie, nil z last.
	wantOrder := []string{"close", "rsi", "volume", "spread"}
	for i, name := range wantOrder {
		if snap.Rows[i].Name != name {
			t.Errorf("row %d: expected %s, got %s", i, name, snap.Rows[i].Name)
		}
	}

	if !snap.Rows[0].Drifting || !snap.Rows[1].Drifting {
		t.Error("expected close and rsi flagged as drifting")
	}
	if snap.Rows[2].Drifting {
		t.Error("expected volume below threshold")
	}
	if snap.Rows[3].Drifting {
		t.Error("expected feature without z-score to follow server flag (false)")
	}
	if snap.LastError != "" {
		t.Errorf("unexpected error: %s", snap.LastError)
	}
}

func TestDriftMonitorThresholdMismatch(t *testing.T) {
	resp := adminapi.DriftScanResponse{
		Status: "ok",
		Results: map[string]adminapi.DriftFeature{
			// Server clamped the requested 3.0 down to 2.5.
			"close": {ZScore: f64(2.7), Drift: true, Threshold: 2.5},
		},
		Summary: adminapi.DriftSummary{DriftCount: 1, Total: 1, MaxAbsZ: 2.7},
	}

	dm, _ := newTestDriftMonitor(t, driftScanHandler(t, resp), nil)
	dm.Scan(context.Background())

	snap := dm.Snapshot()
	if snap.AppliedThreshold != 2.5 {
		t.Errorf("expected applied threshold 2.5, got %g", snap.AppliedThreshold)
	}
	if snap.RequestedThreshold != 3.0 {
		t.Errorf("expected requested threshold 3.0, got %g", snap.RequestedThreshold)
	}
	if !snap.ThresholdMismatch {
		t.Error("expected threshold mismatch surfaced")
	}
	// 2.7 >= applied 2.5, so the applied value decides the flag.
	if !snap.Rows[0].Drifting {
		t.Error("expected drift flag from applied threshold")
	}
}

func TestDriftMonitorAlertsOnceOnNewDrift(t *testing.T) {
	resp := adminapi.DriftScanResponse{
		Status: "ok",
		Results: map[string]adminapi.DriftFeature{
			"close": {ZScore: f64(3.5), Drift: true, Threshold: 3.0},
		},
		Summary: adminapi.DriftSummary{DriftCount: 1, Total: 1, MaxAbsZ: 3.5},
	}

	capture := &captureNotifier{}
	dm, _ := newTestDriftMonitor(t, driftScanHandler(t, resp), capture)

	dm.Scan(context.Background())
	dm.Scan(context.Background())

	alerts := capture.sent()
	if len(alerts) != 1 {
		t.Fatalf("expected exactly 1 alert for a feature staying drifted, got %d", len(alerts))
	}
	if alerts[0].Kind != notifier.AlertKindDrift {
		t.Errorf("unexpected alert kind %s", alerts[0].Kind)
	}
	if alerts[0].Feature != "close" {
		t.Errorf("unexpected alert feature %s", alerts[0].Feature)
	}
}

func TestDriftMonitorKeepsStateOnFailure(t *testing.T) {
	good := adminapi.DriftScanResponse{
		Status: "ok",
		Results: map[string]adminapi.DriftFeature{
			"close": {ZScore: f64(1.0), Threshold: 3.0},
		},
		Summary: adminapi.DriftSummary{Total: 1, MaxAbsZ: 1.0},
	}

	failing := false
	mux := http.NewServeMux()
	mux.HandleFunc("/api/features/drift/scan", func(w http.ResponseWriter, r *http.Request) {
		if failing {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(good)
	})

	dm, _ := newTestDriftMonitor(t, mux, nil)

	dm.Scan(context.Background())
	failing = true
	dm.Scan(context.Background())

	snap := dm.Snapshot()
	if len(snap.Rows) != 1 {
		t.Fatalf("expected prior rows kept after a failed scan, got %d", len(snap.Rows))
	}
	if snap.LastError == "" {
		t.Error("expected transient error recorded")
	}
	if snap.ScanCount != 1 {
		t.Errorf("expected scan count 1, got %d", snap.ScanCount)
	}
}

func TestDriftMonitorHistoryBounded(t *testing.T) {
	resp := adminapi.DriftScanResponse{
		Status:  "ok",
		Results: map[string]adminapi.DriftFeature{},
		Summary: adminapi.DriftSummary{},
	}

	cfg := DefaultDriftMonitorConfig()
	cfg.HistoryCap = 5

	mock := clock.NewMock()
	mock.Add(time.Hour)
	dm := newDriftMonitorWithClock(zap.NewNop(), testAPIClient(t, driftScanHandler(t, resp)), nil, cfg, mock)

	for i := 0; i < 12; i++ {
		dm.Scan(context.Background())
		mock.Add(time.Second)
	}

	snap := dm.Snapshot()
	if len(snap.History) != 5 {
		t.Fatalf("expected history capped at 5, got %d", len(snap.History))
	}
	for i := 1; i < len(snap.History); i++ {
		if !snap.History[i].At.After(snap.History[i-1].At) {
			t.Error("expected history timestamps strictly increasing")
		}
	}
}

func TestDriftMonitorFreshnessAges(t *testing.T) {
	resp := adminapi.DriftScanResponse{
		Status:  "ok",
		Results: map[string]adminapi.DriftFeature{},
		Summary: adminapi.DriftSummary{},
	}

	dm, mock := newTestDriftMonitor(t, driftScanHandler(t, resp), nil)

	if got := dm.Snapshot().Freshness; got != poll.FreshnessUnknown {
		t.Errorf("expected UNKNOWN before first scan, got %s", got)
	}

	dm.Scan(context.Background())
	if got := dm.Snapshot().Freshness; got != poll.FreshnessFresh {
		t.Errorf("expected FRESH right after scan, got %s", got)
	}

	mock.Add(3 * time.Minute)
	if got := dm.Snapshot().Freshness; got != poll.FreshnessStale {
		t.Errorf("expected STALE after 3m, got %s", got)
	}
}
