package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket upgrader for real-time stats
var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// statsHandler builds the stats mux. Split out so tests can mount it on an
// httptest server.
func (r *Runner) statsHandler() *http.ServeMux {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// JSON stats endpoint
	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		stats := r.GetStats()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(stats)
	})

	// WebSocket endpoint for real-time stats
	mux.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, req, nil)
		if err != nil {
			r.clients.Logger.Error("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		// Push stats every second
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			stats := r.GetStats()
			if err := conn.WriteJSON(stats); err != nil {
				return // Client disconnected
			}
		}
	})

	// Plain-text summary for curl
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		stats := r.GetStats()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "quantadmin %s (up %s)\n", stats.Build.Commit, stats.Uptime)
		fmt.Fprintf(w, "backend:   %s\n", stats.Backend)
		fmt.Fprintf(w, "stream:    connected=%v messages=%d reconnects=%d\n",
			stats.Stream.Connected, stats.Stream.MessageCount, stats.Stream.Reconnects)
		fmt.Fprintf(w, "drift:     %s scans=%d drifting=%d/%d maxZ=%.2f\n",
			stats.Drift.Freshness, stats.Drift.ScanCount, stats.Drift.DriftingCount,
			stats.Drift.FeatureCount, stats.Drift.MaxAbsZ)
		fmt.Fprintf(w, "runs:      %s tracked=%d running=%d failed=%d\n",
			stats.Runs.Freshness, stats.Runs.Tracked, stats.Runs.Running, stats.Runs.Failed)
		fmt.Fprintf(w, "models:    %s production=%s audit=%d\n",
			stats.Models.Freshness, nz(stats.Models.Production, "none"), stats.Models.AuditCount)
		fmt.Fprintf(w, "health:    %s ingestionStale=%v seedActive=%v\n",
			stats.Health.Freshness, stats.Health.IngestionStale, stats.Health.SeedActive)
	})

	return mux
}

// startStatsServer starts the HTTP server for health checks and stats.
func (r *Runner) startStatsServer(port int) {
	r.statsServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r.statsHandler(),
	}

	go func() {
		if err := r.statsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.clients.Logger.Error("stats server error", zap.Error(err))
		}
	}()
}

func (r *Runner) stopStatsServer() {
	if r.statsServer == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = r.statsServer.Shutdown(shutdownCtx)
	cancel()
	r.statsServer = nil
}
