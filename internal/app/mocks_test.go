package app

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wooyoung7703/pro11-sub001/clients/adminapi"
	"github.com/wooyoung7703/pro11-sub001/clients/notifier"
	"github.com/wooyoung7703/pro11-sub001/config"
)

// captureNotifier records alerts for assertions.
type captureNotifier struct {
	mu     sync.Mutex
	alerts []notifier.OpsAlert
}

func (c *captureNotifier) SendAlert(alert notifier.OpsAlert) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, alert)
}

func (c *captureNotifier) Close() error { return nil }

func (c *captureNotifier) sent() []notifier.OpsAlert {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]notifier.OpsAlert, len(c.alerts))
	copy(out, c.alerts)
	return out
}

func (c *captureNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.alerts)
}

// testAPIClient starts an httptest backend and returns an API client bound to
// it. The server is torn down with the test.
func testAPIClient(t *testing.T, handler http.Handler) *adminapi.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.Load()
	cfg.Backend.BaseURL = server.URL
	cfg.Backend.Timeout = 5 * time.Second

	return adminapi.NewClient(zap.NewNop(), cfg)
}

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }
