package runstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wooyoung7703/pro11-sub001/config"
)

func testConfig(serverURL string) *config.Config {
	return &config.Config{
		Backend: config.BackendConfig{BaseURL: serverURL},
		Stream: config.StreamConfig{
			Symbol:           "BTCUSDT",
			Interval:         "1m",
			Limit:            50,
			HeartbeatTimeout: 20 * time.Second,
		},
	}
}

func TestConnectReceivesEventsAndHeartbeats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stream/runs" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("symbol") != "BTCUSDT" || q.Get("interval") != "1m" || q.Get("limit") != "50" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("unexpected accept header: %s", r.Header.Get("Accept"))
		}

		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")

		w.Write([]byte(": heartbeat\n\n"))
		flusher.Flush()
		w.Write([]byte("data: {\"items\": [{\"id\": 1, \"status\": \"running\", \"inserted\": 10, \"target\": 100}]}\n\n"))
		flusher.Flush()
		w.Write([]byte("data: {\"items\": [{\"id\": 1, \"status\": \"success\"}]}\n\n"))
		flusher.Flush()

		// Keep the stream open until the client hangs up.
		<-r.Context().Done()
	}))
	defer server.Close()

	c := NewClient(nil, testConfig(server.URL))
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !c.Connected() {
		t.Error("Connected() should be true after Connect")
	}

	var got []string
	timeout := time.After(5 * time.Second)
	for len(got) < 2 {
		select {
		case msg := <-c.Messages():
			if len(msg.Items) != 1 {
				t.Fatalf("unexpected items: %+v", msg.Items)
			}
			got = append(got, msg.Items[0].Status)
		case <-timeout:
			t.Fatalf("timed out waiting for messages, got %v", got)
		}
	}

	if got[0] != "running" || got[1] != "success" {
		t.Errorf("unexpected statuses: %v", got)
	}

	// Heartbeat + two data events: at least three activity records.
	stats := c.Stats()
	if stats.MessageCount < 3 {
		t.Errorf("message count = %d, want >= 3", stats.MessageCount)
	}
	if stats.LastMessageAt.IsZero() {
		t.Error("LastMessageAt should be recorded")
	}
}

func TestConnectTwiceFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	c := NewClient(nil, testConfig(server.URL))
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := c.Connect(context.Background()); err == nil {
		t.Error("second Connect should fail while connected")
	}
}

func TestConnectNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no stream here", http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(nil, testConfig(server.URL))
	if err := c.Connect(context.Background()); err == nil {
		t.Error("expected error for 404")
	}
	if c.Connected() {
		t.Error("failed connect must not leave the client connected")
	}
}

func TestServerEndSurfacesError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"items\": []}\n\n"))
		// Handler returns: the stream ends.
	}))
	defer server.Close()

	c := NewClient(nil, testConfig(server.URL))
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	select {
	case <-c.Errors():
	case <-time.After(5 * time.Second):
		t.Fatal("expected an error when the server ends the stream")
	}
}

func TestCloseIsIdempotentAndAllowsReconnect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	c := NewClient(nil, testConfig(server.URL))

	// Close before any connect must be safe.
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if c.Connected() {
		t.Error("Connected() should be false after Close")
	}

	// The client must be reusable for the owner-driven reconnect.
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	c.Close()
}

func TestReconnectImmediatelyAfterClose(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	c := NewClient(nil, testConfig(server.URL))
	defer c.Close()

	// Close cancels the old session's context, which wakes that session's
	// watcher goroutine. The watcher must not tear down the connection a
	// back-to-back Connect has just opened.
	for i := 0; i < 50; i++ {
		if err := c.Connect(context.Background()); err != nil {
			t.Fatalf("connect %d: %v", i, err)
		}
		if err := c.Close(); err != nil {
			t.Fatalf("close %d: %v", i, err)
		}
		if err := c.Connect(context.Background()); err != nil {
			t.Fatalf("reconnect %d: %v", i, err)
		}
		if !c.Connected() {
			t.Fatalf("iteration %d: client should be connected after reconnect", i)
		}
		if err := c.Close(); err != nil {
			t.Fatalf("final close %d: %v", i, err)
		}
	}
}

func TestMultilineDataEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		// One event split across two data lines.
		w.Write([]byte("data: {\"items\":\ndata: [{\"id\": 5, \"status\": \"error\"}]}\n\n"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	c := NewClient(nil, testConfig(server.URL))
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	select {
	case msg := <-c.Messages():
		if len(msg.Items) != 1 || msg.Items[0].ID != 5 {
			t.Errorf("unexpected message: %+v", msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for multiline event")
	}
}
