package runstream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wooyoung7703/pro11-sub001/clients/adminapi"
	"github.com/wooyoung7703/pro11-sub001/config"
)

// Client subscribes to the backend's /stream/runs server-sent-event channel.
// Messages and heartbeat comments both count as stream activity; the owning
// monitor watches Stats().LastMessageAt (or a Watchdog fed from Messages) to
// decide when the connection has gone silent and a reconnect is due.
type Client struct {
	logger     *zap.Logger
	httpClient *http.Client
	streamURL  string
	filters    config.StreamConfig

	connMu    sync.Mutex
	cancel    context.CancelFunc
	connected bool
	closeCh   chan struct{}

	msgCh  chan adminapi.RunsMessage
	beatCh chan struct{}
	errCh  chan error

	msgCount        uint64
	lastMsgUnixNano int64
}

func NewClient(logger *zap.Logger, cfg *config.Config) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		logger: logger,
		// No overall timeout: the stream is expected to stay open.
		httpClient: &http.Client{},
		streamURL:  strings.TrimRight(cfg.Backend.BaseURL, "/") + "/stream/runs",
		filters:    cfg.Stream,

		closeCh: make(chan struct{}),
		msgCh:   make(chan adminapi.RunsMessage, 256),
		beatCh:  make(chan struct{}, 256),
		errCh:   make(chan error, 16),
	}
}

// Connect opens the SSE subscription and starts the read loop. The stream
// stays open until Close is called, ctx is cancelled, or the server ends it;
// the latter two surface on Errors.
func (c *Client) Connect(ctx context.Context) error {
	c.connMu.Lock()
	if c.connected {
		c.connMu.Unlock()
		return fmt.Errorf("already connected")
	}

	streamCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.connected = true
	closeCh := c.closeCh
	c.connMu.Unlock()

	req, err := c.buildRequest(streamCtx)
	if err != nil {
		c.teardown()
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.teardown()
		return fmt.Errorf("dial run stream: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		resp.Body.Close()
		c.teardown()
		return fmt.Errorf("run stream status=%d body=%s", resp.StatusCode, string(body))
	}

	c.logger.Info("run stream connected",
		zap.String("url", c.streamURL),
		zap.String("symbol", c.filters.Symbol),
		zap.String("interval", c.filters.Interval),
	)

	go c.readLoop(resp.Body, closeCh)

	go func() {
		select {
		case <-streamCtx.Done():
			c.closeSession(closeCh)
		case <-closeCh:
		}
	}()

	return nil
}

// Messages delivers decoded run snapshots.
func (c *Client) Messages() <-chan adminapi.RunsMessage {
	return c.msgCh
}

// Beats signals any stream activity, heartbeats included.
func (c *Client) Beats() <-chan struct{} {
	return c.beatCh
}

// Errors delivers read-loop failures; each one means the stream is down.
func (c *Client) Errors() <-chan error {
	return c.errCh
}

// StreamStats mirrors what the owning monitor needs for staleness checks.
type StreamStats struct {
	MessageCount  uint64
	LastMessageAt time.Time
}

func (c *Client) Stats() StreamStats {
	n := atomic.LoadUint64(&c.msgCount)
	ns := atomic.LoadInt64(&c.lastMsgUnixNano)

	var t time.Time
	if ns > 0 {
		t = time.Unix(0, ns)
	}

	return StreamStats{
		MessageCount:  n,
		LastMessageAt: t,
	}
}

// Connected reports whether a subscription is currently open.
func (c *Client) Connected() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.connected
}

// Close tears down the subscription. It is idempotent and leaves the client
// ready for a later Connect.
func (c *Client) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.closeLocked()
	return nil
}

// closeSession tears down the subscription identified by ch. A watcher left
// over from an already-closed session finds a different channel installed and
// must not touch the current connection.
func (c *Client) closeSession(ch chan struct{}) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.closeCh != ch {
		return
	}
	c.closeLocked()
}

func (c *Client) closeLocked() {
	select {
	case <-c.closeCh:
	default:
		close(c.closeCh)
	}

	// Fresh channel so a reconnect gets its own close signal.
	c.closeCh = make(chan struct{})

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.connected = false
}

func (c *Client) teardown() {
	c.connMu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.connected = false
	c.connMu.Unlock()
}

func (c *Client) buildRequest(ctx context.Context) (*http.Request, error) {
	u, err := url.Parse(c.streamURL)
	if err != nil {
		return nil, fmt.Errorf("invalid stream URL: %w", err)
	}

	q := u.Query()
	if c.filters.Symbol != "" {
		q.Set("symbol", c.filters.Symbol)
	}
	if c.filters.Interval != "" {
		q.Set("interval", c.filters.Interval)
	}
	if c.filters.Status != "" {
		q.Set("status", c.filters.Status)
	}
	if c.filters.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", c.filters.Limit))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	return req, nil
}

func (c *Client) readLoop(body io.ReadCloser, closeCh chan struct{}) {
	defer body.Close()

	c.logger.Debug("run stream read loop started")

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data strings.Builder

	for scanner.Scan() {
		select {
		case <-closeCh:
			c.logger.Debug("run stream read loop exiting: closed")
			return
		default:
		}

		line := scanner.Text()

		switch {
		case line == "":
			// Blank line ends one event.
			if data.Len() > 0 {
				c.dispatch(data.String())
				data.Reset()
			}

		case strings.HasPrefix(line, ":"):
			// Comment line: the server's heartbeat. Counts as activity.
			c.recordActivity()

		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))

		default:
			// event:/id:/retry: fields are not used by this stream.
		}
	}

	select {
	case <-closeCh:
		return
	default:
	}

	err := scanner.Err()
	if err == nil {
		err = fmt.Errorf("run stream ended")
	}
	select {
	case c.errCh <- err:
	default:
	}
}

func (c *Client) dispatch(payload string) {
	c.recordActivity()

	var msg adminapi.RunsMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		c.logger.Warn("run stream message not decodable", zap.Error(err))
		return
	}

	select {
	case c.msgCh <- msg:
	default:
		c.logger.Warn("run stream message dropped, consumer too slow")
	}
}

func (c *Client) recordActivity() {
	atomic.AddUint64(&c.msgCount, 1)
	atomic.StoreInt64(&c.lastMsgUnixNano, time.Now().UnixNano())

	select {
	case c.beatCh <- struct{}{}:
	default:
	}
}
