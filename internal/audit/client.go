// Package audit ships operator-visible events to the platform log service.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const defaultQueueSize = 256

// Client delivers events in the background. Record never blocks the caller;
// when the queue is full the event is dropped and counted. All methods accept
// a nil receiver.
type Client struct {
	BaseURL string
	APIKey  string
	Agent   string
	HTTP    *http.Client
	Logger  *zap.Logger
	// QueueSize bounds undelivered events. Zero uses 256.
	QueueSize int

	sess  session
	once  sync.Once
	queue chan Event
	done  chan struct{}

	// mu guards closed against sends racing the close of queue.
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewClient returns nil when no base url is configured.
func NewClient(baseURL, apiKey, agent string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		return nil
	}
	return &Client{BaseURL: baseURL, APIKey: apiKey, Agent: agent}
}

// wire is the log service's create-log body.
type wire struct {
	Agent      string         `json:"agent"`
	Action     string         `json:"action"`
	Level      string         `json:"level"`
	Details    map[string]any `json:"details"`
	SessionKey string         `json:"session_key"`
	Metadata   map[string]any `json:"metadata"`
}

// Record queues ev for delivery.
func (c *Client) Record(ev Event) {
	if c == nil {
		return
	}
	c.start()
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.queue <- ev:
	default:
		n := c.dropped.Add(1)
		if c.Logger != nil {
			c.Logger.Warn("audit queue full, event dropped", zap.String("action", ev.Action), zap.Int64("dropped", n))
		}
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (c *Client) Dropped() int64 {
	if c == nil {
		return 0
	}
	return c.dropped.Load()
}

// Close stops accepting events and waits for the queue to drain or ctx to end.
func (c *Client) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	c.start()
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.queue)
	}
	c.mu.Unlock()
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) start() {
	c.once.Do(func() {
		size := c.QueueSize
		if size <= 0 {
			size = defaultQueueSize
		}
		c.queue = make(chan Event, size)
		c.done = make(chan struct{})
		go c.deliver()
	})
}

func (c *Client) deliver() {
	defer close(c.done)
	for ev := range c.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := c.Send(ctx, ev)
		cancel()
		if err != nil && c.Logger != nil {
			c.Logger.Debug("audit delivery failed", zap.String("action", ev.Action), zap.Error(err))
		}
	}
}

// Send delivers ev synchronously.
func (c *Client) Send(ctx context.Context, ev Event) error {
	if c == nil {
		return nil
	}
	if err := c.ensureSession(ctx); err != nil {
		return err
	}
	meta := map[string]any{}
	if ev.AccountID != 0 {
		meta["account_id"] = ev.AccountID
	}
	if ev.AccountNumber != "" {
		meta["account_number"] = ev.AccountNumber
	}
	lvl := ev.Level
	if lvl == "" {
		lvl = LevelInfo
	}
	body, err := json.Marshal(wire{
		Agent:      c.agent(),
		Action:     ev.Action,
		Level:      string(lvl),
		Details:    ev.Details,
		SessionKey: ev.sessionKey(),
		Metadata:   meta,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base()+"/api/v1/logs", bytes.NewReader(body))
	if err != nil {
		return err
	}
	tok, _ := c.sess.bearer()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("audit send %s: %w", ev.Action, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		c.sess.set("", time.Time{})
	}
	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("audit send %s: http %d: %s", ev.Action, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
}

func (c *Client) agent() string {
	if a := strings.TrimSpace(c.Agent); a != "" {
		return a
	}
	return "propdesk"
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{Timeout: 10 * time.Second}
}
