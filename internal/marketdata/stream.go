package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// AssetLister returns the assets currently held in open positions.
type AssetLister func(context.Context) ([]string, error)

type subscribeRequest struct {
	Type      string   `json:"type"`
	AssetIDs  []string `json:"asset_ids,omitempty"`
	Operation string   `json:"operation,omitempty"`
}

type priceEvent struct {
	EventType string          `json:"event_type"`
	AssetID   string          `json:"asset_id"`
	Price     json.RawMessage `json:"price"`
	Timestamp json.RawMessage `json:"timestamp"`
}

type StreamOptions struct {
	URL               string
	Assets            AssetLister
	RefreshInterval   time.Duration
	HeartbeatInterval time.Duration
	PingTimeout       time.Duration
	BackoffMin        time.Duration
	BackoffMax        time.Duration
	// MaxAge flags quotes older than this as stale. Zero disables the check.
	MaxAge time.Duration
	Logger *zap.Logger
}

// Stream keeps the latest last-trade price per asset from a websocket feed.
// Lookups never block on the network; an asset the feed has not priced yet
// is ErrUnavailable.
type Stream struct {
	opts StreamOptions
	now  func() time.Time

	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewStream(opts StreamOptions) *Stream {
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = 20 * time.Second
	}
	if opts.PingTimeout == 0 {
		opts.PingTimeout = 5 * time.Second
	}
	if opts.BackoffMin == 0 {
		opts.BackoffMin = time.Second
	}
	if opts.BackoffMax == 0 {
		opts.BackoffMax = 30 * time.Second
	}
	if opts.RefreshInterval == 0 {
		opts.RefreshInterval = 30 * time.Second
	}
	return &Stream{opts: opts, now: time.Now, quotes: map[string]Quote{}}
}

func (s *Stream) LastPrice(ctx context.Context, assetID string) (Quote, error) {
	s.mu.RLock()
	q, ok := s.quotes[assetID]
	s.mu.RUnlock()
	if !ok {
		return Quote{}, ErrUnavailable
	}
	if s.opts.MaxAge > 0 && s.now().Sub(q.At) > s.opts.MaxAge {
		q.Stale = true
	}
	return q, nil
}

// Run dials the feed and reconnects with jittered backoff until ctx ends.
func (s *Stream) Run(ctx context.Context) error {
	if strings.TrimSpace(s.opts.URL) == "" {
		return fmt.Errorf("stream url is required")
	}
	backoff := s.opts.BackoffMin
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, _, err := websocket.Dial(ctx, s.opts.URL, nil)
		if err != nil {
			s.warn("price stream connect failed", err)
			if err := sleepWithJitter(ctx, backoff); err != nil {
				return err
			}
			backoff = nextBackoff(backoff, s.opts.BackoffMax)
			continue
		}
		conn.SetReadLimit(1 << 20)

		assets := s.listAssets(ctx)
		if err := s.write(ctx, conn, subscribeRequest{Type: "prices", AssetIDs: assets}); err != nil {
			s.warn("price stream subscribe failed", err)
			_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
			if err := sleepWithJitter(ctx, backoff); err != nil {
				return err
			}
			backoff = nextBackoff(backoff, s.opts.BackoffMax)
			continue
		}
		if s.opts.Logger != nil {
			s.opts.Logger.Info("price stream subscribed", zap.Int("assets", len(assets)))
		}
		backoff = s.opts.BackoffMin

		err = s.consume(ctx, conn, setFromSlice(assets))
		_ = conn.Close(websocket.StatusNormalClosure, "reconnect")
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.warn("price stream dropped", err)
		}
		if err := sleepWithJitter(ctx, backoff); err != nil {
			return err
		}
		backoff = nextBackoff(backoff, s.opts.BackoffMax)
	}
}

func (s *Stream) consume(ctx context.Context, conn *websocket.Conn, current map[string]struct{}) error {
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	bgErr := make(chan error, 2)

	go func() {
		ticker := time.NewTicker(s.opts.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				pingCtx, cancelPing := context.WithTimeout(loopCtx, s.opts.PingTimeout)
				err := conn.Ping(pingCtx)
				cancelPing()
				if err != nil {
					bgErr <- err
					cancel()
					return
				}
			}
		}
	}()

	if s.opts.Assets != nil && s.opts.RefreshInterval > 0 {
		go func() {
			ticker := time.NewTicker(s.opts.RefreshInterval)
			defer ticker.Stop()
			for {
				select {
				case <-loopCtx.Done():
					return
				case <-ticker.C:
					ids, err := s.opts.Assets(loopCtx)
					if err != nil {
						continue
					}
					next := setFromSlice(ids)
					added, removed := diffSets(current, next)
					if len(added) > 0 {
						_ = s.write(loopCtx, conn, subscribeRequest{Type: "prices", AssetIDs: added, Operation: "subscribe"})
					}
					if len(removed) > 0 {
						_ = s.write(loopCtx, conn, subscribeRequest{Type: "prices", AssetIDs: removed, Operation: "unsubscribe"})
					}
					current = next
				}
			}
		}()
	}

	for {
		_, data, err := conn.Read(loopCtx)
		if err != nil {
			select {
			case hbErr := <-bgErr:
				return hbErr
			default:
			}
			return err
		}
		if isPing(data) {
			_ = conn.Write(loopCtx, websocket.MessageText, []byte(`{"event_type":"pong"}`))
			continue
		}
		s.handle(data)
	}
}

// handle applies one feed message. Messages that are not price events are
// ignored.
func (s *Stream) handle(data []byte) {
	var ev priceEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return
	}
	switch strings.ToLower(ev.EventType) {
	case "price", "last_trade_price":
	default:
		return
	}
	if strings.TrimSpace(ev.AssetID) == "" || len(ev.Price) == 0 {
		return
	}
	price, err := parseDecimalRaw(ev.Price)
	if err != nil || !price.IsPositive() {
		return
	}
	at := s.now().UTC()
	if len(ev.Timestamp) > 0 {
		if ts, err := parseTimeRaw(ev.Timestamp); err == nil {
			at = ts
		}
	}
	s.mu.Lock()
	if prev, ok := s.quotes[ev.AssetID]; !ok || !at.Before(prev.At) {
		s.quotes[ev.AssetID] = Quote{AssetID: ev.AssetID, Price: price, At: at}
	}
	s.mu.Unlock()
}

func (s *Stream) listAssets(ctx context.Context) []string {
	if s.opts.Assets == nil {
		return nil
	}
	ids, err := s.opts.Assets(ctx)
	if err != nil {
		s.warn("price stream asset list failed", err)
		return nil
	}
	return ids
}

func (s *Stream) write(ctx context.Context, conn *websocket.Conn, req subscribeRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, payload)
}

func (s *Stream) warn(msg string, err error) {
	if s.opts.Logger == nil || errors.Is(err, context.Canceled) {
		return
	}
	s.opts.Logger.Warn(msg, zap.Error(err))
}

func isPing(raw []byte) bool {
	trimmed := strings.TrimSpace(string(raw))
	if strings.EqualFold(trimmed, "ping") {
		return true
	}
	var probe struct {
		Type      string `json:"type"`
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	return strings.EqualFold(probe.Type, "ping") || strings.EqualFold(probe.EventType, "ping")
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func sleepWithJitter(ctx context.Context, base time.Duration) error {
	if base <= 0 {
		return nil
	}
	var jitter time.Duration
	if half := int64(base / 2); half > 0 {
		jitter = time.Duration(rand.Int63n(half))
	}
	timer := time.NewTimer(base + jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func setFromSlice(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out[item] = struct{}{}
	}
	return out
}

func diffSets(current, next map[string]struct{}) (added, removed []string) {
	for key := range next {
		if _, ok := current[key]; !ok {
			added = append(added, key)
		}
	}
	for key := range current {
		if _, ok := next[key]; !ok {
			removed = append(removed, key)
		}
	}
	return added, removed
}
