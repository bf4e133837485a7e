package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
)

func TestStreamHandleKeepsNewestQuote(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	s := NewStream(StreamOptions{MaxAge: time.Minute})
	s.now = func() time.Time { return now }

	s.handle([]byte(`{"event_type":"price","asset_id":"EURUSD","price":"1.0850","timestamp":"2026-03-10T14:59:30Z"}`))
	s.handle([]byte(`{"event_type":"price","asset_id":"EURUSD","price":"1.0700","timestamp":"2026-03-10T14:58:00Z"}`))
	s.handle([]byte(`{"event_type":"book","asset_id":"EURUSD","price":"9"}`))
	s.handle([]byte(`{"event_type":"price","asset_id":"XAU","price":"0"}`))
	s.handle([]byte(`not json`))

	q, err := s.LastPrice(context.Background(), "EURUSD")
	if err != nil {
		t.Fatalf("LastPrice err=%v", err)
	}
	if q.Price.String() != "1.085" || q.Stale {
		t.Fatalf("quote=%+v want price=1.085 fresh", q)
	}
	if _, err := s.LastPrice(context.Background(), "XAU"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("XAU err=%v want=%v", err, ErrUnavailable)
	}

	now = now.Add(2 * time.Minute)
	q, _ = s.LastPrice(context.Background(), "EURUSD")
	if !q.Stale {
		t.Fatalf("quote older than max age should be stale")
	}
}

func TestStreamRunSubscribesOpenAssets(t *testing.T) {
	subscribed := make(chan []string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		ctx := r.Context()
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var req subscribeRequest
		_ = json.Unmarshal(data, &req)
		select {
		case subscribed <- req.AssetIDs:
		default:
		}
		_ = conn.Write(ctx, websocket.MessageText, []byte(`ping`))
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"event_type":"last_trade_price","asset_id":"EURUSD","price":"1.0851"}`))
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	s := NewStream(StreamOptions{
		URL: "ws" + strings.TrimPrefix(srv.URL, "http"),
		Assets: func(context.Context) ([]string, error) {
			return []string{"EURUSD"}, nil
		},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case ids := <-subscribed:
		if len(ids) != 1 || ids[0] != "EURUSD" {
			t.Fatalf("subscribed=%v want=[EURUSD]", ids)
		}
	case <-ctx.Done():
		t.Fatalf("no subscription received")
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		q, err := s.LastPrice(ctx, "EURUSD")
		if err == nil {
			if q.Price.String() != "1.0851" {
				t.Fatalf("price=%s want=1.0851", q.Price)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("price never arrived: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run err=%v want=%v", err, context.Canceled)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}

func TestDiffSets(t *testing.T) {
	added, removed := diffSets(setFromSlice([]string{"A", "B"}), setFromSlice([]string{"B", "C", " "}))
	if len(added) != 1 || added[0] != "C" {
		t.Fatalf("added=%v want=[C]", added)
	}
	if len(removed) != 1 || removed[0] != "A" {
		t.Fatalf("removed=%v want=[A]", removed)
	}
}
