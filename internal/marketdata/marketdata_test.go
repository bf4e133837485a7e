package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"propdesk/internal/cache"
)

func TestHTTPClientLastPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/price" {
			http.NotFound(w, r)
			return
		}
		switch r.URL.Query().Get("asset_id") {
		case "EURUSD":
			_, _ = w.Write([]byte(`{"price":"1.08515","timestamp":1772409600}`))
		case "XAU":
			_, _ = w.Write([]byte(`{"price":2311.4}`))
		case "BAD":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.Client(), srv.URL+"/")
	ctx := context.Background()

	q, err := c.LastPrice(ctx, "EURUSD")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !q.Price.Equal(decimal.RequireFromString("1.08515")) {
		t.Fatalf("price=%s want=1.08515", q.Price)
	}
	if q.At.Unix() != 1772409600 {
		t.Fatalf("at=%v", q.At)
	}

	q, err = c.LastPrice(ctx, "XAU")
	if err != nil || !q.Price.Equal(decimal.RequireFromString("2311.4")) {
		t.Fatalf("numeric price=%s err=%v", q.Price, err)
	}

	_, err = c.LastPrice(ctx, "BAD")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("err=%v want APIError 502", err)
	}

	if _, err := c.LastPrice(ctx, "NOPE"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err=%v want ErrUnavailable", err)
	}
}

func TestCachedServesStaleOnFailure(t *testing.T) {
	ctx := context.Background()
	up := NewStatic(map[string]decimal.Decimal{"EURUSD": decimal.RequireFromString("1.1")})
	c := &Cached{Upstream: up, Store: cache.NewMemoryStore()}

	q, err := c.LastPrice(ctx, "EURUSD")
	if err != nil || q.Stale {
		t.Fatalf("fresh quote stale=%v err=%v", q.Stale, err)
	}

	up.Remove("EURUSD")
	q, err = c.LastPrice(ctx, "EURUSD")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !q.Stale || !q.Price.Equal(decimal.RequireFromString("1.1")) {
		t.Fatalf("quote=%+v want stale 1.1", q)
	}

	if _, err := c.LastPrice(ctx, "GBPUSD"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err=%v want ErrUnavailable", err)
	}
}

type fakeSource struct {
	price decimal.Decimal
	at    time.Time
}

func (f fakeSource) LastAssetPrice(ctx context.Context, assetID string) (decimal.Decimal, time.Time, bool, error) {
	if assetID != "XAU" {
		return decimal.Zero, time.Time{}, false, nil
	}
	return f.price, f.at, true, nil
}

func TestRepoProviderAge(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	p := RepoProvider{
		Source: fakeSource{price: decimal.NewFromInt(2300), at: now.Add(-10 * time.Minute)},
		MaxAge: 5 * time.Minute,
		Now:    func() time.Time { return now },
	}
	q, err := p.LastPrice(context.Background(), "XAU")
	if err != nil || !q.Stale {
		t.Fatalf("quote=%+v err=%v want stale", q, err)
	}
	if _, err := p.LastPrice(context.Background(), "EURUSD"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err=%v want ErrUnavailable", err)
	}
}

type slowProvider struct{}

func (slowProvider) LastPrice(ctx context.Context, assetID string) (Quote, error) {
	<-ctx.Done()
	return Quote{}, ctx.Err()
}

func TestResolverTimeoutOmitsAsset(t *testing.T) {
	r := Resolver{Provider: slowProvider{}, Timeout: 10 * time.Millisecond}
	marks := r.Resolve(context.Background(), []string{"EURUSD"})
	if len(marks) != 0 {
		t.Fatalf("marks=%v want none", marks)
	}

	r = Resolver{Provider: NewStatic(map[string]decimal.Decimal{"EURUSD": decimal.RequireFromString("1.2")})}
	marks = r.Resolve(context.Background(), []string{"EURUSD", "GBPUSD"})
	if len(marks) != 1 || marks["EURUSD"].Stale {
		t.Fatalf("marks=%v", marks)
	}
}
