// Package marketdata resolves last-trade prices for open positions.
package marketdata

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"propdesk/internal/balance"
	"propdesk/internal/metrics"
)

// ErrUnavailable means no price could be produced for the asset.
var ErrUnavailable = errors.New("market data unavailable")

type Quote struct {
	AssetID string
	Price   decimal.Decimal
	At      time.Time
	Stale   bool
}

type Provider interface {
	LastPrice(ctx context.Context, assetID string) (Quote, error)
}

// Static serves fixed prices. Used for the "static" provider and in tests.
type Static struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

func NewStatic(prices map[string]decimal.Decimal) *Static {
	s := &Static{prices: map[string]decimal.Decimal{}}
	for k, v := range prices {
		s.prices[k] = v
	}
	return s
}

func (s *Static) Set(assetID string, price decimal.Decimal) {
	s.mu.Lock()
	s.prices[assetID] = price
	s.mu.Unlock()
}

func (s *Static) Remove(assetID string) {
	s.mu.Lock()
	delete(s.prices, assetID)
	s.mu.Unlock()
}

func (s *Static) LastPrice(ctx context.Context, assetID string) (Quote, error) {
	s.mu.RLock()
	p, ok := s.prices[assetID]
	s.mu.RUnlock()
	if !ok {
		return Quote{}, ErrUnavailable
	}
	return Quote{AssetID: assetID, Price: p, At: time.Now().UTC()}, nil
}

// Resolver looks up marks for a set of assets under a per-call timeout.
// Assets that fail are left out of the result so the tracker falls back to
// the trade's last known price.
type Resolver struct {
	Provider Provider
	Timeout  time.Duration
	Logger   *zap.Logger
}

func (r Resolver) Resolve(ctx context.Context, assets []string) map[string]balance.Mark {
	marks := make(map[string]balance.Mark, len(assets))
	if r.Provider == nil || len(assets) == 0 {
		return marks
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for _, asset := range assets {
		q, err := r.Provider.LastPrice(callCtx, asset)
		if err != nil || !q.Price.IsPositive() {
			metrics.IncPriceLookup(false)
			if r.Logger != nil {
				r.Logger.Warn("market data unavailable, using last known price",
					zap.String("asset_id", asset),
					zap.Error(err),
				)
			}
			continue
		}
		metrics.IncPriceLookup(!q.Stale)
		marks[asset] = balance.Mark{Price: q.Price, Stale: q.Stale}
	}
	return marks
}
