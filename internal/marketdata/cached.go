package marketdata

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"propdesk/internal/cache"
)

const cacheKeyPrefix = "propdesk:price:"

type cachedQuote struct {
	Price decimal.Decimal `json:"price"`
	At    time.Time       `json:"at"`
}

// Cached remembers the last good quote per asset. When the upstream fails
// it serves the remembered quote flagged stale.
type Cached struct {
	Upstream Provider
	Store    cache.Store
	TTL      time.Duration
	Logger   *zap.Logger
}

func (c *Cached) LastPrice(ctx context.Context, assetID string) (Quote, error) {
	q, err := c.Upstream.LastPrice(ctx, assetID)
	if err == nil && q.Price.IsPositive() {
		c.remember(ctx, assetID, q)
		return q, nil
	}
	last, ok := c.lookup(ctx, assetID)
	if !ok {
		if err == nil {
			err = ErrUnavailable
		}
		return Quote{}, err
	}
	if c.Logger != nil {
		c.Logger.Warn("serving cached price",
			zap.String("asset_id", assetID),
			zap.Time("priced_at", last.At),
			zap.Error(err),
		)
	}
	last.Stale = true
	return last, nil
}

func (c *Cached) remember(ctx context.Context, assetID string, q Quote) {
	if c.Store == nil {
		return
	}
	b, err := json.Marshal(cachedQuote{Price: q.Price, At: q.At})
	if err != nil {
		return
	}
	if err := c.Store.Set(ctx, cacheKeyPrefix+assetID, b, c.TTL); err != nil && c.Logger != nil {
		c.Logger.Debug("price cache write failed", zap.String("asset_id", assetID), zap.Error(err))
	}
}

func (c *Cached) lookup(ctx context.Context, assetID string) (Quote, bool) {
	if c.Store == nil {
		return Quote{}, false
	}
	b, ok, err := c.Store.Get(ctx, cacheKeyPrefix+assetID)
	if err != nil || !ok {
		return Quote{}, false
	}
	var cq cachedQuote
	if err := json.Unmarshal(b, &cq); err != nil || !cq.Price.IsPositive() {
		return Quote{}, false
	}
	return Quote{AssetID: assetID, Price: cq.Price, At: cq.At}, true
}
