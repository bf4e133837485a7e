package marketdata

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PriceSource is the slice of the repository that stores last-trade prices.
type PriceSource interface {
	LastAssetPrice(ctx context.Context, assetID string) (decimal.Decimal, time.Time, bool, error)
}

// RepoProvider serves prices written to the asset_prices table by the trade
// ledger. Prices older than MaxAge are returned flagged stale.
type RepoProvider struct {
	Source PriceSource
	MaxAge time.Duration
	Now    func() time.Time
}

func (p RepoProvider) LastPrice(ctx context.Context, assetID string) (Quote, error) {
	if p.Source == nil {
		return Quote{}, ErrUnavailable
	}
	price, at, ok, err := p.Source.LastAssetPrice(ctx, assetID)
	if err != nil {
		return Quote{}, err
	}
	if !ok {
		return Quote{}, ErrUnavailable
	}
	q := Quote{AssetID: assetID, Price: price, At: at}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	if p.MaxAge > 0 && now().Sub(at) > p.MaxAge {
		q.Stale = true
	}
	return q, nil
}
