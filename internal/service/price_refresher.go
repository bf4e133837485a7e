package service

import (
	"context"

	"go.uber.org/zap"

	"propdesk/internal/marketdata"
	"propdesk/internal/repository"
)

// PriceRefresher pulls quotes for every asset with an open position. That
// warms the provider cache and, with Persist set, records fresh quotes in
// the price book as the last known price.
type PriceRefresher struct {
	Repo     repository.Repository
	Provider marketdata.Provider
	Persist  bool
	Source   string
	Settings *SystemSettingsService
	Logger   *zap.Logger
}

type RefreshReport struct {
	Assets  int
	Fresh   int
	Stale   int
	Failed  int
	Skipped bool
}

func (r *PriceRefresher) RunOnce(ctx context.Context) (RefreshReport, error) {
	var rep RefreshReport
	if r.Provider == nil || !r.Settings.IsEnabled(ctx, FeaturePriceRefresh, true) {
		rep.Skipped = true
		return rep, nil
	}
	assets, err := r.Repo.ListOpenAssets(ctx)
	if err != nil {
		return rep, err
	}
	rep.Assets = len(assets)
	source := r.Source
	if source == "" {
		source = "refresh"
	}
	for _, asset := range assets {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		q, err := r.Provider.LastPrice(ctx, asset)
		if err != nil || !q.Price.IsPositive() {
			rep.Failed++
			continue
		}
		if q.Stale {
			rep.Stale++
			continue
		}
		rep.Fresh++
		if !r.Persist {
			continue
		}
		if err := r.Repo.UpsertAssetPrice(ctx, asset, q.Price, q.At, source); err != nil {
			if r.Logger != nil {
				r.Logger.Warn("price refresh: persist failed", zap.String("asset_id", asset), zap.Error(err))
			}
		}
	}
	if r.Logger != nil && rep.Failed > 0 {
		r.Logger.Warn("price refresh incomplete",
			zap.Int("assets", rep.Assets),
			zap.Int("failed", rep.Failed),
			zap.Int("stale", rep.Stale),
		)
	}
	return rep, nil
}
