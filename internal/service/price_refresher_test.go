package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"propdesk/internal/domain"
	"propdesk/internal/marketdata"
)

func TestPriceRefresherPersistsFreshQuotes(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, domain.StateEvaluationActive, nil)
	f.store.PutTrade(a.ID, openTrade("BTC-USD", "1", "100"))
	f.store.PutTrade(a.ID, openTrade("DOGE-USD", "10", "1"))
	f.prices.Set("BTC-USD", decimal.RequireFromString("101.25"))

	r := &PriceRefresher{Repo: f.store, Provider: f.prices, Persist: true}
	rep, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce err=%v", err)
	}
	if rep.Assets != 2 || rep.Fresh != 1 || rep.Failed != 1 {
		t.Fatalf("report=%+v", rep)
	}
	price, _, ok, err := f.store.LastAssetPrice(context.Background(), "BTC-USD")
	if err != nil || !ok {
		t.Fatalf("LastAssetPrice ok=%v err=%v", ok, err)
	}
	if !price.Equal(decimal.RequireFromString("101.25")) {
		t.Fatalf("price=%s want 101.25", price)
	}
	if _, _, ok, _ := f.store.LastAssetPrice(context.Background(), "DOGE-USD"); ok {
		t.Fatalf("DOGE-USD should not be persisted")
	}
}

func TestPriceRefresherSkipsWithoutProvider(t *testing.T) {
	f := newFixture(t)
	var provider marketdata.Provider
	r := &PriceRefresher{Repo: f.store, Provider: provider}
	rep, err := r.RunOnce(context.Background())
	if err != nil || !rep.Skipped {
		t.Fatalf("report=%+v err=%v want skipped", rep, err)
	}
}
