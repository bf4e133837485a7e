package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"propdesk/internal/domain"
	"propdesk/internal/money"
	"propdesk/internal/rules"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func testPlan() domain.Plan {
	p := domain.Plan{
		ID:              1,
		Name:            "100k",
		StartingBalance: money.MustParse("100000.00"),
		MaxDailyLoss:    money.MustParse("5000.00"),
		MaxTotalLoss:    money.MustParse("10000.00"),
		ProfitTarget:    money.MustParse("10000.00"),
		MaxPositionSize: 2000,
	}
	p.ApplyDefaults()
	return p
}

func activeAccount(p domain.Plan) domain.Account {
	a := domain.NewAccount("PA00000001", p, testNow)
	a.ID = 7
	a.State = domain.StateEvaluationActive
	return a
}

func TestCheckPositionSize(t *testing.T) {
	p := testPlan()
	a := activeAccount(p)
	m := &Manager{}

	res := m.Check(a, rules.ThresholdsFromPlan(p), TradeIntent{
		AssetID:   "XAU",
		Direction: domain.Long,
		Quantity:  decimal.NewFromInt(10),
		Price:     decimal.RequireFromString("2000.00"),
	})
	if !res.Allowed {
		t.Fatalf("errors=%v want allowed", res.Errors)
	}
	if res.PositionLimit != money.MustParse("20000.00") {
		t.Fatalf("limit=%s want=20000.00", res.PositionLimit)
	}

	res = m.Check(a, rules.ThresholdsFromPlan(p), TradeIntent{
		AssetID:   "XAU",
		Direction: domain.Long,
		Quantity:  decimal.NewFromInt(11),
		Price:     decimal.RequireFromString("2000.00"),
	})
	if res.Allowed || len(res.Errors) != 1 {
		t.Fatalf("allowed=%v errors=%v want one position error", res.Allowed, res.Errors)
	}
}

func TestCheckLossLimits(t *testing.T) {
	p := testPlan()
	a := activeAccount(p)
	a.DailyLoss = money.MustParse("5000.00")
	a.TotalLoss = money.MustParse("8500.00")

	res := (&Manager{}).Check(a, rules.ThresholdsFromPlan(p), TradeIntent{
		AssetID:   "EURUSD",
		Direction: domain.Short,
		Quantity:  decimal.NewFromInt(1000),
		Price:     decimal.RequireFromString("1.1"),
	})
	if res.Allowed {
		t.Fatalf("expected daily loss rejection")
	}
	if len(res.Warnings) != 1 || res.Warnings[0] != "total_loss_near_limit" {
		t.Fatalf("warnings=%v", res.Warnings)
	}
}

func TestCheckRejectsNonTradingState(t *testing.T) {
	p := testPlan()
	a := activeAccount(p)
	a.State = domain.StateEvaluationPassed
	res := (&Manager{}).Check(a, rules.ThresholdsFromPlan(p), TradeIntent{
		AssetID: "XAU", Direction: domain.Long, Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(1),
	})
	if res.Allowed || len(res.Errors) != 1 {
		t.Fatalf("res=%+v want single status error", res)
	}
}

func TestIntentValidate(t *testing.T) {
	bad := TradeIntent{AssetID: "XAU", Direction: "UP", Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(1)}
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}
