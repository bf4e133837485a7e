package rules

import (
	"reflect"
	"testing"

	"propdesk/internal/balance"
	"propdesk/internal/domain"
	"propdesk/internal/money"
)

func plan() domain.Plan {
	p := domain.Plan{
		ID:              3,
		Name:            "$50K Challenge",
		StartingBalance: money.MustParse("50000.00"),
		MaxDailyLoss:    money.MustParse("2500.00"),
		MaxTotalLoss:    money.MustParse("10000.00"),
		ProfitTarget:    money.MustParse("5000.00"),
	}
	p.ApplyDefaults()
	return p
}

func TestEvaluateDailyLoss(t *testing.T) {
	m := balance.Metrics{
		TradingDay:     "2026-03-02",
		CurrentBalance: money.MustParse("47400.00"),
		DailyLoss:      money.MustParse("2600.00"),
	}
	got := Evaluate(m, ThresholdsFromPlan(plan()))
	if len(got) != 1 {
		t.Fatalf("violations=%d want=1", len(got))
	}
	v := got[0]
	if v.Type != domain.ViolationDailyLoss || v.Severity != domain.SeverityTerminal {
		t.Fatalf("violation=%+v", v)
	}
	if v.Threshold != money.MustParse("2500.00") || v.Actual != money.MustParse("2600.00") {
		t.Fatalf("threshold=%s actual=%s want=2500.00/2600.00", v.Threshold, v.Actual)
	}
	if v.TradingDay != "2026-03-02" {
		t.Fatalf("day=%s", v.TradingDay)
	}
}

func TestEvaluateOrderTotalLossFirst(t *testing.T) {
	m := balance.Metrics{
		CurrentBalance: money.MustParse("39500.00"),
		TotalLoss:      money.MustParse("10500.00"),
		DailyLoss:      money.MustParse("3000.00"),
		Positions: []balance.Position{
			{TradeID: 9, AssetID: "X", Notional: money.MustParse("50000.00")},
		},
	}
	got := Evaluate(m, ThresholdsFromPlan(plan()))
	want := []domain.ViolationType{domain.ViolationTotalLoss, domain.ViolationDailyLoss, domain.ViolationPositionSize}
	if len(got) != len(want) {
		t.Fatalf("violations=%v", got)
	}
	for i := range want {
		if got[i].Type != want[i] {
			t.Fatalf("order[%d]=%s want=%s", i, got[i].Type, want[i])
		}
	}
	if !HasTerminal(got) {
		t.Fatalf("expected terminal")
	}
	if got[2].Severity != domain.SeverityWarning || got[2].TradeID != 9 {
		t.Fatalf("position violation=%+v", got[2])
	}
}

func TestEvaluateAtThresholdIsNotViolation(t *testing.T) {
	m := balance.Metrics{
		CurrentBalance: money.MustParse("40000.00"),
		TotalLoss:      money.MustParse("10000.00"),
		DailyLoss:      money.MustParse("2500.00"),
		Positions: []balance.Position{
			{TradeID: 1, Notional: money.MustParse("40000.00")},
		},
	}
	if got := Evaluate(m, ThresholdsFromPlan(plan())); len(got) != 0 {
		t.Fatalf("violations=%v want none", got)
	}
}

func TestEvaluatePositionSizePicksLargest(t *testing.T) {
	p := plan()
	p.MaxPositionSize = 5000
	m := balance.Metrics{
		CurrentBalance: money.MustParse("50000.00"),
		Positions: []balance.Position{
			{TradeID: 4, Notional: money.MustParse("30000.00")},
			{TradeID: 2, Notional: money.MustParse("30000.00")},
			{TradeID: 1, Notional: money.MustParse("26000.00")},
			{TradeID: 3, Notional: money.MustParse("10000.00")},
		},
	}
	got := Evaluate(m, ThresholdsFromPlan(p))
	if len(got) != 1 {
		t.Fatalf("violations=%v", got)
	}
	if got[0].TradeID != 2 || got[0].Threshold != money.MustParse("25000.00") {
		t.Fatalf("candidate=%+v", got[0])
	}
	if HasTerminal(got) {
		t.Fatalf("position size must be a warning")
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	m := balance.Metrics{
		TradingDay:     "2026-03-02",
		CurrentBalance: money.MustParse("39000.00"),
		TotalLoss:      money.MustParse("11000.00"),
		DailyLoss:      money.MustParse("2600.00"),
	}
	th := ThresholdsFromPlan(plan())
	a := Evaluate(m, th)
	b := Evaluate(m, th)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("non-deterministic output: %v vs %v", a, b)
	}
}

func TestTargetReached(t *testing.T) {
	th := ThresholdsFromPlan(plan())
	m := balance.Metrics{
		ProfitEarned: money.MustParse("5000.00"),
		TradingDays:  []domain.Day{"2026-03-02", "2026-03-03", "2026-03-04", "2026-03-05", "2026-03-06"},
	}
	if !TargetReached(m, th) {
		t.Fatalf("expected target reached")
	}
	m.TradingDays = m.TradingDays[:4]
	if TargetReached(m, th) {
		t.Fatalf("4 days must not reach target")
	}
}

func TestTargetReachedWithoutTarget(t *testing.T) {
	p := plan()
	p.ProfitTarget = 0
	m := balance.Metrics{
		ProfitEarned: money.MustParse("750.00"),
		TradingDays:  []domain.Day{"2026-03-02", "2026-03-03", "2026-03-04", "2026-03-05", "2026-03-06"},
	}
	if TargetReached(m, ThresholdsFromPlan(p)) {
		t.Fatalf("plan without a profit target must not pass")
	}
}
