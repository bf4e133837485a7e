package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"propdesk/internal/money"
)

func validPlan() Plan {
	p := Plan{
		ID:              1,
		Name:            "$100K Challenge",
		StartingBalance: money.MustParse("100000.00"),
		Price:           money.MustParse("149.00"),
		MaxDailyLoss:    money.MustParse("5000.00"),
		MaxTotalLoss:    money.MustParse("10000.00"),
		ProfitTarget:    money.MustParse("10000.00"),
	}
	p.ApplyDefaults()
	return p
}

func TestPlanDefaultsAndValidate(t *testing.T) {
	p := validPlan()
	if p.MinTradingDays != 5 || p.ProfitSplit != 8000 || p.MaxPositionSize != 10000 || p.Type != PlanEvaluation {
		t.Fatalf("defaults not applied: %+v", p)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("validate err=%v", err)
	}

	bad := p
	bad.MaxDailyLoss = money.MustParse("20000.00")
	err := bad.Validate()
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err=%v want ErrValidation", err)
	}

	bad = p
	bad.ProfitSplit = 10001
	if err := bad.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("err=%v want ErrValidation", err)
	}
}

func TestNewAccountStartsPending(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	a := NewAccount("PA00000001", validPlan(), now)
	if a.State != StatePending {
		t.Fatalf("state=%s want=PENDING", a.State)
	}
	if a.HighWaterMark != a.StartingBalance || a.PayoutBaseline != a.StartingBalance {
		t.Fatalf("balances not seeded: %+v", a)
	}
	if err := a.Validate(); err != nil {
		t.Fatalf("validate err=%v", err)
	}
}

func TestErrorWrapping(t *testing.T) {
	err := fmt.Errorf("evaluate: %w", TerminalAccount("evaluate_account", 7, StateFailed))
	if !errors.Is(err, ErrTerminalAccount) {
		t.Fatalf("errors.Is failed for %v", err)
	}
	var de *Error
	if !errors.As(err, &de) || de.AccountID != 7 {
		t.Fatalf("errors.As failed: %v", err)
	}
	if Retryable(err) {
		t.Fatalf("terminal error must not be retryable")
	}
	if !Retryable(ConcurrentModification("save", 7)) {
		t.Fatalf("concurrent modification must be retryable")
	}
}

func TestTradePnL(t *testing.T) {
	exit := decimal.RequireFromString("105.50")
	tr := Trade{
		Direction:  Short,
		Quantity:   decimal.RequireFromString("10"),
		EntryPrice: decimal.RequireFromString("100"),
		ExitPrice:  &exit,
		Commission: 150,
		Status:     TradeClosed,
	}
	if got := tr.Realized(); got != money.MustParse("-56.50") {
		t.Fatalf("realized=%s want=-56.50", got)
	}
	recorded := money.MustParse("12.00")
	tr.RealizedPnL = &recorded
	if got := tr.Realized(); got != recorded {
		t.Fatalf("realized=%s want=12.00", got)
	}
	if got := tr.Notional(decimal.RequireFromString("101")); got != money.MustParse("1010.00") {
		t.Fatalf("notional=%s want=1010.00", got)
	}
}

func TestMergeDays(t *testing.T) {
	got := MergeDays([]Day{"2026-03-03", "2026-03-01"}, []Day{"2026-03-01", "2026-03-02", ""})
	want := []Day{"2026-03-01", "2026-03-02", "2026-03-03"}
	if len(got) != len(want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got=%v want=%v", got, want)
		}
	}
}
