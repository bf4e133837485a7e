package payout

import (
	"errors"
	"testing"
	"time"

	"propdesk/internal/domain"
	"propdesk/internal/money"
)

var now = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func fundedAccount() domain.Account {
	return domain.Account{
		ID:              5,
		State:           domain.StateFundedActive,
		StartingBalance: money.MustParse("100000.00"),
		CurrentBalance:  money.MustParse("102000.00"),
		PayoutBaseline:  money.MustParse("100000.00"),
		ProfitEarned:    money.MustParse("2000.00"),
	}
}

func TestAmount(t *testing.T) {
	if got := Amount(money.MustParse("2000.00"), 8000); got != money.MustParse("1600.00") {
		t.Fatalf("amount=%s want=1600.00", got)
	}
	if got := Amount(money.MustParse("0.05"), 5000); got != money.MustParse("0.03") {
		t.Fatalf("amount=%s want=0.03", got)
	}
	if got := Amount(money.MustParse("-5.00"), 8000); got != 0 {
		t.Fatalf("amount=%s want=0", got)
	}
}

func TestCheckEligibility(t *testing.T) {
	a := fundedAccount()
	if err := CheckEligibility(a, nil); err != nil {
		t.Fatalf("err=%v", err)
	}

	a.State = domain.StateEvaluationActive
	if err := CheckEligibility(a, nil); !errors.Is(err, domain.ErrIneligiblePayout) {
		t.Fatalf("err=%v want ErrIneligiblePayout", err)
	}

	a = fundedAccount()
	a.ProfitEarned = 0
	if err := CheckEligibility(a, nil); !errors.Is(err, domain.ErrIneligiblePayout) {
		t.Fatalf("err=%v want ErrIneligiblePayout", err)
	}

	a = fundedAccount()
	pending := &domain.PayoutRequest{ID: 9, Status: domain.PayoutPending}
	if err := CheckEligibility(a, pending); !errors.Is(err, domain.ErrIneligiblePayout) {
		t.Fatalf("err=%v want ErrIneligiblePayout", err)
	}

	a.State = domain.StateClosed
	if err := CheckEligibility(a, nil); !errors.Is(err, domain.ErrTerminalAccount) {
		t.Fatalf("err=%v want ErrTerminalAccount", err)
	}
}

func TestNewRequestAndSettle(t *testing.T) {
	a := fundedAccount()
	plan := domain.Plan{ProfitSplit: 8000}
	req := NewRequest(a, plan, "", nil, now)
	if req.Amount != money.MustParse("1600.00") || req.Method != domain.DefaultPayoutMethod || req.Status != domain.PayoutPending {
		t.Fatalf("request=%+v", req)
	}
	if err := Approve(&req, now); err != nil {
		t.Fatalf("approve err=%v", err)
	}
	if err := CanComplete(req); err != nil {
		t.Fatalf("complete err=%v", err)
	}
	Settle(&a, &req, now)
	if a.PayoutBaseline != a.CurrentBalance || a.ProfitEarned != 0 {
		t.Fatalf("account not reset: %+v", a)
	}
	if a.TotalPaidOut != money.MustParse("1600.00") || req.Status != domain.PayoutCompleted || req.CompletedAt == nil {
		t.Fatalf("settle mismatch: %+v %+v", a, req)
	}
	if err := Reject(&req, "late", now); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("reject completed err=%v", err)
	}
}

func TestReject(t *testing.T) {
	req := domain.PayoutRequest{ID: 1, Status: domain.PayoutPending}
	if err := Reject(&req, " wrong bank details ", now); err != nil {
		t.Fatalf("err=%v", err)
	}
	if req.Status != domain.PayoutRejected || req.Notes != "wrong bank details" {
		t.Fatalf("request=%+v", req)
	}
	if err := Approve(&req, now); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("approve rejected err=%v", err)
	}
}
