package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"propdesk/internal/domain"
	"propdesk/internal/money"
	"propdesk/internal/repository"
)

func fundedWithProfit(a *domain.Account) {
	a.CurrentBalance = money.MustParse("102000.00")
	a.HighWaterMark = money.MustParse("102000.00")
	a.ProfitEarned = money.MustParse("2000.00")
}

func TestPayoutLifecycle(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, domain.StateFundedActive, fundedWithProfit)
	ctx := context.Background()

	req, err := f.svc.RequestPayout(ctx, a.ID, "", map[string]any{"iban": "DE00"})
	if err != nil {
		t.Fatalf("RequestPayout err=%v", err)
	}
	if req.Amount != money.MustParse("1600.00") {
		t.Fatalf("amount=%s want 1600.00", req.Amount)
	}
	if req.Status != domain.PayoutPending || req.Method != domain.DefaultPayoutMethod || req.Reference == "" {
		t.Fatalf("request=%+v", req)
	}

	if _, err := f.svc.RequestPayout(ctx, a.ID, "", nil); !errors.Is(err, domain.ErrIneligiblePayout) {
		t.Fatalf("second request err=%v want ErrIneligiblePayout", err)
	}

	approved, err := f.svc.ApprovePayout(ctx, req.ID)
	if err != nil {
		t.Fatalf("ApprovePayout err=%v", err)
	}
	if approved.Status != domain.PayoutApproved || approved.ApprovedAt == nil {
		t.Fatalf("approved=%+v", approved)
	}

	done, err := f.svc.CompletePayout(ctx, req.ID)
	if err != nil {
		t.Fatalf("CompletePayout err=%v", err)
	}
	if done.Status != domain.PayoutCompleted {
		t.Fatalf("status=%s want COMPLETED", done.Status)
	}
	stored, _ := f.store.GetAccount(ctx, a.ID)
	if stored.ProfitEarned != 0 || stored.PayoutBaseline != money.MustParse("102000.00") {
		t.Fatalf("profit=%s baseline=%s", stored.ProfitEarned, stored.PayoutBaseline)
	}
	if stored.TotalPaidOut != money.MustParse("1600.00") {
		t.Fatalf("paid out=%s want 1600.00", stored.TotalPaidOut)
	}

	if _, err := f.svc.RequestPayout(ctx, a.ID, "", nil); !errors.Is(err, domain.ErrIneligiblePayout) {
		t.Fatalf("request without profit err=%v want ErrIneligiblePayout", err)
	}
	if _, err := f.svc.CompletePayout(ctx, req.ID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("double complete err=%v want ErrValidation", err)
	}

	for _, typ := range []domain.ActivityType{domain.ActivityPayoutRequested, domain.ActivityPayoutApproved, domain.ActivityPayoutCompleted} {
		if n := len(activitiesOf(t, f.store, a.ID, typ)); n != 1 {
			t.Fatalf("%s entries=%d want 1", typ, n)
		}
	}
}

func TestPayoutRejectedOnEvaluationAccount(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, domain.StateEvaluationActive, fundedWithProfit)
	if _, err := f.svc.RequestPayout(context.Background(), a.ID, "", nil); !errors.Is(err, domain.ErrIneligiblePayout) {
		t.Fatalf("err=%v want ErrIneligiblePayout", err)
	}
	items, _ := f.store.ListPayouts(context.Background(), repository.ListPayoutsParams{AccountID: a.ID})
	if len(items) != 0 {
		t.Fatalf("payouts=%d want 0", len(items))
	}
}

func TestPayoutOnTerminalAccount(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, domain.StateFailed, fundedWithProfit)
	if _, err := f.svc.RequestPayout(context.Background(), a.ID, "", nil); !errors.Is(err, domain.ErrTerminalAccount) {
		t.Fatalf("err=%v want ErrTerminalAccount", err)
	}
}

func TestCloseAccountWaitsForPayout(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, domain.StateFundedActive, fundedWithProfit)
	ctx := context.Background()

	req, err := f.svc.RequestPayout(ctx, a.ID, "crypto", nil)
	if err != nil {
		t.Fatalf("RequestPayout err=%v", err)
	}
	if req.Method != "CRYPTO" {
		t.Fatalf("method=%s want CRYPTO", req.Method)
	}
	if _, err := f.svc.CloseAccount(ctx, a.ID, "withdrawal"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("close err=%v want ErrValidation", err)
	}

	rejected, err := f.svc.RejectPayout(ctx, req.ID, "wallet mismatch")
	if err != nil {
		t.Fatalf("RejectPayout err=%v", err)
	}
	if rejected.Status != domain.PayoutRejected || rejected.Notes != "wallet mismatch" {
		t.Fatalf("rejected=%+v", rejected)
	}
	stored, _ := f.store.GetAccount(ctx, a.ID)
	if stored.ProfitEarned != money.MustParse("2000.00") {
		t.Fatalf("profit=%s want untouched 2000.00", stored.ProfitEarned)
	}

	closed, err := f.svc.CloseAccount(ctx, a.ID, "withdrawal")
	if err != nil {
		t.Fatalf("CloseAccount err=%v", err)
	}
	if closed.State != domain.StateClosed || closed.ClosureReason != "withdrawal" {
		t.Fatalf("state=%s reason=%q", closed.State, closed.ClosureReason)
	}
	if _, err := f.svc.CloseAccount(ctx, a.ID, "again"); !errors.Is(err, domain.ErrTerminalAccount) {
		t.Fatalf("second close err=%v want ErrTerminalAccount", err)
	}
}

func TestRejectPayoutAfterFailure(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, domain.StateFundedActive, fundedWithProfit)
	ctx := context.Background()
	req, err := f.svc.RequestPayout(ctx, a.ID, "", nil)
	if err != nil {
		t.Fatalf("RequestPayout err=%v", err)
	}

	if _, err := f.svc.mutate(ctx, "test_fail", a.ID, false, func(_ repository.Tx, acc *domain.Account, _ time.Time) error {
		acc.State = domain.StateFailed
		return nil
	}); err != nil {
		t.Fatalf("mutate err=%v", err)
	}

	if _, err := f.svc.ApprovePayout(ctx, req.ID); !errors.Is(err, domain.ErrTerminalAccount) {
		t.Fatalf("approve err=%v want ErrTerminalAccount", err)
	}
	if _, err := f.svc.RejectPayout(ctx, req.ID, "account failed"); err != nil {
		t.Fatalf("RejectPayout err=%v", err)
	}
}

func TestCloseRequiresFunded(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, domain.StateEvaluationActive, nil)
	if _, err := f.svc.CloseAccount(context.Background(), a.ID, ""); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("err=%v want ErrInvalidTransition", err)
	}
}
