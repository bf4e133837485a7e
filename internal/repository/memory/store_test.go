package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"propdesk/internal/domain"
	"propdesk/internal/money"
	"propdesk/internal/repository"
)

func seedAccount(t *testing.T, s *Store) domain.Account {
	t.Helper()
	a := domain.Account{
		PlanID:          1,
		State:           domain.StateEvaluationActive,
		StartingBalance: money.MustParse("100000.00"),
		CurrentBalance:  money.MustParse("100000.00"),
		HighWaterMark:   money.MustParse("100000.00"),
	}
	if err := s.CreateAccount(context.Background(), &a); err != nil {
		t.Fatalf("CreateAccount err=%v", err)
	}
	return a
}

func TestInTxRollbackKeepsOutsideWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedAccount(t, s)

	started := make(chan struct{})
	written := make(chan struct{})
	done := make(chan error, 1)
	boom := errors.New("boom")
	go func() {
		done <- s.InTx(ctx, func(tx repository.Tx) error {
			close(started)
			<-written
			return boom
		})
	}()

	<-started
	other := seedAccount(t, s)
	if _, err := s.AppendActivity(ctx, &domain.Activity{AccountID: a.ID, Type: domain.ActivityNoteAdded, Description: "note"}); err != nil {
		t.Fatalf("AppendActivity err=%v", err)
	}
	close(written)
	if err := <-done; !errors.Is(err, boom) {
		t.Fatalf("InTx err=%v want=%v", err, boom)
	}

	got, _ := s.GetAccount(ctx, other.ID)
	if got == nil {
		t.Fatalf("account created outside the transaction was lost")
	}
	n, _ := s.CountAccounts(ctx, repository.ListAccountsParams{})
	if n != 2 {
		t.Fatalf("accounts=%d want=2", n)
	}
	notes, _ := s.ListActivities(ctx, repository.ListActivitiesParams{AccountID: a.ID})
	if len(notes) != 1 {
		t.Fatalf("activities=%d want=1", len(notes))
	}
}

func TestInTxRollbackUndoesOwnWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := seedAccount(t, s)
	old := domain.Violation{AccountID: a.ID, Type: domain.ViolationDailyLoss, TradingDay: "2026-03-01", CreatedAt: time.Now()}
	if err := s.InsertViolation(ctx, &old); err != nil {
		t.Fatalf("InsertViolation err=%v", err)
	}
	payout := domain.PayoutRequest{AccountID: a.ID, Amount: money.MustParse("100.00"), Status: domain.PayoutPending}
	if err := s.InsertPayout(ctx, &payout); err != nil {
		t.Fatalf("InsertPayout err=%v", err)
	}

	err := s.InTx(ctx, func(tx repository.Tx) error {
		cur, _ := tx.GetAccount(ctx, a.ID)
		cur.CurrentBalance = money.MustParse("90000.00")
		if err := tx.SaveAccount(ctx, cur, cur.Version); err != nil {
			return err
		}
		if _, err := tx.ResolveViolationsBefore(ctx, a.ID, domain.ViolationDailyLoss, "2026-03-02", time.Now()); err != nil {
			return err
		}
		if err := tx.InsertViolation(ctx, &domain.Violation{AccountID: a.ID, Type: domain.ViolationTotalLoss, TradingDay: "2026-03-02"}); err != nil {
			return err
		}
		if _, err := tx.AppendActivity(ctx, &domain.Activity{AccountID: a.ID, Type: domain.ActivityStatusChange}); err != nil {
			return err
		}
		p := payout
		p.Status = domain.PayoutRejected
		if err := tx.UpdatePayout(ctx, &p); err != nil {
			return err
		}
		return repository.ErrVersionConflict
	})
	if !errors.Is(err, repository.ErrVersionConflict) {
		t.Fatalf("InTx err=%v", err)
	}

	got, _ := s.GetAccount(ctx, a.ID)
	if got.CurrentBalance != money.MustParse("100000.00") || got.Version != a.Version {
		t.Fatalf("account=%s v%d want 100000.00 v%d", got.CurrentBalance, got.Version, a.Version)
	}
	if s.Saves != 0 {
		t.Fatalf("saves=%d want=0", s.Saves)
	}
	vs, _ := s.ListViolations(ctx, repository.ListViolationsParams{AccountID: a.ID})
	if len(vs) != 1 || vs[0].Resolved {
		t.Fatalf("violations=%+v want the original unresolved row", vs)
	}
	acts, _ := s.ListActivities(ctx, repository.ListActivitiesParams{AccountID: a.ID})
	if len(acts) != 0 {
		t.Fatalf("activities=%d want=0", len(acts))
	}
	p, _ := s.GetPayout(ctx, payout.ID)
	if p.Status != domain.PayoutPending {
		t.Fatalf("payout status=%s want=%s", p.Status, domain.PayoutPending)
	}
}
