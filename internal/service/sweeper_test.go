package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"propdesk/internal/domain"
)

func TestSweeperEvaluatesTradingAccounts(t *testing.T) {
	f := newFixture(t)
	passing := f.account(t, domain.StateEvaluationActive, nil)
	for day := 2; day <= 6; day++ {
		f.store.PutTrade(passing.ID, closedTrade(day, "1000.00"))
	}
	failing := f.account(t, domain.StateFundedActive, nil)
	f.store.PutTrade(failing.ID, openTrade("ETH-USD", "100", "200"))
	f.prices.Set("ETH-USD", decimal.RequireFromString("95"))
	quiet := f.account(t, domain.StateEvaluationActive, nil)
	f.account(t, domain.StatePending, nil)
	f.account(t, domain.StateClosed, nil)

	sw := &Sweeper{Accounts: f.svc, Repo: f.store, Workers: 2}
	rep, err := sw.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce err=%v", err)
	}
	if rep.Accounts != 3 || rep.Evaluated != 3 || rep.Failed != 0 {
		t.Fatalf("report=%+v", rep)
	}
	if rep.Transitions != 2 {
		t.Fatalf("transitions=%d want 2", rep.Transitions)
	}

	got, _ := f.store.GetAccount(context.Background(), passing.ID)
	if got.State != domain.StateEvaluationPassed {
		t.Fatalf("passing state=%s", got.State)
	}
	got, _ = f.store.GetAccount(context.Background(), failing.ID)
	if got.State != domain.StateFailed {
		t.Fatalf("failing state=%s", got.State)
	}
	got, _ = f.store.GetAccount(context.Background(), quiet.ID)
	if got.LastEvaluatedAt == nil {
		t.Fatalf("quiet account was not evaluated")
	}
}

func TestSweeperHonoursSwitch(t *testing.T) {
	f := newFixture(t)
	f.account(t, domain.StateEvaluationActive, nil)
	settings := &SystemSettingsService{Repo: f.store}
	if err := settings.SetEnabled(context.Background(), FeatureSweep, false); err != nil {
		t.Fatalf("SetEnabled err=%v", err)
	}
	sw := &Sweeper{Accounts: f.svc, Repo: f.store, Settings: settings}
	rep, err := sw.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce err=%v", err)
	}
	if !rep.Skipped || rep.Evaluated != 0 {
		t.Fatalf("report=%+v want skipped", rep)
	}
}
