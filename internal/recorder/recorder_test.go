package recorder

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"propdesk/internal/domain"
	"propdesk/internal/money"
	"propdesk/internal/repository"
	"propdesk/internal/repository/memory"
	"propdesk/internal/rules"
)

var fixedNow = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

func newRecorder() *Recorder {
	n := 0
	return &Recorder{
		Now: func() time.Time { return fixedNow },
		Seq: func() string {
			n++
			return string(rune('a' + n))
		},
	}
}

func dailyCandidate(day domain.Day) rules.Candidate {
	return rules.Candidate{
		Type:       domain.ViolationDailyLoss,
		Severity:   domain.SeverityTerminal,
		Threshold:  money.MustParse("2500.00"),
		Actual:     money.MustParse("2600.00"),
		TradingDay: day,
	}
}

func TestRecordViolationsDeduplicatesPerDay(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	r := newRecorder()

	first, err := r.RecordViolations(ctx, store, 1, []rules.Candidate{dailyCandidate("2026-03-02")})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(first.Recorded) != 1 || len(first.Existing) != 0 {
		t.Fatalf("first=%+v", first)
	}
	second, err := r.RecordViolations(ctx, store, 1, []rules.Candidate{dailyCandidate("2026-03-02")})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(second.Recorded) != 0 || len(second.Existing) != 1 {
		t.Fatalf("second=%+v", second)
	}
	items, _ := store.ListViolations(ctx, repository.ListViolationsParams{AccountID: 1})
	if len(items) != 1 {
		t.Fatalf("violations=%d want=1", len(items))
	}
	if items[0].Threshold != money.MustParse("2500.00") || items[0].Actual != money.MustParse("2600.00") {
		t.Fatalf("violation=%+v", items[0])
	}
	acts, _ := store.ListActivities(ctx, repository.ListActivitiesParams{AccountID: 1})
	if len(acts) != 1 || acts[0].Type != domain.ActivityRuleViolation {
		t.Fatalf("activities=%+v", acts)
	}
}

func TestResolveStaleDailyLoss(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	r := newRecorder()
	if _, err := r.RecordViolations(ctx, store, 1, []rules.Candidate{dailyCandidate("2026-03-01")}); err != nil {
		t.Fatalf("err=%v", err)
	}
	total := rules.Candidate{Type: domain.ViolationTotalLoss, Severity: domain.SeverityTerminal, TradingDay: "2026-03-01"}
	if _, err := r.RecordViolations(ctx, store, 1, []rules.Candidate{total}); err != nil {
		t.Fatalf("err=%v", err)
	}

	n, err := r.ResolveStaleDailyLoss(ctx, store, 1, "2026-03-02")
	if err != nil || n != 1 {
		t.Fatalf("resolved=%d err=%v want=1", n, err)
	}
	open, _ := store.CountUnresolvedViolations(ctx, 1, domain.TerminalViolationTypes())
	if open != 1 {
		t.Fatalf("unresolved=%d want=1 (total loss stays)", open)
	}
	n, _ = r.ResolveStaleDailyLoss(ctx, store, 1, "2026-03-02")
	if n != 0 {
		t.Fatalf("second resolve=%d want=0", n)
	}
}

func TestObserveTradesLogsOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	r := newRecorder()
	closedAt := fixedNow.Add(-time.Hour)
	trades := []domain.Trade{
		{ID: 1, AssetID: "BTC", Direction: domain.Long, Quantity: decimal.NewFromInt(1), EntryPrice: decimal.NewFromInt(100), Status: domain.TradeOpen},
		{ID: 2, AssetID: "ETH", Direction: domain.Long, Quantity: decimal.NewFromInt(1), EntryPrice: decimal.NewFromInt(100), Status: domain.TradeClosed, ClosedAt: &closedAt},
		{ID: 3, AssetID: "SOL", Status: domain.TradeCancelled},
	}
	n, err := r.ObserveTrades(ctx, store, 1, trades)
	if err != nil || n != 3 {
		t.Fatalf("logged=%d err=%v want=3", n, err)
	}
	n, err = r.ObserveTrades(ctx, store, 1, trades)
	if err != nil || n != 0 {
		t.Fatalf("second pass logged=%d err=%v want=0", n, err)
	}
	closedType := domain.ActivityTradeClosed
	acts, _ := store.ListActivities(ctx, repository.ListActivitiesParams{AccountID: 1, Type: &closedType})
	if len(acts) != 1 {
		t.Fatalf("trade closed entries=%d want=1", len(acts))
	}
}
