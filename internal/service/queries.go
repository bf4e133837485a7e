package service

import (
	"context"
	"time"

	"propdesk/internal/domain"
	"propdesk/internal/money"
	"propdesk/internal/repository"
	"propdesk/internal/risk"
	"propdesk/internal/rules"
)

func (s *AccountService) GetAccount(ctx context.Context, id uint64) (*domain.Account, error) {
	a, err := s.Repo.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, domain.NotFound("get_account", "account", id)
	}
	return a, nil
}

func (s *AccountService) GetAccountByNumber(ctx context.Context, number string) (*domain.Account, error) {
	a, err := s.Repo.GetAccountByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, &domain.Error{Kind: domain.ErrNotFound, Op: "get_account", Reason: "account number " + number}
	}
	return a, nil
}

func (s *AccountService) ListAccounts(ctx context.Context, params repository.ListAccountsParams) ([]domain.Account, int64, error) {
	items, err := s.Repo.ListAccounts(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Repo.CountAccounts(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *AccountService) ListViolations(ctx context.Context, params repository.ListViolationsParams) ([]domain.Violation, error) {
	return s.Repo.ListViolations(ctx, params)
}

func (s *AccountService) ListActivities(ctx context.Context, params repository.ListActivitiesParams) ([]domain.Activity, error) {
	return s.Repo.ListActivities(ctx, params)
}

func (s *AccountService) ListPayouts(ctx context.Context, params repository.ListPayoutsParams) ([]domain.PayoutRequest, error) {
	return s.Repo.ListPayouts(ctx, params)
}

func (s *AccountService) GetPayout(ctx context.Context, id uint64) (*domain.PayoutRequest, error) {
	p, err := s.Repo.GetPayout(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.NotFound("get_payout", "payout", id)
	}
	return p, nil
}

type Statistics struct {
	AccountID      uint64
	TotalTrades    int
	OpenTrades     int
	ClosedTrades   int
	WinningTrades  int
	LosingTrades   int
	WinRate        money.BasisPoints
	RealizedPnL    money.Cents
	TradingDays    int
	DaysActive     int
	CurrentBalance money.Cents
	HighWaterMark  money.Cents
	ProfitEarned   money.Cents
	TotalPaidOut   money.Cents
}

// Statistics summarizes the trade ledger for an account. It reads the
// stored balances and does not re-evaluate.
func (s *AccountService) Statistics(ctx context.Context, id uint64) (*Statistics, error) {
	a, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	trades, err := s.Repo.ListTrades(ctx, id)
	if err != nil {
		return nil, err
	}
	st := &Statistics{
		AccountID:      a.ID,
		TradingDays:    len(a.TradingDays),
		CurrentBalance: a.CurrentBalance,
		HighWaterMark:  a.HighWaterMark,
		ProfitEarned:   a.ProfitEarned,
		TotalPaidOut:   a.TotalPaidOut,
	}
	for _, tr := range trades {
		switch tr.Status {
		case domain.TradeOpen:
			st.TotalTrades++
			st.OpenTrades++
		case domain.TradeClosed:
			st.TotalTrades++
			st.ClosedTrades++
			pnl := tr.Realized()
			st.RealizedPnL += pnl
			if pnl > 0 {
				st.WinningTrades++
			} else if pnl < 0 {
				st.LosingTrades++
			}
		}
	}
	if st.ClosedTrades > 0 {
		st.WinRate = money.BasisPoints(int64(st.WinningTrades) * 10000 / int64(st.ClosedTrades))
	}
	if a.ActivatedAt != nil {
		end := s.now()
		switch {
		case a.FailedAt != nil:
			end = *a.FailedAt
		case a.ClosedAt != nil:
			end = *a.ClosedAt
		}
		st.DaysActive = int(end.Sub(*a.ActivatedAt)/(24*time.Hour)) + 1
	}
	return st, nil
}

// ValidateTrade runs the pre-trade checks against the stored account state.
// With feature.trade_checks switched off every well-formed intent is allowed.
func (s *AccountService) ValidateTrade(ctx context.Context, id uint64, intent risk.TradeIntent) (*risk.Result, error) {
	if err := intent.Validate(); err != nil {
		return nil, err
	}
	a, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.Settings.IsEnabled(ctx, FeatureTradeChecks, true) {
		return &risk.Result{Allowed: true, Errors: []string{}, Warnings: []string{"trade_checks_disabled"}}, nil
	}
	plan, err := s.plan(ctx, "validate_trade", a.PlanID)
	if err != nil {
		return nil, err
	}
	m := s.Risk
	if m == nil {
		m = &risk.Manager{Logger: s.Logger}
	}
	res := m.Check(*a, rules.ThresholdsFromPlan(*plan), intent)
	return &res, nil
}
