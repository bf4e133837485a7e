package handler

import (
	"time"

	"propdesk/internal/balance"
	"propdesk/internal/domain"
	"propdesk/internal/lifecycle"
	"propdesk/internal/risk"
	"propdesk/internal/service"
)

// Money is rendered as fixed two-decimal strings and percentages as
// two-decimal percent strings.

type planView struct {
	ID              uint64    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	Version         int       `json:"version"`
	SupersedesID    uint64    `json:"supersedes_id,omitempty"`
	Type            string    `json:"type"`
	StartingBalance string    `json:"starting_balance"`
	Price           string    `json:"price"`
	MaxDailyLoss    string    `json:"max_daily_loss"`
	MaxTotalLoss    string    `json:"max_total_loss"`
	ProfitTarget    string    `json:"profit_target"`
	MinTradingDays  int       `json:"min_trading_days"`
	MaxPositionSize string    `json:"max_position_size"`
	ProfitSplit     string    `json:"profit_split"`
	FundedPlanID    uint64    `json:"funded_plan_id,omitempty"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
}

func toPlanView(p domain.Plan) planView {
	return planView{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		Version:         p.Version,
		SupersedesID:    p.SupersedesID,
		Type:            string(p.Type),
		StartingBalance: p.StartingBalance.String(),
		Price:           p.Price.String(),
		MaxDailyLoss:    p.MaxDailyLoss.String(),
		MaxTotalLoss:    p.MaxTotalLoss.String(),
		ProfitTarget:    p.ProfitTarget.String(),
		MinTradingDays:  p.MinTradingDays,
		MaxPositionSize: p.MaxPositionSize.String(),
		ProfitSplit:     p.ProfitSplit.String(),
		FundedPlanID:    p.FundedPlanID,
		Active:          p.Active,
		CreatedAt:       p.CreatedAt,
	}
}

type accountView struct {
	ID              uint64     `json:"id"`
	AccountNumber   string     `json:"account_number"`
	PlanID          uint64     `json:"plan_id"`
	State           string     `json:"state"`
	StartingBalance string     `json:"starting_balance"`
	CurrentBalance  string     `json:"current_balance"`
	HighWaterMark   string     `json:"high_water_mark"`
	DayOpenBalance  string     `json:"day_open_balance"`
	TradingDay      string     `json:"trading_day,omitempty"`
	DailyLoss       string     `json:"daily_loss"`
	TotalLoss       string     `json:"total_loss"`
	ProfitEarned    string     `json:"profit_earned"`
	PayoutBaseline  string     `json:"payout_baseline"`
	TotalPaidOut    string     `json:"total_paid_out"`
	TradingDays     []string   `json:"trading_days"`
	StaleMarks      int        `json:"stale_marks"`
	FailureReason   string     `json:"failure_reason,omitempty"`
	ClosureReason   string     `json:"closure_reason,omitempty"`
	LastEvaluatedAt *time.Time `json:"last_evaluated_at,omitempty"`
	ActivatedAt     *time.Time `json:"activated_at,omitempty"`
	PassedAt        *time.Time `json:"passed_at,omitempty"`
	FundedAt        *time.Time `json:"funded_at,omitempty"`
	FailedAt        *time.Time `json:"failed_at,omitempty"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
	Version         int64      `json:"version"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func toAccountView(a domain.Account) accountView {
	days := make([]string, 0, len(a.TradingDays))
	for _, d := range a.TradingDays {
		days = append(days, string(d))
	}
	return accountView{
		ID:              a.ID,
		AccountNumber:   a.AccountNumber,
		PlanID:          a.PlanID,
		State:           string(a.State),
		StartingBalance: a.StartingBalance.String(),
		CurrentBalance:  a.CurrentBalance.String(),
		HighWaterMark:   a.HighWaterMark.String(),
		DayOpenBalance:  a.DayOpenBalance.String(),
		TradingDay:      string(a.TradingDay),
		DailyLoss:       a.DailyLoss.String(),
		TotalLoss:       a.TotalLoss.String(),
		ProfitEarned:    a.ProfitEarned.String(),
		PayoutBaseline:  a.PayoutBaseline.String(),
		TotalPaidOut:    a.TotalPaidOut.String(),
		TradingDays:     days,
		StaleMarks:      a.StaleMarks,
		FailureReason:   a.FailureReason,
		ClosureReason:   a.ClosureReason,
		LastEvaluatedAt: a.LastEvaluatedAt,
		ActivatedAt:     a.ActivatedAt,
		PassedAt:        a.PassedAt,
		FundedAt:        a.FundedAt,
		FailedAt:        a.FailedAt,
		ClosedAt:        a.ClosedAt,
		Version:         a.Version,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

type violationView struct {
	ID          uint64     `json:"id"`
	AccountID   uint64     `json:"account_id"`
	Type        string     `json:"type"`
	Severity    string     `json:"severity"`
	Threshold   string     `json:"threshold_value"`
	Actual      string     `json:"actual_value"`
	TradingDay  string     `json:"trading_day"`
	TradeID     uint64     `json:"trade_id,omitempty"`
	Description string     `json:"description"`
	Resolved    bool       `json:"resolved"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toViolationViews(items []domain.Violation) []violationView {
	out := make([]violationView, 0, len(items))
	for _, v := range items {
		out = append(out, violationView{
			ID:          v.ID,
			AccountID:   v.AccountID,
			Type:        string(v.Type),
			Severity:    string(v.Severity),
			Threshold:   v.Threshold.String(),
			Actual:      v.Actual.String(),
			TradingDay:  string(v.TradingDay),
			TradeID:     v.TradeID,
			Description: v.Description,
			Resolved:    v.Resolved,
			ResolvedAt:  v.ResolvedAt,
			CreatedAt:   v.CreatedAt,
		})
	}
	return out
}

type activityView struct {
	ID          uint64         `json:"id"`
	Seq         string         `json:"seq"`
	AccountID   uint64         `json:"account_id"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
}

func toActivityView(a domain.Activity) activityView {
	return activityView{
		ID:          a.ID,
		Seq:         a.Seq,
		AccountID:   a.AccountID,
		Type:        string(a.Type),
		Description: a.Description,
		Metadata:    a.Metadata,
		CreatedAt:   a.CreatedAt,
	}
}

type payoutView struct {
	ID           uint64         `json:"id"`
	Reference    string         `json:"reference"`
	AccountID    uint64         `json:"account_id"`
	Amount       string         `json:"amount"`
	ProfitEarned string         `json:"profit_earned"`
	ProfitSplit  string         `json:"profit_split"`
	Method       string         `json:"method"`
	Details      map[string]any `json:"details,omitempty"`
	Status       string         `json:"status"`
	Notes        string         `json:"notes,omitempty"`
	RequestedAt  time.Time      `json:"requested_at"`
	ApprovedAt   *time.Time     `json:"approved_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	RejectedAt   *time.Time     `json:"rejected_at,omitempty"`
}

func toPayoutView(p domain.PayoutRequest) payoutView {
	return payoutView{
		ID:           p.ID,
		Reference:    p.Reference,
		AccountID:    p.AccountID,
		Amount:       p.Amount.String(),
		ProfitEarned: p.ProfitEarned.String(),
		ProfitSplit:  p.ProfitSplit.String(),
		Method:       p.Method,
		Details:      p.Details,
		Status:       string(p.Status),
		Notes:        p.Notes,
		RequestedAt:  p.RequestedAt,
		ApprovedAt:   p.ApprovedAt,
		CompletedAt:  p.CompletedAt,
		RejectedAt:   p.RejectedAt,
	}
}

type positionView struct {
	TradeID    uint64 `json:"trade_id"`
	AssetID    string `json:"asset_id"`
	Mark       string `json:"mark"`
	Source     string `json:"source"`
	Stale      bool   `json:"stale"`
	Notional   string `json:"notional"`
	Unrealized string `json:"unrealized_pnl"`
}

type transitionView struct {
	From   string    `json:"from"`
	To     string    `json:"to"`
	Event  string    `json:"event"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

type evaluationView struct {
	Account       accountView     `json:"account"`
	PreviousState string          `json:"previous_state"`
	NewState      string          `json:"new_state"`
	Violations    []violationView `json:"violations"`
	Recorded      int             `json:"recorded"`
	Transition    *transitionView `json:"transition,omitempty"`
	RealizedPnL   string          `json:"realized_pnl"`
	UnrealizedPnL string          `json:"unrealized_pnl"`
	Positions     []positionView  `json:"positions"`
	Stale         bool            `json:"stale"`
	Attempts      int             `json:"attempts"`
}

func toEvaluationView(r *service.EvaluationResult) evaluationView {
	out := evaluationView{
		Account:       toAccountView(r.Account),
		PreviousState: string(r.PreviousState),
		NewState:      string(r.NewState),
		Violations:    toViolationViews(r.Violations),
		Recorded:      r.Recorded,
		RealizedPnL:   r.Metrics.RealizedPnL.String(),
		UnrealizedPnL: r.Metrics.UnrealizedPnL.String(),
		Positions:     toPositionViews(r.Metrics.Positions),
		Stale:         r.Metrics.StaleMarks > 0,
		Attempts:      r.Attempts,
	}
	if r.Transition != nil {
		out.Transition = toTransitionView(*r.Transition)
	}
	return out
}

func toTransitionView(t lifecycle.Transition) *transitionView {
	return &transitionView{
		From:   string(t.From),
		To:     string(t.To),
		Event:  string(t.Event),
		Reason: t.Reason,
		At:     t.At,
	}
}

func toPositionViews(items []balance.Position) []positionView {
	out := make([]positionView, 0, len(items))
	for _, p := range items {
		out = append(out, positionView{
			TradeID:    p.TradeID,
			AssetID:    p.AssetID,
			Mark:       p.Mark.String(),
			Source:     string(p.Source),
			Stale:      p.Stale,
			Notional:   p.Notional.String(),
			Unrealized: p.Unrealized.String(),
		})
	}
	return out
}

type statisticsView struct {
	AccountID      uint64 `json:"account_id"`
	TotalTrades    int    `json:"total_trades"`
	OpenTrades     int    `json:"open_trades"`
	ClosedTrades   int    `json:"closed_trades"`
	WinningTrades  int    `json:"winning_trades"`
	LosingTrades   int    `json:"losing_trades"`
	WinRate        string `json:"win_rate"`
	RealizedPnL    string `json:"realized_pnl"`
	TradingDays    int    `json:"trading_days"`
	DaysActive     int    `json:"days_active"`
	CurrentBalance string `json:"current_balance"`
	HighWaterMark  string `json:"high_water_mark"`
	ProfitEarned   string `json:"profit_earned"`
	TotalPaidOut   string `json:"total_paid_out"`
}

func toStatisticsView(s *service.Statistics) statisticsView {
	return statisticsView{
		AccountID:      s.AccountID,
		TotalTrades:    s.TotalTrades,
		OpenTrades:     s.OpenTrades,
		ClosedTrades:   s.ClosedTrades,
		WinningTrades:  s.WinningTrades,
		LosingTrades:   s.LosingTrades,
		WinRate:        s.WinRate.String(),
		RealizedPnL:    s.RealizedPnL.String(),
		TradingDays:    s.TradingDays,
		DaysActive:     s.DaysActive,
		CurrentBalance: s.CurrentBalance.String(),
		HighWaterMark:  s.HighWaterMark.String(),
		ProfitEarned:   s.ProfitEarned.String(),
		TotalPaidOut:   s.TotalPaidOut.String(),
	}
}

type tradeCheckView struct {
	Allowed         bool     `json:"allowed"`
	Errors          []string `json:"errors"`
	Warnings        []string `json:"warnings"`
	Notional        string   `json:"notional"`
	PositionLimit   string   `json:"position_limit"`
	MarginRequired  string   `json:"margin_required"`
	MarginAvailable string   `json:"margin_available"`
}

func toTradeCheckView(r *risk.Result) tradeCheckView {
	return tradeCheckView{
		Allowed:         r.Allowed,
		Errors:          r.Errors,
		Warnings:        r.Warnings,
		Notional:        r.Notional.String(),
		PositionLimit:   r.PositionLimit.String(),
		MarginRequired:  r.MarginRequired.String(),
		MarginAvailable: r.MarginAvailable.String(),
	}
}
