// Package balance derives account money metrics from trade history and marks.
package balance

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"propdesk/internal/domain"
	"propdesk/internal/money"
)

// Mark is a price observation for an asset. Stale marks are usable but were
// not confirmed by the market-data provider in this cycle.
type Mark struct {
	Price decimal.Decimal
	Stale bool
}

type MarkSource string

const (
	SourceProvider  MarkSource = "provider"
	SourceLastKnown MarkSource = "last_known"
	SourceEntry     MarkSource = "entry"
)

// Position is the valuation of one OPEN trade.
type Position struct {
	TradeID    uint64
	AssetID    string
	Mark       decimal.Decimal
	Source     MarkSource
	Stale      bool
	Notional   money.Cents
	Unrealized money.Cents
}

type Input struct {
	Account  domain.Account
	Trades   []domain.Trade
	Marks    map[string]Mark
	Now      time.Time
	Boundary DayBoundary
}

type Metrics struct {
	TradingDay      domain.Day
	DayStart        time.Time
	StartingBalance money.Cents
	RealizedPnL     money.Cents
	UnrealizedPnL   money.Cents
	CurrentBalance  money.Cents
	HighWaterMark   money.Cents
	DayOpenBalance  money.Cents
	DailyLoss       money.Cents
	TotalLoss       money.Cents
	ProfitEarned    money.Cents
	TradingDays     []domain.Day
	Positions       []Position
	StaleMarks      int
}

func (m Metrics) TradingDayCount() int {
	return len(m.TradingDays)
}

// Tracker computes Metrics. The zero value uses a midnight UTC boundary.
type Tracker struct {
	Boundary DayBoundary
}

func (t Tracker) Compute(in Input) Metrics {
	boundary := in.Boundary
	if boundary == nil {
		boundary = t.Boundary
	}
	if boundary == nil {
		boundary = UTCCutoff{}
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	acct := in.Account

	m := Metrics{
		TradingDay:      boundary.TradingDay(now),
		DayStart:        boundary.DayStart(now),
		StartingBalance: acct.StartingBalance,
	}

	// unseenBeforeDay is realized P&L of trades opened after the last
	// evaluation and closed before today started: the stored balance never
	// saw them.
	var closedBeforeDay, unseenBeforeDay money.Cents
	days := make([]domain.Day, 0, len(in.Trades)*2)
	trades := sortedTrades(in.Trades)
	for _, tr := range trades {
		switch tr.Status {
		case domain.TradeClosed:
			pnl := tr.Realized()
			m.RealizedPnL += pnl
			if tr.ClosedAt != nil && tr.ClosedAt.Before(m.DayStart) {
				closedBeforeDay += pnl
				if acct.LastEvaluatedAt != nil && !tr.OpenedAt.Before(*acct.LastEvaluatedAt) {
					unseenBeforeDay += pnl
				}
			}
			if tr.ClosedAt != nil {
				days = append(days, boundary.TradingDay(*tr.ClosedAt))
			}
		case domain.TradeOpen:
			pos := valuePosition(tr, in.Marks)
			if pos.Stale {
				m.StaleMarks++
			}
			m.UnrealizedPnL += pos.Unrealized
			m.Positions = append(m.Positions, pos)
		default:
			continue
		}
		if !tr.OpenedAt.IsZero() {
			days = append(days, boundary.TradingDay(tr.OpenedAt))
		}
	}

	m.CurrentBalance = acct.StartingBalance + m.RealizedPnL + m.UnrealizedPnL
	m.HighWaterMark = money.Max(money.Max(acct.HighWaterMark, acct.StartingBalance), m.CurrentBalance)
	switch {
	case acct.TradingDay == m.TradingDay && acct.DayOpenBalance != 0:
		m.DayOpenBalance = acct.DayOpenBalance
	case acct.TradingDay != "" && acct.LastEvaluatedAt != nil && acct.LastEvaluatedAt.Before(m.DayStart):
		// rollover: the last balance seen before the day started, open
		// positions included
		m.DayOpenBalance = acct.CurrentBalance + unseenBeforeDay
	default:
		m.DayOpenBalance = acct.StartingBalance + closedBeforeDay
	}
	m.TotalLoss = (m.HighWaterMark - m.CurrentBalance).NonNegative()
	m.DailyLoss = (m.DayOpenBalance - money.Min(m.CurrentBalance, m.DayOpenBalance)).NonNegative()
	baseline := acct.PayoutBaseline
	if baseline == 0 {
		baseline = acct.StartingBalance
	}
	m.ProfitEarned = (m.CurrentBalance - baseline).NonNegative()
	m.TradingDays = domain.MergeDays(acct.TradingDays, days)
	return m
}

// Apply copies the metrics onto the account aggregate.
func (m Metrics) Apply(a *domain.Account, at time.Time) {
	a.CurrentBalance = m.CurrentBalance
	a.HighWaterMark = m.HighWaterMark
	a.DayOpenBalance = m.DayOpenBalance
	a.TradingDay = m.TradingDay
	a.DailyLoss = m.DailyLoss
	a.TotalLoss = m.TotalLoss
	a.ProfitEarned = m.ProfitEarned
	a.TradingDays = append([]domain.Day(nil), m.TradingDays...)
	a.StaleMarks = m.StaleMarks
	ts := at
	a.LastEvaluatedAt = &ts
}

func valuePosition(tr domain.Trade, marks map[string]Mark) Position {
	pos := Position{TradeID: tr.ID, AssetID: tr.AssetID}
	if mk, ok := marks[tr.AssetID]; ok && mk.Price.IsPositive() {
		pos.Mark = mk.Price
		pos.Source = SourceProvider
		pos.Stale = mk.Stale
	} else if tr.LastPrice != nil && tr.LastPrice.IsPositive() {
		pos.Mark = *tr.LastPrice
		pos.Source = SourceLastKnown
		pos.Stale = true
	} else {
		pos.Mark = tr.EntryPrice
		pos.Source = SourceEntry
		pos.Stale = true
	}
	pos.Unrealized = tr.PnLAt(pos.Mark)
	pos.Notional = tr.Notional(pos.Mark)
	return pos
}

func sortedTrades(in []domain.Trade) []domain.Trade {
	out := append([]domain.Trade(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OpenAssets lists the distinct assets of OPEN trades in a stable order.
func OpenAssets(trades []domain.Trade) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(trades))
	for _, tr := range trades {
		if tr.Status != domain.TradeOpen || tr.AssetID == "" {
			continue
		}
		if _, ok := seen[tr.AssetID]; ok {
			continue
		}
		seen[tr.AssetID] = struct{}{}
		out = append(out, tr.AssetID)
	}
	sort.Strings(out)
	return out
}
