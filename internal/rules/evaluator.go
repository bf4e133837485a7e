// Package rules maps account metrics and plan thresholds to rule violations.
package rules

import (
	"fmt"

	"propdesk/internal/balance"
	"propdesk/internal/domain"
	"propdesk/internal/money"
)

// Thresholds is the immutable rule set of one plan version.
type Thresholds struct {
	planID          uint64
	planVersion     int
	maxDailyLoss    money.Cents
	maxTotalLoss    money.Cents
	maxPositionSize money.BasisPoints
	profitTarget    money.Cents
	minTradingDays  int
}

func ThresholdsFromPlan(p domain.Plan) Thresholds {
	return Thresholds{
		planID:          p.ID,
		planVersion:     p.Version,
		maxDailyLoss:    p.MaxDailyLoss,
		maxTotalLoss:    p.MaxTotalLoss,
		maxPositionSize: p.MaxPositionSize,
		profitTarget:    p.ProfitTarget,
		minTradingDays:  p.MinTradingDays,
	}
}

func (t Thresholds) PlanID() uint64                     { return t.planID }
func (t Thresholds) PlanVersion() int                   { return t.planVersion }
func (t Thresholds) MaxDailyLoss() money.Cents          { return t.maxDailyLoss }
func (t Thresholds) MaxTotalLoss() money.Cents          { return t.maxTotalLoss }
func (t Thresholds) MaxPositionSize() money.BasisPoints { return t.maxPositionSize }
func (t Thresholds) ProfitTarget() money.Cents          { return t.profitTarget }
func (t Thresholds) MinTradingDays() int                { return t.minTradingDays }

// PositionLimit is the largest notional allowed at the given balance.
func (t Thresholds) PositionLimit(balance money.Cents) money.Cents {
	return balance.NonNegative().ApplyPercent(t.maxPositionSize)
}

// Candidate is a detected breach that has not been recorded yet.
type Candidate struct {
	Type        domain.ViolationType
	Severity    domain.Severity
	Threshold   money.Cents
	Actual      money.Cents
	TradingDay  domain.Day
	TradeID     uint64
	Description string
}

func (c Candidate) Terminal() bool {
	return c.Severity == domain.SeverityTerminal
}

func (c Candidate) Violation(accountID uint64) domain.Violation {
	return domain.Violation{
		AccountID:   accountID,
		Type:        c.Type,
		Severity:    c.Severity,
		Threshold:   c.Threshold,
		Actual:      c.Actual,
		TradingDay:  c.TradingDay,
		TradeID:     c.TradeID,
		Description: c.Description,
	}
}

// Evaluate checks TOTAL_LOSS, DAILY_LOSS and POSITION_SIZE in that order.
// It is pure: equal inputs give equal, equally ordered output.
func Evaluate(m balance.Metrics, t Thresholds) []Candidate {
	out := make([]Candidate, 0, 3)
	if m.TotalLoss > t.maxTotalLoss {
		out = append(out, Candidate{
			Type:        domain.ViolationTotalLoss,
			Severity:    domain.SeverityTerminal,
			Threshold:   t.maxTotalLoss,
			Actual:      m.TotalLoss,
			TradingDay:  m.TradingDay,
			Description: fmt.Sprintf("Total loss limit exceeded: $%s > $%s", m.TotalLoss, t.maxTotalLoss),
		})
	}
	if m.DailyLoss > t.maxDailyLoss {
		out = append(out, Candidate{
			Type:        domain.ViolationDailyLoss,
			Severity:    domain.SeverityTerminal,
			Threshold:   t.maxDailyLoss,
			Actual:      m.DailyLoss,
			TradingDay:  m.TradingDay,
			Description: fmt.Sprintf("Daily loss limit exceeded: $%s > $%s", m.DailyLoss, t.maxDailyLoss),
		})
	}
	if c, ok := positionSize(m, t); ok {
		out = append(out, c)
	}
	return out
}

func positionSize(m balance.Metrics, t Thresholds) (Candidate, bool) {
	limit := t.PositionLimit(m.CurrentBalance)
	var worst *balance.Position
	for i := range m.Positions {
		p := &m.Positions[i]
		if p.Notional <= limit {
			continue
		}
		if worst == nil || p.Notional > worst.Notional || (p.Notional == worst.Notional && p.TradeID < worst.TradeID) {
			worst = p
		}
	}
	if worst == nil {
		return Candidate{}, false
	}
	return Candidate{
		Type:        domain.ViolationPositionSize,
		Severity:    domain.SeverityWarning,
		Threshold:   limit,
		Actual:      worst.Notional,
		TradingDay:  m.TradingDay,
		TradeID:     worst.TradeID,
		Description: fmt.Sprintf("Position size exceeded on trade %d (%s): $%s > $%s", worst.TradeID, worst.AssetID, worst.Notional, limit),
	}, true
}

func HasTerminal(cs []Candidate) bool {
	for _, c := range cs {
		if c.Terminal() {
			return true
		}
	}
	return false
}

// TargetReached reports whether the evaluation pass criteria on metrics hold.
// A plan without a profit target never passes on metrics.
func TargetReached(m balance.Metrics, t Thresholds) bool {
	if t.profitTarget <= 0 {
		return false
	}
	return m.ProfitEarned >= t.profitTarget && m.TradingDayCount() >= t.minTradingDays
}
