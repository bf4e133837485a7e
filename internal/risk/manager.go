// Package risk runs pre-trade checks against an account's plan limits.
package risk

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"propdesk/internal/domain"
	"propdesk/internal/money"
	"propdesk/internal/rules"
)

// nearLimitBps flags a loss that has used 80% of its allowance.
const nearLimitBps = money.BasisPoints(8000)

type TradeIntent struct {
	AssetID   string
	Direction domain.Direction
	Quantity  decimal.Decimal
	Price     decimal.Decimal
}

func (t TradeIntent) Validate() error {
	const op = "validate_trade"
	switch {
	case strings.TrimSpace(t.AssetID) == "":
		return domain.Validation(op, "asset_id is required")
	case t.Direction != domain.Long && t.Direction != domain.Short:
		return domain.Validation(op, "direction must be LONG or SHORT")
	case !t.Quantity.IsPositive():
		return domain.Validation(op, "quantity must be positive")
	case !t.Price.IsPositive():
		return domain.Validation(op, "price must be positive")
	}
	return nil
}

type Result struct {
	Allowed         bool
	Errors          []string
	Warnings        []string
	Notional        money.Cents
	PositionLimit   money.Cents
	MarginRequired  money.Cents
	MarginAvailable money.Cents
}

type Manager struct {
	Logger *zap.Logger
}

// Check does not mutate its inputs. Errors block the trade, warnings do not.
func (m *Manager) Check(a domain.Account, t rules.Thresholds, intent TradeIntent) Result {
	res := Result{Errors: []string{}, Warnings: []string{}}
	if !a.State.Trading() {
		res.Errors = append(res.Errors, fmt.Sprintf("account status %s cannot place trades", a.State))
		m.log(a, res)
		return res
	}

	res.Notional = money.FromDecimal(intent.Quantity.Mul(intent.Price).Abs())
	res.PositionLimit = t.PositionLimit(a.CurrentBalance)
	res.MarginRequired = res.Notional
	res.MarginAvailable = a.CurrentBalance.NonNegative()

	if res.Notional > res.PositionLimit {
		res.Errors = append(res.Errors, fmt.Sprintf("position size %s exceeds maximum %s (%s%% of balance)",
			res.Notional, res.PositionLimit, t.MaxPositionSize()))
	}
	if rejectLoss(a.DailyLoss, t.MaxDailyLoss()) {
		res.Errors = append(res.Errors, fmt.Sprintf("daily loss limit reached: %s / %s", a.DailyLoss, t.MaxDailyLoss()))
	} else if nearLimit(a.DailyLoss, t.MaxDailyLoss()) {
		res.Warnings = append(res.Warnings, "daily_loss_near_limit")
	}
	if rejectLoss(a.TotalLoss, t.MaxTotalLoss()) {
		res.Errors = append(res.Errors, fmt.Sprintf("total loss limit reached: %s / %s", a.TotalLoss, t.MaxTotalLoss()))
	} else if nearLimit(a.TotalLoss, t.MaxTotalLoss()) {
		res.Warnings = append(res.Warnings, "total_loss_near_limit")
	}
	if res.MarginRequired > res.MarginAvailable {
		res.Errors = append(res.Errors, fmt.Sprintf("insufficient balance: need %s, have %s", res.MarginRequired, res.MarginAvailable))
	}
	if a.StaleMarks > 0 {
		res.Warnings = append(res.Warnings, "stale_data")
	}

	res.Allowed = len(res.Errors) == 0
	m.log(a, res)
	return res
}

// A loss sitting exactly on its limit still blocks new risk.
func rejectLoss(loss, limit money.Cents) bool {
	return limit > 0 && loss >= limit
}

func nearLimit(loss, limit money.Cents) bool {
	return limit > 0 && loss >= limit.ApplyPercent(nearLimitBps)
}

func (m *Manager) log(a domain.Account, res Result) {
	if m == nil || m.Logger == nil || res.Allowed {
		return
	}
	m.Logger.Info("risk: trade rejected",
		zap.Uint64("account_id", a.ID),
		zap.String("account_number", a.AccountNumber),
		zap.String("errors", strings.Join(res.Errors, "; ")),
	)
}
