package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"propdesk/internal/money"
)

type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

func (d Direction) Sign() int64 {
	if d == Short {
		return -1
	}
	return 1
}

type TradeStatus string

const (
	TradeOpen      TradeStatus = "OPEN"
	TradeClosed    TradeStatus = "CLOSED"
	TradeCancelled TradeStatus = "CANCELLED"
)

// Trade is owned by the external ledger and read-only here.
type Trade struct {
	ID          uint64
	AccountID   uint64
	AssetID     string
	Direction   Direction
	Quantity    decimal.Decimal
	EntryPrice  decimal.Decimal
	ExitPrice   *decimal.Decimal
	// LastPrice is the ledger's last recorded mark for an open trade.
	LastPrice   *decimal.Decimal
	Commission  money.Cents
	Status      TradeStatus
	RealizedPnL *money.Cents
	OpenedAt    time.Time
	ClosedAt    *time.Time
}

// PnLAt is (price − entry) × quantity × direction − commission.
func (t Trade) PnLAt(price decimal.Decimal) money.Cents {
	gross := price.Sub(t.EntryPrice).Mul(t.Quantity).Mul(decimal.NewFromInt(t.Direction.Sign()))
	return money.FromDecimal(gross) - t.Commission
}

// Realized returns the ledger's realized P&L, deriving it from the exit price
// when the ledger did not record one.
func (t Trade) Realized() money.Cents {
	if t.RealizedPnL != nil {
		return *t.RealizedPnL
	}
	if t.ExitPrice != nil {
		return t.PnLAt(*t.ExitPrice)
	}
	return -t.Commission
}

func (t Trade) Notional(price decimal.Decimal) money.Cents {
	return money.FromDecimal(price.Mul(t.Quantity).Abs())
}
