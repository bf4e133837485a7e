package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is owned by the trade ledger; the engine only reads it.
type Trade struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	AccountID uint64 `gorm:"not null;index:idx_trades_account_status,priority:1"`
	AssetID   string `gorm:"type:varchar(64);not null;index"`
	Direction string `gorm:"type:varchar(10);not null"`
	Status    string `gorm:"type:varchar(20);not null;index:idx_trades_account_status,priority:2"`

	Quantity   decimal.Decimal  `gorm:"type:numeric(30,10);not null"`
	EntryPrice decimal.Decimal  `gorm:"type:numeric(20,10);not null"`
	ExitPrice  *decimal.Decimal `gorm:"type:numeric(20,10)"`
	LastPrice  *decimal.Decimal `gorm:"type:numeric(20,10)"`

	CommissionCents  int64  `gorm:"column:commission_cents;not null;default:0"`
	RealizedPnLCents *int64 `gorm:"column:realized_pnl_cents"`

	OpenedAt  time.Time  `gorm:"type:timestamptz;not null"`
	ClosedAt  *time.Time `gorm:"type:timestamptz"`
	CreatedAt time.Time  `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Trade) TableName() string {
	return "trades"
}
