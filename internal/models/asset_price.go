package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetPrice is the last trade price per asset, written by the trade ledger.
type AssetPrice struct {
	AssetID   string          `gorm:"primaryKey;type:varchar(64)"`
	Price     decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	PricedAt  time.Time       `gorm:"type:timestamptz;not null"`
	Source    *string         `gorm:"type:text"`
	UpdatedAt time.Time       `gorm:"type:timestamptz;not null"`
}

func (AssetPrice) TableName() string {
	return "asset_prices"
}
