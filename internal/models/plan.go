package models

import "time"

// Plan is a versioned rule template. Revisions insert a new row pointing at
// the one they supersede.
type Plan struct {
	ID           uint64  `gorm:"primaryKey;autoIncrement"`
	Name         string  `gorm:"type:varchar(120);not null;index"`
	Description  string  `gorm:"type:text"`
	Version      int     `gorm:"not null"`
	SupersedesID *uint64 `gorm:"index"`
	Type         string  `gorm:"type:varchar(20);not null"`

	StartingBalanceCents int64   `gorm:"column:starting_balance_cents;not null"`
	PriceCents           int64   `gorm:"column:price_cents;not null"`
	MaxDailyLossCents    int64   `gorm:"column:max_daily_loss_cents;not null"`
	MaxTotalLossCents    int64   `gorm:"column:max_total_loss_cents;not null"`
	ProfitTargetCents    int64   `gorm:"column:profit_target_cents;not null"`
	MinTradingDays       int     `gorm:"not null"`
	MaxPositionSizeBps   int64   `gorm:"column:max_position_size_bps;not null"`
	ProfitSplitBps       int64   `gorm:"column:profit_split_bps;not null"`
	FundedPlanID         *uint64 `gorm:"index"`

	Active    bool      `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Plan) TableName() string {
	return "plans"
}
