package models

import (
	"time"

	"gorm.io/datatypes"
)

type Account struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	AccountNumber string `gorm:"type:varchar(32);not null;uniqueIndex"`
	PlanID        uint64 `gorm:"not null;index"`
	State         string `gorm:"type:varchar(32);not null;index"`

	StartingBalanceCents int64 `gorm:"column:starting_balance_cents;not null"`
	CurrentBalanceCents  int64 `gorm:"column:current_balance_cents;not null"`
	HighWaterMarkCents   int64 `gorm:"column:high_water_mark_cents;not null"`
	DayOpenBalanceCents  int64 `gorm:"column:day_open_balance_cents;not null"`
	DailyLossCents       int64 `gorm:"column:daily_loss_cents;not null;default:0"`
	TotalLossCents       int64 `gorm:"column:total_loss_cents;not null;default:0"`
	ProfitEarnedCents    int64 `gorm:"column:profit_earned_cents;not null;default:0"`
	PayoutBaselineCents  int64 `gorm:"column:payout_baseline_cents;not null"`
	TotalPaidOutCents    int64 `gorm:"column:total_paid_out_cents;not null;default:0"`

	TradingDay  string                      `gorm:"type:varchar(10)"`
	TradingDays datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	StaleMarks  int                         `gorm:"not null;default:0"`

	FailureReason string `gorm:"type:text"`
	ClosureReason string `gorm:"type:text"`

	LastEvaluatedAt *time.Time `gorm:"type:timestamptz;index"`
	ActivatedAt     *time.Time `gorm:"type:timestamptz"`
	PassedAt        *time.Time `gorm:"type:timestamptz"`
	FundedAt        *time.Time `gorm:"type:timestamptz"`
	FailedAt        *time.Time `gorm:"type:timestamptz"`
	ClosedAt        *time.Time `gorm:"type:timestamptz"`

	Version   int64     `gorm:"not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Account) TableName() string {
	return "accounts"
}
