package models

import (
	"time"

	"gorm.io/datatypes"
)

// PayoutRequest allows at most one PENDING or APPROVED row per account.
type PayoutRequest struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	Reference string `gorm:"type:varchar(64);not null;uniqueIndex"`
	AccountID uint64 `gorm:"not null;index;uniqueIndex:uq_payout_outstanding,where:status <> 'COMPLETED' AND status <> 'REJECTED'"`

	AmountCents       int64 `gorm:"column:amount_cents;not null"`
	ProfitEarnedCents int64 `gorm:"column:profit_earned_cents;not null"`
	ProfitSplitBps    int64 `gorm:"column:profit_split_bps;not null"`

	Method  string         `gorm:"type:varchar(32);not null"`
	Details datatypes.JSON `gorm:"type:jsonb"`
	Status  string         `gorm:"type:varchar(16);not null;index"`
	Notes   string         `gorm:"type:text"`

	RequestedAt time.Time  `gorm:"type:timestamptz;not null;index"`
	ApprovedAt  *time.Time `gorm:"type:timestamptz"`
	CompletedAt *time.Time `gorm:"type:timestamptz"`
	RejectedAt  *time.Time `gorm:"type:timestamptz"`
	UpdatedAt   time.Time  `gorm:"type:timestamptz;autoUpdateTime"`
}

func (PayoutRequest) TableName() string {
	return "payout_requests"
}
