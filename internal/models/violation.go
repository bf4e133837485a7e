package models

import "time"

// Violation rows are unique per (account, type, day) while unresolved.
type Violation struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	AccountID  uint64 `gorm:"not null;index;uniqueIndex:uq_violations_open,where:resolved = false"`
	Type       string `gorm:"type:varchar(32);not null;uniqueIndex:uq_violations_open,where:resolved = false"`
	TradingDay string `gorm:"type:varchar(10);not null;uniqueIndex:uq_violations_open,where:resolved = false"`
	Severity   string `gorm:"type:varchar(16);not null"`

	ThresholdCents int64  `gorm:"column:threshold_cents;not null"`
	ActualCents    int64  `gorm:"column:actual_cents;not null"`
	TradeID        uint64 `gorm:"not null;default:0"`
	Description    string `gorm:"type:text"`

	Resolved   bool       `gorm:"not null;default:false;index"`
	ResolvedAt *time.Time `gorm:"type:timestamptz"`
	CreatedAt  time.Time  `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (Violation) TableName() string {
	return "violations"
}
