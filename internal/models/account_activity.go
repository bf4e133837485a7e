package models

import (
	"time"

	"gorm.io/datatypes"
)

type AccountActivity struct {
	ID          uint64         `gorm:"primaryKey;autoIncrement"`
	Seq         string         `gorm:"type:char(26);not null;uniqueIndex"`
	AccountID   uint64         `gorm:"not null;index;uniqueIndex:uq_activity_dedup,priority:1"`
	Type        string         `gorm:"type:varchar(32);not null;index"`
	Description string         `gorm:"type:text"`
	Metadata    datatypes.JSON `gorm:"type:jsonb"`
	DedupKey    *string        `gorm:"type:varchar(120);uniqueIndex:uq_activity_dedup,priority:2"`
	CreatedAt   time.Time      `gorm:"type:timestamptz;not null;index"`
}

func (AccountActivity) TableName() string {
	return "account_activities"
}
