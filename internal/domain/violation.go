package domain

import (
	"time"

	"propdesk/internal/money"
)

type ViolationType string

const (
	ViolationTotalLoss    ViolationType = "TOTAL_LOSS"
	ViolationDailyLoss    ViolationType = "DAILY_LOSS"
	ViolationPositionSize ViolationType = "POSITION_SIZE"
)

type Severity string

const (
	SeverityTerminal Severity = "TERMINAL"
	SeverityWarning  Severity = "WARNING"
)

func (t ViolationType) Severity() Severity {
	switch t {
	case ViolationTotalLoss, ViolationDailyLoss:
		return SeverityTerminal
	}
	return SeverityWarning
}

func TerminalViolationTypes() []ViolationType {
	return []ViolationType{ViolationTotalLoss, ViolationDailyLoss}
}

type Violation struct {
	ID          uint64
	AccountID   uint64
	Type        ViolationType
	Severity    Severity
	Threshold   money.Cents
	Actual      money.Cents
	TradingDay  Day
	TradeID     uint64
	Description string
	Resolved    bool
	ResolvedAt  *time.Time
	CreatedAt   time.Time
}
