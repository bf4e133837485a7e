package domain

import "time"

type ActivityType string

const (
	ActivityCreated           ActivityType = "CREATED"
	ActivityActivated         ActivityType = "ACTIVATED"
	ActivityTradeOpened       ActivityType = "TRADE_OPENED"
	ActivityTradeClosed       ActivityType = "TRADE_CLOSED"
	ActivityRuleViolation     ActivityType = "RULE_VIOLATION"
	ActivityViolationResolved ActivityType = "VIOLATION_RESOLVED"
	ActivityStatusChange      ActivityType = "STATUS_CHANGE"
	ActivityPayoutRequested   ActivityType = "PAYOUT_REQUESTED"
	ActivityPayoutApproved    ActivityType = "PAYOUT_APPROVED"
	ActivityPayoutCompleted   ActivityType = "PAYOUT_COMPLETED"
	ActivityPayoutRejected    ActivityType = "PAYOUT_REJECTED"
	ActivityPaymentFailed     ActivityType = "PAYMENT_FAILED"
	ActivityNoteAdded         ActivityType = "NOTE_ADDED"
)

// Activity is an append-only log entry. Entries with a DedupKey are written
// at most once per account.
type Activity struct {
	ID          uint64
	Seq         string
	AccountID   uint64
	Type        ActivityType
	Description string
	Metadata    map[string]any
	DedupKey    string
	CreatedAt   time.Time
}
