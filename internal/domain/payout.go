package domain

import (
	"time"

	"propdesk/internal/money"
)

type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "PENDING"
	PayoutApproved  PayoutStatus = "APPROVED"
	PayoutCompleted PayoutStatus = "COMPLETED"
	PayoutRejected  PayoutStatus = "REJECTED"
)

// Outstanding reports whether the request still blocks a new one.
func (s PayoutStatus) Outstanding() bool {
	return s == PayoutPending || s == PayoutApproved
}

const DefaultPayoutMethod = "BANK_TRANSFER"

type PayoutRequest struct {
	ID           uint64
	Reference    string
	AccountID    uint64
	Amount       money.Cents
	ProfitEarned money.Cents
	ProfitSplit  money.BasisPoints
	Method       string
	Details      map[string]any
	Status       PayoutStatus
	Notes        string
	RequestedAt  time.Time
	ApprovedAt   *time.Time
	CompletedAt  *time.Time
	RejectedAt   *time.Time
}
