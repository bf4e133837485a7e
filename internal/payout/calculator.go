// Package payout decides payout eligibility and amounts.
package payout

import (
	"strings"
	"time"

	"propdesk/internal/domain"
	"propdesk/internal/money"
)

const op = "request_payout"

// CheckEligibility returns an IneligiblePayout error when the account cannot
// request a payout now.
func CheckEligibility(a domain.Account, outstanding *domain.PayoutRequest) error {
	if a.State.Terminal() {
		return domain.TerminalAccount(op, a.ID, a.State)
	}
	if a.State != domain.StateFundedActive {
		return domain.IneligiblePayout(op, a.ID, "account is %s, payouts need %s", a.State, domain.StateFundedActive)
	}
	if a.ProfitEarned <= 0 {
		return domain.IneligiblePayout(op, a.ID, "no profit earned since last payout")
	}
	if outstanding != nil {
		return domain.IneligiblePayout(op, a.ID, "payout %d is still %s", outstanding.ID, outstanding.Status)
	}
	return nil
}

// Amount is round_half_up(profit × split / 100, 2dp).
func Amount(profit money.Cents, split money.BasisPoints) money.Cents {
	if profit <= 0 || split <= 0 {
		return 0
	}
	return profit.ApplyPercent(split)
}

// NewRequest snapshots the account profit and plan split into a PENDING request.
func NewRequest(a domain.Account, plan domain.Plan, method string, details map[string]any, now time.Time) domain.PayoutRequest {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = domain.DefaultPayoutMethod
	}
	if details == nil {
		details = map[string]any{}
	}
	return domain.PayoutRequest{
		AccountID:    a.ID,
		Amount:       Amount(a.ProfitEarned, plan.ProfitSplit),
		ProfitEarned: a.ProfitEarned,
		ProfitSplit:  plan.ProfitSplit,
		Method:       method,
		Details:      details,
		Status:       domain.PayoutPending,
		RequestedAt:  now,
	}
}

// Settle resets the profit baseline to the current balance so the next
// cycle starts from zero profit.
func Settle(a *domain.Account, p *domain.PayoutRequest, now time.Time) {
	a.PayoutBaseline = a.CurrentBalance
	a.ProfitEarned = 0
	a.TotalPaidOut += p.Amount
	ts := now
	p.Status = domain.PayoutCompleted
	p.CompletedAt = &ts
}

// Approve moves a PENDING request to APPROVED.
func Approve(p *domain.PayoutRequest, now time.Time) error {
	if p.Status != domain.PayoutPending {
		return domain.Validation("approve_payout", "payout %d is %s", p.ID, p.Status)
	}
	ts := now
	p.Status = domain.PayoutApproved
	p.ApprovedAt = &ts
	return nil
}

// CanComplete reports whether the request may be settled.
func CanComplete(p domain.PayoutRequest) error {
	if !p.Status.Outstanding() {
		return domain.Validation("complete_payout", "payout %d is %s", p.ID, p.Status)
	}
	return nil
}

// Reject closes an outstanding request without touching the account.
func Reject(p *domain.PayoutRequest, notes string, now time.Time) error {
	if !p.Status.Outstanding() {
		return domain.Validation("reject_payout", "payout %d is %s", p.ID, p.Status)
	}
	ts := now
	p.Status = domain.PayoutRejected
	p.RejectedAt = &ts
	if notes = strings.TrimSpace(notes); notes != "" {
		p.Notes = notes
	}
	return nil
}
