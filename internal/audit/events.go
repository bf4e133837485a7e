package audit

import (
	"fmt"
	"strings"

	"propdesk/internal/domain"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event is one audit record. Events about an account are grouped on the log
// service by the account number.
type Event struct {
	Action        string
	Level         Level
	AccountID     uint64
	AccountNumber string
	Details       map[string]any
}

func (e Event) sessionKey() string {
	switch {
	case e.AccountNumber != "":
		return "account:" + e.AccountNumber
	case e.AccountID != 0:
		return fmt.Sprintf("account:%d", e.AccountID)
	}
	return ""
}

// TransitionEvent records a lifecycle move. Failures are warnings.
func TransitionEvent(a domain.Account, from, to domain.State, reason string) Event {
	lvl := LevelInfo
	if to == domain.StateFailed {
		lvl = LevelWarn
	}
	details := map[string]any{
		"from":    string(from),
		"to":      string(to),
		"reason":  reason,
		"balance": a.CurrentBalance.String(),
		"hwm":     a.HighWaterMark.String(),
	}
	if to == domain.StateFailed {
		details["daily_loss"] = a.DailyLoss.String()
		details["total_loss"] = a.TotalLoss.String()
	}
	return Event{
		Action:        "account_" + strings.ToLower(string(to)),
		Level:         lvl,
		AccountID:     a.ID,
		AccountNumber: a.AccountNumber,
		Details:       details,
	}
}

// PayoutEvent records a payout request or a step in its review.
func PayoutEvent(p domain.PayoutRequest) Event {
	lvl := LevelInfo
	if p.Status == domain.PayoutRejected {
		lvl = LevelWarn
	}
	details := map[string]any{
		"payout_id":    p.ID,
		"reference":    p.Reference,
		"amount":       p.Amount.String(),
		"profit":       p.ProfitEarned.String(),
		"profit_split": p.ProfitSplit.String(),
		"method":       p.Method,
	}
	if p.Notes != "" {
		details["notes"] = p.Notes
	}
	return Event{
		Action:    "payout_" + strings.ToLower(string(p.Status)),
		Level:     lvl,
		AccountID: p.AccountID,
		Details:   details,
	}
}

// SweepFailedEvent records a scheduled sweep that did not finish.
func SweepFailedEvent(accounts, evaluated, failed int, err error) Event {
	details := map[string]any{
		"accounts":  accounts,
		"evaluated": evaluated,
		"failed":    failed,
	}
	if err != nil {
		details["error"] = err.Error()
	}
	return Event{Action: "sweep_failed", Level: LevelWarn, Details: details}
}

func levelFromStatus(status int) Level {
	switch {
	case status >= 500:
		return LevelError
	case status >= 400:
		return LevelWarn
	}
	return LevelInfo
}
