// Package lifecycle is the account state machine.
package lifecycle

import (
	"time"

	"propdesk/internal/balance"
	"propdesk/internal/domain"
	"propdesk/internal/rules"
)

type Event string

const (
	EventPaymentConfirmed  Event = "payment_confirmed"
	EventPaymentFailed     Event = "payment_failed"
	EventTerminalViolation Event = "terminal_violation"
	EventTargetReached     Event = "target_reached"
	EventPromote           Event = "promote"
	EventClose             Event = "close"
)

type edge struct {
	from  domain.State
	event Event
}

var table = map[edge]domain.State{
	{domain.StatePending, EventPaymentConfirmed}:           domain.StateEvaluationActive,
	{domain.StatePending, EventPaymentFailed}:              domain.StateClosed,
	{domain.StateEvaluationActive, EventTerminalViolation}: domain.StateFailed,
	{domain.StateEvaluationActive, EventTargetReached}:     domain.StateEvaluationPassed,
	{domain.StateEvaluationPassed, EventPromote}:           domain.StateFundedActive,
	{domain.StateFundedActive, EventTerminalViolation}:     domain.StateFailed,
	{domain.StateFundedActive, EventClose}:                 domain.StateClosed,
}

// Next returns the state reached from `from` on ev.
func Next(accountID uint64, from domain.State, ev Event) (domain.State, error) {
	if from.Terminal() {
		return from, domain.TerminalAccount(string(ev), accountID, from)
	}
	to, ok := table[edge{from, ev}]
	if !ok {
		return from, domain.InvalidTransition(string(ev), accountID, from, string(ev))
	}
	return to, nil
}

// Transition describes an applied state change.
type Transition struct {
	From   domain.State
	To     domain.State
	Event  Event
	Reason string
	At     time.Time
}

// Apply moves the account along ev and stamps the matching timestamp.
func Apply(a *domain.Account, ev Event, reason string, at time.Time) (Transition, error) {
	to, err := Next(a.ID, a.State, ev)
	if err != nil {
		return Transition{}, err
	}
	tr := Transition{From: a.State, To: to, Event: ev, Reason: reason, At: at}
	ts := at
	switch ev {
	case EventPaymentConfirmed:
		a.ActivatedAt = &ts
	case EventTargetReached:
		a.PassedAt = &ts
	case EventPromote:
		a.FundedAt = &ts
	case EventTerminalViolation:
		a.FailedAt = &ts
		a.FailureReason = reason
	case EventPaymentFailed, EventClose:
		a.ClosedAt = &ts
		a.ClosureReason = reason
	}
	a.State = to
	return tr, nil
}

// Facts is what an evaluation cycle knows when deciding a transition.
type Facts struct {
	State              domain.State
	Metrics            balance.Metrics
	Candidates         []rules.Candidate
	UnresolvedTerminal int64
}

// Decide picks the automatic transition for an evaluation cycle, if any.
// Terminal violations win over target checks.
func Decide(f Facts, t rules.Thresholds) (Event, bool) {
	if !f.State.Trading() {
		return "", false
	}
	if rules.HasTerminal(f.Candidates) {
		return EventTerminalViolation, true
	}
	if f.State != domain.StateEvaluationActive {
		return "", false
	}
	if f.UnresolvedTerminal > 0 {
		return "", false
	}
	if rules.TargetReached(f.Metrics, t) {
		return EventTargetReached, true
	}
	return "", false
}

// FailureReason joins the descriptions of terminal candidates.
func FailureReason(cs []rules.Candidate) string {
	reason := ""
	for _, c := range cs {
		if !c.Terminal() {
			continue
		}
		if reason != "" {
			reason += "; "
		}
		reason += c.Description
	}
	return reason
}
