package domain

import (
	"sort"
	"time"

	"propdesk/internal/money"
)

type State string

const (
	StatePending          State = "PENDING"
	StateEvaluationActive State = "EVALUATION_ACTIVE"
	StateEvaluationPassed State = "EVALUATION_PASSED"
	StateFundedActive     State = "FUNDED_ACTIVE"
	StateFailed           State = "FAILED"
	StateClosed           State = "CLOSED"
)

func (s State) Terminal() bool {
	return s == StateFailed || s == StateClosed
}

// Trading reports whether rules are enforced in this state.
func (s State) Trading() bool {
	return s == StateEvaluationActive || s == StateFundedActive
}

func (s State) Valid() bool {
	switch s {
	case StatePending, StateEvaluationActive, StateEvaluationPassed, StateFundedActive, StateFailed, StateClosed:
		return true
	}
	return false
}

// Day is a trading-day label in 2006-01-02 form.
type Day string

const DayLayout = "2006-01-02"

func DayOf(t time.Time) Day {
	return Day(t.Format(DayLayout))
}

// Account is the aggregate mutated by evaluation and lifecycle commands.
type Account struct {
	ID              uint64
	AccountNumber   string
	PlanID          uint64
	State           State
	StartingBalance money.Cents
	CurrentBalance  money.Cents
	HighWaterMark   money.Cents
	DayOpenBalance  money.Cents
	TradingDay      Day
	DailyLoss       money.Cents
	TotalLoss       money.Cents
	ProfitEarned    money.Cents
	PayoutBaseline  money.Cents
	TotalPaidOut    money.Cents
	TradingDays     []Day
	StaleMarks      int
	FailureReason   string
	ClosureReason   string
	LastEvaluatedAt *time.Time
	ActivatedAt     *time.Time
	PassedAt        *time.Time
	FundedAt        *time.Time
	FailedAt        *time.Time
	ClosedAt        *time.Time
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewAccount binds a fresh PENDING account to plan.
func NewAccount(number string, plan Plan, now time.Time) Account {
	return Account{
		AccountNumber:   number,
		PlanID:          plan.ID,
		State:           StatePending,
		StartingBalance: plan.StartingBalance,
		CurrentBalance:  plan.StartingBalance,
		HighWaterMark:   plan.StartingBalance,
		DayOpenBalance:  plan.StartingBalance,
		PayoutBaseline:  plan.StartingBalance,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (a Account) Validate() error {
	const op = "account.validate"
	switch {
	case a.PlanID == 0:
		return Validation(op, "plan is required")
	case !a.State.Valid():
		return Validation(op, "unknown state %q", a.State)
	case a.StartingBalance <= 0:
		return Validation(op, "starting balance must be positive")
	case a.HighWaterMark < a.StartingBalance:
		return Validation(op, "high water mark %s below starting balance %s", a.HighWaterMark, a.StartingBalance)
	}
	return nil
}

// Clone returns a deep copy so callers can mutate without aliasing TradingDays.
func (a Account) Clone() Account {
	out := a
	out.TradingDays = append([]Day(nil), a.TradingDays...)
	return out
}

func (a Account) HasTradingDay(d Day) bool {
	for _, x := range a.TradingDays {
		if x == d {
			return true
		}
	}
	return false
}

// MergeDays returns the sorted union of two day sets.
func MergeDays(a, b []Day) []Day {
	seen := make(map[Day]struct{}, len(a)+len(b))
	out := make([]Day, 0, len(a)+len(b))
	for _, set := range [][]Day{a, b} {
		for _, d := range set {
			if d == "" {
				continue
			}
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
