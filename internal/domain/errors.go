package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Wrap them with *Error and test with errors.Is.
var (
	ErrValidation             = errors.New("validation error")
	ErrStaleMarketData        = errors.New("stale market data")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrIneligiblePayout       = errors.New("ineligible payout")
	ErrTerminalAccount        = errors.New("account is terminal")
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrNotFound               = errors.New("not found")
)

type Error struct {
	Kind      error
	Op        string
	AccountID uint64
	Reason    string
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.AccountID != 0 {
		msg = fmt.Sprintf("%s (account %d)", msg, e.AccountID)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, op string, accountID uint64, format string, args ...any) error {
	reason := format
	if len(args) > 0 {
		reason = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Op: op, AccountID: accountID, Reason: reason}
}

func Validation(op string, format string, args ...any) error {
	return newError(ErrValidation, op, 0, format, args...)
}

func StaleMarketData(op string, accountID uint64, format string, args ...any) error {
	return newError(ErrStaleMarketData, op, accountID, format, args...)
}

func ConcurrentModification(op string, accountID uint64) error {
	return newError(ErrConcurrentModification, op, accountID, "")
}

func IneligiblePayout(op string, accountID uint64, format string, args ...any) error {
	return newError(ErrIneligiblePayout, op, accountID, format, args...)
}

func TerminalAccount(op string, accountID uint64, state State) error {
	return newError(ErrTerminalAccount, op, accountID, "state %s", state)
}

func InvalidTransition(op string, accountID uint64, from State, event string) error {
	return newError(ErrInvalidTransition, op, accountID, "%s not allowed from %s", event, from)
}

func NotFound(op string, what string, id uint64) error {
	return newError(ErrNotFound, op, 0, "%s %d", what, id)
}

// Retryable reports whether err is worth retrying from fresh reads.
func Retryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
