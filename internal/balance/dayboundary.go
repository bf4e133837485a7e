package balance

import (
	"fmt"
	"strings"
	"time"

	"propdesk/internal/domain"
)

// DayBoundary decides which trading day an instant belongs to.
type DayBoundary interface {
	TradingDay(t time.Time) domain.Day
	DayStart(t time.Time) time.Time
}

// UTCCutoff rolls the trading day at Hour:00 UTC. A day is labelled with the
// calendar date on which it starts.
type UTCCutoff struct {
	Hour int
}

func (u UTCCutoff) DayStart(t time.Time) time.Time {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), u.hour(), 0, 0, 0, time.UTC)
	if t.Before(start) {
		start = start.AddDate(0, 0, -1)
	}
	return start
}

func (u UTCCutoff) TradingDay(t time.Time) domain.Day {
	return domain.DayOf(u.DayStart(t))
}

func (u UTCCutoff) hour() int {
	if u.Hour < 0 || u.Hour > 23 {
		return 0
	}
	return u.Hour
}

// SessionClose rolls the trading day at a market session close in Location,
// e.g. 17:00 America/New_York. Activity after the close belongs to the next
// calendar date.
type SessionClose struct {
	Location *time.Location
	Hour     int
	Minute   int
}

func (s SessionClose) DayStart(t time.Time) time.Time {
	local := t.In(s.loc())
	closeAt := time.Date(local.Year(), local.Month(), local.Day(), s.Hour, s.Minute, 0, 0, s.loc())
	if local.Before(closeAt) {
		closeAt = closeAt.AddDate(0, 0, -1)
	}
	return closeAt
}

func (s SessionClose) TradingDay(t time.Time) domain.Day {
	start := s.DayStart(t)
	return domain.DayOf(start.AddDate(0, 0, 1))
}

func (s SessionClose) loc() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// NewDayBoundary builds a policy by name: "utc" (default) or "session".
// sessionClose is "HH:MM" and only used by "session".
func NewDayBoundary(policy string, cutoffHour int, timezone string, sessionClose string) (DayBoundary, error) {
	switch strings.ToLower(strings.TrimSpace(policy)) {
	case "", "utc", "utc_cutoff":
		if cutoffHour < 0 || cutoffHour > 23 {
			return nil, fmt.Errorf("day boundary: cutoff hour %d out of range", cutoffHour)
		}
		return UTCCutoff{Hour: cutoffHour}, nil
	case "session", "session_close":
		loc, err := time.LoadLocation(strings.TrimSpace(timezone))
		if err != nil {
			return nil, fmt.Errorf("day boundary: %w", err)
		}
		hm, err := time.Parse("15:04", strings.TrimSpace(sessionClose))
		if err != nil {
			return nil, fmt.Errorf("day boundary: session close %q: %w", sessionClose, err)
		}
		return SessionClose{Location: loc, Hour: hm.Hour(), Minute: hm.Minute()}, nil
	default:
		return nil, fmt.Errorf("day boundary: unknown policy %q", policy)
	}
}
