package idgen

import (
	"strings"
	"testing"
	"time"
)

func TestSequenceIsOrdered(t *testing.T) {
	s := NewSequence()
	prev := ""
	for i := 0; i < 1000; i++ {
		id := s.Next()
		if id <= prev {
			t.Fatalf("id %s not after %s", id, prev)
		}
		prev = id
	}
}

func TestSequenceSurvivesClockStepBack(t *testing.T) {
	s := NewSequence()
	at := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return at }
	first := s.Next()
	at = at.Add(-time.Minute)
	second := s.Next()
	if second <= first {
		t.Fatalf("second=%s not after first=%s", second, first)
	}
}

func TestAccountNumber(t *testing.T) {
	n, err := AccountNumber()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(n) != 10 || !strings.HasPrefix(n, "PA") {
		t.Fatalf("number=%q", n)
	}
}

func TestReferenceUnique(t *testing.T) {
	if Reference() == Reference() {
		t.Fatalf("references collide")
	}
}
