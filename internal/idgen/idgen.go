// Package idgen produces activity sequence keys and account numbers.
package idgen

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Sequence hands out ULIDs that sort in generation order, including across
// a backwards clock step.
type Sequence struct {
	mu     sync.Mutex
	mono   io.Reader
	lastMS uint64
	now    func() time.Time
}

func NewSequence() *Sequence {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Sequence{
		mono: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Sequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := ulid.Timestamp(s.now())
	if ms < s.lastMS {
		ms = s.lastMS
	}
	id, err := ulid.New(ms, s.mono)
	if err != nil {
		// Monotonic entropy overflowed within one millisecond.
		ms++
		id = ulid.MustNew(ms, s.mono)
	}
	s.lastMS = ms
	return id.String()
}

var defaultSeq = NewSequence()

// Next returns a ULID from the process-wide sequence.
func Next() string {
	return defaultSeq.Next()
}

// AccountNumber returns "PA" followed by 8 random digits.
func AccountNumber() (string, error) {
	n, err := cryptoRand.Int(cryptoRand.Reader, big.NewInt(100_000_000))
	if err != nil {
		return "", fmt.Errorf("account number: %w", err)
	}
	return fmt.Sprintf("PA%08d", n.Int64()), nil
}

// Reference returns an opaque external reference for payout requests.
func Reference() string {
	return uuid.NewString()
}
