package clock

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Clock abstracts time.Now so services and tests share one source of truth.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces the identifiers that would otherwise come from
// ambient randomness: settlement references and fallback protocol
// transaction ids.
type IDGenerator interface {
	TransactionReference(now time.Time) string
	ProtocolTransactionID() int
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// System returns the wall clock in UTC.
func System() Clock { return systemClock{} }

const refAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

type randomIDGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewIDGenerator returns the production generator seeded from the clock.
func NewIDGenerator() IDGenerator {
	return &randomIDGenerator{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (g *randomIDGenerator) TransactionReference(now time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = refAlphabet[g.rng.Intn(len(refAlphabet))]
	}
	return fmt.Sprintf("TXN-OCPP-%s-%s", now.Format("20060102150405"), suffix)
}

func (g *randomIDGenerator) ProtocolTransactionID() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Intn(2_000_000_000) + 1
}

// Fixed is a test clock pinned to one instant.
type Fixed struct {
	Instant time.Time
}

func (f Fixed) Now() time.Time { return f.Instant }
