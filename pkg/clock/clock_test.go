package clock

import (
	"regexp"
	"testing"
	"time"
)

func TestFixed_ReturnsInstant(t *testing.T) {
	instant := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := Fixed{Instant: instant}
	if !c.Now().Equal(instant) {
		t.Errorf("expected %v, got %v", instant, c.Now())
	}
}

func TestTransactionReference_Format(t *testing.T) {
	g := NewIDGenerator()
	now := time.Date(2025, 6, 1, 12, 34, 56, 0, time.UTC)

	ref := g.TransactionReference(now)

	pattern := regexp.MustCompile(`^TXN-OCPP-20250601123456-[A-Z0-9]{4}$`)
	if !pattern.MatchString(ref) {
		t.Errorf("reference %q does not match expected format", ref)
	}
}

func TestProtocolTransactionID_Positive(t *testing.T) {
	g := NewIDGenerator()
	for i := 0; i < 100; i++ {
		if id := g.ProtocolTransactionID(); id <= 0 {
			t.Fatalf("expected positive transaction id, got %d", id)
		}
	}
}
