package wasapi

import (
	"math"
	"testing"
	"time"
)

func TestStreamInstantArithmetic(t *testing.T) {
	a := NewStreamInstant(1, 500)
	b := NewStreamInstant(3, 0)

	d, ok := b.DurationSince(a)
	if !ok || d != 2*time.Second-500 {
		t.Fatalf("unexpected duration: %v %v", d, ok)
	}
	if _, ok := a.DurationSince(b); ok {
		t.Fatal("duration since a later instant should fail")
	}

	c, ok := a.Add(2*time.Second - 500)
	if !ok || c != b {
		t.Fatalf("unexpected add result: %v %v", c, ok)
	}
	c, ok = c.Sub(2*time.Second - 500)
	if !ok || c != a {
		t.Fatalf("unexpected sub result: %v %v", c, ok)
	}
	if !a.Before(b) || b.Before(a) {
		t.Fatal("unexpected ordering")
	}
}

func TestStreamInstantOverflow(t *testing.T) {
	hi := StreamInstant{ns: math.MaxInt64}
	if _, ok := hi.Add(1); ok {
		t.Fatal("add should overflow")
	}
	lo := StreamInstant{ns: math.MinInt64}
	if _, ok := lo.Sub(1); ok {
		t.Fatal("sub should overflow")
	}
	if _, ok := hi.Sub(math.MinInt64); ok {
		t.Fatal("sub of the minimum duration should overflow")
	}
}

// TestStreamInstantFromPerfCounter asserts 100ns counter positions convert to
// nanoseconds.
func TestStreamInstantFromPerfCounter(t *testing.T) {
	si, ok := streamInstantFromPerfCounter(12345)
	if !ok || si.Nanoseconds() != 1234500 {
		t.Fatalf("unexpected instant: %v %v", si, ok)
	}
	if _, ok := streamInstantFromPerfCounter(math.MaxUint64); ok {
		t.Fatal("conversion should overflow")
	}
}
