package server

import (
	"testing"
	"time"
)

// TestRateLimiterWindow verifies the sliding-window contract: M messages
// within the window all pass, the (M+1)th is throttled, and once the window
// has slid past the oldest hit a further message passes again.
func TestRateLimiterWindow(t *testing.T) {
	const max = 5
	window := 10 * time.Second
	rl := newRateLimiter(max, window)

	base := time.Now()
	for i := 0; i < max; i++ {
		if !rl.allow(base.Add(time.Duration(i) * time.Second)) {
			t.Fatalf("message %d inside the window was throttled", i+1)
		}
	}

	if rl.allow(base.Add(5 * time.Second)) {
		t.Fatal("message beyond the limit was allowed inside the window")
	}

	// The first hit was at base; just past base+window it must have aged out.
	if !rl.allow(base.Add(window + time.Millisecond)) {
		t.Fatal("message after the window slid was still throttled")
	}
}

// TestRateLimiterThrottledNotRecorded verifies that rejected attempts do not
// extend the throttle: spamming while throttled must not delay recovery.
func TestRateLimiterThrottledNotRecorded(t *testing.T) {
	rl := newRateLimiter(2, time.Second)

	base := time.Now()
	if !rl.allow(base) || !rl.allow(base) {
		t.Fatal("initial messages throttled unexpectedly")
	}

	// Hammer while throttled.
	for i := 0; i < 10; i++ {
		if rl.allow(base.Add(500 * time.Millisecond)) {
			t.Fatal("throttled message was allowed")
		}
	}

	// Both recorded hits age out at base+1s regardless of the hammering.
	if !rl.allow(base.Add(time.Second + time.Millisecond)) {
		t.Fatal("recovery delayed by throttled attempts")
	}
}

// TestRateLimiterDefaults verifies the guard rails for nonsensical
// construction parameters.
func TestRateLimiterDefaults(t *testing.T) {
	rl := newRateLimiter(0, 0)

	now := time.Now()
	if !rl.allow(now) {
		t.Error("first message throttled with defaulted capacity")
	}
	if rl.allow(now) {
		t.Error("second immediate message allowed with capacity 1")
	}
}
