package server

import (
	"sync"
	"time"
)

type rateLimiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	hits   []time.Time
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Second
	}

	return &rateLimiter{
		max:    max,
		window: window,
		hits:   make([]time.Time, 0, max),
	}
}

// allow reports whether a message at now fits the sliding window: after
// evicting timestamps older than the window, fewer than max must remain.
// Throttled attempts are not recorded, so a flooding client still recovers
// as soon as its allowed messages age out.
func (rl *rateLimiter) allow(now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-rl.window)
	kept := rl.hits[:0]
	for _, t := range rl.hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	rl.hits = kept

	if len(rl.hits) >= rl.max {
		return false
	}

	rl.hits = append(rl.hits, now)
	return true
}
