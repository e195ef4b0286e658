package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisBanStore(t *testing.T) *RedisBanStore {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisBanStore(rdb)
}

// TestRedisBanStoreRoundTrip verifies append, replace, remove, and load
// against a Redis backend.
func TestRedisBanStoreRoundTrip(t *testing.T) {
	s := newRedisBanStore(t)

	recs, err := s.Load()
	if err != nil {
		t.Fatalf("Load on empty backend failed: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("empty backend loaded %d records, want 0", len(recs))
	}

	now := time.Now().UTC().Truncate(time.Second)
	if err := s.Append(BanRecord{Identity: "alice", Reason: "spam", BannedAt: now}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := s.Append(BanRecord{Identity: "alice", Reason: "worse spam", BannedAt: now}); err != nil {
		t.Fatalf("re-Append failed: %v", err)
	}
	if err := s.Append(BanRecord{Identity: "bob", Reason: "flood", BannedAt: now}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	recs, err = s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("loaded %d records, want 2", len(recs))
	}
	byIdentity := map[string]BanRecord{}
	for _, r := range recs {
		byIdentity[r.Identity] = r
	}
	if byIdentity["alice"].Reason != "worse spam" {
		t.Errorf("alice's reason = %q, want the replacement", byIdentity["alice"].Reason)
	}
	if !byIdentity["bob"].BannedAt.Equal(now) {
		t.Errorf("bob's timestamp = %v, want %v", byIdentity["bob"].BannedAt, now)
	}

	if err := s.Remove("alice"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	recs, err = s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(recs) != 1 || recs[0].Identity != "bob" {
		t.Errorf("after removal got %v, want only bob", recs)
	}
}
