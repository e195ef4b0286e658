package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// banHashKey is the Redis hash holding the ban list, field = identity,
// value = JSON-encoded BanRecord.
const banHashKey = "parley:bans"

const redisOpTimeout = 3 * time.Second

// RedisBanStore persists the ban list in a Redis hash so several tools (or a
// restarted server) share one authoritative list.
type RedisBanStore struct {
	rdb redis.UniversalClient
}

// NewRedisBanStore wraps an existing Redis client. The caller owns the
// client's lifetime except that Close here closes it.
func NewRedisBanStore(rdb redis.UniversalClient) *RedisBanStore {
	return &RedisBanStore{rdb: rdb}
}

// OpenRedisBanStore connects to a standalone Redis at addr and verifies the
// connection with a ping.
func OpenRedisBanStore(addr string) (*RedisBanStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return &RedisBanStore{rdb: rdb}, nil
}

// Load reads the full ban list.
func (s *RedisBanStore) Load() ([]BanRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	fields, err := s.rdb.HGetAll(ctx, banHashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("loading ban list: %w", err)
	}

	recs := make([]BanRecord, 0, len(fields))
	for identity, raw := range fields {
		var rec BanRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("parsing ban entry for %q: %w", identity, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Append persists one ban entry, replacing any existing entry for the same
// identity.
func (s *RedisBanStore) Append(rec BanRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := s.rdb.HSet(ctx, banHashKey, rec.Identity, raw).Err(); err != nil {
		return fmt.Errorf("persisting ban for %q: %w", rec.Identity, err)
	}
	return nil
}

// Remove deletes the entry for identity, if present.
func (s *RedisBanStore) Remove(identity string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := s.rdb.HDel(ctx, banHashKey, identity).Err(); err != nil {
		return fmt.Errorf("removing ban for %q: %w", identity, err)
	}
	return nil
}

// Close releases the Redis client.
func (s *RedisBanStore) Close() error {
	return s.rdb.Close()
}
