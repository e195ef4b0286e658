package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/parley-chat/parley/internal/store"
)

// BanEntry is the in-memory form of a persisted ban.
type BanEntry struct {
	Identity string
	Reason   string
	BannedAt time.Time
}

// muteEntry tracks one session's mute. A zero until means indefinite.
// warned makes the "you are muted" notice fire once per mute, not per
// suppressed message.
type muteEntry struct {
	until  time.Time
	warned bool
}

// Moderation is the authoritative state for bans and mutes. It is shared by
// every connection handler and guarded by a single mutex; ban mutations are
// mirrored to the persistence store before the in-memory state changes.
type Moderation struct {
	mu    sync.Mutex
	bans  map[string]BanEntry
	mutes map[string]*muteEntry
	store store.BanStore
}

// NewModeration loads the persisted ban list and returns the moderation
// state. A nil store keeps everything in memory.
func NewModeration(bs store.BanStore) (*Moderation, error) {
	m := &Moderation{
		bans:  make(map[string]BanEntry),
		mutes: make(map[string]*muteEntry),
		store: bs,
	}

	if bs != nil {
		recs, err := bs.Load()
		if err != nil {
			return nil, fmt.Errorf("loading ban list: %w", err)
		}
		for _, rec := range recs {
			m.bans[rec.Identity] = BanEntry{
				Identity: rec.Identity,
				Reason:   rec.Reason,
				BannedAt: rec.BannedAt,
			}
		}
	}
	return m, nil
}

// IsBanned reports whether an identity is on the ban list. Bans never
// auto-expire; only Unban clears them.
func (m *Moderation) IsBanned(identity string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, banned := m.bans[identity]
	return banned
}

// Ban adds an identity to the ban list. Banning an already-banned identity
// refreshes the reason and is otherwise a no-op.
func (m *Moderation) Ban(identity, reason string) error {
	entry := BanEntry{Identity: identity, Reason: reason, BannedAt: time.Now()}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store != nil {
		rec := store.BanRecord{Identity: entry.Identity, Reason: entry.Reason, BannedAt: entry.BannedAt}
		if err := m.store.Append(rec); err != nil {
			return err
		}
	}
	m.bans[identity] = entry
	return nil
}

// Unban removes an identity from the ban list, reporting whether it was
// banned. Unbanning an unknown identity is a no-op.
func (m *Moderation) Unban(identity string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, banned := m.bans[identity]; !banned {
		return false, nil
	}
	if m.store != nil {
		if err := m.store.Remove(identity); err != nil {
			return false, err
		}
	}
	delete(m.bans, identity)
	return true, nil
}

// Mute suppresses a session's outbound chat for the given duration. A
// non-positive duration mutes indefinitely (until the session ends).
func (m *Moderation) Mute(sessionID string, d time.Duration) {
	entry := &muteEntry{}
	if d > 0 {
		entry.until = time.Now().Add(d)
	}

	m.mu.Lock()
	m.mutes[sessionID] = entry
	m.mu.Unlock()
}

// CheckMute reports whether a session is muted at now, how long remains
// (zero for indefinite), and whether this is the first suppressed message of
// the mute so the caller can warn exactly once. Expired mutes are cleaned up
// and treated as not muted without any explicit unmute.
func (m *Moderation) CheckMute(sessionID string, now time.Time) (muted bool, remaining time.Duration, warn bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.mutes[sessionID]
	if !ok {
		return false, 0, false
	}

	if !entry.until.IsZero() && !now.Before(entry.until) {
		delete(m.mutes, sessionID)
		return false, 0, false
	}

	if !entry.until.IsZero() {
		remaining = entry.until.Sub(now)
	}
	warn = !entry.warned
	entry.warned = true
	return true, remaining, warn
}

// IsMuted reports whether a session is muted at now, without touching the
// warn-once state.
func (m *Moderation) IsMuted(sessionID string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.mutes[sessionID]
	if !ok {
		return false
	}
	if !entry.until.IsZero() && !now.Before(entry.until) {
		delete(m.mutes, sessionID)
		return false
	}
	return true
}

// ClearMute drops any mute for a session. Called at deregistration; mutes
// are keyed by session ID and die with the session.
func (m *Moderation) ClearMute(sessionID string) {
	m.mu.Lock()
	delete(m.mutes, sessionID)
	m.mu.Unlock()
}
