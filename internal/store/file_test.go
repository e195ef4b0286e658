package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// TestFileUserStoreCreateLookup verifies record creation, lookup, the
// duplicate guard, and that records survive reopening the store.
func TestFileUserStoreCreateLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")

	s, err := OpenFileUserStore(path)
	if err != nil {
		t.Fatalf("OpenFileUserStore failed: %v", err)
	}

	if _, err := s.Lookup("alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup on empty store returned %v, want ErrNotFound", err)
	}

	hash, err := HashPassword("secret123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	rec := &UserRecord{Username: "alice", PasswordHash: hash, Role: RoleAdmin}
	if err := s.Create(rec); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.Create(rec); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate Create returned %v, want ErrExists", err)
	}

	got, err := s.Lookup("alice")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got.Role != RoleAdmin {
		t.Errorf("role = %q, want %q", got.Role, RoleAdmin)
	}
	if !VerifyPassword("secret123", got.PasswordHash) {
		t.Error("stored hash does not verify the original password")
	}
	if VerifyPassword("wrong", got.PasswordHash) {
		t.Error("stored hash verifies the wrong password")
	}

	reopened, err := OpenFileUserStore(path)
	if err != nil {
		t.Fatalf("reopening store failed: %v", err)
	}
	if _, err := reopened.Lookup("alice"); err != nil {
		t.Errorf("record did not survive reopen: %v", err)
	}
}

// TestFileUserStoreRoleNormalization verifies that unknown roles collapse to
// regular on create.
func TestFileUserStoreRoleNormalization(t *testing.T) {
	s, err := OpenFileUserStore(filepath.Join(t.TempDir(), "users.json"))
	if err != nil {
		t.Fatalf("OpenFileUserStore failed: %v", err)
	}

	if err := s.Create(&UserRecord{Username: "bob", PasswordHash: "x", Role: "superuser"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	rec, err := s.Lookup("bob")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if rec.Role != RoleRegular {
		t.Errorf("role = %q, want %q", rec.Role, RoleRegular)
	}
}

// TestFileBanStoreRoundTrip verifies append, replace-on-reappend, remove,
// and load against the backing file.
func TestFileBanStoreRoundTrip(t *testing.T) {
	s := NewFileBanStore(filepath.Join(t.TempDir(), "bans.json"))

	recs, err := s.Load()
	if err != nil {
		t.Fatalf("Load on missing file failed: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("missing file loaded %d records, want 0", len(recs))
	}

	now := time.Now().UTC()
	if err := s.Append(BanRecord{Identity: "alice", Reason: "spam", BannedAt: now}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := s.Append(BanRecord{Identity: "bob", Reason: "flood", BannedAt: now}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	// Re-appending the same identity replaces rather than duplicates.
	if err := s.Append(BanRecord{Identity: "alice", Reason: "worse spam", BannedAt: now}); err != nil {
		t.Fatalf("re-Append failed: %v", err)
	}

	recs, err = s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("loaded %d records, want 2", len(recs))
	}
	reasons := map[string]string{}
	for _, r := range recs {
		reasons[r.Identity] = r.Reason
	}
	if reasons["alice"] != "worse spam" {
		t.Errorf("alice's reason = %q, want the replacement", reasons["alice"])
	}

	if err := s.Remove("alice"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := s.Remove("nobody"); err != nil {
		t.Fatalf("Remove of absent identity failed: %v", err)
	}

	recs, err = s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(recs) != 1 || recs[0].Identity != "bob" {
		t.Errorf("after removal got %v, want only bob", recs)
	}
}
