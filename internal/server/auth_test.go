package server

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/parley-chat/parley/internal/store"
)

func newTestGate(t *testing.T) (*Gate, *Moderation) {
	t.Helper()

	users, err := store.OpenFileUserStore(filepath.Join(t.TempDir(), "users.json"))
	if err != nil {
		t.Fatalf("opening user store: %v", err)
	}
	for _, u := range []struct{ name, pass, role string }{
		{"alice", "secret123", store.RoleRegular},
		{"carol", "hunter2xx", store.RoleAdmin},
	} {
		hash, err := store.HashPassword(u.pass)
		if err != nil {
			t.Fatalf("hashing password: %v", err)
		}
		rec := &store.UserRecord{Username: u.name, PasswordHash: hash, Role: u.role}
		if err := users.Create(rec); err != nil {
			t.Fatalf("creating %s: %v", u.name, err)
		}
	}

	m := newTestModeration(t)
	return NewGate(users, m), m
}

// TestAuthenticateSuccess verifies accepted credentials and role reporting.
func TestAuthenticateSuccess(t *testing.T) {
	gate, _ := newTestGate(t)

	role, err := gate.Authenticate("alice", "secret123")
	if err != nil {
		t.Fatalf("Authenticate(alice) failed: %v", err)
	}
	if role != store.RoleRegular {
		t.Errorf("alice's role = %q, want %q", role, store.RoleRegular)
	}

	role, err = gate.Authenticate("carol", "hunter2xx")
	if err != nil {
		t.Fatalf("Authenticate(carol) failed: %v", err)
	}
	if role != store.RoleAdmin {
		t.Errorf("carol's role = %q, want %q", role, store.RoleAdmin)
	}
}

// TestAuthenticateRejections verifies each rejection reason.
func TestAuthenticateRejections(t *testing.T) {
	gate, moderation := newTestGate(t)
	if err := moderation.Ban("alice", "spam"); err != nil {
		t.Fatalf("Ban failed: %v", err)
	}

	cases := []struct {
		name     string
		username string
		secret   string
		want     error
	}{
		{"missing username", "", "x", ErrMissingCredentials},
		{"missing secret", "alice", "", ErrMissingCredentials},
		{"unknown user", "mallory", "whatever", ErrUnknownUser},
		{"wrong password", "carol", "not-the-password", ErrBadSecret},
		{"banned identity", "alice", "secret123", ErrBanned},
	}

	for _, tc := range cases {
		if _, err := gate.Authenticate(tc.username, tc.secret); !errors.Is(err, tc.want) {
			t.Errorf("%s: Authenticate returned %v, want %v", tc.name, err, tc.want)
		}
	}
}

// TestAuthenticateBanCheckedFirst verifies that a banned identity is
// rejected as banned even with wrong credentials, leaking nothing about
// their validity.
func TestAuthenticateBanCheckedFirst(t *testing.T) {
	gate, moderation := newTestGate(t)
	if err := moderation.Ban("alice", "spam"); err != nil {
		t.Fatalf("Ban failed: %v", err)
	}

	if _, err := gate.Authenticate("alice", "wrong-password"); !errors.Is(err, ErrBanned) {
		t.Errorf("Authenticate returned %v, want ErrBanned", err)
	}
}
