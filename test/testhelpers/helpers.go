// Package testhelpers provides common utilities for testing the Parley chat
// server.
//
// It contains reusable helpers shared across unit and integration tests:
// provisioning a throwaway user database, starting a fully wired server on
// an ephemeral port, dialing authenticated clients, and asserting on the
// frames a client receives.
package testhelpers

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/parley-chat/parley/internal/client"
	"github.com/parley-chat/parley/internal/protocol"
	"github.com/parley-chat/parley/internal/server"
	"github.com/parley-chat/parley/internal/store"
)

// TestUser describes one account to provision in a test server's user
// database.
type TestUser struct {
	Name string
	Pass string
	Role string
}

// StartServer provisions a temporary user database with the given accounts,
// wires a file-backed ban store, and starts a server on an ephemeral port.
// The server is shut down when the test finishes.
func StartServer(t *testing.T, cfg server.Config, users ...TestUser) *server.Server {
	t.Helper()

	dir := t.TempDir()
	us, err := store.OpenFileUserStore(filepath.Join(dir, "users.json"))
	if err != nil {
		t.Fatalf("opening user store: %v", err)
	}
	for _, u := range users {
		hash, err := store.HashPassword(u.Pass)
		if err != nil {
			t.Fatalf("hashing password for %s: %v", u.Name, err)
		}
		rec := &store.UserRecord{Username: u.Name, PasswordHash: hash, Role: u.Role}
		if err := us.Create(rec); err != nil {
			t.Fatalf("creating user %s: %v", u.Name, err)
		}
	}

	cfg.Addr = "127.0.0.1:0"
	bans := store.NewFileBanStore(filepath.Join(dir, "bans.json"))

	srv, err := server.New(cfg, us, bans)
	if err != nil {
		t.Fatalf("initializing server: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("starting server: %v", err)
	}
	t.Cleanup(func() {
		_ = srv.Shutdown(2 * time.Second)
	})
	return srv
}

// Dial connects an authenticated client to the test server and closes it
// when the test finishes.
func Dial(t *testing.T, srv *server.Server, username, password string) *client.Client {
	t.Helper()

	c, err := client.Dial(srv.Addr().String(), username, password)
	if err != nil {
		t.Fatalf("dialing as %s: %v", username, err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// WaitForFrame reads the client's incoming channel until a frame of the
// given type arrives, discarding everything else. It fails the test after
// the timeout or if the channel closes first.
func WaitForFrame(t *testing.T, c *client.Client, frameType string, timeout time.Duration) *protocol.Frame {
	t.Helper()
	return WaitForMatch(t, c, timeout, func(f *protocol.Frame) bool {
		return f.Type == frameType
	})
}

// WaitForMatch reads the client's incoming channel until a frame satisfies
// the predicate, discarding everything else.
func WaitForMatch(t *testing.T, c *client.Client, timeout time.Duration, match func(*protocol.Frame) bool) *protocol.Frame {
	t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case frame, ok := <-c.Incoming():
			if !ok {
				t.Fatalf("connection for %s closed while waiting for a frame", c.Username)
				return nil
			}
			if match(frame) {
				return frame
			}
		case <-deadline:
			t.Fatalf("timed out after %s waiting for a frame for %s", timeout, c.Username)
			return nil
		}
	}
}

// ExpectNoFrame watches the client's incoming channel for the given window
// and fails the test if a frame satisfying the predicate arrives. Other
// frames are discarded; a closed channel ends the watch.
func ExpectNoFrame(t *testing.T, c *client.Client, within time.Duration, match func(*protocol.Frame) bool) {
	t.Helper()

	deadline := time.After(within)
	for {
		select {
		case frame, ok := <-c.Incoming():
			if !ok {
				return
			}
			if match(frame) {
				t.Fatalf("unexpected frame for %s: %s %v", c.Username, frame.Type, frame.Body)
			}
		case <-deadline:
			return
		}
	}
}

// WaitForClose waits for the client's incoming channel to close, draining
// any remaining frames.
func WaitForClose(t *testing.T, c *client.Client, timeout time.Duration) {
	t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case _, ok := <-c.Incoming():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("connection for %s still open after %s", c.Username, timeout)
			return
		}
	}
}

// IsChatFrom builds a predicate matching a relayed chat message.
func IsChatFrom(from, text string) func(*protocol.Frame) bool {
	return func(f *protocol.Frame) bool {
		return f.Type == protocol.TypeChat && f.Body["from"] == from && f.Body["text"] == text
	}
}
