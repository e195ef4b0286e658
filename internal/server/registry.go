package server

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrDuplicateLogin reports a registration attempt for a username that
// already has an active session. Policy: the new connection is rejected, the
// existing session stays.
var ErrDuplicateLogin = errors.New("server: username already connected")

// Registry is the single source of truth for who is online. It maps session
// identifiers to sessions, with a secondary username index for uniqueness
// enforcement. All operations are safe under concurrent access from every
// connection handler.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byName   map[string]string
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		byName:   make(map[string]string),
	}
}

// Register inserts a session. The username check and the insert happen in
// one critical section so two concurrent logins for the same name cannot
// both succeed; the loser gets ErrDuplicateLogin.
func (r *Registry) Register(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byName[s.Username]; taken {
		return ErrDuplicateLogin
	}

	s.closed = false
	r.sessions[s.ID] = s
	r.byName[s.Username] = s.ID
	return nil
}

// Deregister removes a session from both indices and closes its send queue.
// It is idempotent: deregistering an unknown id is a no-op, and it reports
// whether this call performed the removal so callers can decide who
// announces the departure.
func (r *Registry) Deregister(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, id)
	delete(r.byName, s.Username)
	s.closed = true
	r.mu.Unlock()

	// Close the queue after releasing the lock; the closed flag already
	// stops new sends.
	close(s.send)
	return true
}

// ListActive returns a point-in-time snapshot of all registered sessions.
func (r *Registry) ListActive() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// FindByUsername resolves an active session by username.
func (r *Registry) FindByUsername(name string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	s, ok := r.sessions[id]
	return s, ok
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Usernames returns the sorted, comma-joined active usernames used for
// USERLIST broadcasts.
func (r *Registry) Usernames() string {
	r.mu.RLock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return strings.Join(names, ",")
}
