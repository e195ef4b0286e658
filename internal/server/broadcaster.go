package server

import (
	"log"
	"strings"

	"github.com/parley-chat/parley/internal/protocol"
)

// Broadcaster fans frames out to registered sessions. Delivery is
// best-effort per recipient: a session whose queue is full or whose
// connection is gone is deregistered and force-closed without affecting
// delivery to anyone else.
type Broadcaster struct {
	registry *Registry
}

// NewBroadcaster creates a broadcaster over the given registry.
func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// SendTo queues a frame for one session. It reports whether the frame was
// accepted; a false return means the session was unreachable and has been
// removed.
func (b *Broadcaster) SendTo(id string, frame *protocol.Frame) bool {
	b.registry.mu.RLock()
	s, ok := b.registry.sessions[id]
	b.registry.mu.RUnlock()
	if !ok {
		return false
	}

	if !b.safeSend(s, frame) {
		b.drop(s)
		return false
	}
	return true
}

// SendAll queues a frame for every registered session, optionally excluding
// one sender. Failed recipients are removed after the sweep so one bad peer
// never aborts the fan-out.
func (b *Broadcaster) SendAll(frame *protocol.Frame, excludeID string) {
	var failed []*Session
	for _, s := range b.registry.ListActive() {
		if excludeID != "" && s.ID == excludeID {
			continue
		}
		if !b.safeSend(s, frame) {
			failed = append(failed, s)
		}
	}

	for _, s := range failed {
		b.drop(s)
	}
}

// safeSend queues a frame without blocking. It holds the registry lock for
// the whole attempt so the queue cannot be closed out from under the send.
func (b *Broadcaster) safeSend(s *Session, frame *protocol.Frame) bool {
	b.registry.mu.RLock()
	defer b.registry.mu.RUnlock()

	if _, exists := b.registry.sessions[s.ID]; !exists || s.closed {
		return false
	}

	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

// drop deregisters an unreachable session and closes its socket so its
// handler unblocks and runs the normal teardown path.
func (b *Broadcaster) drop(s *Session) {
	if b.registry.Deregister(s.ID) {
		log.Printf("Session %s (%s) removed: unreachable during broadcast", s.Username, s.RemoteAddr())
	}
	s.Close()
}

// isExpectedCloseError checks if an error is expected during connection
// closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
