package server

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parley-chat/parley/internal/protocol"
	"github.com/parley-chat/parley/internal/store"
)

// sendQueueSize is the per-session outbound buffer. A session that falls
// this far behind is treated as unreachable and deregistered.
const sendQueueSize = 256

// Session is the server-side record of one authenticated, connected client.
// It is owned by the Registry from registration to deregistration; the
// connection handler only holds a reference.
type Session struct {
	ID        string
	Username  string
	Role      string
	CreatedAt time.Time

	conn    protocol.Conn
	send    chan *protocol.Frame
	limiter *rateLimiter

	// closed is guarded by the owning Registry's mutex, mirroring how the
	// registry guards its indices. It stops sends racing channel close.
	closed bool

	closeOnce sync.Once
}

// NewSession wraps an authenticated connection in a Session with a fresh
// identifier and its own rate limiter.
func NewSession(conn protocol.Conn, username, role string, rl RateLimitConfig) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Username:  username,
		Role:      store.NormalizeRole(role),
		CreatedAt: time.Now(),
		conn:      conn,
		send:      make(chan *protocol.Frame, sendQueueSize),
		limiter:   newRateLimiter(rl.MaxMessages, rl.Window),
	}
}

// IsAdmin reports whether the session may issue moderation commands.
func (s *Session) IsAdmin() bool {
	return s.Role == store.RoleAdmin
}

// RemoteAddr returns the peer address for logging.
func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr()
}

// Close force-closes the underlying connection, unblocking any pending read.
// Safe to call from any goroutine, any number of times.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection for %s: %v", s.Username, err)
		}
	})
}

// writePump drains the send queue onto the connection. It is the session's
// only writer after authentication, which gives every recipient FIFO
// delivery. It exits when the queue is closed by deregistration or when a
// write fails.
func (s *Session) writePump() {
	defer s.Close()

	for frame := range s.send {
		if err := s.conn.WriteFrame(frame); err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Error writing to %s (%s): %v", s.Username, s.RemoteAddr(), err)
			}
			return
		}
	}
}
