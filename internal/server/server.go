package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/parley-chat/parley/internal/protocol"
	"github.com/parley-chat/parley/internal/store"
)

// connState tracks the per-connection lifecycle. Every non-terminal state
// reaches stateClosing, and stateClosing always deregisters before the
// socket is released; no code path abandons a registered session.
type connState int

const (
	stateConnecting connState = iota
	stateAuthenticating
	stateActive
	stateClosing
	stateClosed
)

// Server accepts connections and runs the per-connection lifecycle:
// authenticate, register, message loop, deregister. It composes the
// credential gate, session registry, broadcaster, and moderation state.
type Server struct {
	cfg Config

	registry    *Registry
	broadcaster *Broadcaster
	moderation  *Moderation
	gate        *Gate
	users       store.UserStore

	allowedOrigins  map[string]struct{}
	allowAllOrigins bool

	listener net.Listener
	ws       *http.Server
	wsLn     net.Listener

	mu     sync.Mutex
	closed bool
	conns  map[protocol.Conn]struct{}

	wg   sync.WaitGroup
	done chan struct{}
}

// New assembles a server from its configuration and stores. The ban list is
// loaded here; a broken ban store fails startup rather than silently letting
// banned identities back in.
func New(cfg Config, users store.UserStore, bans store.BanStore) (*Server, error) {
	cfg = sanitizeConfig(cfg)

	moderation, err := NewModeration(bans)
	if err != nil {
		return nil, err
	}

	registry := NewRegistry()
	s := &Server{
		cfg:         cfg,
		registry:    registry,
		broadcaster: NewBroadcaster(registry),
		moderation:  moderation,
		gate:        NewGate(users, moderation),
		users:       users,
		conns:       make(map[protocol.Conn]struct{}),
		done:        make(chan struct{}),
	}
	s.allowedOrigins, s.allowAllOrigins = normalizeOrigins(cfg.AllowedOrigins)
	return s, nil
}

// Moderation exposes the moderation state for provisioning and tests.
func (s *Server) Moderation() *Moderation {
	return s.moderation
}

// Registry exposes the session registry for tests and introspection.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Start binds the TCP listener (and the WebSocket endpoint when configured)
// and begins accepting connections. A failure to bind is fatal to startup
// and reported once; there is no restart-in-place for a failed listener.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln
	log.Printf("Chat server listening on %s", ln.Addr())

	go s.acceptLoop()

	if s.cfg.WSAddr != "" {
		if err := s.startWebSocket(); err != nil {
			_ = ln.Close()
			return err
		}
	}
	return nil
}

// Addr returns the bound TCP listen address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// WSAddr returns the bound WebSocket listen address, or nil when the
// endpoint is disabled.
func (s *Server) WSAddr() net.Addr {
	if s.wsLn == nil {
		return nil
	}
	return s.wsLn.Addr()
}

// acceptLoop hands every accepted socket to its own handler goroutine.
// Per-connection errors never terminate this loop; only closing the
// listener does.
func (s *Server) acceptLoop() {
	defer close(s.done)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("Accept error: %v", err)
			continue
		}

		fc := protocol.NewTCPConn(conn, s.cfg.MaxFrameSize, s.cfg.WriteTimeout)
		if !s.trackConn(fc) {
			return
		}
		s.wg.Add(1)
		go s.handleConn(fc)
	}
}

// handleConn drives one connection through the lifecycle state machine.
// Everything that goes wrong here stays local to this connection.
func (s *Server) handleConn(conn protocol.Conn) {
	defer s.wg.Done()
	defer s.untrackConn(conn)

	state := stateConnecting
	var sess *Session

	for state != stateClosed {
		switch state {
		case stateConnecting:
			state = stateAuthenticating

		case stateAuthenticating:
			var err error
			sess, err = s.authenticate(conn)
			if err != nil {
				// Rejected or banned: close without ever touching the
				// registry.
				if cerr := conn.Close(); cerr != nil && !isExpectedCloseError(cerr) {
					log.Printf("Error closing rejected connection from %s: %v", conn.RemoteAddr(), cerr)
				}
				state = stateClosed
				continue
			}
			state = stateActive

		case stateActive:
			state = s.serve(sess)

		case stateClosing:
			s.teardown(sess)
			state = stateClosed
		}
	}
}

// authenticate runs the credential exchange. On success the session is
// registered, its write pump is running, and the join notices have been
// broadcast; on error no registry entry exists.
func (s *Server) authenticate(conn protocol.Conn) (*Session, error) {
	if err := conn.SetReadDeadline(time.Now().Add(s.cfg.AuthTimeout)); err != nil {
		return nil, err
	}

	frame, err := conn.ReadFrame()
	if err != nil {
		log.Printf("Dropping %s before authentication: %v", conn.RemoteAddr(), err)
		return nil, err
	}
	if frame.Type != protocol.TypeAuth {
		_ = conn.WriteFrame(protocol.AuthResult(false, "authentication required"))
		return nil, fmt.Errorf("%w: expected AUTH, got %s", protocol.ErrMalformed, frame.Type)
	}

	username := frame.Body["username"]
	role, err := s.gate.Authenticate(username, frame.Body["secret"])
	if err != nil {
		log.Printf("Rejected %q from %s: %v", username, conn.RemoteAddr(), err)
		_ = conn.WriteFrame(protocol.AuthResult(false, err.Error()))
		return nil, err
	}

	sess := NewSession(conn, username, role, s.cfg.RateLimit)
	if err := s.registry.Register(sess); err != nil {
		log.Printf("Rejected %q from %s: %v", username, conn.RemoteAddr(), err)
		_ = conn.WriteFrame(protocol.AuthResult(false, "already logged in"))
		return nil, err
	}

	// The pump is not running yet, so this direct write cannot interleave
	// with broadcast deliveries.
	if err := conn.WriteFrame(protocol.AuthResult(true, "")); err != nil {
		s.registry.Deregister(sess.ID)
		return nil, err
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		s.registry.Deregister(sess.ID)
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sess.writePump()
	}()

	log.Printf("%s connected from %s. Active sessions: %d", username, conn.RemoteAddr(), s.registry.Len())
	s.broadcastSystem(username + " has joined the chat!")
	s.broadcastUserList()
	return sess, nil
}

// serve is the Active state loop: decode one frame, apply the chat or admin
// path, repeat until the peer leaves or violates the protocol.
func (s *Server) serve(sess *Session) connState {
	for {
		frame, err := sess.conn.ReadFrame()
		if err != nil {
			switch {
			case errors.Is(err, protocol.ErrMalformed):
				log.Printf("Protocol violation from %s (%s): %v", sess.Username, sess.RemoteAddr(), err)
			case errors.Is(err, io.EOF) || isExpectedCloseError(err):
				// Normal departure.
			default:
				log.Printf("Read error from %s (%s): %v", sess.Username, sess.RemoteAddr(), err)
			}
			return stateClosing
		}

		switch frame.Type {
		case protocol.TypeDisconnect:
			return stateClosing

		case protocol.TypeChat:
			s.handleChat(sess, frame.Body["text"])

		case protocol.TypeAdmin:
			s.handleCommand(sess, frame.Body["command"])

		default:
			// Server-to-client frame types arriving inbound are violations.
			log.Printf("Protocol violation from %s (%s): unexpected %s frame", sess.Username, sess.RemoteAddr(), frame.Type)
			return stateClosing
		}
	}
}

// handleChat applies the mute check, the relay size check, and the rate
// check, then fans the message out to every session, the sender included. The
// moderation checks read live state on every message, never a cached copy.
func (s *Server) handleChat(sess *Session, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if strings.HasPrefix(text, "/") {
		s.handleCommand(sess, text)
		return
	}

	now := time.Now()

	if muted, remaining, warn := s.moderation.CheckMute(sess.ID, now); muted {
		if warn {
			if remaining > 0 {
				s.systemTo(sess, fmt.Sprintf("You are muted for %d more second(s).", int(remaining/time.Second)+1))
			} else {
				s.systemTo(sess, "You are muted.")
			}
		}
		return
	}

	// The relay carries from and timestamp on top of the inbound text, so a
	// frame that fit on the way in can exceed the limit recipients decode
	// under. Reject it here instead of poisoning every recipient's stream.
	relay := protocol.Chat(sess.Username, text, now)
	if protocol.Oversize(relay, s.cfg.MaxFrameSize) {
		s.systemTo(sess, "Message too long to deliver.")
		return
	}

	if !sess.limiter.allow(now) {
		s.systemTo(sess, fmt.Sprintf("Rate limit: max %d messages every %s. Please slow down.",
			s.cfg.RateLimit.MaxMessages, s.cfg.RateLimit.Window))
		return
	}

	s.broadcaster.SendAll(relay, "")
}

// teardown is the Closing state: deregister, announce the departure, release
// the socket. Safe to reach after a kick or ban already removed the session.
func (s *Server) teardown(sess *Session) {
	removed := s.registry.Deregister(sess.ID)
	s.moderation.ClearMute(sess.ID)
	sess.Close()

	if removed && !s.isClosed() {
		log.Printf("%s disconnected. Active sessions: %d", sess.Username, s.registry.Len())
		s.broadcastSystem(sess.Username + " has left the chat!")
		s.broadcastUserList()
	}
}

// Shutdown stops accepting connections, notifies every session, and drains
// handlers for at most timeout before force-closing what remains.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	log.Println("Initiating server shutdown...")

	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.ws != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		_ = s.ws.Shutdown(ctx)
		cancel()
	}

	s.broadcaster.SendAll(protocol.System("Server has been shut down."), "")
	s.broadcaster.SendAll(protocol.Disconnect("server shutdown"), "")

	// Deregistering closes each send queue; the pumps drain the farewell
	// frames and release the sockets, which unblocks the readers.
	for _, sess := range s.registry.ListActive() {
		s.registry.Deregister(sess.ID)
	}

	if s.listener != nil {
		<-s.done
	}

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		log.Println("Server shutdown completed")
		return nil
	case <-time.After(timeout):
		log.Println("Shutdown timeout reached, force-closing remaining connections")
		s.mu.Lock()
		for conn := range s.conns {
			_ = conn.Close()
		}
		s.mu.Unlock()
		return context.DeadlineExceeded
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// trackConn records a live connection for the shutdown force-close sweep.
// It refuses connections accepted during shutdown.
func (s *Server) trackConn(conn protocol.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		_ = conn.Close()
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrackConn(conn protocol.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// systemTo sends a SYSTEM notice to one session only.
func (s *Server) systemTo(sess *Session, text string) {
	s.broadcaster.SendTo(sess.ID, protocol.System(text))
}

func (s *Server) broadcastSystem(text string) {
	s.broadcaster.SendAll(protocol.System(text), "")
}

func (s *Server) broadcastUserList() {
	s.broadcaster.SendAll(protocol.UserList(s.registry.Usernames()), "")
}
