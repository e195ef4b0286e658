package server

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parley-chat/parley/internal/protocol"
)

// startWebSocket brings up the optional WebSocket endpoint. An upgraded
// connection enters the exact same lifecycle as a TCP socket; only the frame
// transport differs.
func (s *Server) startWebSocket() error {
	ln, err := net.Listen("tcp", s.cfg.WSAddr)
	if err != nil {
		return fmt.Errorf("binding websocket listener %s: %w", s.cfg.WSAddr, err)
	}

	s.wsLn = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/healthz", healthHandler)

	s.ws = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := s.ws.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("WebSocket server error: %v", err)
		}
	}()

	log.Printf("WebSocket endpoint listening on %s", ln.Addr())
	return nil
}

// serveWS upgrades an HTTP request and hands the connection to the
// supervisor.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	fc := protocol.NewWSConn(conn, s.cfg.MaxFrameSize, s.cfg.WriteTimeout)
	if !s.trackConn(fc) {
		return
	}
	s.wg.Add(1)
	go s.handleConn(fc)
}

// healthHandler reports liveness for the WebSocket listener.
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "Parley chat server is running!")
}
