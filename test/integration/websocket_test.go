package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parley-chat/parley/internal/protocol"
	"github.com/parley-chat/parley/internal/server"
	"github.com/parley-chat/parley/test/testhelpers"
)

const testOrigin = "http://localhost:8080"

func startWSServer(t *testing.T) *server.Server {
	t.Helper()

	cfg := *server.NewConfig()
	cfg.WSAddr = "127.0.0.1:0"
	cfg.AllowedOrigins = []string{testOrigin}
	return testhelpers.StartServer(t, cfg, standardUsers()...)
}

// dialWS opens a WebSocket connection and authenticates over it. Messages
// carry one bare JSON frame each; the length prefix of the TCP transport is
// not used.
func dialWS(t *testing.T, srv *server.Server, username, password string) *websocket.Conn {
	t.Helper()

	url := fmt.Sprintf("ws://%s/ws", srv.WSAddr())
	headers := http.Header{"Origin": []string{testOrigin}}
	ws, _, err := websocket.DefaultDialer.Dial(url, headers)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })

	writeWSFrame(t, ws, protocol.Auth(username, password))
	result := readWSFrame(t, ws)
	if !result.Accepted() {
		t.Fatalf("websocket login rejected: %v", result.Body)
	}
	return ws
}

func writeWSFrame(t *testing.T, ws *websocket.Conn, f *protocol.Frame) {
	t.Helper()

	payload, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshaling frame: %v", err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.Fatalf("writing websocket message: %v", err)
	}
}

func readWSFrame(t *testing.T, ws *websocket.Conn) *protocol.Frame {
	t.Helper()

	_ = ws.SetReadDeadline(time.Now().Add(waitTimeout))
	_, payload, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("reading websocket message: %v", err)
	}
	var frame protocol.Frame
	if err := json.Unmarshal(payload, &frame); err != nil {
		t.Fatalf("decoding websocket payload: %v", err)
	}
	return &frame
}

// TestWebSocketChat verifies that a WebSocket session and a TCP session share
// one chat room: messages cross the transport boundary in both directions.
func TestWebSocketChat(t *testing.T) {
	srv := startWSServer(t)

	ws := dialWS(t, srv, "alice", "alice-pass")
	tcp := testhelpers.Dial(t, srv, "bob", "bob-pass")

	writeWSFrame(t, ws, &protocol.Frame{
		Type: protocol.TypeChat,
		Body: map[string]string{"text": "hello from the browser"},
	})
	testhelpers.WaitForMatch(t, tcp, waitTimeout, testhelpers.IsChatFrom("alice", "hello from the browser"))

	if err := tcp.Send("hello from tcp"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	for {
		frame := readWSFrame(t, ws)
		if frame.Type == protocol.TypeChat && frame.Body["from"] == "bob" && frame.Body["text"] == "hello from tcp" {
			break
		}
	}
}

// TestWebSocketOriginBlocked verifies the origin allow-list: an upgrade from
// an unlisted origin never completes.
func TestWebSocketOriginBlocked(t *testing.T) {
	srv := startWSServer(t)

	url := fmt.Sprintf("ws://%s/ws", srv.WSAddr())
	headers := http.Header{"Origin": []string{"http://evil.example.com"}}
	ws, resp, err := websocket.DefaultDialer.Dial(url, headers)
	if err == nil {
		_ = ws.Close()
		t.Fatal("upgrade from a blocked origin succeeded")
	}
	if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Errorf("blocked upgrade returned status %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
}

// TestWebSocketHealthEndpoint verifies the liveness probe next to /ws.
func TestWebSocketHealthEndpoint(t *testing.T) {
	srv := startWSServer(t)

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", srv.WSAddr()))
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}
