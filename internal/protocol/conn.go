package protocol

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn carries frames over some byte transport. Both the raw TCP listener
// and the WebSocket endpoint hand the server a Conn, so session logic never
// sees transport details.
type Conn interface {
	// ReadFrame blocks until one complete frame arrives. It returns
	// ErrMalformed (possibly wrapped) on a protocol violation and the
	// transport's error (io.EOF, net.ErrClosed, ...) when the peer is gone.
	ReadFrame() (*Frame, error)

	// WriteFrame sends one frame, bounded by the configured write timeout.
	WriteFrame(f *Frame) error

	// Close closes the underlying transport. Safe to call more than once;
	// closing unblocks a pending ReadFrame.
	Close() error

	// RemoteAddr returns the peer address for logging.
	RemoteAddr() string

	// SetReadDeadline bounds the next ReadFrame. A zero time clears it.
	SetReadDeadline(t time.Time) error
}

const readChunkSize = 4096

type tcpConn struct {
	conn         net.Conn
	maxFrameSize int
	writeTimeout time.Duration

	buf []byte // bytes read but not yet decoded

	wmu sync.Mutex
}

// NewTCPConn wraps a stream socket with the length-prefixed frame codec.
func NewTCPConn(conn net.Conn, maxFrameSize int, writeTimeout time.Duration) Conn {
	return &tcpConn{
		conn:         conn,
		maxFrameSize: maxFrameSize,
		writeTimeout: writeTimeout,
	}
}

func (t *tcpConn) ReadFrame() (*Frame, error) {
	for {
		frame, n, err := Decode(t.buf, t.maxFrameSize)
		if err == nil {
			t.buf = append(t.buf[:0], t.buf[n:]...)
			return frame, nil
		}
		if !errors.Is(err, ErrNeedMore) {
			return nil, err
		}

		chunk := make([]byte, readChunkSize)
		n, rerr := t.conn.Read(chunk)
		if n > 0 {
			t.buf = append(t.buf, chunk[:n]...)
			continue
		}
		if rerr != nil {
			return nil, rerr
		}
	}
}

func (t *tcpConn) WriteFrame(f *Frame) error {
	data, err := Encode(f)
	if err != nil {
		return err
	}

	t.wmu.Lock()
	defer t.wmu.Unlock()

	if t.writeTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
			return err
		}
	}
	_, err = t.conn.Write(data)
	return err
}

func (t *tcpConn) Close() error {
	return t.conn.Close()
}

func (t *tcpConn) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

func (t *tcpConn) SetReadDeadline(deadline time.Time) error {
	return t.conn.SetReadDeadline(deadline)
}

type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	wmu sync.Mutex
}

// NewWSConn adapts a WebSocket connection to the frame protocol. WebSocket
// messages are already self-delimiting, so each text message carries one
// bare JSON frame payload with no length prefix.
func NewWSConn(conn *websocket.Conn, maxFrameSize int, writeTimeout time.Duration) Conn {
	if maxFrameSize > 0 {
		conn.SetReadLimit(int64(maxFrameSize))
	}
	return &wsConn{conn: conn, writeTimeout: writeTimeout}
}

func (w *wsConn) ReadFrame() (*Frame, error) {
	for {
		messageType, payload, err := w.conn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				return nil, ErrMalformed
			}
			return nil, err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		return decodePayload(payload)
	}
}

func (w *wsConn) WriteFrame(f *Frame) error {
	payload, err := Encode(f)
	if err != nil {
		return err
	}

	w.wmu.Lock()
	defer w.wmu.Unlock()

	if w.writeTimeout > 0 {
		if err := w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
			return err
		}
	}
	return w.conn.WriteMessage(websocket.TextMessage, payload[headerSize:])
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}

func (w *wsConn) RemoteAddr() string {
	return w.conn.RemoteAddr().String()
}

func (w *wsConn) SetReadDeadline(deadline time.Time) error {
	return w.conn.SetReadDeadline(deadline)
}
