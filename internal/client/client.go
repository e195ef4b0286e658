// Package client implements the chat client core: connecting,
// authenticating, and delivering inbound frames on a channel the UI loop
// consumes. The network read loop and the rendering side are coupled only
// through that channel.
package client

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/parley-chat/parley/internal/protocol"
)

// ErrAuthRejected reports a failed authentication exchange; the wrapped
// message is the server's stated reason.
var ErrAuthRejected = errors.New("client: authentication rejected")

const (
	dialTimeout  = 10 * time.Second
	authTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
	maxFrameSize = 4096
)

// Client is one authenticated connection to the chat server.
type Client struct {
	Username string

	conn     protocol.Conn
	incoming chan *protocol.Frame

	closeOnce sync.Once
}

// Dial connects to addr and authenticates as username. On success the read
// loop is already running and Incoming delivers every frame the server
// sends; on failure the socket is closed.
func Dial(addr, username, secret string) (*Client, error) {
	raw, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}

	conn := protocol.NewTCPConn(raw, maxFrameSize, writeTimeout)
	c := &Client{
		Username: username,
		conn:     conn,
		incoming: make(chan *protocol.Frame),
	}

	if err := c.authenticate(username, secret); err != nil {
		_ = conn.Close()
		return nil, err
	}

	go c.readLoop()
	return c, nil
}

func (c *Client) authenticate(username, secret string) error {
	if err := c.conn.WriteFrame(protocol.Auth(username, secret)); err != nil {
		return fmt.Errorf("sending credentials: %w", err)
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(authTimeout)); err != nil {
		return err
	}
	frame, err := c.conn.ReadFrame()
	if err != nil {
		return fmt.Errorf("waiting for auth result: %w", err)
	}
	if frame.Type != protocol.TypeAuthResult {
		return fmt.Errorf("%w: unexpected %s frame", protocol.ErrMalformed, frame.Type)
	}
	if !frame.Accepted() {
		reason := frame.Body["reason"]
		if reason == "" {
			reason = "no reason given"
		}
		return fmt.Errorf("%w: %s", ErrAuthRejected, reason)
	}

	return c.conn.SetReadDeadline(time.Time{})
}

// Incoming returns the channel carrying every frame from the server. The
// channel closes when the connection ends.
func (c *Client) Incoming() <-chan *protocol.Frame {
	return c.incoming
}

// readLoop moves frames from the socket to the incoming channel until the
// connection dies.
func (c *Client) readLoop() {
	defer close(c.incoming)

	for {
		frame, err := c.conn.ReadFrame()
		if err != nil {
			return
		}
		c.incoming <- frame
	}
}

// Send transmits one input line. Lines starting with "/" travel as ADMIN
// command frames, everything else as CHAT.
func (c *Client) Send(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if strings.HasPrefix(line, "/") {
		return c.conn.WriteFrame(protocol.Admin(line))
	}
	return c.conn.WriteFrame(&protocol.Frame{
		Type: protocol.TypeChat,
		Body: map[string]string{"text": line},
	})
}

// Quit announces an orderly departure and closes the connection.
func (c *Client) Quit() error {
	_ = c.conn.WriteFrame(protocol.Disconnect("quit"))
	return c.Close()
}

// Close tears down the connection. The read loop exits and Incoming closes.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}
