// Package protocol defines the length-prefixed frame format shared by the
// Parley server and client, along with the Conn abstraction that lets the
// TCP and WebSocket transports carry the same frames.
package protocol

import (
	"errors"
	"time"
)

// Frame type tags.
const (
	TypeAuth       = "AUTH"
	TypeAuthResult = "AUTH_RESULT"
	TypeChat       = "CHAT"
	TypeAdmin      = "ADMIN"
	TypeSystem     = "SYSTEM"
	TypeUserList   = "USERLIST"
	TypeDisconnect = "DISCONNECT"
)

// Frame is one self-delimiting unit of the wire protocol: a type tag plus a
// body of named string fields. Frames are transient; they exist only on the
// wire and in decode buffers.
type Frame struct {
	Type string            `json:"type"`
	Body map[string]string `json:"body,omitempty"`
}

var (
	// ErrNeedMore reports that the buffer does not yet hold a complete frame.
	// No bytes have been consumed; decoding retries after the next read.
	ErrNeedMore = errors.New("protocol: incomplete frame")

	// ErrMalformed reports an unusable frame: bad length, truncated or
	// invalid payload, or an unknown type tag. Callers treat it as a
	// protocol violation and close the connection.
	ErrMalformed = errors.New("protocol: malformed frame")
)

func validType(t string) bool {
	switch t {
	case TypeAuth, TypeAuthResult, TypeChat, TypeAdmin, TypeSystem, TypeUserList, TypeDisconnect:
		return true
	}
	return false
}

// Auth builds the client credential frame opening every connection.
func Auth(username, secret string) *Frame {
	return &Frame{Type: TypeAuth, Body: map[string]string{
		"username": username,
		"secret":   secret,
	}}
}

// AuthResult builds the server's reply to an AUTH frame. The reason is only
// set on rejection.
func AuthResult(accepted bool, reason string) *Frame {
	body := map[string]string{"accepted": "false"}
	if accepted {
		body["accepted"] = "true"
	}
	if reason != "" {
		body["reason"] = reason
	}
	return &Frame{Type: TypeAuthResult, Body: body}
}

// Accepted reports whether an AUTH_RESULT frame signals success.
func (f *Frame) Accepted() bool {
	return f.Type == TypeAuthResult && f.Body["accepted"] == "true"
}

// Chat builds the relayed chat frame delivered to every session.
func Chat(from, text string, at time.Time) *Frame {
	return &Frame{Type: TypeChat, Body: map[string]string{
		"from":      from,
		"text":      text,
		"timestamp": at.UTC().Format(time.RFC3339),
	}}
}

// System builds a server notice frame.
func System(text string) *Frame {
	return &Frame{Type: TypeSystem, Body: map[string]string{"text": text}}
}

// UserList builds the active-user snapshot broadcast after membership
// changes. Users are comma-joined in the body.
func UserList(users string) *Frame {
	return &Frame{Type: TypeUserList, Body: map[string]string{"users": users}}
}

// Disconnect builds the frame announcing an orderly connection close.
func Disconnect(reason string) *Frame {
	body := map[string]string{}
	if reason != "" {
		body["reason"] = reason
	}
	return &Frame{Type: TypeDisconnect, Body: body}
}

// Admin builds the frame carrying a slash command line.
func Admin(command string) *Frame {
	return &Frame{Type: TypeAdmin, Body: map[string]string{"command": command}}
}
