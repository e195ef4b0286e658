package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// headerSize is the length prefix in bytes: a big-endian uint32 payload size.
const headerSize = 4

// Encode serializes a frame as a 4-byte big-endian payload length followed by
// the JSON payload.
func Encode(f *Frame) ([]byte, error) {
	payload, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	buf := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[headerSize:], payload)
	return buf, nil
}

// Decode attempts to read one frame from the front of buf without consuming
// input. It returns the frame and the number of bytes it occupied so the
// caller can advance its cursor. ErrNeedMore means buf holds a prefix of a
// valid frame and the call can be retried with more data; ErrMalformed means
// the stream is unusable and the connection must be closed.
func Decode(buf []byte, maxFrameSize int) (*Frame, int, error) {
	if len(buf) < headerSize {
		return nil, 0, ErrNeedMore
	}

	size := binary.BigEndian.Uint32(buf)
	if size == 0 {
		return nil, 0, fmt.Errorf("%w: zero-length payload", ErrMalformed)
	}
	if maxFrameSize > 0 && int64(size) > int64(maxFrameSize) {
		return nil, 0, fmt.Errorf("%w: payload of %d bytes exceeds limit of %d", ErrMalformed, size, maxFrameSize)
	}

	total := headerSize + int(size)
	if len(buf) < total {
		return nil, 0, ErrNeedMore
	}

	frame, err := decodePayload(buf[headerSize:total])
	if err != nil {
		return nil, 0, err
	}
	return frame, total, nil
}

// Oversize reports whether f's encoded payload would exceed maxFrameSize.
// A peer enforcing that limit rejects such a frame as malformed, so senders
// check before queueing. A non-positive limit never rejects.
func Oversize(f *Frame, maxFrameSize int) bool {
	if maxFrameSize <= 0 {
		return false
	}
	payload, err := json.Marshal(f)
	if err != nil {
		return true
	}
	return len(payload) > maxFrameSize
}

// decodePayload parses one JSON frame payload and validates its type tag.
func decodePayload(payload []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(payload, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !validType(f.Type) {
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, f.Type)
	}
	return &f, nil
}
