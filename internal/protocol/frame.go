package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Delimiter terminates every frame. A NUL byte can never occur inside valid
// JSON text, so it needs no escaping.
const Delimiter = "\x00"

// DefaultMaxFrameSize bounds how much a peer can make us buffer before a
// delimiter shows up.
const DefaultMaxFrameSize = 16 << 20 // 16 MiB

// handshakeReadyStatus is the status value of the readiness frame.
const handshakeReadyStatus = "ready"

var (
	ErrFrameTooLarge  = errors.New("protocol: frame too large")
	ErrMalformedFrame = errors.New("protocol: malformed frame")
)

// EncodeFrame serializes v as JSON followed by the delimiter.
func EncodeFrame(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal frame: %w", err)
	}
	return append(data, Delimiter...), nil
}

// Scanner reassembles frames from a byte stream that may arrive in
// arbitrary segments.
//
// Not safe for concurrent use.
type Scanner struct {
	buf      []byte
	scanned  int // bytes of buf already searched without finding a delimiter
	maxFrame int
	delim    []byte
}

// NewScanner returns a scanner with the default frame size limit.
func NewScanner() *Scanner {
	return newScannerWithDelimiter([]byte(Delimiter))
}

func newScannerWithDelimiter(delim []byte) *Scanner {
	return &Scanner{maxFrame: DefaultMaxFrameSize, delim: delim}
}

// SetMaxFrameSize changes the frame size limit. n <= 0 restores the default.
func (s *Scanner) SetMaxFrameSize(n int) {
	if n <= 0 {
		n = DefaultMaxFrameSize
	}
	s.maxFrame = n
}

// Feed appends a segment to the accumulation buffer.
func (s *Scanner) Feed(p []byte) {
	s.buf = append(s.buf, p...)
}

// Next returns the next complete frame body with the delimiter removed.
// It returns false if no full frame is buffered yet, and ErrFrameTooLarge
// if the pending bytes exceed the limit without a delimiter.
func (s *Scanner) Next() ([]byte, bool, error) {
	// A delimiter may straddle the previous scan boundary.
	start := s.scanned - len(s.delim) + 1
	if start < 0 {
		start = 0
	}
	idx := bytes.Index(s.buf[start:], s.delim)
	if idx < 0 {
		s.scanned = len(s.buf)
		if len(s.buf) > s.maxFrame {
			return nil, false, ErrFrameTooLarge
		}
		return nil, false, nil
	}
	end := start + idx

	frame := make([]byte, end)
	copy(frame, s.buf[:end])

	rest := s.buf[end+len(s.delim):]
	s.buf = append(s.buf[:0], rest...)
	s.scanned = 0
	return frame, true, nil
}

// Buffered returns the number of bytes waiting for a delimiter.
func (s *Scanner) Buffered() int {
	return len(s.buf)
}

// trimFrame strips surrounding whitespace and trailing NUL sentinels left
// over by older daemons.
func trimFrame(body []byte) []byte {
	body = bytes.TrimSpace(body)
	return bytes.TrimRight(body, "\x00")
}

// DecodeResponse parses one frame body into a Response.
func DecodeResponse(body []byte) (*Response, error) {
	body = trimFrame(body)
	if len(body) == 0 || body[0] != '{' {
		return nil, fmt.Errorf("%w: expected JSON object", ErrMalformedFrame)
	}
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return &resp, nil
}

// IsReady reports whether body is the readiness frame trogdord pushes right
// after accepting a connection.
func IsReady(body []byte) bool {
	var hs struct {
		Status any `json:"status"`
	}
	if err := json.Unmarshal(trimFrame(body), &hs); err != nil {
		return false
	}
	s, ok := hs.Status.(string)
	return ok && s == handshakeReadyStatus
}

// ReadyFrame returns the encoded handshake frame.
func ReadyFrame() []byte {
	return append([]byte(`{"status":"`+handshakeReadyStatus+`"}`), Delimiter...)
}
