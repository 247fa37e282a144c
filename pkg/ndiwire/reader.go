package ndiwire

import (
	"strings"
	"time"
)

// Reader reads one response from a Link into a reusable Buffer,
// validates its CRC, and strips the CRC and trailing CR to expose the
// payload (component C4).
type Reader struct {
	buf *Buffer
}

// NewReader wires a Reader to a shared Buffer.
func NewReader(buf *Buffer) *Reader {
	return &Reader{buf: buf}
}

// Read blocks until a full `\r`-terminated response arrives or timeout
// elapses, then CRC-validates it and returns the payload (CRC and CR
// stripped). It does not check the payload against any expected
// prefix; use ReadExpected for that.
func (r *Reader) Read(link Link, timeout time.Duration) ([]byte, error) {
	r.buf.Reset()

	if err := link.SetReadTimeout(timeout); err != nil {
		return nil, err
	}
	deadline := time.Now().Add(timeout)
	chunk := make([]byte, 1)

	for {
		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}
		n, err := link.Read(chunk)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			continue
		}
		if err := r.buf.WriteByte(chunk[0]); err != nil {
			return nil, err
		}
		if chunk[0] == '\r' {
			break
		}
	}

	raw := r.buf.Bytes()
	if len(raw) < 5 {
		return nil, ErrProtocolFraming
	}

	crcStart := len(raw) - 5
	declared, ok := ParseCRC(raw[crcStart : crcStart+4])
	if !ok {
		return nil, ErrBadCRC
	}

	payload := raw[:crcStart]
	r.buf.Truncate(crcStart)
	if CRC16(payload) != declared {
		return nil, ErrBadCRC
	}
	return payload, nil
}

// ReadExpected reads a response like Read, then requires the payload
// to start with the literal prefix expected, failing with an
// UnexpectedError otherwise.
func (r *Reader) ReadExpected(link Link, timeout time.Duration, expected string) ([]byte, error) {
	payload, err := r.Read(link, timeout)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(string(payload), expected) {
		return nil, NewUnexpected(expected, string(payload))
	}
	return payload, nil
}
