// Package envelope implements the outbound wire framing used by the
// Publisher: a small fixed header (length-prefixed, Cap'n-Proto-style)
// wrapping an opaque domain payload. The exact encoding of any specific
// exchange feed's payload is out of scope here; this package only owns
// the frame around it.
package envelope

import (
	"encoding/binary"
	"errors"
)

// HeaderSize is the number of bytes of framing prepended to a payload.
const HeaderSize = 4

// ErrShortFrame is returned when a byte slice is too small to contain a
// frame header.
var ErrShortFrame = errors.New("envelope: frame shorter than header")

// ErrTruncated is returned when a frame's declared length exceeds the
// bytes actually available.
var ErrTruncated = errors.New("envelope: frame truncated")

// Frame prepends a little-endian length header to payload.
func Frame(payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf[:HeaderSize], uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf
}

// Unframe extracts the payload from a framed byte slice.
func Unframe(framed []byte) ([]byte, error) {
	if len(framed) < HeaderSize {
		return nil, ErrShortFrame
	}
	n := binary.LittleEndian.Uint32(framed[:HeaderSize])
	if uint32(len(framed)) < uint32(HeaderSize)+n {
		return nil, ErrTruncated
	}
	return framed[HeaderSize : uint32(HeaderSize)+n], nil
}
