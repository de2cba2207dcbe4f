package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"

	"framebroker/internal/faults"
)

// HeaderSize is the width of the length prefix.
const HeaderSize = 4

// ErrPayloadTooLarge reports a frame whose declared length exceeds the
// caller's ceiling. It is always wrapped with faults.ErrProtocol.
var ErrPayloadTooLarge = errors.New("payload too large")

// WriteFrame sends the length prefix and payload as one logical write. On a
// TCP connection the two buffers go out in a single writev call.
func WriteFrame(w io.Writer, payload []byte) error {
	if uint64(len(payload)) > uint64(^uint32(0)) {
		return faults.Wrap(faults.ErrProtocol, "wire", "write frame", fmt.Sprintf("payload of %d bytes exceeds 32-bit length prefix", len(payload)), ErrPayloadTooLarge)
	}
	var header [HeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	buffers := net.Buffers{header[:], payload}
	if _, err := buffers.WriteTo(w); err != nil {
		return faults.Wrap(faults.ErrTransport, "wire", "write frame", "", err)
	}
	return nil
}

// ReadFrame blocks until one complete frame has been read. A connection that
// closes before or inside a frame yields io.EOF. When max is non-zero, a
// declared length above max fails with ErrPayloadTooLarge without reading
// the body. A zero-length frame yields an empty, non-nil slice.
func ReadFrame(r io.Reader, max uint32) ([]byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, endOfStream(err)
	}
	size := binary.BigEndian.Uint32(header[:])
	if max > 0 && size > max {
		return nil, faults.Wrap(faults.ErrProtocol, "wire", "read frame", fmt.Sprintf("declared %d bytes, limit %d", size, max), ErrPayloadTooLarge)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, endOfStream(err)
	}
	return payload, nil
}

// endOfStream folds a partial read into io.EOF so callers see one
// end-of-stream signal whether the peer closed cleanly or mid-frame.
func endOfStream(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return io.EOF
	}
	return faults.Wrap(faults.ErrTransport, "wire", "read frame", "", err)
}
