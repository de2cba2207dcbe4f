package wire

import (
	"fmt"
	"io"
	"strings"

	"framebroker/internal/faults"
)

// TagSize is the fixed width of the identity tag that opens every connection.
const TagSize = 10

// Tag identifies the role of a connecting peer.
type Tag string

const (
	// TagProducer opens a producer (client) connection.
	TagProducer Tag = "CLIENTE"
	// TagWorker opens a processing-node connection.
	TagWorker Tag = "NODO"
)

// Known reports whether t is one of the roles the broker routes.
func (t Tag) Known() bool {
	return t == TagProducer || t == TagWorker
}

// Encode returns the tag space-padded to TagSize bytes.
func (t Tag) Encode() ([]byte, error) {
	if len(t) > TagSize {
		return nil, faults.Wrap(faults.ErrProtocol, "wire", "encode tag", fmt.Sprintf("tag %q longer than %d bytes", string(t), TagSize), nil)
	}
	buf := []byte(strings.Repeat(" ", TagSize))
	copy(buf, t)
	return buf, nil
}

// WriteTag sends the padded identity tag.
func WriteTag(w io.Writer, t Tag) error {
	buf, err := t.Encode()
	if err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return faults.Wrap(faults.ErrTransport, "wire", "write tag", "", err)
	}
	return nil
}

// ReadTag reads exactly TagSize bytes and returns them with surrounding
// whitespace and NUL padding removed. A stream that ends before the tag is
// complete yields io.EOF. Unknown tags are returned as-is for the caller to
// reject.
func ReadTag(r io.Reader) (Tag, error) {
	var buf [TagSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return "", endOfStream(err)
	}
	return Tag(strings.Trim(string(buf[:]), " \t\r\n\x00")), nil
}
