package wire

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"

	"framebroker/internal/faults"
)

// IndexSize is the width of the frame index prefix on submission, work, and
// result payloads.
const IndexSize = 4

// Metadata describes one producer job. It is the first frame a producer
// sends after its tag.
type Metadata struct {
	TotalFrames int     `json:"total_frames"`
	FPS         float64 `json:"fps"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
}

var metadataKeys = []string{"fps", "height", "total_frames", "width"}

// Validate checks the metadata ranges.
func (m Metadata) Validate() error {
	switch {
	case m.TotalFrames < 0:
		return fmt.Errorf("total_frames must be non-negative, got %d", m.TotalFrames)
	case int64(m.TotalFrames) > math.MaxUint32:
		return fmt.Errorf("total_frames %d exceeds the 32-bit frame index", m.TotalFrames)
	case !(m.FPS > 0) || math.IsInf(m.FPS, 0):
		return fmt.Errorf("fps must be positive, got %v", m.FPS)
	case m.Width <= 0:
		return fmt.Errorf("width must be positive, got %d", m.Width)
	case m.Height <= 0:
		return fmt.Errorf("height must be positive, got %d", m.Height)
	}
	return nil
}

// EncodeMetadata serializes m as a compact JSON object.
func EncodeMetadata(m Metadata) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, faults.Wrap(faults.ErrProtocol, "wire", "encode metadata", "", err)
	}
	return json.Marshal(m)
}

// DecodeMetadata parses a metadata payload. Exactly the four documented keys
// must be present.
func DecodeMetadata(payload []byte) (Metadata, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Metadata{}, faults.Wrap(faults.ErrProtocol, "wire", "decode metadata", "", err)
	}
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	if !slices.Equal(keys, metadataKeys) {
		return Metadata{}, faults.Wrap(faults.ErrProtocol, "wire", "decode metadata",
			fmt.Sprintf("expected keys %s, got %s", strings.Join(metadataKeys, ","), strings.Join(keys, ",")), nil)
	}

	var m Metadata
	dec := json.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(&m); err != nil {
		return Metadata{}, faults.Wrap(faults.ErrProtocol, "wire", "decode metadata", "", err)
	}
	if err := m.Validate(); err != nil {
		return Metadata{}, faults.Wrap(faults.ErrProtocol, "wire", "decode metadata", "", err)
	}
	return m, nil
}

// IndexedFrame is a frame index plus encoded image bytes. The same shape is
// used for producer submissions, broker-to-worker work, and worker results.
type IndexedFrame struct {
	Index uint32
	Data  []byte
}

// EncodeIndexed builds [index][data].
func EncodeIndexed(index uint32, data []byte) []byte {
	buf := make([]byte, IndexSize+len(data))
	binary.BigEndian.PutUint32(buf, index)
	copy(buf[IndexSize:], data)
	return buf
}

// DecodeIndexed splits an indexed payload. Data aliases payload.
func DecodeIndexed(payload []byte) (IndexedFrame, error) {
	if len(payload) < IndexSize {
		return IndexedFrame{}, faults.Wrap(faults.ErrProtocol, "wire", "decode indexed frame",
			fmt.Sprintf("payload of %d bytes is shorter than the index prefix", len(payload)), nil)
	}
	return IndexedFrame{
		Index: binary.BigEndian.Uint32(payload[:IndexSize]),
		Data:  payload[IndexSize:],
	}, nil
}

// Status kinds.
const (
	StatusReady = "ready"
	StatusError = "error"
)

// Status is the broker's verdict sent to a producer before the result blob.
type Status struct {
	Status  string `json:"status"`
	Size    int64  `json:"size,omitempty"`
	Message string `json:"message,omitempty"`
}

// Ready reports a result blob of size bytes follows.
func Ready(size int64) Status {
	return Status{Status: StatusReady, Size: size}
}

// Failure reports that no result blob follows.
func Failure(message string) Status {
	return Status{Status: StatusError, Message: message}
}

// EncodeStatus serializes s as compact JSON. A ready status always carries its
// size field, even when zero.
func EncodeStatus(s Status) ([]byte, error) {
	switch s.Status {
	case StatusReady:
		return json.Marshal(struct {
			Status string `json:"status"`
			Size   int64  `json:"size"`
		}{s.Status, s.Size})
	case StatusError:
		return json.Marshal(struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		}{s.Status, s.Message})
	default:
		return nil, faults.Wrap(faults.ErrProtocol, "wire", "encode status", fmt.Sprintf("unknown status %q", s.Status), nil)
	}
}

// DecodeStatus parses a status payload.
func DecodeStatus(payload []byte) (Status, error) {
	var s Status
	if err := json.Unmarshal(payload, &s); err != nil {
		return Status{}, faults.Wrap(faults.ErrProtocol, "wire", "decode status", "", err)
	}
	switch s.Status {
	case StatusReady:
		if s.Size < 0 {
			return Status{}, faults.Wrap(faults.ErrProtocol, "wire", "decode status", "negative size", nil)
		}
	case StatusError:
	default:
		return Status{}, faults.Wrap(faults.ErrProtocol, "wire", "decode status", fmt.Sprintf("unknown status %q", s.Status), nil)
	}
	return s, nil
}
