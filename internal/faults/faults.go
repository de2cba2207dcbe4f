package faults

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransport marks connection resets, broken pipes, and short streams.
	ErrTransport = errors.New("transport failure")
	// ErrProtocol marks unexpected tags, oversized lengths, and malformed payloads.
	ErrProtocol = errors.New("protocol violation")
	// ErrReassembly marks codec failures while producing the output blob.
	ErrReassembly = errors.New("reassembly failure")
	// ErrOrphaned marks results whose session no longer exists. It is expected
	// and never reported as a failure.
	ErrOrphaned = errors.New("orphaned result")
	// ErrConfiguration marks invalid settings or missing external tools.
	ErrConfiguration = errors.New("configuration error")
	// ErrRemote marks an error status reported by the broker to a producer.
	ErrRemote = errors.New("remote error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. A nil marker defaults to
// ErrTransport.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransport
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a short stable label for err's marker, or "unknown".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrOrphaned):
		return "orphaned"
	case errors.Is(err, ErrProtocol):
		return "protocol"
	case errors.Is(err, ErrReassembly):
		return "reassembly"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrRemote):
		return "remote"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "unknown"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{component, operation, message} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "broker failure"
	}
	return strings.Join(parts, ": ")
}
