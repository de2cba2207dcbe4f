package session

import (
	"fmt"
	"sync"
	"time"

	"framebroker/internal/faults"
	"framebroker/internal/wire"
)

// ErrIncomplete is returned by Frames before every index has a result.
var ErrIncomplete = fmt.Errorf("%w: session incomplete", faults.ErrReassembly)

// maxPrealloc bounds map preallocation so a large declared count cannot
// reserve memory before any frame arrives.
const maxPrealloc = 4096

// Session holds one producer job. Metadata fields are immutable after Create.
type Session struct {
	ID      string
	JobID   string
	Meta    wire.Metadata
	Created time.Time

	mu        sync.Mutex
	results   map[uint32][]byte
	submitted map[uint32]struct{}
	duplicate int
	done      chan struct{}
	doneOnce  sync.Once
}

func newSession(id, jobID string, meta wire.Metadata, now time.Time) *Session {
	hint := min(meta.TotalFrames, maxPrealloc)
	s := &Session{
		ID:        id,
		JobID:     jobID,
		Meta:      meta,
		Created:   now,
		results:   make(map[uint32][]byte, hint),
		submitted: make(map[uint32]struct{}, hint),
		done:      make(chan struct{}),
	}
	if meta.TotalFrames == 0 {
		s.markDone()
	}
	return s
}

// Total returns the declared frame count.
func (s *Session) Total() uint32 {
	return uint32(s.Meta.TotalFrames)
}

// Done is closed once every declared frame has a result.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// IsComplete reports whether every declared frame has a result.
func (s *Session) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results) == s.Meta.TotalFrames
}

// markSubmitted records that the producer sent index. Out-of-range and
// repeated indices are protocol violations: either would leave the session
// waiting forever for a frame that never arrives.
func (s *Session) markSubmitted(index uint32) error {
	if index >= s.Total() {
		return faults.Wrap(faults.ErrProtocol, "session", "submit",
			fmt.Sprintf("frame index %d outside [0,%d)", index, s.Meta.TotalFrames), nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.submitted[index]; seen {
		return faults.Wrap(faults.ErrProtocol, "session", "submit",
			fmt.Sprintf("frame index %d submitted twice", index), nil)
	}
	s.submitted[index] = struct{}{}
	return nil
}

// record stores a processed frame. It returns false when index already has
// a result; the earlier result is kept.
func (s *Session) record(index uint32, data []byte) (bool, error) {
	if index >= s.Total() {
		return false, faults.Wrap(faults.ErrProtocol, "session", "record result",
			fmt.Sprintf("frame index %d outside [0,%d)", index, s.Meta.TotalFrames), nil)
	}
	s.mu.Lock()
	if _, exists := s.results[index]; exists {
		s.duplicate++
		s.mu.Unlock()
		return false, nil
	}
	s.results[index] = data
	complete := len(s.results) == s.Meta.TotalFrames
	s.mu.Unlock()
	if complete {
		s.markDone()
	}
	return true, nil
}

// Frames returns the processed frames in ascending index order.
func (s *Session) Frames() ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.results) != s.Meta.TotalFrames {
		return nil, ErrIncomplete
	}
	frames := make([][]byte, s.Meta.TotalFrames)
	for i := range frames {
		frames[i] = s.results[uint32(i)]
	}
	return frames, nil
}

// Progress reports how many frames were submitted and completed.
func (s *Session) Progress() (submitted, completed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.submitted), len(s.results)
}

// Duplicates reports how many results arrived for already-completed indices.
func (s *Session) Duplicates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duplicate
}

func (s *Session) markDone() {
	s.doneOnce.Do(func() { close(s.done) })
}
