package session

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"framebroker/internal/faults"
	"framebroker/internal/wire"
)

var (
	// ErrUnknownSession is returned for identifiers with no registered session.
	// It wraps faults.ErrOrphaned: for a worker result it means the producer
	// already left.
	ErrUnknownSession = fmt.Errorf("%w: unknown session", faults.ErrOrphaned)
	// ErrExists is returned when Create reuses a live identifier.
	ErrExists = errors.New("session already registered")
)

// Info is a read-only summary of one session.
type Info struct {
	ID        string
	JobID     string
	Meta      wire.Metadata
	Submitted int
	Completed int
	Created   time.Time
}

// Registry is a concurrency-safe map from session identifier to Session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
	newJobID func() string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		now:      time.Now,
		newJobID: uuid.NewString,
	}
}

// Create registers a new session for id. A session declaring zero frames is
// complete immediately.
func (r *Registry) Create(id string, meta wire.Metadata) (*Session, error) {
	if err := meta.Validate(); err != nil {
		return nil, faults.Wrap(faults.ErrProtocol, "session", "create", "", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrExists, id)
	}
	s := newSession(id, r.newJobID(), meta, r.now())
	r.sessions[id] = s
	return s, nil
}

// Get returns the session for id, or nil and false.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// MarkSubmitted records that the producer of id sent frame index.
func (r *Registry) MarkSubmitted(id string, index uint32) error {
	s, ok := r.Get(id)
	if !ok {
		return ErrUnknownSession
	}
	return s.markSubmitted(index)
}

// RecordResult stores processed bytes for index. It reports whether the
// result was new; a repeat for a completed index is ignored. Unknown
// sessions yield ErrUnknownSession.
func (r *Registry) RecordResult(id string, index uint32, data []byte) (bool, error) {
	s, ok := r.Get(id)
	if !ok {
		return false, ErrUnknownSession
	}
	return s.record(index, data)
}

// IsComplete reports whether session id has every declared frame. Unknown
// sessions are reported incomplete.
func (r *Registry) IsComplete(id string) bool {
	s, ok := r.Get(id)
	if !ok {
		return false
	}
	return s.IsComplete()
}

// Remove deregisters id. Results recorded afterwards are orphans.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot summarizes every registered session, oldest first.
func (r *Registry) Snapshot() []Info {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		submitted, completed := s.Progress()
		infos = append(infos, Info{
			ID:        s.ID,
			JobID:     s.JobID,
			Meta:      s.Meta,
			Submitted: submitted,
			Completed: completed,
			Created:   s.Created,
		})
	}
	slices.SortFunc(infos, func(a, b Info) int {
		if c := a.Created.Compare(b.Created); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return infos
}
