package broker

import (
	"slices"
	"strings"
	"sync"
	"time"

	"framebroker/internal/dispatch"
)

// Worker handler states.
const (
	StateIdle        = "idle"
	StateDispatching = "dispatching"
	StateAwaiting    = "awaiting_result"
)

// WorkerInfo is a read-only summary of one connected worker.
type WorkerInfo struct {
	ID        string
	State     string
	SessionID string
	Index     uint32
	Completed int
	Connected time.Time
	Since     time.Time
}

type worker struct {
	id        string
	connected time.Time

	mu        sync.Mutex
	state     string
	sessionID string
	index     uint32
	completed int
	since     time.Time
}

func (w *worker) setState(state string, item *dispatch.Item) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = state
	w.since = time.Now()
	if item == nil {
		w.sessionID = ""
		w.index = 0
		return
	}
	w.sessionID = item.SessionID
	w.index = item.Index
}

func (w *worker) markCompleted() {
	w.mu.Lock()
	w.completed++
	w.mu.Unlock()
}

func (w *worker) info() WorkerInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WorkerInfo{
		ID:        w.id,
		State:     w.state,
		SessionID: w.sessionID,
		Index:     w.index,
		Completed: w.completed,
		Connected: w.connected,
		Since:     w.since,
	}
}

// WorkerSet tracks connected workers for status reporting. Membership does
// not affect dispatch: handlers pull from the queue on their own.
type WorkerSet struct {
	mu      sync.RWMutex
	workers map[string]*worker
}

// NewWorkerSet returns an empty set.
func NewWorkerSet() *WorkerSet {
	return &WorkerSet{workers: make(map[string]*worker)}
}

func (s *WorkerSet) add(id string) *worker {
	now := time.Now()
	w := &worker{id: id, connected: now, state: StateIdle, since: now}
	s.mu.Lock()
	s.workers[id] = w
	s.mu.Unlock()
	return w
}

func (s *WorkerSet) remove(id string) {
	s.mu.Lock()
	delete(s.workers, id)
	s.mu.Unlock()
}

// Len returns the number of connected workers.
func (s *WorkerSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.workers)
}

// Snapshot summarizes every worker, earliest connection first.
func (s *WorkerSet) Snapshot() []WorkerInfo {
	s.mu.RLock()
	infos := make([]WorkerInfo, 0, len(s.workers))
	for _, w := range s.workers {
		infos = append(infos, w.info())
	}
	s.mu.RUnlock()
	slices.SortFunc(infos, func(a, b WorkerInfo) int {
		if c := a.Connected.Compare(b.Connected); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return infos
}
