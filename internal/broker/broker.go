package broker

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"framebroker/internal/assemble"
	"framebroker/internal/dispatch"
	"framebroker/internal/history"
	"framebroker/internal/logging"
	"framebroker/internal/session"
)

const (
	defaultDequeueTimeout = time.Second
	minAcceptBackoff      = 5 * time.Millisecond
	maxAcceptBackoff      = time.Second
	recordTimeout         = 5 * time.Second
)

// ErrClosed is returned by Serve once the broker has been shut down.
var ErrClosed = errors.New("broker closed")

// Recorder persists a summary of each finished session.
type Recorder interface {
	RecordJob(ctx context.Context, rec history.Record) error
}

// Options tunes a Broker. Zero values pick working defaults.
type Options struct {
	// MaxPayload caps every frame read from a peer. Zero disables the check.
	MaxPayload uint32
	// DequeueTimeout bounds how long an idle worker handler waits for work
	// before re-checking for shutdown.
	DequeueTimeout time.Duration
	// HandshakeTimeout bounds the wait for a connection's identity tag. Zero
	// disables the deadline.
	HandshakeTimeout time.Duration
	// Assembler turns a completed session into the producer's result blob.
	// Defaults to motion-JPEG concatenation.
	Assembler assemble.Assembler
	// Recorder receives one record per finished session. Optional.
	Recorder Recorder
	Logger   *slog.Logger
}

// Counters are cumulative broker activity totals.
type Counters struct {
	Producers       uint64
	Workers         uint64
	Rejected        uint64
	FramesCompleted uint64
	Orphaned        uint64
	Requeued        uint64
	Delivered       uint64
	Failed          uint64
	Abandoned       uint64
}

type counters struct {
	producers       atomic.Uint64
	workers         atomic.Uint64
	rejected        atomic.Uint64
	framesCompleted atomic.Uint64
	orphaned        atomic.Uint64
	requeued        atomic.Uint64
	delivered       atomic.Uint64
	failed          atomic.Uint64
	abandoned       atomic.Uint64
}

func (c *counters) snapshot() Counters {
	return Counters{
		Producers:       c.producers.Load(),
		Workers:         c.workers.Load(),
		Rejected:        c.rejected.Load(),
		FramesCompleted: c.framesCompleted.Load(),
		Orphaned:        c.orphaned.Load(),
		Requeued:        c.requeued.Load(),
		Delivered:       c.delivered.Load(),
		Failed:          c.failed.Load(),
		Abandoned:       c.abandoned.Load(),
	}
}

// Status is a point-in-time view of the broker.
type Status struct {
	Started  time.Time
	Format   string
	Queue    dispatch.Stats
	Workers  []WorkerInfo
	Sessions []session.Info
	Counters Counters
}

// Broker routes frames between producer and worker connections.
type Broker struct {
	queue    *dispatch.Queue
	sessions *session.Registry
	workers  *WorkerSet
	opts     Options
	logger   *slog.Logger
	started  time.Time
	stats    counters

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	closed    bool
	listeners map[net.Listener]struct{}
	conns     map[net.Conn]struct{}
	handlers  sync.WaitGroup
}

// New builds a broker around the shared queue and session registry. Nil
// arguments are replaced with fresh empty instances.
func New(queue *dispatch.Queue, sessions *session.Registry, opts Options) *Broker {
	if queue == nil {
		queue = dispatch.New()
	}
	if sessions == nil {
		sessions = session.NewRegistry()
	}
	if opts.DequeueTimeout <= 0 {
		opts.DequeueTimeout = defaultDequeueTimeout
	}
	if opts.Assembler == nil {
		opts.Assembler = assemble.MJPEG{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		queue:     queue,
		sessions:  sessions,
		workers:   NewWorkerSet(),
		opts:      opts,
		logger:    logging.NewComponentLogger(opts.Logger, "broker"),
		started:   time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[net.Listener]struct{}),
		conns:     make(map[net.Conn]struct{}),
	}
}

// Queue returns the dispatch queue the broker feeds.
func (b *Broker) Queue() *dispatch.Queue { return b.queue }

// Sessions returns the session registry.
func (b *Broker) Sessions() *session.Registry { return b.sessions }

// Workers returns the live worker set.
func (b *Broker) Workers() *WorkerSet { return b.workers }

// Serve accepts connections on ln until ctx is cancelled or Close is called,
// then closes every tracked connection and waits for their handlers to
// return. It returns nil after an orderly shutdown.
func (b *Broker) Serve(ctx context.Context, ln net.Listener) error {
	if !b.trackListener(ln) {
		_ = ln.Close()
		return ErrClosed
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopOnCancel := context.AfterFunc(ctx, b.Close)
	defer stopOnCancel()
	stopOnClose := context.AfterFunc(b.ctx, cancel)
	defer stopOnClose()

	b.logger.Info("broker listening",
		logging.String("address", ln.Addr().String()),
		logging.String("format", b.opts.Assembler.Format()),
		logging.Int64("max_payload_bytes", int64(b.opts.MaxPayload)),
	)

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			if backoff == 0 {
				backoff = minAcceptBackoff
			} else {
				backoff = min(backoff*2, maxAcceptBackoff)
			}
			logging.WarnWithContext(b.logger, "accept failed; retrying", "accept_failed",
				logging.Error(err),
				logging.Duration("backoff", backoff),
				logging.String(logging.FieldImpact, "new connections delayed"),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
			continue
		}
		backoff = 0
		if !b.trackConn(conn) {
			_ = conn.Close()
			break
		}
		go func() {
			defer b.handlers.Done()
			defer b.untrackConn(conn)
			b.classify(ctx, conn)
		}()
	}

	b.Close()
	b.handlers.Wait()
	b.logger.Info("broker stopped")
	return nil
}

// Close stops accepting, closes every tracked connection, and cancels the
// handlers. It does not wait; Serve returns once handlers have exited.
// Close is idempotent.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	listeners := make([]net.Listener, 0, len(b.listeners))
	for ln := range b.listeners {
		listeners = append(listeners, ln)
	}
	conns := make([]net.Conn, 0, len(b.conns))
	for conn := range b.conns {
		conns = append(conns, conn)
	}
	b.mu.Unlock()

	b.cancel()
	for _, ln := range listeners {
		_ = ln.Close()
	}
	for _, conn := range conns {
		_ = conn.Close()
	}
}

// Wait blocks until every connection handler has returned.
func (b *Broker) Wait() {
	b.handlers.Wait()
}

// Status reports queue depth, workers, open sessions, and counters.
func (b *Broker) Status() Status {
	return Status{
		Started:  b.started,
		Format:   b.opts.Assembler.Format(),
		Queue:    b.queue.Stats(),
		Workers:  b.workers.Snapshot(),
		Sessions: b.sessions.Snapshot(),
		Counters: b.stats.snapshot(),
	}
}

func (b *Broker) trackListener(ln net.Listener) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.listeners[ln] = struct{}{}
	return true
}

// trackConn registers conn and reserves a handler slot under the same lock
// Close takes, so no handler starts after shutdown began.
func (b *Broker) trackConn(conn net.Conn) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.conns[conn] = struct{}{}
	b.handlers.Add(1)
	return true
}

func (b *Broker) untrackConn(conn net.Conn) {
	b.mu.Lock()
	delete(b.conns, conn)
	b.mu.Unlock()
	_ = conn.Close()
}
