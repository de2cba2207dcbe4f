package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"framebroker/internal/assemble"
	"framebroker/internal/broker"
	"framebroker/internal/config"
	"framebroker/internal/deps"
	"framebroker/internal/dispatch"
	"framebroker/internal/history"
	"framebroker/internal/logging"
	"framebroker/internal/notifications"
	"framebroker/internal/session"
)

// Daemon owns one broker and enforces single-instance execution per state
// directory.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	baseLogger *slog.Logger
	queue      *dispatch.Queue
	sessions   *session.Registry
	broker     *broker.Broker
	history    *history.Store
	logPath    string

	lockPath string
	lock     *flock.Flock
	listener net.Listener

	assembler assemble.Assembler
	recorder  broker.Recorder

	mu       sync.Mutex
	running  atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}
	serveErr error
	addr     string
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Address      string
	LockFilePath string
	HistoryPath  string
	LogPath      string
	Broker       broker.Status
	Dependencies []deps.Status
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithListener makes Start serve on ln instead of binding the configured
// address.
func WithListener(ln net.Listener) Option {
	return func(d *Daemon) { d.listener = ln }
}

// WithLogPath records the active log file for status output.
func WithLogPath(path string) Option {
	return func(d *Daemon) { d.logPath = path }
}

// New constructs a daemon with initialized dependencies. The history ledger
// is opened here when enabled so a schema problem fails before the broker
// binds its port.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	assembler, err := assemble.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		baseLogger: logger,
		queue:      dispatch.New(),
		sessions:   session.NewRegistry(),
		lockPath:   cfg.LockPath(),
		lock:       flock.New(cfg.LockPath()),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.assembler = assembler
	var recorders recorderSet
	if cfg.History.Enabled {
		store, err := history.Open(cfg.HistoryPath())
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		d.history = store
		recorders = append(recorders, store)
	}
	if notifier := notifications.NewService(cfg); notifications.Enabled(notifier) {
		recorders = append(recorders, notifier)
	}
	if len(recorders) > 0 {
		d.recorder = recorders
	}
	d.broker = d.newBroker(logger)
	return d, nil
}

// newBroker builds a broker over the daemon's queue and registry. A broker
// cannot serve again after shutdown, so every Start gets a fresh one.
func (d *Daemon) newBroker(logger *slog.Logger) *broker.Broker {
	return broker.New(d.queue, d.sessions, broker.Options{
		MaxPayload:       d.cfg.MaxPayload(),
		DequeueTimeout:   d.cfg.DequeueTimeout(),
		HandshakeTimeout: d.cfg.HandshakeTimeout(),
		Assembler:        d.assembler,
		Recorder:         d.recorder,
		Logger:           logger,
	})
}

// Start acquires the daemon lock, binds the broker port, and begins
// accepting connections in the background.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another framebroker daemon instance is already running")
	}

	ln := d.listener
	if ln == nil {
		ln, err = net.Listen("tcp", d.cfg.ListenAddress())
		if err != nil {
			_ = d.lock.Unlock()
			return fmt.Errorf("listen on %s: %w", d.cfg.ListenAddress(), err)
		}
	}
	d.listener = nil
	d.addr = ln.Addr().String()

	d.PruneHistory(ctx)

	if d.done != nil {
		d.broker = d.newBroker(d.baseLogger)
	}
	serveCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.serveErr = nil
	brk, done := d.broker, d.done
	go func() {
		err := brk.Serve(serveCtx, ln)
		d.mu.Lock()
		d.serveErr = err
		d.mu.Unlock()
		close(done)
	}()

	d.running.Store(true)
	d.logger.Info("framebroker daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.addr),
	)
	return nil
}

// Stop closes every broker connection, waits for handlers to exit, and
// releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.cancel()
	d.mu.Unlock()
	<-d.done
	d.mu.Lock()
	if d.serveErr != nil {
		d.logger.Warn("broker exited with error", logging.Error(d.serveErr))
	}
	d.cancel = nil
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "next start may report another instance"),
		)
	}
	d.running.Store(false)
	d.logger.Info("framebroker daemon stopped")
}

// Done is closed when the broker stops serving. It returns nil before Start.
func (d *Daemon) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	d.queue.Close()
	if d.history != nil {
		return d.history.Close()
	}
	return nil
}

// Addr returns the bound broker address once started.
func (d *Daemon) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addr
}

// LogPath returns the active log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

func (d *Daemon) currentBroker() *broker.Broker {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.broker
}

// Status reports broker state and dependency health.
func (d *Daemon) Status(context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Address:      d.Addr(),
		LockFilePath: d.lockPath,
		LogPath:      d.logPath,
		Broker:       d.currentBroker().Status(),
		Dependencies: deps.CheckBinaries(deps.CodecRequirements(d.cfg)),
	}
	if d.history != nil {
		status.HistoryPath = d.history.Path()
	}
	return status
}

// History returns up to limit recent jobs and the outcome totals.
func (d *Daemon) History(ctx context.Context, limit int) ([]history.Record, history.Counts, error) {
	if d.history == nil {
		return nil, history.Counts{}, errors.New("history disabled")
	}
	records, err := d.history.Recent(ctx, limit)
	if err != nil {
		return nil, history.Counts{}, err
	}
	counts, err := d.history.Counts(ctx)
	if err != nil {
		return nil, history.Counts{}, err
	}
	return records, counts, nil
}

// PruneHistory deletes jobs older than history.retention_days.
func (d *Daemon) PruneHistory(ctx context.Context) {
	if d.history == nil || d.cfg.History.RetentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -d.cfg.History.RetentionDays)
	removed, err := d.history.Prune(ctx, cutoff)
	if err != nil {
		logging.WarnWithContext(d.logger, "history prune failed", "history_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "old jobs remain in history"),
		)
		return
	}
	if removed > 0 {
		d.logger.Info("history pruned",
			logging.Int64("removed", removed),
			logging.Int("retention_days", d.cfg.History.RetentionDays),
		)
	}
}
