package node

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"framebroker/internal/faults"
	"framebroker/internal/filter"
	"framebroker/internal/logging"
	"framebroker/internal/wire"
)

// Options configures a Node.
type Options struct {
	// Address is the broker's host:port.
	Address string
	// Quality is the JPEG quality of returned frames.
	Quality int
	// ReconnectDelay is the pause before redialing after the broker drops
	// the connection. Zero makes Run return after the first disconnect.
	ReconnectDelay time.Duration
	// MaxPayload caps each work frame. Zero disables the check.
	MaxPayload uint32
	Logger     *slog.Logger
}

// Node is a single-connection frame processor.
type Node struct {
	opts        Options
	transformer *filter.Transformer
	logger      *slog.Logger
	dialer      net.Dialer

	processed   atomic.Uint64
	passthrough atomic.Uint64
}

// New returns a Node for opts.
func New(opts Options) *Node {
	return &Node{
		opts:        opts,
		transformer: filter.NewTransformer(opts.Quality),
		logger:      logging.NewComponentLogger(opts.Logger, "node").With(logging.String(logging.FieldRemote, opts.Address)),
	}
}

// Processed reports how many frames were filtered successfully.
func (n *Node) Processed() uint64 { return n.processed.Load() }

// Passthrough reports how many frames were returned unchanged because they
// could not be decoded.
func (n *Node) Passthrough() uint64 { return n.passthrough.Load() }

// Run serves work until ctx is cancelled. It reconnects after
// ReconnectDelay whenever the connection ends.
func (n *Node) Run(ctx context.Context) error {
	for {
		err := n.serve(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if n.opts.ReconnectDelay <= 0 {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if errors.Is(err, io.EOF) {
			n.logger.Info("broker closed connection; reconnecting", logging.Duration("delay", n.opts.ReconnectDelay))
		} else {
			logging.WarnWithContext(n.logger, "broker connection failed; reconnecting", "node_reconnect",
				logging.Error(err),
				logging.String(logging.FieldErrorKind, faults.Kind(err)),
				logging.Duration("delay", n.opts.ReconnectDelay),
				logging.String(logging.FieldErrorHint, "check that the broker is running and reachable"),
				logging.String(logging.FieldImpact, "no frames processed until reconnected"),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(n.opts.ReconnectDelay):
		}
	}
}

// serve runs one connection until it ends.
func (n *Node) serve(ctx context.Context) error {
	conn, err := n.dialer.DialContext(ctx, "tcp", n.opts.Address)
	if err != nil {
		return faults.Wrap(faults.ErrTransport, "node", "dial", n.opts.Address, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := wire.WriteTag(conn, wire.TagWorker); err != nil {
		return err
	}
	n.logger.Info("connected to broker")

	for {
		payload, err := wire.ReadFrame(conn, n.opts.MaxPayload)
		if err != nil {
			return err
		}
		work, err := wire.DecodeIndexed(payload)
		if err != nil {
			return err
		}
		out := n.process(work)
		if err := wire.WriteFrame(conn, wire.EncodeIndexed(work.Index, out)); err != nil {
			return err
		}
	}
}

// process filters one frame. A frame that cannot be decoded is returned
// unchanged so it cannot cycle through every worker forever.
func (n *Node) process(work wire.IndexedFrame) []byte {
	started := time.Now()
	out, err := n.transformer.Transform(work.Data)
	if err != nil {
		n.passthrough.Add(1)
		logging.ErrorWithContext(n.logger, "frame filter failed; returning original", "filter_failed",
			logging.FrameIndex(work.Index),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "producer frames must be JPEG or PNG"),
		)
		return work.Data
	}
	n.processed.Add(1)
	n.logger.Debug("frame processed",
		logging.FrameIndex(work.Index),
		logging.Int("bytes", len(out)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return out
}
