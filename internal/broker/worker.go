package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"framebroker/internal/dispatch"
	"framebroker/internal/faults"
	"framebroker/internal/logging"
	"framebroker/internal/wire"
)

// serveWorker hands queued items to one worker connection until the worker
// fails or the broker shuts down. A failure at any step returns the item to
// the queue and ends the handler; the connection is never reused.
func (b *Broker) serveWorker(ctx context.Context, conn net.Conn) {
	id := conn.RemoteAddr().String()
	w := b.workers.add(id)
	defer b.workers.remove(id)

	logger := logging.NewComponentLogger(b.opts.Logger, "worker").With(logging.String(logging.FieldWorker, id))
	logger.Info("worker registered", logging.Int("workers", b.workers.Len()))

	for {
		w.setState(StateIdle, nil)
		item, err := b.queue.Dequeue(ctx, b.opts.DequeueTimeout)
		if errors.Is(err, dispatch.ErrEmpty) {
			continue
		}
		if err != nil {
			logger.Info("worker released", logging.String("reason", err.Error()))
			return
		}
		if !b.sessions.Has(item.SessionID) {
			logger.Debug("dropping work for closed session",
				logging.String(logging.FieldSessionID, item.SessionID),
				logging.FrameIndex(item.Index),
			)
			continue
		}
		if err := b.process(conn, w, item, logger); err != nil {
			b.requeue(item, logger)
			level := slog.LevelWarn
			if errors.Is(err, io.EOF) {
				level = slog.LevelInfo
			}
			logger.Log(context.Background(), level, "worker connection closed",
				logging.String(logging.FieldSessionID, item.SessionID),
				logging.FrameIndex(item.Index),
				logging.Error(err),
				logging.String(logging.FieldErrorKind, faults.Kind(err)),
				logging.String(logging.FieldEventType, "worker_lost"),
			)
			return
		}
	}
}

// process sends one item and waits for its result.
func (b *Broker) process(conn net.Conn, w *worker, item dispatch.Item, logger *slog.Logger) error {
	w.setState(StateDispatching, &item)
	if err := wire.WriteFrame(conn, item.Payload); err != nil {
		return err
	}

	w.setState(StateAwaiting, &item)
	payload, err := wire.ReadFrame(conn, b.opts.MaxPayload)
	if err != nil {
		return err
	}
	result, err := wire.DecodeIndexed(payload)
	if err != nil {
		return err
	}
	if result.Index != item.Index {
		return faults.Wrap(faults.ErrProtocol, "worker", "read result",
			fmt.Sprintf("returned index %d for dispatched index %d", result.Index, item.Index), nil)
	}

	fresh, err := b.sessions.RecordResult(item.SessionID, result.Index, result.Data)
	switch {
	case errors.Is(err, faults.ErrOrphaned):
		b.stats.orphaned.Add(1)
		logger.Debug("discarding result for closed session",
			logging.String(logging.FieldSessionID, item.SessionID),
			logging.FrameIndex(result.Index),
		)
		return nil
	case err != nil:
		logging.WarnWithContext(logger, "result rejected", "result_rejected",
			logging.String(logging.FieldSessionID, item.SessionID),
			logging.FrameIndex(result.Index),
			logging.Error(err),
			logging.String(logging.FieldImpact, "frame result dropped"),
		)
		return nil
	}

	w.markCompleted()
	if fresh {
		b.stats.framesCompleted.Add(1)
		logger.Debug("frame processed",
			logging.String(logging.FieldSessionID, item.SessionID),
			logging.FrameIndex(result.Index),
			logging.Int("attempts", item.Attempts+1),
		)
	} else {
		logger.Debug("duplicate result ignored",
			logging.String(logging.FieldSessionID, item.SessionID),
			logging.FrameIndex(result.Index),
		)
	}
	return nil
}

// requeue returns item to the back of the queue unless its session is gone.
func (b *Broker) requeue(item dispatch.Item, logger *slog.Logger) {
	if !b.sessions.Has(item.SessionID) {
		return
	}
	if err := b.queue.Requeue(item); err != nil {
		logger.Debug("requeue skipped", logging.FrameIndex(item.Index), logging.Error(err))
		return
	}
	b.stats.requeued.Add(1)
	logger.Info("frame requeued",
		logging.String(logging.FieldSessionID, item.SessionID),
		logging.FrameIndex(item.Index),
		logging.Int("attempts", item.Attempts+1),
		logging.String(logging.FieldEventType, "worker_requeue"),
	)
}
