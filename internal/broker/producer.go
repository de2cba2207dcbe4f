package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"framebroker/internal/assemble"
	"framebroker/internal/dispatch"
	"framebroker/internal/faults"
	"framebroker/internal/history"
	"framebroker/internal/logging"
	"framebroker/internal/session"
	"framebroker/internal/wire"
)

// job accumulates what the history ledger needs about one session.
type job struct {
	outcome     history.Outcome
	detail      string
	resultBytes int64
}

// serveProducer runs one producer session from metadata through delivery.
// The session is keyed by the connection's remote address.
func (b *Broker) serveProducer(ctx context.Context, conn net.Conn) {
	id := conn.RemoteAddr().String()
	logger := logging.NewComponentLogger(b.opts.Logger, "producer").With(logging.String(logging.FieldSessionID, id))

	payload, err := wire.ReadFrame(conn, b.opts.MaxPayload)
	if err != nil {
		b.logProducerExit(logger, "producer left before sending metadata", err)
		return
	}
	meta, err := wire.DecodeMetadata(payload)
	if err != nil {
		b.logProducerExit(logger, "invalid session metadata", err)
		return
	}
	sess, err := b.sessions.Create(id, meta)
	if err != nil {
		b.logProducerExit(logger, "session rejected", err)
		return
	}

	logger = logger.With(logging.String(logging.FieldJobID, sess.JobID))
	logger.Info("session opened",
		logging.Int("total_frames", meta.TotalFrames),
		logging.Float64("fps", meta.FPS),
		logging.Int("width", meta.Width),
		logging.Int("height", meta.Height),
	)

	result := job{outcome: history.OutcomeAbandoned}
	defer b.closeSession(sess, &result, logger)

	if err := b.receiveFrames(conn, sess); err != nil {
		result.detail = err.Error()
		b.logProducerExit(logger, "frame submission ended early", err)
		return
	}
	if err := b.awaitCompletion(ctx, conn, sess); err != nil {
		result.detail = err.Error()
		b.logProducerExit(logger, "producer left before completion", err)
		return
	}
	b.deliver(ctx, conn, sess, &result, logger)
}

// receiveFrames reads exactly the declared number of frames and queues each
// one. Arrival order is not checked, but every index must be in range and
// appear once.
func (b *Broker) receiveFrames(conn net.Conn, sess *session.Session) error {
	for received := 0; received < sess.Meta.TotalFrames; received++ {
		payload, err := wire.ReadFrame(conn, b.opts.MaxPayload)
		if err != nil {
			return err
		}
		frame, err := wire.DecodeIndexed(payload)
		if err != nil {
			return err
		}
		if err := b.sessions.MarkSubmitted(sess.ID, frame.Index); err != nil {
			return err
		}
		item := dispatch.Item{SessionID: sess.ID, Index: frame.Index, Payload: payload}
		if err := b.queue.Enqueue(item); err != nil {
			return faults.Wrap(faults.ErrTransport, "producer", "enqueue", "", err)
		}
	}
	return nil
}

// awaitCompletion blocks until every frame has a result. A watcher reads the
// producer connection so a disconnect ends the wait at once; the producer
// sends nothing during this phase, so any byte it does send is a protocol
// violation.
func (b *Broker) awaitCompletion(ctx context.Context, conn net.Conn, sess *session.Session) error {
	select {
	case <-sess.Done():
		return nil
	default:
	}

	watch := make(chan error, 1)
	go func() {
		var buf [1]byte
		n, err := conn.Read(buf[:])
		if n > 0 {
			err = faults.Wrap(faults.ErrProtocol, "producer", "await completion", "unexpected data while waiting for results", nil)
		}
		watch <- err
	}()
	stopWatch := func() error {
		_ = conn.SetReadDeadline(time.Now())
		err := <-watch
		_ = conn.SetReadDeadline(time.Time{})
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil
		}
		return watcherError(err)
	}

	select {
	case <-sess.Done():
		return stopWatch()
	case err := <-watch:
		return watcherError(err)
	case <-ctx.Done():
		_ = stopWatch()
		return ctx.Err()
	}
}

func watcherError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	if errors.Is(err, faults.ErrProtocol) {
		return err
	}
	return faults.Wrap(faults.ErrTransport, "producer", "await completion", "", err)
}

// deliver assembles the session and sends the status frame, followed by the
// blob when assembly succeeded.
func (b *Broker) deliver(ctx context.Context, conn net.Conn, sess *session.Session, result *job, logger *slog.Logger) {
	started := time.Now()
	blob, err := b.assemble(ctx, sess)
	if err != nil {
		result.outcome = history.OutcomeFailed
		result.detail = err.Error()
		logging.ErrorWithContext(logger, "reassembly failed", "reassembly_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, faults.Kind(err)),
			logging.String(logging.FieldErrorHint, "check codec settings and that ffmpeg is installed"),
		)
		if werr := writeStatus(conn, wire.Failure(err.Error())); werr != nil {
			logger.Info("producer gone before error status", logging.Error(werr))
		}
		return
	}

	if err := writeStatus(conn, wire.Ready(int64(len(blob)))); err != nil {
		result.detail = err.Error()
		b.logProducerExit(logger, "producer gone before delivery", err)
		return
	}
	if err := wire.WriteFrame(conn, blob); err != nil {
		result.detail = err.Error()
		b.logProducerExit(logger, "producer gone during delivery", err)
		return
	}
	result.outcome = history.OutcomeDelivered
	result.resultBytes = int64(len(blob))
	logger.Info("result delivered",
		logging.Int64("bytes", int64(len(blob))),
		logging.String("format", b.opts.Assembler.Format()),
		logging.Duration("assembly", time.Since(started)),
	)
}

func (b *Broker) assemble(ctx context.Context, sess *session.Session) ([]byte, error) {
	frames, err := sess.Frames()
	if err != nil {
		return nil, err
	}
	return b.opts.Assembler.Assemble(ctx, assemble.Request{
		JobID:  sess.JobID,
		Frames: frames,
		FPS:    sess.Meta.FPS,
		Width:  sess.Meta.Width,
		Height: sess.Meta.Height,
	})
}

func writeStatus(conn net.Conn, status wire.Status) error {
	payload, err := wire.EncodeStatus(status)
	if err != nil {
		return err
	}
	return wire.WriteFrame(conn, payload)
}

// closeSession deregisters the session, drops its queued work, and records
// the outcome. Results still in flight on workers become orphans.
func (b *Broker) closeSession(sess *session.Session, result *job, logger *slog.Logger) {
	switch result.outcome {
	case history.OutcomeDelivered:
		b.stats.delivered.Add(1)
	case history.OutcomeFailed:
		b.stats.failed.Add(1)
	default:
		b.stats.abandoned.Add(1)
	}

	b.sessions.Remove(sess.ID)
	purged := b.queue.Purge(sess.ID)
	submitted, completed := sess.Progress()
	finished := time.Now()

	logger.Info("session closed",
		logging.String("outcome", string(result.outcome)),
		logging.Int("submitted", submitted),
		logging.Int("completed", completed),
		logging.Int("purged", purged),
		logging.Int("duplicates", sess.Duplicates()),
		logging.Duration("elapsed", finished.Sub(sess.Created)),
	)

	if b.opts.Recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	rec := history.Record{
		JobID:           sess.JobID,
		SessionID:       sess.ID,
		TotalFrames:     sess.Meta.TotalFrames,
		FPS:             sess.Meta.FPS,
		Width:           sess.Meta.Width,
		Height:          sess.Meta.Height,
		SubmittedFrames: submitted,
		CompletedFrames: completed,
		Outcome:         result.outcome,
		Detail:          result.detail,
		Format:          b.opts.Assembler.Format(),
		ResultBytes:     result.resultBytes,
		StartedAt:       sess.Created,
		FinishedAt:      finished,
	}
	if err := b.opts.Recorder.RecordJob(ctx, rec); err != nil {
		logging.WarnWithContext(logger, "history record failed", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "job missing from history"),
		)
	}
}

// logProducerExit reports why a producer connection ended. A plain
// disconnect is routine; anything else is a warning.
func (b *Broker) logProducerExit(logger *slog.Logger, msg string, err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		logger.Info(msg, logging.String("reason", fmt.Sprint(err)))
		return
	}
	logging.WarnWithContext(logger, msg, "producer_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorKind, faults.Kind(err)),
		logging.String(logging.FieldImpact, "producer session closed"),
	)
}
