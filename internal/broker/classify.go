package broker

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"framebroker/internal/faults"
	"framebroker/internal/logging"
	"framebroker/internal/wire"
)

// classify reads the identity tag and hands the connection to the matching
// handler. The caller closes conn when classify returns.
func (b *Broker) classify(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	logger := b.logger.With(logging.String(logging.FieldRemote, remote))

	if b.opts.HandshakeTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(b.opts.HandshakeTimeout))
	}
	tag, err := wire.ReadTag(conn)
	if err != nil {
		b.stats.rejected.Add(1)
		if errors.Is(err, io.EOF) {
			logger.Debug("connection closed before identifying")
			return
		}
		logging.WarnWithContext(logger, "connection classification failed", "classify_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, faults.Kind(err)),
			logging.String(logging.FieldErrorHint, "peer must send a 10-byte CLIENTE or NODO tag first"),
			logging.String(logging.FieldImpact, "connection dropped"),
		)
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	switch tag {
	case wire.TagProducer:
		b.stats.producers.Add(1)
		b.serveProducer(ctx, conn)
	case wire.TagWorker:
		b.stats.workers.Add(1)
		b.serveWorker(ctx, conn)
	default:
		b.stats.rejected.Add(1)
		logging.WarnWithContext(logger, "unknown connection tag", "classify_failed",
			logging.String("tag", string(tag)),
			logging.String(logging.FieldErrorKind, "protocol"),
			logging.String(logging.FieldErrorHint, "peer must send a 10-byte CLIENTE or NODO tag first"),
			logging.String(logging.FieldImpact, "connection dropped"),
		)
	}
}
