package producer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"framebroker/internal/faults"
	"framebroker/internal/logging"
	"framebroker/internal/wire"
)

// FrameSource yields encoded frames by index.
type FrameSource interface {
	Len() int
	Frame(i int) ([]byte, error)
}

// Frames is an in-memory FrameSource.
type Frames [][]byte

// Len implements FrameSource.
func (f Frames) Len() int { return len(f) }

// Frame implements FrameSource.
func (f Frames) Frame(i int) ([]byte, error) {
	if i < 0 || i >= len(f) {
		return nil, fmt.Errorf("frame %d out of range", i)
	}
	return f[i], nil
}

// Progress is called after each frame is written.
type Progress func(sent, total int)

// Options configures a Client.
type Options struct {
	// Address is the broker's host:port.
	Address string
	Logger  *slog.Logger
}

// Client submits sessions to a broker. Each Submit uses its own connection.
type Client struct {
	opts   Options
	logger *slog.Logger
	dialer net.Dialer
}

// NewClient returns a client for opts.
func NewClient(opts Options) *Client {
	return &Client{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "producer"),
	}
}

// Submit opens a session for meta, streams every frame of src with its
// position as the index, and returns the result blob. An error status from
// the broker is returned as a faults.ErrRemote error carrying its message.
func (c *Client) Submit(ctx context.Context, meta wire.Metadata, src FrameSource, progress Progress) ([]byte, error) {
	if src.Len() != meta.TotalFrames {
		return nil, faults.Wrap(faults.ErrProtocol, "producer", "submit",
			fmt.Sprintf("metadata declares %d frames, source has %d", meta.TotalFrames, src.Len()), nil)
	}
	metaPayload, err := wire.EncodeMetadata(meta)
	if err != nil {
		return nil, err
	}

	conn, err := c.dialer.DialContext(ctx, "tcp", c.opts.Address)
	if err != nil {
		return nil, faults.Wrap(faults.ErrTransport, "producer", "dial", c.opts.Address, err)
	}
	defer conn.Close()

	started := time.Now()
	group, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, func() { _ = conn.Close() })
	defer stop()

	if err := wire.WriteTag(conn, wire.TagProducer); err != nil {
		return nil, err
	}
	if err := wire.WriteFrame(conn, metaPayload); err != nil {
		return nil, err
	}
	c.logger.Info("session opened",
		logging.String(logging.FieldRemote, c.opts.Address),
		logging.Int("total_frames", meta.TotalFrames),
	)

	sendDone := make(chan struct{})
	group.Go(func() error {
		defer close(sendDone)
		return c.send(conn, src, progress)
	})

	var blob []byte
	group.Go(func() error {
		var err error
		blob, err = c.receive(conn, sendDone)
		return err
	})

	if err := group.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	c.logger.Info("result received",
		logging.Int("bytes", len(blob)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return blob, nil
}

func (c *Client) send(conn net.Conn, src FrameSource, progress Progress) error {
	total := src.Len()
	for i := 0; i < total; i++ {
		data, err := src.Frame(i)
		if err != nil {
			return fmt.Errorf("load frame %d: %w", i, err)
		}
		if err := wire.WriteFrame(conn, wire.EncodeIndexed(uint32(i), data)); err != nil {
			return err
		}
		if progress != nil {
			progress(i+1, total)
		}
	}
	return nil
}

// receive waits for the status frame, then for the sender to finish before
// reading the blob. A broker that drops the session mid-stream surfaces here
// as end-of-stream while frames are still going out.
func (c *Client) receive(conn net.Conn, sendDone <-chan struct{}) ([]byte, error) {
	payload, err := wire.ReadFrame(conn, 0)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, faults.Wrap(faults.ErrTransport, "producer", "await status", "broker closed the connection", err)
		}
		return nil, err
	}
	<-sendDone
	status, err := wire.DecodeStatus(payload)
	if err != nil {
		return nil, err
	}
	if status.Status == wire.StatusError {
		return nil, faults.Wrap(faults.ErrRemote, "producer", "await status", status.Message, nil)
	}

	if status.Size > math.MaxUint32 {
		return nil, faults.Wrap(faults.ErrProtocol, "producer", "await status",
			fmt.Sprintf("status announced %d bytes, outside the frame size range", status.Size), nil)
	}

	// A zero ceiling would disable the check, so an empty result is read
	// with a one-byte ceiling and the size compared afterwards.
	blob, err := wire.ReadFrame(conn, max(uint32(status.Size), 1))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, faults.Wrap(faults.ErrTransport, "producer", "read result", "broker closed the connection", err)
		}
		return nil, err
	}
	if int64(len(blob)) != status.Size {
		return nil, faults.Wrap(faults.ErrProtocol, "producer", "read result",
			fmt.Sprintf("status announced %d bytes, received %d", status.Size, len(blob)), nil)
	}
	return blob, nil
}
