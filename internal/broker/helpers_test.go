package broker_test

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"framebroker/internal/broker"
	"framebroker/internal/wire"
)

const ioTimeout = 5 * time.Second

type harness struct {
	broker *broker.Broker
	addr   string
}

func startBroker(t *testing.T, opts broker.Options) *harness {
	t.Helper()

	if opts.DequeueTimeout == 0 {
		opts.DequeueTimeout = 20 * time.Millisecond
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	b := broker.New(nil, nil, opts)
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- b.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-served:
			require.NoError(t, err)
		case <-time.After(ioTimeout):
			t.Fatal("broker did not stop")
		}
		b.Queue().Close()
	})
	return &harness{broker: b, addr: ln.Addr().String()}
}

func (h *harness) dial(t *testing.T, tag wire.Tag) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", h.addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetDeadline(time.Now().Add(ioTimeout)))
	require.NoError(t, wire.WriteTag(conn, tag))
	return conn
}

// openSession sends metadata for n frames of the given size.
func openSession(t *testing.T, conn net.Conn, n int) {
	t.Helper()
	payload, err := wire.EncodeMetadata(wire.Metadata{TotalFrames: n, FPS: 30, Width: 4, Height: 2})
	require.NoError(t, err)
	require.NoError(t, wire.WriteFrame(conn, payload))
}

func submit(t *testing.T, conn net.Conn, index uint32, data string) {
	t.Helper()
	require.NoError(t, wire.WriteFrame(conn, wire.EncodeIndexed(index, []byte(data))))
}

// awaitResult reads the status frame and, when ready, the blob.
func awaitResult(t *testing.T, conn net.Conn) (wire.Status, []byte) {
	t.Helper()
	payload, err := wire.ReadFrame(conn, 0)
	require.NoError(t, err)
	status, err := wire.DecodeStatus(payload)
	require.NoError(t, err)
	if status.Status != wire.StatusReady {
		return status, nil
	}
	blob, err := wire.ReadFrame(conn, uint32(status.Size))
	require.NoError(t, err)
	return status, blob
}

// fakeWorker answers every work item with "p:" prepended to the data.
// It runs until the connection closes.
type fakeWorker struct {
	conn net.Conn
	done chan struct{}
}

func runWorker(t *testing.T, h *harness) *fakeWorker {
	t.Helper()
	conn := h.dial(t, wire.TagWorker)
	require.NoError(t, conn.SetDeadline(time.Time{}))
	w := &fakeWorker{conn: conn, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		for {
			payload, err := wire.ReadFrame(conn, 0)
			if err != nil {
				return
			}
			frame, err := wire.DecodeIndexed(payload)
			if err != nil {
				return
			}
			out := append([]byte("p:"), frame.Data...)
			if err := wire.WriteFrame(conn, wire.EncodeIndexed(frame.Index, out)); err != nil {
				return
			}
		}
	}()
	t.Cleanup(func() {
		conn.Close()
		<-w.done
	})
	return w
}

// gatedWorker reports each received index on got and holds its reply until
// release is closed.
type gatedWorker struct {
	got     chan uint32
	release chan struct{}
	done    chan struct{}
}

func runGatedWorker(t *testing.T, h *harness) *gatedWorker {
	t.Helper()
	conn := h.dial(t, wire.TagWorker)
	require.NoError(t, conn.SetDeadline(time.Time{}))
	w := &gatedWorker{got: make(chan uint32, 1), release: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(w.done)
		payload, err := wire.ReadFrame(conn, 0)
		if err != nil {
			return
		}
		frame, err := wire.DecodeIndexed(payload)
		if err != nil {
			return
		}
		w.got <- frame.Index
		<-w.release
		out := append([]byte("p:"), frame.Data...)
		_ = wire.WriteFrame(conn, wire.EncodeIndexed(frame.Index, out))
		// Stay connected until the broker closes us so we never take a
		// second item.
		_, _ = io.Copy(io.Discard, conn)
	}()
	t.Cleanup(func() {
		select {
		case <-w.release:
		default:
			close(w.release)
		}
		conn.Close()
		<-w.done
	})
	return w
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, ioTimeout, 5*time.Millisecond)
}

// expectClosed asserts the broker closed conn without sending anything.
func expectClosed(t *testing.T, conn net.Conn) {
	t.Helper()
	var buf [1]byte
	_, err := conn.Read(buf[:])
	require.Error(t, err)
	require.True(t, errors.Is(err, io.EOF) || isReset(err), "expected close, got %v", err)
}

func isReset(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && !opErr.Timeout()
}

func concat(parts ...string) []byte {
	return []byte(strings.Join(parts, ""))
}
