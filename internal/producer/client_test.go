package producer_test

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"framebroker/internal/assemble"
	"framebroker/internal/broker"
	"framebroker/internal/faults"
	"framebroker/internal/node"
	"framebroker/internal/producer"
	"framebroker/internal/testsupport"
	"framebroker/internal/wire"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// startStack runs a broker and n processing nodes on loopback.
func startStack(t *testing.T, opts broker.Options, nodes int) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	if opts.DequeueTimeout == 0 {
		opts.DequeueTimeout = 20 * time.Millisecond
	}
	b := broker.New(nil, nil, opts)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.Serve(ctx, ln)
	}()
	for i := 0; i < nodes; i++ {
		n := node.New(node.Options{Address: ln.Addr().String(), Quality: 80})
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = n.Run(ctx)
		}()
	}
	t.Cleanup(func() {
		cancel()
		wg.Wait()
		b.Queue().Close()
	})
	return ln.Addr().String()
}

func TestSubmitReturnsAssembledFrames(t *testing.T) {
	addr := startStack(t, broker.Options{}, 2)
	frames := producer.Frames{
		testsupport.JPEG(t, 16, 16, color.RGBA{R: 200, A: 255}),
		testsupport.JPEG(t, 16, 16, color.RGBA{G: 200, A: 255}),
		testsupport.JPEG(t, 16, 16, color.RGBA{B: 200, A: 255}),
	}

	var (
		mu   sync.Mutex
		sent []int
	)
	client := producer.NewClient(producer.Options{Address: addr})
	blob, err := client.Submit(context.Background(),
		wire.Metadata{TotalFrames: 3, FPS: 24, Width: 16, Height: 16},
		frames,
		func(n, total int) {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, 3, total)
			sent = append(sent, n)
		},
	)
	require.NoError(t, err)

	// Motion JPEG: three complete images back to back.
	assert.Equal(t, 3, bytes.Count(blob, []byte{0xFF, 0xD8, 0xFF}))
	assert.True(t, bytes.HasSuffix(blob, []byte{0xFF, 0xD9}))
	mu.Lock()
	assert.Equal(t, []int{1, 2, 3}, sent)
	mu.Unlock()
}

func TestSubmitZeroFrames(t *testing.T) {
	addr := startStack(t, broker.Options{}, 0)
	client := producer.NewClient(producer.Options{Address: addr})

	blob, err := client.Submit(context.Background(), wire.Metadata{FPS: 30, Width: 2, Height: 2}, producer.Frames{}, nil)
	require.NoError(t, err)
	assert.Empty(t, blob)
}

type brokenAssembler struct{}

func (brokenAssembler) Format() string { return "broken" }

func (brokenAssembler) Assemble(context.Context, assemble.Request) ([]byte, error) {
	return nil, errors.New("no encoder")
}

func TestSubmitSurfacesRemoteError(t *testing.T) {
	addr := startStack(t, broker.Options{Assembler: brokenAssembler{}}, 1)
	client := producer.NewClient(producer.Options{Address: addr})

	_, err := client.Submit(context.Background(),
		wire.Metadata{TotalFrames: 1, FPS: 30, Width: 16, Height: 16},
		producer.Frames{testsupport.JPEG(t, 16, 16, color.RGBA{A: 255})},
		nil,
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, faults.ErrRemote)
	assert.Contains(t, err.Error(), "no encoder")
}

func TestSubmitRejectsFrameCountMismatch(t *testing.T) {
	client := producer.NewClient(producer.Options{Address: "127.0.0.1:1"})
	_, err := client.Submit(context.Background(), wire.Metadata{TotalFrames: 2, FPS: 1, Width: 1, Height: 1}, producer.Frames{{0x01}}, nil)
	assert.ErrorIs(t, err, faults.ErrProtocol)
}

func TestSubmitHonoursCancellation(t *testing.T) {
	// No nodes: the session can never complete.
	addr := startStack(t, broker.Options{}, 0)
	client := producer.NewClient(producer.Options{Address: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := client.Submit(ctx,
		wire.Metadata{TotalFrames: 1, FPS: 30, Width: 16, Height: 16},
		producer.Frames{testsupport.JPEG(t, 16, 16, color.RGBA{A: 255})},
		nil,
	)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubmitRejectsOversizedStatus(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	served := make(chan struct{})
	go func() {
		defer close(served)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := wire.ReadTag(conn); err != nil {
			return
		}
		if _, err := wire.ReadFrame(conn, 0); err != nil {
			return
		}
		// One byte past what a 4-byte length prefix can carry.
		payload, err := wire.EncodeStatus(wire.Ready(1 << 32))
		if err != nil {
			return
		}
		_ = wire.WriteFrame(conn, payload)
		_, _ = conn.Read(make([]byte, 1))
	}()

	client := producer.NewClient(producer.Options{Address: ln.Addr().String()})
	_, err = client.Submit(context.Background(), wire.Metadata{FPS: 30, Width: 2, Height: 2}, producer.Frames{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, faults.ErrProtocol)
	assert.Contains(t, err.Error(), "4294967296")
	<-served
}
