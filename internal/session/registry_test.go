package session_test

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"framebroker/internal/faults"
	"framebroker/internal/session"
	"framebroker/internal/wire"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func meta(n int) wire.Metadata {
	return wire.Metadata{TotalFrames: n, FPS: 30, Width: 640, Height: 360}
}

func TestCreateGetRemove(t *testing.T) {
	reg := session.NewRegistry()

	s, err := reg.Create("10.0.0.1:4000", meta(2))
	require.NoError(t, err)
	assert.NotEmpty(t, s.JobID)
	assert.Equal(t, uint32(2), s.Total())

	got, ok := reg.Get("10.0.0.1:4000")
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, reg.Len())

	_, err = reg.Create("10.0.0.1:4000", meta(1))
	assert.ErrorIs(t, err, session.ErrExists)

	assert.True(t, reg.Remove("10.0.0.1:4000"))
	assert.False(t, reg.Remove("10.0.0.1:4000"))
	assert.False(t, reg.Has("10.0.0.1:4000"))
}

func TestCreateRejectsInvalidMetadata(t *testing.T) {
	reg := session.NewRegistry()
	_, err := reg.Create("x", wire.Metadata{TotalFrames: 1, FPS: 0, Width: 1, Height: 1})
	assert.ErrorIs(t, err, faults.ErrProtocol)
	assert.Zero(t, reg.Len())
}

func TestZeroFramesCompleteAtCreation(t *testing.T) {
	reg := session.NewRegistry()
	s, err := reg.Create("empty", meta(0))
	require.NoError(t, err)

	select {
	case <-s.Done():
	default:
		t.Fatal("expected zero-frame session to be complete immediately")
	}
	assert.True(t, reg.IsComplete("empty"))
	frames, err := s.Frames()
	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestOutOfOrderResultsAssembleAscending(t *testing.T) {
	reg := session.NewRegistry()
	const n = 50
	s, err := reg.Create("s", meta(n))
	require.NoError(t, err)

	order := rand.Perm(n)
	for i, idx := range order {
		assert.False(t, reg.IsComplete("s"))
		_, err := s.Frames()
		assert.ErrorIs(t, err, session.ErrIncomplete)

		fresh, err := reg.RecordResult("s", uint32(idx), []byte(fmt.Sprintf("frame-%03d", idx)))
		require.NoError(t, err)
		assert.True(t, fresh)
		if i < n-1 {
			select {
			case <-s.Done():
				t.Fatal("session signalled completion early")
			default:
			}
		}
	}

	<-s.Done()
	frames, err := s.Frames()
	require.NoError(t, err)
	require.Len(t, frames, n)
	for i, frame := range frames {
		assert.Equal(t, fmt.Sprintf("frame-%03d", i), string(frame))
	}
}

func TestDuplicateResultNeverOverwrites(t *testing.T) {
	reg := session.NewRegistry()
	s, err := reg.Create("s", meta(2))
	require.NoError(t, err)

	fresh, err := reg.RecordResult("s", 0, []byte("first"))
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = reg.RecordResult("s", 0, []byte("second"))
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.Equal(t, 1, s.Duplicates())

	_, err = reg.RecordResult("s", 1, []byte("other"))
	require.NoError(t, err)
	frames, err := s.Frames()
	require.NoError(t, err)
	assert.Equal(t, "first", string(frames[0]))
}

func TestRecordResultRejectsOutOfRange(t *testing.T) {
	reg := session.NewRegistry()
	_, err := reg.Create("s", meta(2))
	require.NoError(t, err)

	_, err = reg.RecordResult("s", 2, []byte("x"))
	assert.ErrorIs(t, err, faults.ErrProtocol)
	_, completed := mustGet(t, reg, "s").Progress()
	assert.Zero(t, completed)
}

func TestOrphanResult(t *testing.T) {
	reg := session.NewRegistry()
	_, err := reg.Create("live", meta(1))
	require.NoError(t, err)

	_, err = reg.RecordResult("gone", 0, []byte("late"))
	assert.ErrorIs(t, err, session.ErrUnknownSession)
	assert.ErrorIs(t, err, faults.ErrOrphaned)
	assert.False(t, reg.IsComplete("gone"))

	_, completed := mustGet(t, reg, "live").Progress()
	assert.Zero(t, completed, "orphan must not touch other sessions")
}

func TestMarkSubmitted(t *testing.T) {
	reg := session.NewRegistry()
	_, err := reg.Create("s", meta(3))
	require.NoError(t, err)

	require.NoError(t, reg.MarkSubmitted("s", 2))
	require.NoError(t, reg.MarkSubmitted("s", 0))
	assert.ErrorIs(t, reg.MarkSubmitted("s", 2), faults.ErrProtocol)
	assert.ErrorIs(t, reg.MarkSubmitted("s", 3), faults.ErrProtocol)
	assert.ErrorIs(t, reg.MarkSubmitted("nobody", 0), session.ErrUnknownSession)

	submitted, _ := mustGet(t, reg, "s").Progress()
	assert.Equal(t, 2, submitted)
}

func TestConcurrentRecordSignalsOnce(t *testing.T) {
	reg := session.NewRegistry()
	const n = 200
	s, err := reg.Create("s", meta(n))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for worker := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Every worker reports every frame; only the first copy sticks.
			for i := range n {
				idx := uint32((i + worker*13) % n)
				_, _ = reg.RecordResult("s", idx, []byte{byte(idx)})
				_ = reg.IsComplete("s")
			}
		}()
	}
	wg.Wait()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session never completed")
	}
	frames, err := s.Frames()
	require.NoError(t, err)
	for i, frame := range frames {
		assert.Equal(t, []byte{byte(i)}, frame)
	}
	assert.Equal(t, 7*n, s.Duplicates())
}

func TestSnapshotOrdersByCreation(t *testing.T) {
	reg := session.NewRegistry()
	_, err := reg.Create("first", meta(2))
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = reg.Create("second", meta(1))
	require.NoError(t, err)
	require.NoError(t, reg.MarkSubmitted("first", 1))
	_, err = reg.RecordResult("first", 1, []byte("x"))
	require.NoError(t, err)

	infos := reg.Snapshot()
	require.Len(t, infos, 2)
	assert.Equal(t, "first", infos[0].ID)
	assert.Equal(t, 1, infos[0].Submitted)
	assert.Equal(t, 1, infos[0].Completed)
	assert.Equal(t, "second", infos[1].ID)
}

func mustGet(t *testing.T, reg *session.Registry, id string) *session.Session {
	t.Helper()
	s, ok := reg.Get(id)
	require.True(t, ok)
	return s
}
