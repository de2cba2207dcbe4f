package wire_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"framebroker/internal/faults"
	"framebroker/internal/wire"
)

func TestMetadataRoundTrip(t *testing.T) {
	meta := wire.Metadata{TotalFrames: 3, FPS: 30, Width: 640, Height: 360}
	payload, err := wire.EncodeMetadata(meta)
	require.NoError(t, err)
	assert.JSONEq(t, `{"total_frames":3,"fps":30,"width":640,"height":360}`, string(payload))

	got, err := wire.DecodeMetadata(payload)
	require.NoError(t, err)
	assert.Equal(t, meta, got)
}

func TestDecodeMetadataZeroFrames(t *testing.T) {
	got, err := wire.DecodeMetadata([]byte(`{"total_frames":0,"fps":23.976,"width":1,"height":1}`))
	require.NoError(t, err)
	assert.Zero(t, got.TotalFrames)
	assert.InDelta(t, 23.976, got.FPS, 1e-9)
}

func TestDecodeMetadataRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":      `total_frames=3`,
		"missing key":   `{"total_frames":3,"fps":30,"width":640}`,
		"extra key":     `{"total_frames":3,"fps":30,"width":640,"height":360,"codec":"h264"}`,
		"negative":      `{"total_frames":-1,"fps":30,"width":640,"height":360}`,
		"zero fps":      `{"total_frames":3,"fps":0,"width":640,"height":360}`,
		"zero width":    `{"total_frames":3,"fps":30,"width":0,"height":360}`,
		"string count":  `{"total_frames":"3","fps":30,"width":640,"height":360}`,
		"fraction size": `{"total_frames":3,"fps":30,"width":640.5,"height":360}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := wire.DecodeMetadata([]byte(payload))
			require.Error(t, err)
			assert.ErrorIs(t, err, faults.ErrProtocol)
		})
	}
}

func TestIndexedFrame(t *testing.T) {
	payload := wire.EncodeIndexed(258, []byte("jpeg"))
	assert.Equal(t, []byte{0, 0, 1, 2, 'j', 'p', 'e', 'g'}, payload)

	frame, err := wire.DecodeIndexed(payload)
	require.NoError(t, err)
	assert.Equal(t, uint32(258), frame.Index)
	assert.Equal(t, []byte("jpeg"), frame.Data)

	bare, err := wire.DecodeIndexed([]byte{0, 0, 0, 7})
	require.NoError(t, err)
	assert.Equal(t, uint32(7), bare.Index)
	assert.Empty(t, bare.Data)

	_, err = wire.DecodeIndexed([]byte{1, 2})
	assert.ErrorIs(t, err, faults.ErrProtocol)
}

func TestStatusPayloads(t *testing.T) {
	ready, err := wire.EncodeStatus(wire.Ready(0))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ready","size":0}`, string(ready))

	failed, err := wire.EncodeStatus(wire.Failure("ffmpeg exited 1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"error","message":"ffmpeg exited 1"}`, string(failed))

	got, err := wire.DecodeStatus([]byte(`{"status":"ready","size":1234}`))
	require.NoError(t, err)
	assert.Equal(t, wire.Ready(1234), got)

	_, err = wire.DecodeStatus([]byte(`{"status":"pending"}`))
	assert.ErrorIs(t, err, faults.ErrProtocol)

	_, err = wire.EncodeStatus(wire.Status{Status: "maybe"})
	assert.Error(t, err)
}
