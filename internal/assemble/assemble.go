package assemble

import (
	"context"
	"fmt"
	"log/slog"

	"framebroker/internal/config"
	"framebroker/internal/faults"
)

// Request carries everything needed to assemble one session.
type Request struct {
	JobID  string
	Frames [][]byte
	FPS    float64
	Width  int
	Height int
}

// Assembler produces the deliverable for a completed session.
type Assembler interface {
	Assemble(ctx context.Context, req Request) ([]byte, error)
	Format() string
}

// New returns the assembler selected by cfg.Codec.Format.
func New(cfg *config.Config, logger *slog.Logger) (Assembler, error) {
	if cfg == nil {
		return MJPEG{}, nil
	}
	ffmpeg := &FFmpeg{
		Binary:     cfg.Codec.FFmpegBinary,
		VideoCodec: cfg.Codec.VideoCodec,
		WorkDir:    cfg.Codec.WorkDir,
		Logger:     logger,
	}
	switch cfg.Codec.Format {
	case "mjpeg":
		return MJPEG{}, nil
	case "mp4", "":
		return ffmpeg, nil
	case "av1":
		return &AV1{Intermediate: ffmpeg, Logger: logger}, nil
	default:
		return nil, faults.Wrap(faults.ErrConfiguration, "assemble", "select codec", fmt.Sprintf("unsupported format %q", cfg.Codec.Format), nil)
	}
}

// MJPEG concatenates JPEG frames into a motion-JPEG stream.
type MJPEG struct{}

// Format implements Assembler.
func (MJPEG) Format() string { return "mjpeg" }

// Assemble implements Assembler.
func (MJPEG) Assemble(ctx context.Context, req Request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	size := 0
	for _, frame := range req.Frames {
		size += len(frame)
	}
	out := make([]byte, 0, size)
	for i, frame := range req.Frames {
		if len(frame) == 0 {
			return nil, faults.Wrap(faults.ErrReassembly, "assemble", "mjpeg", fmt.Sprintf("frame %d is empty", i), nil)
		}
		out = append(out, frame...)
	}
	return out, nil
}
