// Package split extracts a video's frames as JPEG files for submission.
package split

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"framebroker/internal/media/ffprobe"
	"framebroker/internal/wire"
)

var (
	commandContext = exec.CommandContext
	inspect        = ffprobe.Inspect
)

// Options configures an extraction.
type Options struct {
	FFmpegBinary  string
	FFprobeBinary string
	// WorkDir hosts the temporary frame directory; empty uses os.TempDir.
	WorkDir string
	// Quality is the JPEG quality (1-100) mapped onto ffmpeg's -q:v scale.
	Quality int
}

// Extraction is a directory of frames plus the job metadata describing them.
type Extraction struct {
	Dir    string
	Meta   wire.Metadata
	frames []string
}

// Extract probes input and writes every frame into a fresh temp directory.
// The declared frame count is the number of files ffmpeg actually wrote, not
// the container's estimate. Call Cleanup when done.
func Extract(ctx context.Context, input string, opts Options) (*Extraction, error) {
	probe, err := inspect(ctx, opts.FFprobeBinary, input)
	if err != nil {
		return nil, err
	}
	video, ok := probe.Video()
	if !ok {
		return nil, fmt.Errorf("split %s: no video stream", input)
	}
	fps := video.FrameRate()
	if !(fps > 0) {
		return nil, fmt.Errorf("split %s: unknown frame rate", input)
	}

	dir, err := os.MkdirTemp(opts.WorkDir, "framebroker-split-")
	if err != nil {
		return nil, fmt.Errorf("split: create work dir: %w", err)
	}

	binary := strings.TrimSpace(opts.FFmpegBinary)
	if binary == "" {
		binary = "ffmpeg"
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", input,
		"-map", "0:v:0",
		"-fps_mode", "passthrough",
		"-q:v", strconv.Itoa(qscale(opts.Quality)),
		filepath.Join(dir, "frame_%08d.jpg"),
	}
	var stderr bytes.Buffer
	cmd := commandContext(ctx, binary, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("split %s: ffmpeg: %w: %s", input, err, strings.TrimSpace(stderr.String()))
	}

	frames, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("split: list frames: %w", err)
	}
	slices.Sort(frames)

	return &Extraction{
		Dir: dir,
		Meta: wire.Metadata{
			TotalFrames: len(frames),
			FPS:         fps,
			Width:       video.Width,
			Height:      video.Height,
		},
		frames: frames,
	}, nil
}

// Len implements producer.FrameSource.
func (e *Extraction) Len() int {
	return len(e.frames)
}

// Frame implements producer.FrameSource.
func (e *Extraction) Frame(i int) ([]byte, error) {
	if i < 0 || i >= len(e.frames) {
		return nil, fmt.Errorf("frame %d out of range [0,%d)", i, len(e.frames))
	}
	return os.ReadFile(e.frames[i])
}

// Cleanup removes the extracted frames.
func (e *Extraction) Cleanup() error {
	if e == nil || e.Dir == "" {
		return nil
	}
	return os.RemoveAll(e.Dir)
}

// qscale maps a 1-100 JPEG quality onto ffmpeg's 2-31 mjpeg scale, where
// lower is better.
func qscale(quality int) int {
	if quality < 1 || quality > 100 {
		quality = 90
	}
	return 2 + (100-quality)*29/99
}
