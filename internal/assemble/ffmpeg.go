package assemble

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"framebroker/internal/faults"
	"framebroker/internal/logging"
)

var commandContext = exec.CommandContext

// framePattern names extracted frames for the image2 demuxer.
const framePattern = "frame_%08d.jpg"

// FFmpeg encodes JPEG frames into an MP4 container.
type FFmpeg struct {
	Binary     string
	VideoCodec string
	// WorkDir hosts per-job temp directories; empty uses os.TempDir.
	WorkDir string
	Logger  *slog.Logger
}

// Format implements Assembler.
func (f *FFmpeg) Format() string { return "mp4" }

// Assemble implements Assembler.
func (f *FFmpeg) Assemble(ctx context.Context, req Request) ([]byte, error) {
	if len(req.Frames) == 0 {
		return []byte{}, nil
	}
	dir, err := os.MkdirTemp(f.WorkDir, "framebroker-assemble-")
	if err != nil {
		return nil, faults.Wrap(faults.ErrReassembly, "assemble", "ffmpeg", "create work dir", err)
	}
	defer os.RemoveAll(dir)

	output, err := f.encodeFile(ctx, dir, req)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(output)
	if err != nil {
		return nil, faults.Wrap(faults.ErrReassembly, "assemble", "ffmpeg", "read output", err)
	}
	return data, nil
}

// encodeFile writes the frames under dir and encodes them to dir/output.mp4.
func (f *FFmpeg) encodeFile(ctx context.Context, dir string, req Request) (string, error) {
	if !(req.FPS > 0) {
		return "", faults.Wrap(faults.ErrReassembly, "assemble", "ffmpeg", fmt.Sprintf("invalid fps %v", req.FPS), nil)
	}
	for i, frame := range req.Frames {
		name := filepath.Join(dir, fmt.Sprintf(framePattern, i))
		if err := os.WriteFile(name, frame, 0o644); err != nil {
			return "", faults.Wrap(faults.ErrReassembly, "assemble", "ffmpeg", "write frame", err)
		}
	}

	output := filepath.Join(dir, "output.mp4")
	args := f.buildArgs(filepath.Join(dir, framePattern), output, req)
	logger := logging.NewComponentLogger(f.Logger, "assemble")
	logger.Debug("ffmpeg encode starting",
		logging.String(logging.FieldJobID, req.JobID),
		logging.Int("frames", len(req.Frames)),
		logging.String("args", strings.Join(args, " ")),
	)

	started := time.Now()
	var stderr bytes.Buffer
	cmd := commandContext(ctx, f.binary(), args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = "ffmpeg failed"
		}
		return "", faults.Wrap(faults.ErrReassembly, "assemble", "ffmpeg", lastLine(detail), err)
	}
	if _, err := os.Stat(output); err != nil {
		return "", faults.Wrap(faults.ErrReassembly, "assemble", "ffmpeg", "no output produced", err)
	}
	logger.Info("ffmpeg encode finished",
		logging.String(logging.FieldJobID, req.JobID),
		logging.Int("frames", len(req.Frames)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return output, nil
}

func (f *FFmpeg) buildArgs(pattern, output string, req Request) []string {
	codec := strings.TrimSpace(f.VideoCodec)
	if codec == "" {
		codec = "libx264"
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-framerate", strconv.FormatFloat(req.FPS, 'f', -1, 64),
		"-i", pattern,
		"-c:v", codec,
		"-pix_fmt", "yuv420p",
	}
	if req.Width > 0 && req.Height > 0 {
		// yuv420p needs even dimensions.
		args = append(args, "-vf", fmt.Sprintf("scale=%d:%d", even(req.Width), even(req.Height)))
	}
	return append(args, "-movflags", "+faststart", output)
}

func (f *FFmpeg) binary() string {
	if b := strings.TrimSpace(f.Binary); b != "" {
		return b
	}
	return "ffmpeg"
}

func even(v int) int {
	if v%2 == 1 {
		return v + 1
	}
	return v
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
