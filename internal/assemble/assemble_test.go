package assemble

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"framebroker/internal/config"
	"framebroker/internal/faults"
)

func stubFFmpeg(t *testing.T, mode string) *[]string {
	t.Helper()
	var captured []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		captured = append([]string{name}, args...)
		helperArgs := append([]string{"-test.run=TestHelperProcess", "--"}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], helperArgs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "FFMPEG_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
	return &captured
}

func TestMJPEGConcatenatesInOrder(t *testing.T) {
	out, err := MJPEG{}.Assemble(context.Background(), Request{Frames: [][]byte{[]byte("a"), []byte("bc"), []byte("d")}})
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}
	if string(out) != "abcd" {
		t.Fatalf("unexpected blob %q", out)
	}

	empty, err := MJPEG{}.Assemble(context.Background(), Request{})
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil blob, got %v %v", empty, err)
	}

	if _, err := (MJPEG{}).Assemble(context.Background(), Request{Frames: [][]byte{{}}}); !errors.Is(err, faults.ErrReassembly) {
		t.Fatalf("expected reassembly error for empty frame, got %v", err)
	}
}

func TestFFmpegAssembleBuildsCommand(t *testing.T) {
	captured := stubFFmpeg(t, "success")
	enc := &FFmpeg{Binary: "/opt/ffmpeg", VideoCodec: "libx265", WorkDir: t.TempDir()}

	out, err := enc.Assemble(context.Background(), Request{
		JobID:  "job-1",
		Frames: [][]byte{[]byte("f0"), []byte("f1"), []byte("f2")},
		FPS:    29.97,
		Width:  641,
		Height: 360,
	})
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}
	if string(out) != "fake-mp4:3" {
		t.Fatalf("unexpected output %q", out)
	}

	args := *captured
	if args[0] != "/opt/ffmpeg" {
		t.Fatalf("expected configured binary, got %q", args[0])
	}
	joined := strings.Join(args, " ")
	for _, want := range []string{"-framerate 29.97", "-c:v libx265", "-pix_fmt yuv420p", "scale=642:360", "frame_%08d.jpg"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in args %v", want, args)
		}
	}

	entries, err := os.ReadDir(enc.WorkDir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected temp dir cleanup, found %d entries", len(entries))
	}
}

func TestFFmpegAssembleFailureIsReassemblyError(t *testing.T) {
	stubFFmpeg(t, "failure")
	enc := &FFmpeg{WorkDir: t.TempDir()}

	_, err := enc.Assemble(context.Background(), Request{Frames: [][]byte{[]byte("f0")}, FPS: 24})
	if !errors.Is(err, faults.ErrReassembly) {
		t.Fatalf("expected reassembly error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("expected ffmpeg stderr in error, got %v", err)
	}
}

func TestFFmpegZeroFramesSkipsEncoder(t *testing.T) {
	captured := stubFFmpeg(t, "success")
	out, err := (&FFmpeg{}).Assemble(context.Background(), Request{FPS: 30})
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty blob, got %q", out)
	}
	if len(*captured) != 0 {
		t.Fatal("ffmpeg should not run for zero frames")
	}
}

func TestFFmpegRejectsInvalidFPS(t *testing.T) {
	stubFFmpeg(t, "success")
	_, err := (&FFmpeg{WorkDir: t.TempDir()}).Assemble(context.Background(), Request{Frames: [][]byte{[]byte("x")}})
	if !errors.Is(err, faults.ErrReassembly) {
		t.Fatalf("expected reassembly error, got %v", err)
	}
}

func TestNewSelectsFormat(t *testing.T) {
	cfg := config.Default()
	for format, want := range map[string]string{"mp4": "mp4", "mjpeg": "mjpeg", "av1": "av1"} {
		cfg.Codec.Format = format
		asm, err := New(&cfg, nil)
		if err != nil {
			t.Fatalf("New(%s) returned error: %v", format, err)
		}
		if asm.Format() != want {
			t.Fatalf("New(%s) format = %q", format, asm.Format())
		}
	}
	cfg.Codec.Format = "gif"
	if _, err := New(&cfg, nil); !errors.Is(err, faults.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestAV1ZeroFrames(t *testing.T) {
	out, err := (&AV1{}).Assemble(context.Background(), Request{})
	if err != nil || len(out) != 0 {
		t.Fatalf("expected empty blob, got %q %v", out, err)
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, arg := range args {
		if arg == "--" {
			args = args[i+1:]
			break
		}
	}

	switch os.Getenv("FFMPEG_HELPER_MODE") {
	case "success":
		var pattern string
		for i, arg := range args {
			if arg == "-i" && i+1 < len(args) {
				pattern = args[i+1]
			}
		}
		matches, _ := filepath.Glob(filepath.Join(filepath.Dir(pattern), "frame_*.jpg"))
		output := args[len(args)-1]
		if err := os.WriteFile(output, []byte(fmt.Sprintf("fake-mp4:%d", len(matches))), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "frame_00000000.jpg: Invalid data found when processing input")
		os.Exit(1)
	default:
		os.Exit(0)
	}
}
