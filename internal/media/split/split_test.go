package split

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"framebroker/internal/media/ffprobe"
)

func stubTools(t *testing.T, probe ffprobe.Result, mode string) *[]string {
	t.Helper()
	var captured []string
	origCmd, origInspect := commandContext, inspect
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		captured = append([]string{name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], append([]string{"-test.run=TestHelperProcess", "--"}, args...)...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "SPLIT_HELPER_MODE="+mode)
		return cmd
	}
	inspect = func(context.Context, string, string) (ffprobe.Result, error) {
		return probe, nil
	}
	t.Cleanup(func() {
		commandContext, inspect = origCmd, origInspect
	})
	return &captured
}

func videoProbe() ffprobe.Result {
	return ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "video", Width: 320, Height: 240, AvgFrameRate: "24/1", NbFrames: "10"}}}
}

func TestExtractListsFramesInOrder(t *testing.T) {
	captured := stubTools(t, videoProbe(), "three")

	ext, err := Extract(context.Background(), "/in/movie.mp4", Options{WorkDir: t.TempDir(), Quality: 90})
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	defer ext.Cleanup()

	if ext.Meta.TotalFrames != 3 {
		t.Fatalf("expected frame count from files, got %d", ext.Meta.TotalFrames)
	}
	if ext.Meta.FPS != 24 || ext.Meta.Width != 320 || ext.Meta.Height != 240 {
		t.Fatalf("unexpected metadata %+v", ext.Meta)
	}
	for i := range ext.Len() {
		data, err := ext.Frame(i)
		if err != nil {
			t.Fatalf("Frame(%d): %v", i, err)
		}
		if string(data) != fmt.Sprintf("jpeg-%d", i+1) {
			t.Fatalf("frame %d has %q", i, data)
		}
	}
	if _, err := ext.Frame(3); err == nil {
		t.Fatal("expected out-of-range error")
	}
	if !strings.Contains(strings.Join(*captured, " "), "-q:v 4") {
		t.Fatalf("expected quality mapping in args %v", *captured)
	}

	if err := ext.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(ext.Dir); !os.IsNotExist(err) {
		t.Fatalf("expected work dir removed, stat err=%v", err)
	}
}

func TestExtractRequiresVideo(t *testing.T) {
	stubTools(t, ffprobe.Result{}, "three")
	if _, err := Extract(context.Background(), "/in/audio.flac", Options{WorkDir: t.TempDir()}); err == nil {
		t.Fatal("expected error without video stream")
	}
}

func TestExtractFailureCleansUp(t *testing.T) {
	stubTools(t, videoProbe(), "failure")
	work := t.TempDir()
	_, err := Extract(context.Background(), "/in/movie.mp4", Options{WorkDir: work})
	if err == nil || !strings.Contains(err.Error(), "moov atom not found") {
		t.Fatalf("expected ffmpeg error, got %v", err)
	}
	entries, _ := os.ReadDir(work)
	if len(entries) != 0 {
		t.Fatalf("expected temp dir removed, found %d entries", len(entries))
	}
}

func TestQScale(t *testing.T) {
	if qscale(100) != 2 || qscale(1) != 31 || qscale(0) != qscale(90) {
		t.Fatalf("unexpected mapping: %d %d %d", qscale(100), qscale(1), qscale(0))
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
	switch os.Getenv("SPLIT_HELPER_MODE") {
	case "three":
		pattern := args[len(args)-1]
		for i := 1; i <= 3; i++ {
			name := filepath.Join(filepath.Dir(pattern), fmt.Sprintf("frame_%08d.jpg", i))
			if err := os.WriteFile(name, []byte(fmt.Sprintf("jpeg-%d", i)), 0o644); err != nil {
				os.Exit(2)
			}
		}
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "moov atom not found")
		os.Exit(1)
	}
	os.Exit(0)
}
