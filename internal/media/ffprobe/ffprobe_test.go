package ffprobe

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"testing"
)

func TestFrameRateParsing(t *testing.T) {
	cases := map[string]float64{
		"30000/1001": 30000.0 / 1001.0,
		"25/1":       25,
		"24":         24,
		"0/0":        0,
		"":           0,
		"bad":        0,
	}
	for input, want := range cases {
		got := Stream{AvgFrameRate: input}.FrameRate()
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("FrameRate(%q) = %v, want %v", input, got, want)
		}
	}
	if got := (Stream{AvgFrameRate: "0/0", RFrameRate: "50/1"}).FrameRate(); got != 50 {
		t.Fatalf("expected fallback to r_frame_rate, got %v", got)
	}
}

func TestFrameCount(t *testing.T) {
	result := Result{Streams: []Stream{
		{CodecType: "audio", NbFrames: "999"},
		{CodecType: "video", NbFrames: "120", AvgFrameRate: "30/1"},
	}}
	if n := result.FrameCount(); n != 120 {
		t.Fatalf("expected nb_frames, got %d", n)
	}

	estimated := Result{
		Streams: []Stream{{CodecType: "video", AvgFrameRate: "25/1"}},
		Format:  Format{Duration: "2.0"},
	}
	if n := estimated.FrameCount(); n != 50 {
		t.Fatalf("expected duration estimate of 50, got %d", n)
	}

	if n := (Result{}).FrameCount(); n != 0 {
		t.Fatalf("expected 0 without video, got %d", n)
	}
}

func TestInspectDecodesOutput(t *testing.T) {
	var captured []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		captured = append([]string{name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
		return cmd
	}
	t.Cleanup(func() { commandContext = original })

	result, err := Inspect(context.Background(), "", "/videos/in.mp4")
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}
	if captured[0] != "ffprobe" || captured[len(captured)-1] != "/videos/in.mp4" {
		t.Fatalf("unexpected command %v", captured)
	}
	video, ok := result.Video()
	if !ok || video.Width != 640 || video.Height != 360 {
		t.Fatalf("unexpected video stream %+v", video)
	}
	if result.FrameCount() != 90 {
		t.Fatalf("unexpected frame count %d", result.FrameCount())
	}
}

func TestInspectRequiresPath(t *testing.T) {
	if _, err := Inspect(context.Background(), "ffprobe", " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	fmt.Println(`{"streams":[{"index":0,"codec_type":"video","codec_name":"h264","width":640,"height":360,"avg_frame_rate":"30/1","nb_frames":"90"}],"format":{"duration":"3.0"}}`)
	os.Exit(0)
}
