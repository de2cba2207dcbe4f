package logs_test

import (
	"log/slog"
	"strings"
	"testing"

	"framebroker/internal/logs"
)

func TestParseEntryAndFormat(t *testing.T) {
	line := `{"ts":"2026-10-19T10:00:02Z","level":"warn","msg":"worker lost","component":"worker","session_id":"10.0.0.2:5000","frame_index":7,"run_id":"r1","impact":"frame requeued"}`

	entry, ok := logs.ParseEntry(line)
	if !ok {
		t.Fatal("expected JSON line to parse")
	}
	if entry.Level != slog.LevelWarn || entry.Component != "worker" || entry.Message != "worker lost" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.Attr("frame_index") != "7" {
		t.Fatalf("frame_index = %q", entry.Attr("frame_index"))
	}

	formatted := logs.Format(entry)
	for _, want := range []string{"WARN", "worker worker lost", "frame_index=7", `impact="frame requeued"`, "session_id=10.0.0.2:5000"} {
		if !strings.Contains(formatted, want) {
			t.Errorf("formatted line %q missing %q", formatted, want)
		}
	}
	if strings.Contains(formatted, "run_id") {
		t.Errorf("run_id should be omitted: %q", formatted)
	}
}

func TestParseEntryRejectsPlainText(t *testing.T) {
	if _, ok := logs.ParseEntry("not json"); ok {
		t.Fatal("plain text should not parse")
	}
	if !(logs.Filter{}).MatchLine("not json") {
		t.Fatal("empty filter should pass plain text")
	}
	if (logs.Filter{Component: "worker"}).MatchLine("not json") {
		t.Fatal("component filter should reject plain text")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"error":   slog.LevelError,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelDebug,
	}
	for in, want := range cases {
		if got := logs.ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestZeroFilterMatchesEverything(t *testing.T) {
	var filter logs.Filter
	if !filter.IsZero() {
		t.Fatal("zero filter should report IsZero")
	}
	if !filter.MatchLine("panic: boom") {
		t.Fatal("zero filter should pass plain text such as panic traces")
	}
	debug := `{"ts":"2026-10-19T10:00:00Z","level":"DEBUG","msg":"frame processed","component":"node"}`
	if !filter.MatchLine(debug) {
		t.Fatal("zero filter should pass debug entries")
	}

	info := filter.AtLeast(slog.LevelInfo)
	if info.IsZero() {
		t.Fatal("level filter should not report IsZero")
	}
	if info.MatchLine(debug) {
		t.Fatal("info threshold should drop debug entries")
	}
	if filter.MinLevel != nil {
		t.Fatal("AtLeast must not modify the receiver")
	}
}
