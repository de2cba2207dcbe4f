package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[broker]\nport = 70000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := run(context.Background(), path, "")
	if err == nil {
		t.Fatal("expected invalid port to fail")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Fatalf("unexpected error: %v", err)
	}
}
