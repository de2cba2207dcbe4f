package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"framebroker/internal/logging"
)

func mkdirAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("set time on %s: %v", path, err)
	}
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldScratchDirectories(t *testing.T) {
	workDir := t.TempDir()
	oldDir := filepath.Join(workDir, "framebroker-assemble-123")
	mkdirAged(t, oldDir, 2*time.Hour)
	recentDir := filepath.Join(workDir, "framebroker-split-456")
	mkdirAged(t, recentDir, 0)

	result := CleanStale(context.Background(), workDir, time.Hour, logging.NewNop())

	if len(result.Removed) != 1 || result.Removed[0] != oldDir {
		t.Fatalf("expected only %s removed, got %v", oldDir, result.Removed)
	}
	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Error("old directory should have been removed")
	}
	if _, err := os.Stat(recentDir); err != nil {
		t.Error("recent directory should still exist")
	}
}

func TestCleanStaleLeavesForeignDirectories(t *testing.T) {
	workDir := t.TempDir()
	foreign := filepath.Join(workDir, "someone-else")
	mkdirAged(t, foreign, 48*time.Hour)

	oldFile := filepath.Join(workDir, "framebroker-file")
	if err := os.WriteFile(oldFile, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	stamp := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldFile, stamp, stamp); err != nil {
		t.Fatalf("set time: %v", err)
	}

	result := CleanStale(context.Background(), workDir, time.Hour, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Fatalf("expected no removals, got %v", result.Removed)
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Error("foreign directory should still exist")
	}
	if _, err := os.Stat(oldFile); err != nil {
		t.Error("file should still exist")
	}
}

func TestCleanStaleStopsWhenCancelled(t *testing.T) {
	workDir := t.TempDir()
	dir := filepath.Join(workDir, "framebroker-av1-1")
	mkdirAged(t, dir, 2*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := CleanStale(ctx, workDir, time.Hour, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Fatalf("expected no removals after cancel, got %v", result.Removed)
	}
}

func TestListDirectoriesReportsSize(t *testing.T) {
	workDir := t.TempDir()
	dir := filepath.Join(workDir, "framebroker-split-1")
	mkdirAged(t, dir, 0)
	if err := os.WriteFile(filepath.Join(dir, "frame_000001.jpg"), []byte("12345"), 0o644); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	mkdirAged(t, filepath.Join(workDir, "other"), 0)

	dirs, err := ListDirectories(workDir)
	if err != nil {
		t.Fatalf("ListDirectories: %v", err)
	}
	if len(dirs) != 1 {
		t.Fatalf("expected 1 directory, got %d", len(dirs))
	}
	got := dirs[0]
	if got.Name != "framebroker-split-1" || got.Path != dir {
		t.Errorf("unexpected entry %+v", got)
	}
	if got.Size != 5 {
		t.Errorf("size = %d, want 5", got.Size)
	}
	if got.ModTime.IsZero() {
		t.Error("ModTime should not be zero")
	}
}
