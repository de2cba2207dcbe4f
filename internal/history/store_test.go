package history_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"framebroker/internal/history"
	"framebroker/internal/testsupport"
)

func record(jobID string, outcome history.Outcome, finished time.Time) history.Record {
	return history.Record{
		JobID:           jobID,
		SessionID:       "127.0.0.1:5000",
		TotalFrames:     3,
		FPS:             30,
		Width:           640,
		Height:          480,
		SubmittedFrames: 3,
		CompletedFrames: 3,
		Outcome:         outcome,
		Format:          "mp4",
		ResultBytes:     1024,
		StartedAt:       finished.Add(-2 * time.Second),
		FinishedAt:      finished,
	}
}

func TestRecordAndRecent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.RecordJob(ctx, record("job-a", history.OutcomeDelivered, base)); err != nil {
		t.Fatalf("RecordJob a: %v", err)
	}
	failed := record("job-b", history.OutcomeFailed, base.Add(time.Minute))
	failed.Detail = "ffmpeg exited 1"
	failed.ResultBytes = 0
	if err := store.RecordJob(ctx, failed); err != nil {
		t.Fatalf("RecordJob b: %v", err)
	}

	recent, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recent))
	}
	if recent[0].JobID != "job-b" || recent[1].JobID != "job-a" {
		t.Fatalf("unexpected order: %s, %s", recent[0].JobID, recent[1].JobID)
	}
	if recent[0].Detail != "ffmpeg exited 1" {
		t.Fatalf("detail not persisted: %q", recent[0].Detail)
	}
	if recent[1].Duration() != 2*time.Second {
		t.Fatalf("unexpected duration %s", recent[1].Duration())
	}
	if !recent[1].FinishedAt.Equal(base) {
		t.Fatalf("finished_at round trip: %s", recent[1].FinishedAt)
	}

	limited, err := store.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent limit: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestRecordJobRequiresID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	if err := store.RecordJob(context.Background(), history.Record{}); err == nil {
		t.Fatal("expected error for empty job id")
	}
}

func TestCountsAndPrune(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	now := time.Now().UTC()
	old := now.Add(-48 * time.Hour)
	for _, rec := range []history.Record{
		record("old-delivered", history.OutcomeDelivered, old),
		record("new-delivered", history.OutcomeDelivered, now),
		record("new-abandoned", history.OutcomeAbandoned, now),
		record("new-failed", history.OutcomeFailed, now),
	} {
		if err := store.RecordJob(ctx, rec); err != nil {
			t.Fatalf("RecordJob %s: %v", rec.JobID, err)
		}
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.Delivered != 2 || counts.Failed != 1 || counts.Abandoned != 1 || counts.Total() != 4 {
		t.Fatalf("unexpected counts %+v", counts)
	}

	removed, err := store.Prune(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned row, got %d", removed)
	}
	counts, err = store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts after prune: %v", err)
	}
	if counts.Delivered != 1 {
		t.Fatalf("expected old job pruned, counts %+v", counts)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	path := store.Path()
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()

	_, err = history.Open(path)
	if !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
