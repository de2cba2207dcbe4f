package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages the job ledger backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history: empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordJob appends one finished job.
func (s *Store) RecordJob(ctx context.Context, rec Record) error {
	if strings.TrimSpace(rec.JobID) == "" {
		return errors.New("history: job id required")
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = rec.FinishedAt
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (
            job_id, session_id, total_frames, fps, width, height,
            submitted_frames, completed_frames, outcome, detail, format,
            result_bytes, started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.JobID,
		rec.SessionID,
		rec.TotalFrames,
		rec.FPS,
		rec.Width,
		rec.Height,
		rec.SubmittedFrames,
		rec.CompletedFrames,
		string(rec.Outcome),
		nullableString(rec.Detail),
		nullableString(rec.Format),
		rec.ResultBytes,
		formatTime(rec.StartedAt),
		formatTime(rec.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Recent returns up to limit jobs, newest first. A limit of zero or less
// returns every job.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT job_id, session_id, total_frames, fps, width, height,
        submitted_frames, completed_frames, outcome, detail, format,
        result_bytes, started_at, finished_at
        FROM jobs ORDER BY finished_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec              Record
			outcome          string
			detail, format   sql.NullString
			started, finished string
		)
		if err := rows.Scan(
			&rec.JobID, &rec.SessionID, &rec.TotalFrames, &rec.FPS, &rec.Width, &rec.Height,
			&rec.SubmittedFrames, &rec.CompletedFrames, &outcome, &detail, &format,
			&rec.ResultBytes, &started, &finished,
		); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		rec.Outcome = Outcome(outcome)
		rec.Detail = detail.String
		rec.Format = format.String
		rec.StartedAt = parseTime(started)
		rec.FinishedAt = parseTime(finished)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return records, nil
}

// Counts tallies every recorded job by outcome.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT outcome, COUNT(1) FROM jobs GROUP BY outcome")
	if err != nil {
		return Counts{}, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	var counts Counts
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return Counts{}, fmt.Errorf("scan count: %w", err)
		}
		switch Outcome(outcome) {
		case OutcomeDelivered:
			counts.Delivered = n
		case OutcomeFailed:
			counts.Failed = n
		case OutcomeAbandoned:
			counts.Abandoned = n
		}
	}
	return counts, rows.Err()
}

// Prune deletes jobs that finished before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM jobs WHERE finished_at < ?", formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
