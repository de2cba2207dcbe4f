package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldJobID is the structured logging key for the per-session job identifier.
	FieldJobID = "job_id"
	// FieldWorker is the structured logging key for worker connection labels.
	FieldWorker = "worker"
	// FieldFrameIndex is the structured logging key for frame indices.
	FieldFrameIndex = "frame_index"
	// FieldRemote is the structured logging key for peer addresses.
	FieldRemote = "remote"
	// FieldEventType classifies a record for filtering (e.g. worker_requeue).
	FieldEventType = "event_type"
	// FieldErrorHint suggests a next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldErrorKind carries faults.Kind for failures.
	FieldErrorKind = "error_kind"
)

type contextKey int

const (
	sessionKey contextKey = iota
	jobKey
	workerKey
)

// WithSession returns ctx carrying a producer session identifier.
func WithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey, id)
}

// WithJob returns ctx carrying a job identifier.
func WithJob(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, jobKey, id)
}

// WithWorker returns ctx carrying a worker label.
func WithWorker(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, workerKey, label)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := ctx.Value(sessionKey).(string); ok && id != "" {
		fields = append(fields, slog.String(FieldSessionID, id))
	}
	if id, ok := ctx.Value(jobKey).(string); ok && id != "" {
		fields = append(fields, slog.String(FieldJobID, id))
	}
	if label, ok := ctx.Value(workerKey).(string); ok && label != "" {
		fields = append(fields, slog.String(FieldWorker, label))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
