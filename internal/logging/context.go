package logging

import (
	"context"
	"log/slog"

	"tapedeck/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldJobID is the standardized structured logging key for background job identifiers.
	FieldJobID = "job_id"
	// FieldJobType is the standardized structured logging key for job type tags.
	FieldJobType = "job_type"
	// FieldTapeID is the standardized structured logging key for tape identifiers.
	FieldTapeID = "tape_id"
	// FieldProject is the standardized structured logging key for project slugs.
	FieldProject = "project"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType names the state transition a log line records.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 5)
	if id, ok := services.JobIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldJobID, id))
	}
	if jobType, ok := services.JobTypeFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldJobType, jobType))
	}
	if id, ok := services.TapeIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldTapeID, id))
	}
	if slug, ok := services.ProjectFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldProject, slug))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
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
	return logger.With(attrsToArgs(fields)...)
}
