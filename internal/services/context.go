package services

import "context"

type contextKey string

const (
	jobIDKey     contextKey = "job_id"
	jobTypeKey   contextKey = "job_type"
	tapeIDKey    contextKey = "tape_id"
	projectKey   contextKey = "project"
	requestIDKey contextKey = "request_id"
)

// WithJobID annotates context with the background job identifier.
func WithJobID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromContext extracts the job identifier if present.
func JobIDFromContext(ctx context.Context) (int64, bool) {
	return int64Value(ctx, jobIDKey)
}

// WithTapeID annotates context with the tape the current work targets.
func WithTapeID(ctx context.Context, id int64) context.Context {
	if id <= 0 {
		return ctx
	}
	return context.WithValue(ctx, tapeIDKey, id)
}

// TapeIDFromContext extracts the tape identifier if present.
func TapeIDFromContext(ctx context.Context) (int64, bool) {
	return int64Value(ctx, tapeIDKey)
}

// WithJobType annotates context with the job type tag.
func WithJobType(ctx context.Context, jobType string) context.Context {
	if jobType == "" {
		return ctx
	}
	return context.WithValue(ctx, jobTypeKey, jobType)
}

// JobTypeFromContext returns the job type if present.
func JobTypeFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, jobTypeKey)
}

// WithProject annotates context with the project slug.
func WithProject(ctx context.Context, slug string) context.Context {
	if slug == "" {
		return ctx
	}
	return context.WithValue(ctx, projectKey, slug)
}

// ProjectFromContext returns the project slug if present.
func ProjectFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, projectKey)
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, requestIDKey)
}

func int64Value(ctx context.Context, key contextKey) (int64, bool) {
	switch val := ctx.Value(key).(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
