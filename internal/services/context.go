package services

import "context"

type contextKey string

const (
	projectIDKey contextKey = "project_id"
	requestIDKey contextKey = "request_id"
)

// WithProjectID annotates context with the project identifier.
func WithProjectID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, projectIDKey, id)
}

// ProjectIDFromContext extracts the project identifier if present.
func ProjectIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(projectIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
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
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
