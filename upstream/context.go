package upstream

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const (
	// FetchIDKey is the context key for the fetch ID (uuid.UUID) shared by the upstream request and its response
	FetchIDKey contextKey = "FetchID"
	// MetadataKey is the context key for the fetch metadata (map[string]any) filled in by the modifiers
	MetadataKey contextKey = "Metadata"
	// RequestTimeKey is the context key for the time the upstream request left the pipeline (time.Time)
	RequestTimeKey contextKey = "RequestTime"
	// ResponseTimeKey is the context key for the time the upstream response entered the pipeline (time.Time)
	ResponseTimeKey contextKey = "ResponseTime"
)

// ContextWithFetchID returns a new request with the fetch ID in the context
func ContextWithFetchID(req *http.Request, id uuid.UUID) *http.Request {
	ctx := context.WithValue(req.Context(), FetchIDKey, id)
	return req.WithContext(ctx)
}

// FetchIDFromContext returns the fetch ID from the context if it exists
func FetchIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(FetchIDKey).(uuid.UUID)
	return id, ok
}

// ContextWithMetadata returns a new request with metadata in the context
func ContextWithMetadata(req *http.Request, metadata map[string]any) *http.Request {
	ctx := context.WithValue(req.Context(), MetadataKey, metadata)
	return req.WithContext(ctx)
}

// MetadataFromContext returns the metadata from the context if it exists
func MetadataFromContext(ctx context.Context) (map[string]any, bool) {
	metadata, ok := ctx.Value(MetadataKey).(map[string]any)
	return metadata, ok
}

// ContextWithRequestTime returns a new request with the request time in the context
func ContextWithRequestTime(req *http.Request, t time.Time) *http.Request {
	ctx := context.WithValue(req.Context(), RequestTimeKey, t)
	return req.WithContext(ctx)
}

// RequestTimeFromContext returns the request time from the context if it exists
func RequestTimeFromContext(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(RequestTimeKey).(time.Time)
	return t, ok
}

// ContextWithResponseTime returns a new request with the response time in the context
func ContextWithResponseTime(req *http.Request, t time.Time) *http.Request {
	ctx := context.WithValue(req.Context(), ResponseTimeKey, t)
	return req.WithContext(ctx)
}

// ResponseTimeFromContext returns the response time from the context if it exists
func ResponseTimeFromContext(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(ResponseTimeKey).(time.Time)
	return t, ok
}
