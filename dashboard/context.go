package dashboard

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

// SessionIDKey is the context key for the session ID (uuid.UUID) of the view that issued a fetch
const SessionIDKey contextKey = "SessionID"

// ContextWithSessionID returns a copy of ctx carrying the session ID
func ContextWithSessionID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, SessionIDKey, id)
}

// SessionIDFromContext returns the session ID from the context if it exists
func SessionIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(SessionIDKey).(uuid.UUID)
	return id, ok
}
