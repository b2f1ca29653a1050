package liftoff

import (
	"context"
	"net/http"

	"github.com/tfkr-ae/liftoff/dashboard"
)

type contextKey string

const (
	// ViewKey is the context key for the dashboard view (*dashboard.View) of the requesting session
	ViewKey contextKey = "View"
	// CreatedKey is the context key for the flag (bool) that indicates the session was opened by this request
	CreatedKey contextKey = "Created"
)

// ContextWithView returns a new request with the session view in the context
func ContextWithView(req *http.Request, view *dashboard.View) *http.Request {
	ctx := context.WithValue(req.Context(), ViewKey, view)
	return req.WithContext(ctx)
}

// ViewFromContext returns the session view from the context if it exists
func ViewFromContext(ctx context.Context) (*dashboard.View, bool) {
	view, ok := ctx.Value(ViewKey).(*dashboard.View)
	return view, ok
}

// ContextWithCreatedFlag returns a new request with the created flag in the context
func ContextWithCreatedFlag(req *http.Request, created bool) *http.Request {
	ctx := context.WithValue(req.Context(), CreatedKey, created)
	return req.WithContext(ctx)
}

// CreatedFlagFromContext returns the value of the created flag from the context if it exists
func CreatedFlagFromContext(ctx context.Context) (bool, bool) {
	created, ok := ctx.Value(CreatedKey).(bool)
	return created, ok
}
