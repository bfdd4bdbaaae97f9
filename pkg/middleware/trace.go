package middleware

import (
	"context"
	"regexp"

	"github.com/Suhaibinator/SOnion/pkg/app"
	"github.com/google/uuid"
)

// TraceIDHeader is the request and response header carrying the trace ID.
const TraceIDHeader = "X-Request-ID"

// TraceIDStateKey is the Context.State key holding the trace ID.
const TraceIDStateKey = "trace_id"

// traceIDKey is the key used to store the trace ID in the request context
type traceIDKey struct{}

var TraceIDKey = traceIDKey{}

var validTraceID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// TraceID creates a middleware that assigns a trace ID to each request. An
// incoming X-Request-ID is reused when it looks sane; otherwise a new UUID is
// generated. The ID is echoed in the response header, kept in Context.State
// and attached to the request context so code below the App can log it.
func TraceID() app.Middleware {
	return func(c *app.Context, next app.Next) error {
		traceID := c.Get(TraceIDHeader)
		if !validTraceID.MatchString(traceID) {
			traceID = uuid.New().String()
		}

		c.State[TraceIDStateKey] = traceID
		c.Set(TraceIDHeader, traceID)
		c.SetRequest(c.Req.WithContext(context.WithValue(c.Context(), TraceIDKey, traceID)))

		return next()
	}
}

// GetTraceID returns the trace ID of the request, or "" when TraceID did not run.
func GetTraceID(c *app.Context) string {
	if traceID, ok := c.State[TraceIDStateKey].(string); ok {
		return traceID
	}
	return ""
}

// GetTraceIDFromContext extracts the trace ID from a context.
// Returns an empty string if no trace ID is found.
func GetTraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}
