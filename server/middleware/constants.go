package middleware

import "context"

type contextKey string

const (
	RequestIDKey contextKey = "request_id"

	// HeaderRequestID carries the request ID in both directions.
	HeaderRequestID = "X-Request-ID"

	// maxRequestIDLength bounds inbound IDs we are willing to echo back.
	maxRequestIDLength = 128
)

// GetRequestID returns the request ID stored by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
