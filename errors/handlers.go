package errors

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// ErrorHandler wraps an http.Handler and turns panics into the generic 500
// envelope. Headers the handler set before panicking, such as the configured
// Access-Control-Allow-Origin, are kept.
func ErrorHandler(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					requestID := w.Header().Get("X-Request-ID")
					logger.Error("panic recovered",
						zap.Any("error", rec),
						zap.ByteString("stacktrace", debug.Stack()),
						zap.String(RequestIDKey, requestID),
					)

					WriteError(w, NewInternalError(requestID, fmt.Errorf("%v", rec)))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// LogError logs an error with its context
func LogError(logger *zap.Logger, err error, requestID string) {
	if relayErr, ok := err.(*RelayError); ok {
		logger.Error("request error",
			zap.String("error_type", string(relayErr.Type)),
			zap.String("message", relayErr.Message),
			zap.Int("code", relayErr.Code),
			zap.String(RequestIDKey, requestID),
			zap.String("details", relayErr.Details()),
		)
	} else {
		logger.Error("unexpected error",
			zap.Error(err),
			zap.String(RequestIDKey, requestID),
		)
	}
}
