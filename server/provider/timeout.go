package provider

import (
	"context"
	"time"
)

// Timeout bounds every call to c by d. A non-positive d returns c unchanged,
// leaving the call bounded only by the caller's context.
func Timeout(c Completer, d time.Duration) Completer {
	if d <= 0 {
		return c
	}
	return CompleterFunc(func(ctx context.Context, messages []Message, params Params) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return c.Generate(ctx, messages, params)
	})
}
