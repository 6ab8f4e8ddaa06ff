package provider

import (
	"context"

	"github.com/teilomillet/chatrelay/server/circuitbreaker"
)

// Breaker routes every call to c through cb. While the breaker is open calls
// fail immediately with circuitbreaker.ErrCircuitOpen and c is not invoked.
// A nil cb returns c unchanged.
func Breaker(c Completer, cb *circuitbreaker.CircuitBreaker) Completer {
	if cb == nil {
		return c
	}
	return CompleterFunc(func(ctx context.Context, messages []Message, params Params) (string, error) {
		var text string
		err := cb.Execute(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var err error
			text, err = c.Generate(ctx, messages, params)
			return err
		})
		return text, err
	})
}
