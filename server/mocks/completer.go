package mocks

import (
	"context"
	"sync"

	"github.com/teilomillet/chatrelay/server/provider"
)

// Call records the arguments of one MockCompleter.Generate invocation.
type Call struct {
	Messages []provider.Message
	Params   provider.Params
}

// MockCompleter implements provider.Completer and records every call.
type MockCompleter struct {
	GenerateFunc func(context.Context, []provider.Message, provider.Params) (string, error)

	mu    sync.Mutex
	calls []Call
}

var _ provider.Completer = (*MockCompleter)(nil)

// NewMockCompleter returns a completer that always answers with response.
func NewMockCompleter(response string) *MockCompleter {
	return &MockCompleter{
		GenerateFunc: func(context.Context, []provider.Message, provider.Params) (string, error) {
			return response, nil
		},
	}
}

// NewFailingCompleter returns a completer that always fails with err.
func NewFailingCompleter(err error) *MockCompleter {
	return &MockCompleter{
		GenerateFunc: func(context.Context, []provider.Message, provider.Params) (string, error) {
			return "", err
		},
	}
}

// Generate records the call and delegates to GenerateFunc.
func (m *MockCompleter) Generate(ctx context.Context, messages []provider.Message, params provider.Params) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{
		Messages: append([]provider.Message(nil), messages...),
		Params:   params,
	})
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, messages, params)
	}
	return "", nil
}

// Calls returns a copy of the recorded calls.
func (m *MockCompleter) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallCount returns how many times Generate was invoked.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
