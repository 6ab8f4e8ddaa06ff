// Package provider implements the clients the relay uses to reach a
// chat-completion service. Every client satisfies Completer, so the HTTP
// handler never depends on a particular vendor.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/teilomillet/chatrelay/config"
	"go.uber.org/zap"
)

// Roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged turn of a conversation.
//
// A Message decoded from JSON remembers its original encoding and marshals
// back to it unchanged, so caller entries reach OpenAI-compatible upstreams
// exactly as sent. Role and Content are filled only when the corresponding
// fields are JSON strings.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	raw json.RawMessage
}

// UnmarshalJSON never fails on well-formed JSON: entries are not validated.
func (m *Message) UnmarshalJSON(data []byte) error {
	var fields struct {
		Role    json.RawMessage `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if json.Unmarshal(data, &fields) == nil {
		_ = json.Unmarshal(fields.Role, &m.Role)
		_ = json.Unmarshal(fields.Content, &m.Content)
	}
	m.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON returns the original encoding when there is one.
func (m Message) MarshalJSON() ([]byte, error) {
	if len(m.raw) > 0 {
		return m.raw, nil
	}
	type plain Message
	return json.Marshal(plain(m))
}

// Params are the generation parameters sent with a completion call.
type Params struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// ParamsFromConfig extracts the generation parameters from cfg.
func ParamsFromConfig(cfg config.LLMConfig) Params {
	return Params{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
}

// Completer generates the assistant's reply to an ordered list of messages.
// Implementations make exactly one upstream call per Generate and never retry.
type Completer interface {
	Generate(ctx context.Context, messages []Message, params Params) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, messages []Message, params Params) (string, error)

// Generate calls f.
func (f CompleterFunc) Generate(ctx context.Context, messages []Message, params Params) (string, error) {
	return f(ctx, messages, params)
}

// CredentialFunc returns the API key to use for a single call.
type CredentialFunc func() (string, error)

// EnvCredential returns literal when it is set. Otherwise the environment
// variable envName is read on every call, so a rotated key takes effect
// without a restart.
func EnvCredential(literal, envName string) CredentialFunc {
	return func() (string, error) {
		if literal != "" {
			return literal, nil
		}
		if envName == "" {
			return "", ErrMissingCredential
		}
		if key := os.Getenv(envName); key != "" {
			return key, nil
		}
		return "", fmt.Errorf("%w: %s is not set", ErrMissingCredential, envName)
	}
}

// New builds the Completer selected by cfg.Provider.
func New(cfg config.LLMConfig, logger *zap.Logger) (Completer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cred := EnvCredential(cfg.APIKey, cfg.APIKeyEnv)

	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg.Endpoint, cred, logger), nil
	case "gemini":
		return NewGemini(cred, logger), nil
	case "gollm":
		return NewGollm(cfg.Backend, cred, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
