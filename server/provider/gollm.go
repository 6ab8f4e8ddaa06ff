package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/teilomillet/gollm"
	"go.uber.org/zap"
)

// LLMFactory builds a gollm client for one call.
type LLMFactory func(backend, model, apiKey string) (gollm.LLM, error)

// Gollm implements Completer on top of gollm, which gives the relay access
// to every backend gollm supports (OpenAI, Anthropic, Groq, Ollama, ...).
type Gollm struct {
	backend    string
	credential CredentialFunc
	newLLM     LLMFactory
	logger     *zap.Logger
}

// NewGollm creates a gollm-backed completer for the named backend.
func NewGollm(backend string, credential CredentialFunc, logger *zap.Logger) *Gollm {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gollm{
		backend:    backend,
		credential: credential,
		newLLM:     defaultLLMFactory,
		logger:     logger,
	}
}

// WithFactory replaces the function used to build gollm clients.
func (g *Gollm) WithFactory(f LLMFactory) *Gollm {
	g.newLLM = f
	return g
}

func defaultLLMFactory(backend, model, apiKey string) (gollm.LLM, error) {
	opts := []gollm.ConfigOption{
		gollm.SetProvider(backend),
		gollm.SetModel(model),
	}
	if apiKey != "" {
		opts = append(opts, gollm.SetAPIKey(apiKey))
	}
	return gollm.NewLLM(opts...)
}

// Generate builds a client with the credential current at call time, so
// nothing is cached between invocations, and sends the whole conversation
// as a single prompt.
func (g *Gollm) Generate(ctx context.Context, messages []Message, params Params) (string, error) {
	apiKey, err := g.credential()
	if err != nil {
		// Local backends run without a key.
		if !(g.backend == "ollama" && errors.Is(err, ErrMissingCredential)) {
			return "", err
		}
	}

	llm, err := g.newLLM(g.backend, params.Model, apiKey)
	if err != nil {
		return "", fmt.Errorf("create %s client: %w", g.backend, err)
	}
	llm.SetOption("temperature", params.Temperature)
	llm.SetOption("max_tokens", params.MaxTokens)

	prompt := &gollm.Prompt{Messages: toPromptMessages(messages)}

	g.logger.Debug("gollm generate",
		zap.String("backend", g.backend),
		zap.String("model", params.Model),
		zap.Int("messages", len(messages)),
	)
	return llm.Generate(ctx, prompt)
}

func toPromptMessages(messages []Message) []gollm.PromptMessage {
	result := make([]gollm.PromptMessage, len(messages))
	for i, msg := range messages {
		result[i] = gollm.PromptMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}
	return result
}
