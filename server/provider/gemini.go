package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// ContentGenerator is the subset of genai.Models the Gemini client uses.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiFactory builds a ContentGenerator bound to apiKey.
type GeminiFactory func(ctx context.Context, apiKey string) (ContentGenerator, error)

// Gemini implements Completer with the Google Gen AI SDK.
type Gemini struct {
	credential CredentialFunc
	newModels  GeminiFactory
	logger     *zap.Logger
}

// NewGemini creates a Gemini completer. A client is created per call so the
// key is always the one current at call time.
func NewGemini(credential CredentialFunc, logger *zap.Logger) *Gemini {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gemini{
		credential: credential,
		newModels:  defaultGeminiFactory,
		logger:     logger,
	}
}

// WithFactory replaces the function used to build Gemini clients.
func (g *Gemini) WithFactory(f GeminiFactory) *Gemini {
	g.newModels = f
	return g
}

func defaultGeminiFactory(ctx context.Context, apiKey string) (ContentGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return client.Models, nil
}

// Generate sends the conversation to Gemini. System messages become the
// system instruction; assistant turns are sent with the model role.
func (g *Gemini) Generate(ctx context.Context, messages []Message, params Params) (string, error) {
	apiKey, err := g.credential()
	if err != nil {
		return "", err
	}

	models, err := g.newModels(ctx, apiKey)
	if err != nil {
		return "", fmt.Errorf("create gemini client: %w", err)
	}

	system, contents := toContents(messages)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Temperature:       genai.Ptr(float32(params.Temperature)),
		MaxOutputTokens:   int32(params.MaxTokens),
	}

	g.logger.Debug("gemini generate",
		zap.String("model", params.Model),
		zap.Int("contents", len(contents)),
	)

	res, err := models.GenerateContent(ctx, params.Model, contents, cfg)
	if err != nil {
		return "", err
	}
	if res == nil || len(res.Candidates) == 0 {
		return "", ErrNoChoices
	}
	return res.Text(), nil
}

// toContents splits messages into Gemini's system instruction and the
// ordered list of conversation turns.
func toContents(messages []Message) (*genai.Content, []*genai.Content) {
	var system *genai.Content
	contents := make([]*genai.Content, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, &genai.Part{Text: msg.Content})
		case RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}
	return system, contents
}
