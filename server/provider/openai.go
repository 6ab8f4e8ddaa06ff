package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultOpenAIEndpoint is the base URL of the public OpenAI API.
const DefaultOpenAIEndpoint = "https://api.openai.com/v1"

// OpenAI implements Completer against any OpenAI-compatible
// /chat/completions endpoint.
type OpenAI struct {
	endpoint   string
	credential CredentialFunc
	client     *http.Client
	logger     *zap.Logger
}

// NewOpenAI creates a client for the chat completions API at endpoint.
// The HTTP client has no timeout of its own; deadlines come from the
// caller's context.
func NewOpenAI(endpoint string, credential CredentialFunc, logger *zap.Logger) *OpenAI {
	if endpoint == "" {
		endpoint = DefaultOpenAIEndpoint
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAI{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		credential: credential,
		client:     &http.Client{},
		logger:     logger,
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *OpenAI) WithHTTPClient(client *http.Client) *OpenAI {
	c.client = client
	return c
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate sends messages to /chat/completions and returns the text of the
// first choice.
func (c *OpenAI) Generate(ctx context.Context, messages []Message, params Params) (string, error) {
	apiKey, err := c.credential()
	if err != nil {
		return "", err
	}

	reqBody := chatCompletionRequest{
		Model:       params.Model,
		Messages:    messages,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	}
	if reqBody.Messages == nil {
		reqBody.Messages = []Message{}
	}

	var result chatCompletionResponse
	start := time.Now()
	err = c.doJSONRoundTrip(ctx, c.endpoint+"/chat/completions", apiKey, reqBody, &result)
	c.logger.Debug("openai round trip",
		zap.String("model", params.Model),
		zap.Int("messages", len(messages)),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)
	if err != nil {
		return "", err
	}

	if len(result.Choices) == 0 {
		return "", ErrNoChoices
	}
	return result.Choices[0].Message.Content, nil
}

func (c *OpenAI) doJSONRoundTrip(ctx context.Context, url, apiKey string, reqBody, respBody any) error {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, respBody); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// statusError renders an upstream failure the way the OpenAI SDKs do:
// the status code followed by the API's own message when there is one.
func statusError(status int, body []byte) error {
	var apiErr apiErrorBody
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("%d %s", status, apiErr.Error.Message)
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return fmt.Errorf("%d %s", status, msg)
	}
	return fmt.Errorf("%d status code (no body)", status)
}
