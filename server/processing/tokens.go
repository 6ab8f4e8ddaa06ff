package processing

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	"github.com/teilomillet/chatrelay/server/provider"
)

// Tokenizer is the part of a tiktoken encoding the counter needs.
type Tokenizer interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
}

// Framing overhead of the chat format, per message and per reply.
const (
	tokensPerMessage = 3
	tokensPerReply   = 3
)

// TokenCounter estimates how many prompt tokens a conversation costs.
type TokenCounter struct {
	encoding Tokenizer
}

// NewTokenCounter creates a counter for model. Models tiktoken does not
// know fall back to the cl100k_base encoding.
func NewTokenCounter(model string) (*TokenCounter, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding for model %s: %v", model, err)
		}
	}
	return &TokenCounter{encoding: encoding}, nil
}

// NewTokenCounterWithTokenizer creates a counter backed by t.
func NewTokenCounterWithTokenizer(t Tokenizer) *TokenCounter {
	return &TokenCounter{encoding: t}
}

// CountTokens counts the tokens in text.
func (tc *TokenCounter) CountTokens(text string) int {
	return len(tc.encoding.Encode(text, nil, nil))
}

// CountMessages estimates the prompt size of messages, including the
// framing tokens the chat format adds around each message.
func (tc *TokenCounter) CountMessages(messages []provider.Message) int {
	total := tokensPerReply
	for _, msg := range messages {
		total += tokensPerMessage + tc.CountTokens(msg.Role) + tc.CountTokens(msg.Content)
	}
	return total
}
