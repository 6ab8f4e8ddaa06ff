package processing

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/teilomillet/chatrelay/config"
	"github.com/teilomillet/chatrelay/errors"
	"github.com/teilomillet/chatrelay/persona"
	"github.com/teilomillet/chatrelay/server/metrics"
	"github.com/teilomillet/chatrelay/server/provider"
	"go.uber.org/zap"
)

// Processor performs the relay's one unit of work: prepend the system
// instruction to the caller's conversation, make exactly one completion
// call and wrap the reply. It holds no per-request state and is safe for
// concurrent use.
type Processor struct {
	completer    provider.Completer
	providerName string
	systemPrompt string
	params       provider.Params
	tokens       *TokenCounter
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithSystemPrompt replaces the persona instruction.
func WithSystemPrompt(prompt string) Option {
	return func(p *Processor) { p.systemPrompt = prompt }
}

// WithParams sets the generation parameters sent with every call.
func WithParams(params provider.Params) Option {
	return func(p *Processor) { p.params = params }
}

// WithTokenCounter enables prompt token accounting.
func WithTokenCounter(tc *TokenCounter) Option {
	return func(p *Processor) { p.tokens = tc }
}

// WithMetrics records completion outcomes under the given provider label.
func WithMetrics(m *metrics.Metrics, providerName string) Option {
	return func(p *Processor) {
		p.metrics = m
		p.providerName = providerName
	}
}

// WithLogger sets the processor's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProcessor creates a processor around completer. Without options it
// sends the persona instruction with the default model parameters.
func NewProcessor(completer provider.Completer, opts ...Option) (*Processor, error) {
	if completer == nil {
		return nil, stderrors.New("completer is required")
	}

	p := &Processor{
		completer:    completer,
		providerName: "unknown",
		systemPrompt: persona.SystemInstruction,
		params:       provider.ParamsFromConfig(config.DefaultConfig().LLM),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Params returns the generation parameters.
func (p *Processor) Params() provider.Params {
	return p.params
}

// BuildMessages returns the outbound conversation: the system instruction
// followed by the caller's messages in their original order.
func (p *Processor) BuildMessages(req *Request) []provider.Message {
	var caller []provider.Message
	if req != nil {
		caller = req.Messages
	}

	messages := make([]provider.Message, 0, len(caller)+1)
	messages = append(messages, provider.Message{
		Role:    provider.RoleSystem,
		Content: p.systemPrompt,
	})
	return append(messages, caller...)
}

// ProcessRequest makes the completion call for req. Failures are returned
// as errors.ProviderError unless they were already classified.
func (p *Processor) ProcessRequest(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, errors.Wrap(errors.ParseError, ErrEmptyBody)
	}

	messages := p.BuildMessages(req)
	p.countTokens(messages)

	start := time.Now()
	text, err := p.completer.Generate(ctx, messages, p.params)
	p.observe(time.Since(start), err)
	if err != nil {
		return nil, errors.Wrap(errors.ProviderError, err)
	}

	return &Response{Response: text}, nil
}

func (p *Processor) countTokens(messages []provider.Message) {
	if p.tokens == nil {
		return
	}
	n := p.tokens.CountMessages(messages)
	p.logger.Debug("prompt tokens",
		zap.Int("tokens", n),
		zap.String("model", p.params.Model),
		zap.Int("messages", len(messages)),
	)
	if p.metrics != nil {
		p.metrics.PromptTokens.WithLabelValues(p.params.Model).Observe(float64(n))
	}
}

func (p *Processor) observe(d time.Duration, err error) {
	if p.metrics == nil {
		return
	}
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
	}
	p.metrics.CompletionsTotal.WithLabelValues(p.providerName, outcome).Inc()
	p.metrics.CompletionDuration.WithLabelValues(p.providerName).Observe(d.Seconds())
}
