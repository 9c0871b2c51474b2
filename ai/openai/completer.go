package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/stdgap/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

// Completer implements ai.Completer using OpenAI-compatible chat APIs.
// Requests ask for JSON output; callers parse the reply.
type Completer struct {
	model       llms.Model
	temperature float64
	limiter     *rate.Limiter
	logger      *slog.Logger
}

func newCompleter(config *ai.Config, limiter *rate.Limiter) (*Completer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(token(config)),
		openai.WithModel(config.ChatModel),
	)
	if err != nil {
		return nil, err
	}
	return newCompleterWithModel(client, config, limiter), nil
}

func newCompleterWithModel(model llms.Model, config *ai.Config, limiter *rate.Limiter) *Completer {
	return &Completer{
		model:       model,
		temperature: config.Temperature,
		limiter:     limiter,
		logger:      slog.Default().With("component", "openai-completer"),
	}
}

// NewCompleter creates a chat completer using the provided configuration.
//
// Returns ai.Completer interface to enforce abstraction.
func NewCompleter(config *ai.Config) (ai.Completer, error) {
	return newCompleter(config, newLimiter(config.RequestsPerSecond))
}

// NewCompleterWithModel wraps an existing langchaingo model, such as
// llms/fake in tests or another provider's client.
func NewCompleterWithModel(model llms.Model, config *ai.Config) ai.Completer {
	return newCompleterWithModel(model, config, newLimiter(config.RequestsPerSecond))
}

// Complete sends one system + user message pair and returns the first choice.
func (c *Completer) Complete(ctx context.Context, system, prompt string) (string, error) {
	if err := wait(ctx, c.limiter); err != nil {
		return "", err
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	c.logger.Debug("requesting completion", "promptLength", len(prompt))

	resp, err := c.model.GenerateContent(ctx, messages,
		llms.WithTemperature(c.temperature),
		llms.WithJSONMode(),
	)
	if err != nil {
		err = classify(err)
		c.logger.Warn("completion failed", "err", err)
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return "", fmt.Errorf("%w: %w", ai.ErrPermanent, ai.ErrEmptyResponse)
	}
	return resp.Choices[0].Content, nil
}
