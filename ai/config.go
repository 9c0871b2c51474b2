// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"errors"
	"strings"
	"time"
)

// DefaultHost is the OpenAI API base URL.
const DefaultHost = "https://api.openai.com/v1"

// Config holds configuration for AI service providers.
// It is passed explicitly to every client constructor; nothing is read
// from the environment here.
type Config struct {
	// APIKey authenticates against the service.
	// Required for api.openai.com; local OpenAI-compatible servers accept any value.
	APIKey string

	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "https://api.openai.com/v1", "http://localhost:11434/v1"
	EmbeddingHost string

	// ChatHost is the base URL for the chat completion service API.
	ChatHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "text-embedding-3-small", "nomic-embed-text"
	EmbeddingModel string

	// EmbeddingDimensions requests a specific vector size from models that
	// support it. 0 uses the model default.
	EmbeddingDimensions int

	// ChatModel is the model identifier used for gap analysis and recommendations.
	// Example: "gpt-4o-mini", "qwen2.5:7b"
	ChatModel string

	// Temperature for chat completions.
	// Default: 0
	Temperature float64

	// BatchSize is the number of texts sent per embedding request.
	// Default: 16
	BatchSize int

	// MaxRetries is the number of attempts for transient failures.
	// Default: 4
	MaxRetries int

	// RetryDelay is the base backoff delay; it doubles after each failure.
	// Default: 1s
	RetryDelay time.Duration

	// MaxRetryDelay caps the backoff delay.
	// Default: 30s
	MaxRetryDelay time.Duration

	// RateLimitPause is the minimum wait after a rate-limit response.
	// Default: 10s
	RateLimitPause time.Duration

	// MaxRateLimitWaits bounds how many rate-limit pauses one call may take.
	// Default: 6
	MaxRateLimitWaits int

	// RequestTimeout bounds a single attempt. A timed out attempt is retried.
	// Default: 60s
	RequestTimeout time.Duration

	// RequestsPerSecond throttles outgoing calls. 0 disables throttling.
	RequestsPerSecond float64
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithChatHost sets the chat completion service host URL.
func WithChatHost(host string) ConfigOption {
	return func(c *Config) {
		c.ChatHost = host
	}
}

// WithHost sets both embedding and chat hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.ChatHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithEmbeddingDimensions requests a specific embedding size.
func WithEmbeddingDimensions(dim int) ConfigOption {
	return func(c *Config) {
		c.EmbeddingDimensions = dim
	}
}

// WithChatModel sets the chat model identifier.
func WithChatModel(model string) ConfigOption {
	return func(c *Config) {
		c.ChatModel = model
	}
}

// WithTemperature sets the chat sampling temperature.
func WithTemperature(t float64) ConfigOption {
	return func(c *Config) {
		c.Temperature = t
	}
}

// WithBatchSize sets the number of texts per embedding request.
func WithBatchSize(n int) ConfigOption {
	return func(c *Config) {
		c.BatchSize = n
	}
}

// WithMaxRetries sets the attempt budget for transient failures.
func WithMaxRetries(n int) ConfigOption {
	return func(c *Config) {
		c.MaxRetries = n
	}
}

// WithRetryDelay sets the base and maximum backoff delays.
func WithRetryDelay(base, max time.Duration) ConfigOption {
	return func(c *Config) {
		c.RetryDelay = base
		c.MaxRetryDelay = max
	}
}

// WithRateLimit sets the pause after a rate-limit response and how many
// such pauses a single call may take.
func WithRateLimit(pause time.Duration, maxWaits int) ConfigOption {
	return func(c *Config) {
		c.RateLimitPause = pause
		c.MaxRateLimitWaits = maxWaits
	}
}

// WithRequestTimeout sets the per-attempt timeout.
func WithRequestTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.RequestTimeout = d
	}
}

// WithRequestsPerSecond throttles outgoing calls. 0 disables throttling.
func WithRequestsPerSecond(rps float64) ConfigOption {
	return func(c *Config) {
		c.RequestsPerSecond = rps
	}
}

// DefaultConfig returns a Config targeting the OpenAI API.
// The API key is left empty and must be supplied by the caller.
func DefaultConfig() *Config {
	return &Config{
		EmbeddingHost:     DefaultHost,
		ChatHost:          DefaultHost,
		EmbeddingModel:    "text-embedding-3-small",
		ChatModel:         "gpt-4o-mini",
		BatchSize:         16,
		MaxRetries:        4,
		RetryDelay:        1 * time.Second,
		MaxRetryDelay:     30 * time.Second,
		RateLimitPause:    10 * time.Second,
		MaxRateLimitWaits: 6,
		RequestTimeout:    60 * time.Second,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    WithEmbeddingModel("text-embedding-3-large"),
//	)
//
// Example with a local OpenAI-compatible server:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434"),
//	    WithEmbeddingModel("nomic-embed-text"),
//	    WithChatModel("qwen2.5:7b"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to hosts if missing, which is required by most
// OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
	c.ChatHost = normalizeHost(c.ChatHost)
}

func normalizeHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.ChatHost == "" {
		return errors.New("ai config: ChatHost is required")
	}
	if c.APIKey == "" && (isOpenAIHost(c.EmbeddingHost) || isOpenAIHost(c.ChatHost)) {
		return errors.New("ai config: APIKey is required for api.openai.com")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.ChatModel == "" {
		return errors.New("ai config: ChatModel is required")
	}
	if c.EmbeddingDimensions < 0 {
		return errors.New("ai config: EmbeddingDimensions cannot be negative")
	}
	if c.BatchSize < 1 {
		return errors.New("ai config: BatchSize must be at least 1")
	}
	if c.MaxRetries < 1 {
		return errors.New("ai config: MaxRetries must be at least 1")
	}
	if c.RetryDelay < 0 || c.MaxRetryDelay < 0 || c.RateLimitPause < 0 || c.RequestTimeout < 0 {
		return errors.New("ai config: delays and timeouts cannot be negative")
	}
	if c.MaxRateLimitWaits < 0 {
		return errors.New("ai config: MaxRateLimitWaits cannot be negative")
	}
	if c.RequestsPerSecond < 0 {
		return errors.New("ai config: RequestsPerSecond cannot be negative")
	}
	return nil
}

// RetryPolicy derives the retry policy for calls made with this config.
func (c *Config) RetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       c.MaxRetries,
		BaseDelay:         c.RetryDelay,
		MaxDelay:          c.MaxRetryDelay,
		RateLimitPause:    c.RateLimitPause,
		MaxRateLimitWaits: c.MaxRateLimitWaits,
		AttemptTimeout:    c.RequestTimeout,
	}
}

func isOpenAIHost(host string) bool {
	return strings.Contains(host, "api.openai.com")
}
