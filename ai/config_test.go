package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return NewConfig(
		WithHost("http://localhost:11434"),
		WithEmbeddingModel("nomic-embed-text"),
		WithChatModel("qwen2.5:7b"),
	)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, DefaultHost, cfg.EmbeddingHost)
	assert.Equal(t, DefaultHost, cfg.ChatHost)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, "gpt-4o-mini", cfg.ChatModel)
	assert.Equal(t, 16, cfg.BatchSize)
	assert.Equal(t, 4, cfg.MaxRetries)
	assert.Empty(t, cfg.APIKey)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("with separate hosts", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://embed:8080/v1"),
			WithChatHost("http://chat:9090/v1"),
		)

		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://chat:9090/v1", cfg.ChatHost)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithAPIKey("sk-test"),
			WithHost("http://custom:8080/v1"),
			WithEmbeddingModel("custom-embed"),
			WithEmbeddingDimensions(256),
			WithChatModel("custom-chat"),
			WithTemperature(0.2),
			WithBatchSize(8),
			WithMaxRetries(2),
			WithRetryDelay(time.Millisecond, time.Second),
			WithRateLimit(2*time.Second, 3),
			WithRequestTimeout(5*time.Second),
			WithRequestsPerSecond(1.5),
		)

		assert.Equal(t, "sk-test", cfg.APIKey)
		assert.Equal(t, "http://custom:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://custom:8080/v1", cfg.ChatHost)
		assert.Equal(t, "custom-embed", cfg.EmbeddingModel)
		assert.Equal(t, 256, cfg.EmbeddingDimensions)
		assert.Equal(t, "custom-chat", cfg.ChatModel)
		assert.Equal(t, 0.2, cfg.Temperature)
		assert.Equal(t, 8, cfg.BatchSize)
		assert.Equal(t, 2, cfg.MaxRetries)
		assert.Equal(t, time.Millisecond, cfg.RetryDelay)
		assert.Equal(t, time.Second, cfg.MaxRetryDelay)
		assert.Equal(t, 2*time.Second, cfg.RateLimitPause)
		assert.Equal(t, 3, cfg.MaxRateLimitWaits)
		assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
		assert.Equal(t, 1.5, cfg.RequestsPerSecond)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name          string
		embeddingHost string
		chatHost      string
		expectedEmbed string
		expectedChat  string
	}{
		{"already has /v1", "http://localhost:11434/v1", "http://localhost:11434/v1", "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"missing /v1", "http://localhost:11434", "http://localhost:11434", "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"has trailing slash", "http://localhost:11434/", "http://localhost:11434/", "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"empty hosts", "", "", "", ""},
		{"different formats", "http://embed:8080", "http://chat:9090/v1", "http://embed:8080/v1", "http://chat:9090/v1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{EmbeddingHost: tt.embeddingHost, ChatHost: tt.chatHost}

			cfg.Normalize()

			assert.Equal(t, tt.expectedEmbed, cfg.EmbeddingHost)
			assert.Equal(t, tt.expectedChat, cfg.ChatHost)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid local config", func(t *testing.T) {
		cfg := validConfig()
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	})

	t.Run("openai host needs key", func(t *testing.T) {
		err := DefaultConfig().Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "APIKey")

		require.NoError(t, NewConfig(WithAPIKey("sk-test")).Validate())
	})

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing embedding host", func(c *Config) { c.EmbeddingHost = "" }, "EmbeddingHost"},
		{"missing chat host", func(c *Config) { c.ChatHost = "" }, "ChatHost"},
		{"missing embedding model", func(c *Config) { c.EmbeddingModel = "" }, "EmbeddingModel"},
		{"missing chat model", func(c *Config) { c.ChatModel = "" }, "ChatModel"},
		{"negative dimensions", func(c *Config) { c.EmbeddingDimensions = -1 }, "EmbeddingDimensions"},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }, "BatchSize"},
		{"zero retries", func(c *Config) { c.MaxRetries = 0 }, "MaxRetries"},
		{"negative delay", func(c *Config) { c.RetryDelay = -time.Second }, "delays"},
		{"negative rate limit waits", func(c *Config) { c.MaxRateLimitWaits = -1 }, "MaxRateLimitWaits"},
		{"negative rps", func(c *Config) { c.RequestsPerSecond = -1 }, "RequestsPerSecond"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestConfigRetryPolicy(t *testing.T) {
	cfg := NewConfig(
		WithMaxRetries(3),
		WithRetryDelay(time.Millisecond, 8*time.Millisecond),
		WithRateLimit(time.Second, 2),
		WithRequestTimeout(time.Minute),
	)

	p := cfg.RetryPolicy()
	assert.Equal(t, RetryPolicy{
		MaxAttempts:       3,
		BaseDelay:         time.Millisecond,
		MaxDelay:          8 * time.Millisecond,
		RateLimitPause:    time.Second,
		MaxRateLimitWaits: 2,
		AttemptTimeout:    time.Minute,
	}, p)
}
