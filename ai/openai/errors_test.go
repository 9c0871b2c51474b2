package openai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/poiesic/stdgap/ai"
	"github.com/stretchr/testify/assert"
	"github.com/tmc/langchaingo/llms/openai"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"status 429", errors.New("API returned unexpected status code: 429: Rate limit reached for requests"), ai.ErrRateLimited},
		{"status 429 quota", errors.New("API returned unexpected status code: 429: You exceeded your current quota"), ai.ErrPermanent},
		{"status 500", errors.New("API returned unexpected status code: 500"), ai.ErrTransient},
		{"status 503", errors.New("failed to create openai embeddings: API returned unexpected status code: 503: overloaded"), ai.ErrTransient},
		{"status 408", errors.New("API returned unexpected status code: 408"), ai.ErrTransient},
		{"status 401", errors.New("API returned unexpected status code: 401: Incorrect API key provided"), ai.ErrPermanent},
		{"status 400", errors.New("API returned unexpected status code: 400: 'input' is too long"), ai.ErrPermanent},
		{"status 404", errors.New("API returned unexpected status code: 404: model not found"), ai.ErrPermanent},
		{"rate limit text", errors.New("rate limit exceeded"), ai.ErrRateLimited},
		{"invalid api key text", errors.New("invalid api key"), ai.ErrPermanent},
		{"service unavailable text", errors.New("service unavailable"), ai.ErrTransient},
		{"network error", errors.New("network error: failed to reach API server"), ai.ErrTransient},
		{"timeout text", errors.New("request timeout: API call exceeded deadline"), ai.ErrTransient},
		{"response length", fmt.Errorf("batch: %w", openai.ErrUnexpectedResponseLength), ai.ErrPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err, "cause must stay in the chain")
		})
	}
}

func TestClassify_PassesThroughContextErrors(t *testing.T) {
	assert.Nil(t, classify(nil))
	assert.Equal(t, context.Canceled, classify(context.Canceled))

	wrapped := fmt.Errorf("call: %w", context.DeadlineExceeded)
	assert.Equal(t, wrapped, classify(wrapped))
}

func TestStatusCode(t *testing.T) {
	code, ok := statusCode(errors.New("API returned unexpected status code: 502: bad gateway"))
	assert.True(t, ok)
	assert.Equal(t, 502, code)

	_, ok = statusCode(errors.New("max 4000 tokens"))
	assert.False(t, ok)
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, newLimiter(0))
	assert.Nil(t, newLimiter(-1))

	l := newLimiter(2.5)
	if assert.NotNil(t, l) {
		assert.Equal(t, 3, l.Burst())
	}
	assert.NoError(t, wait(context.Background(), nil))
}
