package openai

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/poiesic/stdgap/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrCountMismatch indicates the service returned a different number of
// vectors than texts were sent.
var ErrCountMismatch = errors.New("embedding count does not match input count")

var statusCodePattern = regexp.MustCompile(`status code: (\d{3})`)

// classify wraps err with ai.ErrRateLimited, ai.ErrTransient or ai.ErrPermanent.
// The HTTP status reported by the client wins; otherwise langchaingo's error
// mapping decides. Anything still unknown is treated as transient so the
// bounded retry budget gets a chance.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, openai.ErrUnexpectedResponseLength) {
		return fmt.Errorf("%w: %w: %w", ai.ErrPermanent, ErrCountMismatch, err)
	}

	if code, ok := statusCode(err); ok {
		switch {
		case code == 429 && isQuotaMessage(err):
			return fmt.Errorf("%w: %w", ai.ErrPermanent, err)
		case code == 429:
			return fmt.Errorf("%w: %w", ai.ErrRateLimited, err)
		case code == 408 || code >= 500:
			return fmt.Errorf("%w: %w", ai.ErrTransient, err)
		case code >= 400:
			return fmt.Errorf("%w: %w", ai.ErrPermanent, err)
		}
	}

	mapped := openai.MapError(err)
	switch {
	case llms.IsRateLimitError(mapped):
		return fmt.Errorf("%w: %w", ai.ErrRateLimited, err)
	case llms.IsProviderUnavailableError(mapped), llms.IsTimeoutError(mapped):
		return fmt.Errorf("%w: %w", ai.ErrTransient, err)
	case llms.IsAuthenticationError(mapped),
		llms.IsInvalidRequestError(mapped),
		llms.IsQuotaExceededError(mapped),
		llms.IsContentFilterError(mapped),
		llms.IsTokenLimitError(mapped),
		llms.IsCanceledError(mapped):
		return fmt.Errorf("%w: %w", ai.ErrPermanent, err)
	}
	return fmt.Errorf("%w: %w", ai.ErrTransient, err)
}

func statusCode(err error) (int, bool) {
	m := statusCodePattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0, false
	}
	code, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return 0, false
	}
	return code, true
}

func isQuotaMessage(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "insufficient_quota") ||
		strings.Contains(msg, "exceeded your current quota") ||
		strings.Contains(msg, "quota exceeded")
}
