package openai

import (
	"context"
	"math"

	"golang.org/x/time/rate"
)

// newLimiter returns a token bucket allowing rps calls per second, or nil
// when throttling is disabled.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	burst := int(math.Ceil(rps))
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func wait(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}
