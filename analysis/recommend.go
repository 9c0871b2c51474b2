package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/stdgap/ai"
	"github.com/poiesic/stdgap/core"
)

// RecommendationEngine proposes standard text for a gap.
type RecommendationEngine struct {
	completer ai.Completer
	policy    ai.RetryPolicy
	logger    *slog.Logger
}

// NewRecommendationEngine creates a recommendation engine.
func NewRecommendationEngine(completer ai.Completer, opts ...Option) (*RecommendationEngine, error) {
	if completer == nil {
		return nil, ErrCompleterRequired
	}
	o := buildOptions("recommendations", opts)
	if o.policy.MaxAttempts <= 0 {
		return nil, ai.ErrInvalidMaxAttempts
	}
	return &RecommendationEngine{
		completer: completer,
		policy:    o.policy,
		logger:    o.logger,
	}, nil
}

// Recommend asks the model for recommendations addressing gap.
// The returned recommendations reference gap.Id and are not yet stored.
func (e *RecommendationEngine) Recommend(ctx context.Context, gap *core.Gap) ([]*core.Recommendation, error) {
	if err := core.ValidateGap(gap); err != nil {
		return nil, err
	}
	if gap.Id == 0 {
		return nil, fmt.Errorf("%w: gap has no id", core.ErrInvalidGap)
	}

	response, attempts, err := complete(ctx, e.completer, e.policy, buildRecommendationPrompt(gap))
	if err != nil {
		e.logger.Error("recommendation request failed", "gap", gap.Id, "attempts", attempts, "err", err)
		return nil, err
	}

	recs, err := ParseRecommendations(response)
	if err != nil {
		e.logger.Warn("unparseable recommendation response", "gap", gap.Id, "response", response, "err", err)
		return nil, err
	}
	for _, rec := range recs {
		rec.GapId = gap.Id
	}

	e.logger.Info("recommendations generated", "gap", gap.Id, "count", len(recs))
	return recs, nil
}
