package analysis

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/poiesic/stdgap/ai"
	"github.com/poiesic/stdgap/core"
	"github.com/poiesic/stdgap/search"
)

// ContextK is the default number of standards sections retrieved as prompt context.
const ContextK = 5

// Retriever finds the stored sections most relevant to a query.
type Retriever interface {
	Search(ctx context.Context, query string, opts search.Options) ([]*core.SearchResult, error)
}

// Request is one gap-analysis run.
type Request struct {
	ResearchText string
	Domain       string
}

// Result holds the gaps of one run. Gaps are not yet stored.
type Result struct {
	AnalysisId string
	Gaps       []*core.Gap
	Context    []*core.SearchResult
	Attempts   int
}

// GapAnalyzer identifies gaps in standards coverage from research text.
type GapAnalyzer struct {
	retriever Retriever
	completer ai.Completer
	contextK  int
	policy    ai.RetryPolicy
	logger    *slog.Logger
}

// Option configures a GapAnalyzer or RecommendationEngine.
type Option func(*options)

type options struct {
	contextK int
	policy   ai.RetryPolicy
	logger   *slog.Logger
}

// WithContextK sets how many sections are retrieved as context.
// Values below 1 keep the default.
func WithContextK(k int) Option {
	return func(o *options) {
		if k > 0 {
			o.contextK = k
		}
	}
}

// WithRetryPolicy sets the retry policy for completion calls.
func WithRetryPolicy(policy ai.RetryPolicy) Option {
	return func(o *options) {
		o.policy = policy
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(component string, opts []Option) options {
	o := options{
		contextK: ContextK,
		policy:   ai.DefaultRetryPolicy(),
		logger:   slog.Default().With("component", component),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewGapAnalyzer creates a gap analyzer.
func NewGapAnalyzer(retriever Retriever, completer ai.Completer, opts ...Option) (*GapAnalyzer, error) {
	if retriever == nil {
		return nil, ErrSearcherRequired
	}
	if completer == nil {
		return nil, ErrCompleterRequired
	}
	o := buildOptions("gap-analyzer", opts)
	if o.policy.MaxAttempts <= 0 {
		return nil, ai.ErrInvalidMaxAttempts
	}
	return &GapAnalyzer{
		retriever: retriever,
		completer: completer,
		contextK:  o.contextK,
		policy:    o.policy,
		logger:    o.logger,
	}, nil
}

// Analyze retrieves standards context for the domain, asks the model for
// gaps and parses the answer. Each returned gap carries the run's
// AnalysisId, the domain and the IDs of the context sections.
func (a *GapAnalyzer) Analyze(ctx context.Context, req Request) (*Result, error) {
	research := strings.TrimSpace(req.ResearchText)
	if research == "" {
		return nil, ErrEmptyResearch
	}
	domain := strings.TrimSpace(req.Domain)
	if domain == "" {
		return nil, ErrDomainRequired
	}

	standards, err := a.retriever.Search(ctx, ContextQuery(domain), search.Options{K: a.contextK})
	if err != nil {
		a.logger.Error("failed to retrieve standards context", "domain", domain, "err", err)
		return nil, err
	}

	prompt := buildGapPrompt(domain, research, standards)
	response, attempts, err := complete(ctx, a.completer, a.policy, prompt)
	if err != nil {
		a.logger.Error("gap analysis failed", "domain", domain, "attempts", attempts, "err", err)
		return nil, err
	}

	gaps, err := ParseGaps(response)
	if err != nil {
		a.logger.Warn("unparseable gap analysis response", "domain", domain, "response", response, "err", err)
		return nil, err
	}

	sectionIDs := make([]core.ID, 0, len(standards))
	for _, r := range standards {
		sectionIDs = append(sectionIDs, r.Section.Id)
	}
	analysisID := uuid.NewString()
	for _, gap := range gaps {
		gap.AnalysisId = analysisID
		gap.Domain = domain
		gap.SectionIds = sectionIDs
	}

	a.logger.Info("gap analysis complete", "analysis", analysisID, "domain", domain, "gaps", len(gaps))
	return &Result{
		AnalysisId: analysisID,
		Gaps:       gaps,
		Context:    standards,
		Attempts:   attempts,
	}, nil
}

// complete sends prompt through the retry policy.
func complete(ctx context.Context, completer ai.Completer, policy ai.RetryPolicy, prompt string) (string, int, error) {
	var response string
	attempts, err := ai.Retry(ctx, policy, func(ctx context.Context) error {
		var err error
		response, err = completer.Complete(ctx, systemPrompt, prompt)
		return err
	})
	return response, attempts, err
}
