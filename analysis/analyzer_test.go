package analysis

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/stdgap/ai"
	"github.com/poiesic/stdgap/ai/mock"
	"github.com/poiesic/stdgap/core"
	"github.com/poiesic/stdgap/search"
	"github.com/poiesic/stdgap/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRetriever struct {
	results []*core.SearchResult
	err     error
	queries []string
	opts    []search.Options
}

func (r *stubRetriever) Search(ctx context.Context, query string, opts search.Options) ([]*core.SearchResult, error) {
	r.queries = append(r.queries, query)
	r.opts = append(r.opts, opts)
	return r.results, r.err
}

func fastPolicy() ai.RetryPolicy {
	return ai.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

const twoGaps = `{"gaps": [
	{"title": "Sensor spoofing", "description": "No spoofing tests", "risk_level": "High"},
	{"title": "Update signing", "description": "Unsigned firmware", "risk_level": "Medium"}
]}`

func standardsContext() []*core.SearchResult {
	return []*core.SearchResult{
		{Filename: "iso-26262.txt", Section: &core.Section{Id: 11, Label: "7 Hazard analysis", Text: "Hazards shall be analyzed."}},
		{Filename: "ul-4600.txt", Section: &core.Section{Id: 42, Ordinal: 2, Text: "Safety case required."}},
	}
}

func TestNewGapAnalyzer(t *testing.T) {
	_, err := NewGapAnalyzer(nil, mock.NewMockCompleter())
	assert.ErrorIs(t, err, ErrSearcherRequired)

	_, err = NewGapAnalyzer(&stubRetriever{}, nil)
	assert.ErrorIs(t, err, ErrCompleterRequired)

	_, err = NewGapAnalyzer(&stubRetriever{}, mock.NewMockCompleter(), WithRetryPolicy(ai.RetryPolicy{}))
	assert.ErrorIs(t, err, ai.ErrInvalidMaxAttempts)
}

func TestAnalyze(t *testing.T) {
	retriever := &stubRetriever{results: standardsContext()}
	completer := mock.NewMockCompleter(twoGaps)
	analyzer, err := NewGapAnalyzer(retriever, completer, WithRetryPolicy(fastPolicy()))
	require.NoError(t, err)

	research := strings.Repeat("r", MaxResearchChars+500)
	result, err := analyzer.Analyze(context.Background(), Request{ResearchText: research, Domain: "Autonomous Vehicles"})
	require.NoError(t, err)

	assert.Equal(t, []string{"safety standards for Autonomous Vehicles"}, retriever.queries)
	assert.Equal(t, ContextK, retriever.opts[0].K)

	_, err = uuid.Parse(result.AnalysisId)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Attempts)
	require.Len(t, result.Gaps, 2)
	for _, gap := range result.Gaps {
		assert.Equal(t, result.AnalysisId, gap.AnalysisId)
		assert.Equal(t, "Autonomous Vehicles", gap.Domain)
		assert.Equal(t, []core.ID{11, 42}, gap.SectionIds)
		assert.Zero(t, gap.Id, "gaps are stored by the caller")
	}

	calls := completer.Calls()
	require.Len(t, calls, 1)
	prompt := calls[0].Prompt
	assert.Contains(t, prompt, "TECHNOLOGY DOMAIN: Autonomous Vehicles")
	assert.Contains(t, prompt, strings.Repeat("r", MaxResearchChars))
	assert.NotContains(t, prompt, strings.Repeat("r", MaxResearchChars+1))
	assert.Contains(t, prompt, "Standard: iso-26262.txt - 7 Hazard analysis")
	assert.Contains(t, prompt, "Standard: ul-4600.txt - Section 3")
}

func TestAnalyze_NoStandards(t *testing.T) {
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()
	searcher, err := search.NewSearcher(store, mock.NewMockEmbedder())
	require.NoError(t, err)

	completer := mock.NewMockCompleter(`{"gaps": []}`)
	analyzer, err := NewGapAnalyzer(searcher, completer)
	require.NoError(t, err)

	result, err := analyzer.Analyze(context.Background(), Request{ResearchText: "incident", Domain: "IoT Devices"})
	require.NoError(t, err)
	assert.Empty(t, result.Gaps)
	assert.Contains(t, completer.Calls()[0].Prompt, noStandardsFound)
}

func TestAnalyze_ContextTruncated(t *testing.T) {
	long := strings.Repeat("s", 5000)
	retriever := &stubRetriever{results: []*core.SearchResult{
		{Filename: "big.txt", Section: &core.Section{Id: 1, Text: long}},
	}}
	completer := mock.NewMockCompleter(`{"gaps": []}`)
	analyzer, err := NewGapAnalyzer(retriever, completer)
	require.NoError(t, err)

	_, err = analyzer.Analyze(context.Background(), Request{ResearchText: "x", Domain: "AI Systems"})
	require.NoError(t, err)
	prompt := completer.Calls()[0].Prompt
	assert.NotContains(t, prompt, strings.Repeat("s", MaxContextChars))
	assert.Contains(t, prompt, strings.Repeat("s", 100))
}

func TestAnalyze_InvalidRequest(t *testing.T) {
	analyzer, err := NewGapAnalyzer(&stubRetriever{}, mock.NewMockCompleter())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = analyzer.Analyze(ctx, Request{ResearchText: "  ", Domain: "AI Systems"})
	assert.ErrorIs(t, err, ErrEmptyResearch)

	_, err = analyzer.Analyze(ctx, Request{ResearchText: "text", Domain: ""})
	assert.ErrorIs(t, err, ErrDomainRequired)
}

func TestAnalyze_MissingRiskLevelIsParseError(t *testing.T) {
	completer := mock.NewMockCompleter(`{"gaps": [{"title": "t", "description": "d"}]}`, twoGaps)
	analyzer, err := NewGapAnalyzer(&stubRetriever{}, completer, WithRetryPolicy(fastPolicy()))
	require.NoError(t, err)

	result, err := analyzer.Analyze(context.Background(), Request{ResearchText: "text", Domain: "AI Systems"})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrParse)
	assert.Equal(t, 1, completer.CallCount(), "parse errors are not retried")
}

func TestAnalyze_RetriesTransientFailures(t *testing.T) {
	calls := 0
	completer := &mock.MockCompleter{CompleteFunc: func(ctx context.Context, system, prompt string) (string, error) {
		calls++
		if calls < 3 {
			return "", fmt.Errorf("%w: 503", ai.ErrTransient)
		}
		return twoGaps, nil
	}}
	analyzer, err := NewGapAnalyzer(&stubRetriever{}, completer, WithRetryPolicy(fastPolicy()))
	require.NoError(t, err)

	result, err := analyzer.Analyze(context.Background(), Request{ResearchText: "text", Domain: "AI Systems"})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Attempts)
	assert.Len(t, result.Gaps, 2)
}

func TestAnalyze_RetrievalError(t *testing.T) {
	completer := mock.NewMockCompleter(twoGaps)
	analyzer, err := NewGapAnalyzer(&stubRetriever{err: assert.AnError}, completer)
	require.NoError(t, err)

	_, err = analyzer.Analyze(context.Background(), Request{ResearchText: "text", Domain: "AI Systems"})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Zero(t, completer.CallCount())
}

func TestAnalyze_ContextK(t *testing.T) {
	retriever := &stubRetriever{}
	analyzer, err := NewGapAnalyzer(retriever, mock.NewMockCompleter(`{"gaps": []}`),
		WithRetryPolicy(fastPolicy()), WithContextK(8))
	require.NoError(t, err)

	result, err := analyzer.Analyze(context.Background(), Request{ResearchText: "findings", Domain: "Other"})
	require.NoError(t, err)
	assert.Empty(t, result.Gaps)
	assert.Equal(t, 8, retriever.opts[0].K)
}
