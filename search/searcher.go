package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/stdgap/ai"
	"github.com/poiesic/stdgap/core"
	"github.com/poiesic/stdgap/storage"
)

// DefaultK is the number of results returned when Options.K is zero.
const DefaultK = 5

// Options narrows a search.
type Options struct {
	// K is the maximum number of results. 0 means DefaultK.
	K int

	// DocumentID restricts the search to one document. 0 searches all.
	DocumentID core.ID
}

func (o Options) k() int {
	if o.K == 0 {
		return DefaultK
	}
	return o.K
}

// Store is the slice of storage the searcher reads.
type Store interface {
	storage.DocumentRepository
	storage.SectionRepository
}

// Searcher provides semantic search over stored sections.
type Searcher struct {
	store    Store
	embedder ai.Embedder
	policy   ai.RetryPolicy
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithRetryPolicy sets the retry policy used when embedding query text.
func WithRetryPolicy(policy ai.RetryPolicy) Option {
	return func(s *Searcher) error {
		if policy.MaxAttempts <= 0 {
			return ai.ErrInvalidMaxAttempts
		}
		s.policy = policy
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(store Store, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		store:    store,
		embedder: embedder,
		policy:   ai.DefaultRetryPolicy(),
		logger:   slog.Default().With("component", "search"),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Search embeds query and returns the closest sections.
func (s *Searcher) Search(ctx context.Context, query string, opts Options) ([]*core.SearchResult, error) {
	return s.SearchWithMonitor(ctx, query, opts, nil)
}

// SearchWithMonitor is Search with progress callbacks.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, opts Options, monitor SearchMonitor) ([]*core.SearchResult, error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if opts.k() < 1 {
		return nil, ErrInvalidK
	}
	monitor.Start(query)

	var vector []float32
	attempts, err := ai.Retry(ctx, s.policy, func(ctx context.Context) error {
		var err error
		vector, err = s.embedder.EmbedText(ctx, query)
		return err
	})
	if err != nil {
		s.logger.Error("error generating embedding for query", "attempts", attempts, "err", err)
		return nil, err
	}
	monitor.AfterEmbedding(attempts, len(vector))

	return s.rank(ctx, vector, opts, monitor)
}

// SearchVector returns the sections closest to a caller-supplied vector.
func (s *Searcher) SearchVector(ctx context.Context, vector []float32, opts Options) ([]*core.SearchResult, error) {
	return s.rank(ctx, vector, opts, &noopMonitor{})
}

func (s *Searcher) rank(ctx context.Context, vector []float32, opts Options, monitor SearchMonitor) ([]*core.SearchResult, error) {
	k := opts.k()
	if k < 1 {
		return nil, ErrInvalidK
	}
	if opts.DocumentID != 0 {
		if _, err := s.store.GetDocument(ctx, opts.DocumentID); err != nil {
			return nil, err
		}
	}

	top := newTopK(k)
	scanned := 0
	err := s.store.ForEachEmbedded(ctx, opts.DocumentID, func(section *core.Section) error {
		scanned++
		return top.offer(vector, section)
	})
	if err != nil {
		s.logger.Error("error ranking sections", "err", err)
		return nil, err
	}
	monitor.AfterScan(scanned)

	results := top.results()
	filenames := make(map[core.ID]string)
	for _, result := range results {
		docID := result.Section.DocumentId
		name, ok := filenames[docID]
		if !ok {
			doc, err := s.store.GetDocument(ctx, docID)
			if err != nil {
				return nil, err
			}
			name = doc.Filename
			filenames[docID] = name
		}
		result.Filename = name
		result.Snippet = Snippet(result.Section.Text, SnippetLength)
	}

	s.logger.Debug("search complete", "scanned", scanned, "results", len(results))
	monitor.Finish(results)
	return results, nil
}
