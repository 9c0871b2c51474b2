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


// Package stdgap ties the store, the AI services and the processing
// components together behind a single Workspace.
//
// Every Workspace action runs to completion before the next one starts.
package stdgap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/poiesic/stdgap/ai"
	"github.com/poiesic/stdgap/ai/openai"
	"github.com/poiesic/stdgap/analysis"
	"github.com/poiesic/stdgap/core"
	"github.com/poiesic/stdgap/extract"
	"github.com/poiesic/stdgap/ingestion"
	"github.com/poiesic/stdgap/search"
	"github.com/poiesic/stdgap/split"
	"github.com/poiesic/stdgap/storage"
	"github.com/poiesic/stdgap/storage/badger"
	"github.com/poiesic/stdgap/storage/snapshot"
)

// ErrNotSaved indicates a generated result that could not be stored.
// The result stays in the pending list until RetryPending saves it.
var ErrNotSaved = errors.New("result generated but not saved")

type Workspace struct {
	mu               sync.Mutex
	store            storage.Store
	provider         ai.AIProvider
	pipeline         *ingestion.Pipeline
	searcher         *search.Searcher
	analyzer         *analysis.GapAnalyzer
	recommender      *analysis.RecommendationEngine
	networkThreshold float64
	pending          []*Pending
	logger           *slog.Logger
}

// Option configures a Workspace.
type Option func(*workspaceOptions)

type workspaceOptions struct {
	aiConfig         *ai.Config
	provider         ai.AIProvider
	store            storage.Store
	splitOptions     []split.Option
	batchOptions     []ingestion.BatchOption
	maxUploadBytes   int64
	contextK         int
	networkThreshold float64
	logger           *slog.Logger
}

// WithAIConfig sets the configuration for the OpenAI-compatible provider.
func WithAIConfig(cfg *ai.Config) Option {
	return func(o *workspaceOptions) {
		o.aiConfig = cfg
	}
}

// WithProvider uses an existing AI provider instead of creating one.
// The Workspace takes ownership and closes it.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *workspaceOptions) {
		o.provider = provider
	}
}

// WithStore uses an open store instead of opening one at the given path.
// The Workspace takes ownership and closes it.
func WithStore(store storage.Store) Option {
	return func(o *workspaceOptions) {
		o.store = store
	}
}

// WithSplitOptions configures the section splitter.
func WithSplitOptions(opts ...split.Option) Option {
	return func(o *workspaceOptions) {
		o.splitOptions = append(o.splitOptions, opts...)
	}
}

// WithBatchOptions configures embedding batches.
func WithBatchOptions(opts ...ingestion.BatchOption) Option {
	return func(o *workspaceOptions) {
		o.batchOptions = append(o.batchOptions, opts...)
	}
}

// WithMaxUploadBytes caps the size of uploaded files. 0 means no cap.
func WithMaxUploadBytes(n int64) Option {
	return func(o *workspaceOptions) {
		o.maxUploadBytes = n
	}
}

// WithContextK sets how many sections gap analysis retrieves as context.
func WithContextK(k int) Option {
	return func(o *workspaceOptions) {
		o.contextK = k
	}
}

// WithNetworkThreshold sets the similarity above which two documents are linked.
func WithNetworkThreshold(threshold float64) Option {
	return func(o *workspaceOptions) {
		o.networkThreshold = threshold
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *workspaceOptions) {
		o.logger = logger
	}
}

// Open opens the workspace stored in directory path.
func Open(path string, opts ...Option) (*Workspace, error) {
	// Apply options
	options := &workspaceOptions{
		maxUploadBytes:   extract.DefaultMaxBytes,
		contextK:         analysis.ContextK,
		networkThreshold: search.DefaultNetworkThreshold,
	}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger
	if logger == nil {
		logger = slog.Default().With("component", "workspace")
	}

	policy := ai.DefaultRetryPolicy()
	if options.aiConfig != nil {
		policy = options.aiConfig.RetryPolicy()
	}

	// Create AI provider with configured settings
	provider := options.provider
	if provider == nil {
		cfg := options.aiConfig
		if cfg == nil {
			cfg = ai.DefaultConfig()
		}
		var err error
		if provider, err = openai.NewProvider(cfg); err != nil {
			return nil, err
		}
	}

	store := options.store
	if store == nil {
		var err error
		if store, err = badger.NewStore(path); err != nil {
			provider.Close()
			return nil, err
		}
	}

	ws, err := newWorkspace(store, provider, policy, options, logger)
	if err != nil {
		provider.Close()
		store.Close()
		return nil, err
	}
	return ws, nil
}

func newWorkspace(store storage.Store, provider ai.AIProvider, policy ai.RetryPolicy, options *workspaceOptions, logger *slog.Logger) (*Workspace, error) {
	splitter, err := split.New(options.splitOptions...)
	if err != nil {
		return nil, err
	}
	batchOptions := append([]ingestion.BatchOption{ingestion.WithRetryPolicy(policy)}, options.batchOptions...)
	pipeline, err := ingestion.NewPipeline(store, provider.Embedder(),
		ingestion.WithSplitter(splitter),
		ingestion.WithExtractor(extract.New(extract.WithMaxBytes(options.maxUploadBytes), extract.WithLogger(logger))),
		ingestion.WithBatchOptions(batchOptions...),
		ingestion.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	searcher, err := search.NewSearcher(store, provider.Embedder(), search.WithRetryPolicy(policy), search.WithLogger(logger))
	if err != nil {
		pipeline.Release()
		return nil, err
	}
	analyzer, err := analysis.NewGapAnalyzer(searcher, provider.Completer(),
		analysis.WithContextK(options.contextK),
		analysis.WithRetryPolicy(policy),
		analysis.WithLogger(logger),
	)
	if err != nil {
		pipeline.Release()
		return nil, err
	}
	recommender, err := analysis.NewRecommendationEngine(provider.Completer(),
		analysis.WithRetryPolicy(policy),
		analysis.WithLogger(logger),
	)
	if err != nil {
		pipeline.Release()
		return nil, err
	}

	return &Workspace{
		store:            store,
		provider:         provider,
		pipeline:         pipeline,
		searcher:         searcher,
		analyzer:         analyzer,
		recommender:      recommender,
		networkThreshold: options.networkThreshold,
		logger:           logger,
	}, nil
}

func (w *Workspace) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pipeline.Release()

	// Close AI provider first
	if err := w.provider.Close(); err != nil {
		w.logger.Error("error closing AI provider", "err", err)
	}
	if n := len(w.pending); n > 0 {
		w.logger.Warn("discarding unsaved results", "pending", n)
	}
	if err := w.store.Close(); err != nil {
		w.logger.Error("error closing store", "err", err)
		return err
	}
	return nil
}

// Store returns the underlying store.
func (w *Workspace) Store() storage.Store {
	return w.store
}

// Upload extracts, splits, stores and embeds a document.
// See ingestion.Pipeline.Process for the partial-failure contract.
func (w *Workspace) Upload(ctx context.Context, upload ingestion.Upload) (*ingestion.Report, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pipeline.Process(ctx, upload)
}

// Documents lists stored documents ordered by ID.
func (w *Workspace) Documents(ctx context.Context) ([]*core.Document, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.store.ListDocuments(ctx)
}

// Document returns a document and its sections.
func (w *Workspace) Document(ctx context.Context, id core.ID) (*core.Document, []*core.Section, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	doc, err := w.store.GetDocument(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	sections, err := w.store.ListSections(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return doc, sections, nil
}

// Search ranks stored sections against query text.
func (w *Workspace) Search(ctx context.Context, query string, opts search.Options) ([]*core.SearchResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.searcher.Search(ctx, query, opts)
}

// Analyze runs gap analysis and stores the resulting gaps.
//
// When the gaps cannot be stored the result is still returned, together
// with an error wrapping ErrNotSaved, and the gaps are kept as pending.
func (w *Workspace) Analyze(ctx context.Context, req analysis.Request) (*analysis.Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	result, err := w.analyzer.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(result.Gaps) == 0 {
		return result, nil
	}

	stored, err := w.store.AddGaps(ctx, result.Gaps...)
	if err != nil {
		w.keepPending(&Pending{Kind: PendingGaps, Gaps: result.Gaps}, err)
		return result, fmt.Errorf("%w: %d gaps: %w", ErrNotSaved, len(result.Gaps), err)
	}
	result.Gaps = stored
	return result, nil
}

// Gaps lists stored gaps, newest first.
func (w *Workspace) Gaps(ctx context.Context) ([]*core.Gap, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.store.ListGaps(ctx)
}

// Gap returns a gap with its recommendations.
func (w *Workspace) Gap(ctx context.Context, id core.ID) (*core.Gap, []*core.Recommendation, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	gap, err := w.store.GetGap(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	recs, err := w.store.ListRecommendations(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return gap, recs, nil
}

// Recommend generates and stores recommendations for a stored gap.
// Storage failures behave as in Analyze.
func (w *Workspace) Recommend(ctx context.Context, gapID core.ID) ([]*core.Recommendation, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	gap, err := w.store.GetGap(ctx, gapID)
	if err != nil {
		return nil, err
	}
	recs, err := w.recommender.Recommend(ctx, gap)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return recs, nil
	}

	stored, err := w.store.AddRecommendations(ctx, recs...)
	if err != nil {
		w.keepPending(&Pending{Kind: PendingRecommendations, Recommendations: recs}, err)
		return recs, fmt.Errorf("%w: %d recommendations: %w", ErrNotSaved, len(recs), err)
	}
	return stored, nil
}

// ClearGaps deletes every gap and recommendation.
// Pending results are dropped as well.
func (w *Workspace) ClearGaps(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.store.ClearAnalyses(ctx); err != nil {
		return err
	}
	w.pending = nil
	return nil
}

// Network builds the document similarity graph.
func (w *Workspace) Network(ctx context.Context) (*core.Network, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return search.BuildNetwork(ctx, w.store, w.networkThreshold)
}

// Backfill embeds sections left without vectors. docID 0 means all documents.
func (w *Workspace) Backfill(ctx context.Context, docID core.ID, progress ingestion.Progress) (*ingestion.BackfillReport, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pipeline.Backfill(ctx, docID, progress)
}

// Export writes a snapshot of the whole store to path.
func (w *Workspace) Export(ctx context.Context, path string) (snapshot.Stats, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return snapshot.Export(ctx, w.store, path)
}

// Import loads a snapshot into the store, which must be empty.
func (w *Workspace) Import(ctx context.Context, path string) (snapshot.Stats, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return snapshot.Import(ctx, w.store, path)
}
