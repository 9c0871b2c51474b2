package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/stdgap/ai"
	"github.com/poiesic/stdgap/core"
)

// DefaultBatchSize is the number of texts sent per embedding call.
const DefaultBatchSize = 16

// BatchResult is the outcome of embedding one batch.
type BatchResult struct {
	// Index is the batch's position in the run.
	Index int
	// Offset is the position of the batch's first text in the input.
	Offset int
	Texts  []string
	// Vectors holds one vector per text, in order, when Err is nil.
	Vectors  [][]float32
	Attempts int
	Err      error
}

// BatchEmbedder embeds texts in fixed-size batches with bounded retries.
// Batches run on an ants pool; with the default pool size of one they run
// sequentially in input order.
type BatchEmbedder struct {
	embedder  ai.Embedder
	batchSize int
	poolSize  int
	policy    ai.RetryPolicy
	pool      *ants.Pool
	logger    *slog.Logger
}

// BatchOption configures a BatchEmbedder.
type BatchOption func(*BatchEmbedder) error

// WithBatchSize sets the number of texts per embedding call.
func WithBatchSize(n int) BatchOption {
	return func(b *BatchEmbedder) error {
		if n < 1 {
			return ErrInvalidBatchSize
		}
		b.batchSize = n
		return nil
	}
}

// WithPoolSize sets how many batches may be in flight at once.
// Values below 1 are treated as 1.
func WithPoolSize(n int) BatchOption {
	return func(b *BatchEmbedder) error {
		b.poolSize = max(n, 1)
		return nil
	}
}

// WithRetryPolicy sets the retry policy applied to each batch.
func WithRetryPolicy(policy ai.RetryPolicy) BatchOption {
	return func(b *BatchEmbedder) error {
		if policy.MaxAttempts <= 0 {
			return ai.ErrInvalidMaxAttempts
		}
		b.policy = policy
		return nil
	}
}

// WithBatchLogger sets a custom logger.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchEmbedder) error {
		if logger != nil {
			b.logger = logger
		}
		return nil
	}
}

// NewBatchEmbedder creates a batch embedder. Call Release when done.
func NewBatchEmbedder(embedder ai.Embedder, opts ...BatchOption) (*BatchEmbedder, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	b := &BatchEmbedder{
		embedder:  embedder,
		batchSize: DefaultBatchSize,
		poolSize:  1,
		policy:    ai.DefaultRetryPolicy(),
		logger:    slog.Default().With("component", "batch-embedder"),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(b.poolSize)
	if err != nil {
		return nil, err
	}
	b.pool = pool
	return b, nil
}

// Release releases the worker pool.
// The embedder should not be used after calling Release.
func (b *BatchEmbedder) Release() {
	if b.pool != nil {
		b.pool.Release()
	}
}

// Embed embeds texts batch by batch. onBatch, if not nil, is called once per
// successful batch as soon as it completes, never concurrently; an error from
// it fails that batch. Embed waits for every batch and returns all results
// in input order, plus a *BatchError if any batch failed.
func (b *BatchEmbedder) Embed(ctx context.Context, texts []string, onBatch func(BatchResult) error) ([]BatchResult, error) {
	results := make([]BatchResult, 0, (len(texts)+b.batchSize-1)/b.batchSize)
	for offset := 0; offset < len(texts); offset += b.batchSize {
		end := min(offset+b.batchSize, len(texts))
		results = append(results, BatchResult{
			Index:  len(results),
			Offset: offset,
			Texts:  texts[offset:end],
		})
	}

	var (
		wg      sync.WaitGroup
		persist sync.Mutex
	)
	for i := range results {
		result := &results[i]
		run := func() {
			defer wg.Done()
			b.embedBatch(ctx, result)
			if result.Err != nil || onBatch == nil {
				return
			}
			persist.Lock()
			defer persist.Unlock()
			if err := onBatch(*result); err != nil {
				result.Err = err
			}
		}

		wg.Add(1)
		if err := b.pool.Submit(run); err != nil {
			wg.Done()
			result.Err = fmt.Errorf("submit batch %d: %w", i, err)
		}
	}
	wg.Wait()

	var failed []BatchResult
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	if len(failed) > 0 {
		b.logger.Warn("embedding batches failed", "failed", len(failed), "batches", len(results))
		return results, &BatchError{Failed: failed, Batches: len(results)}
	}
	return results, nil
}

func (b *BatchEmbedder) embedBatch(ctx context.Context, result *BatchResult) {
	attempts, err := ai.Retry(ctx, b.policy, func(ctx context.Context) error {
		vectors, err := b.embedder.EmbedTexts(ctx, result.Texts)
		if err != nil {
			return err
		}
		if err := checkVectors(result.Texts, vectors); err != nil {
			return err
		}
		result.Vectors = vectors
		return nil
	})
	result.Attempts = attempts
	if err != nil {
		result.Vectors = nil
		result.Err = err
		b.logger.Error("embedding batch failed", "batch", result.Index, "size", len(result.Texts), "attempts", attempts, "err", err)
		return
	}
	b.logger.Debug("embedding batch complete", "batch", result.Index, "size", len(result.Texts), "attempts", attempts)
}

// checkVectors rejects responses that cannot be matched to their inputs.
func checkVectors(texts []string, vectors [][]float32) error {
	if len(vectors) != len(texts) {
		return fmt.Errorf("%w: embedding count mismatch: sent %d texts, got %d vectors", ai.ErrPermanent, len(texts), len(vectors))
	}
	for i, v := range vectors {
		if len(v) == 0 || len(v) != len(vectors[0]) {
			return fmt.Errorf("%w: %w: vector %d has %d dimensions, first has %d",
				ai.ErrPermanent, core.ErrDimensionMismatch, i, len(v), len(vectors[0]))
		}
	}
	return nil
}
