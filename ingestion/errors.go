package ingestion

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStoreRequired is returned when a store is not provided.
	ErrStoreRequired = errors.New("store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrInvalidBatchSize is returned when the batch size is less than 1.
	ErrInvalidBatchSize = errors.New("batch size must be at least 1")
)

// BatchError reports the embedding batches that failed during one run.
// Vectors from the other batches have already been stored.
type BatchError struct {
	// Failed lists the failed batches in input order.
	Failed []BatchResult
	// Batches is the total number of batches in the run.
	Batches int
}

func (e *BatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d embedding batches failed", len(e.Failed), e.Batches)
	for _, r := range e.Failed {
		fmt.Fprintf(&b, "; batch %d (%d sections, %d attempts): %v", r.Index, len(r.Texts), r.Attempts, r.Err)
	}
	return b.String()
}

// Unwrap exposes the per-batch causes to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, r := range e.Failed {
		errs = append(errs, r.Err)
	}
	return errs
}
