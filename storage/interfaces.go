package storage

import (
	"context"

	"github.com/poiesic/stdgap/core"
)

// DocumentRepository provides operations for managing uploaded documents.
// Implementations must be thread-safe.
type DocumentRepository interface {
	// AddDocument stores a document together with its sections.
	// Assigns IDs and CreatedAt, and links sections to the document.
	// Sections must have contiguous ordinals and reconstruct doc.Text.
	// Returns ErrDuplicateDocument if a document with the same checksum exists.
	AddDocument(ctx context.Context, doc *core.Document, sections []*core.Section) (*core.Document, error)

	// GetDocument retrieves a document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// FindDocumentByChecksum returns the document with the given content checksum.
	// Returns ErrNotFound if none exists.
	FindDocumentByChecksum(ctx context.Context, checksum string) (*core.Document, error)

	// ListDocuments returns all documents ordered by ID.
	ListDocuments(ctx context.Context) ([]*core.Document, error)

	// SetDocumentStatus updates the only mutable document field.
	SetDocumentStatus(ctx context.Context, id core.ID, status core.DocumentStatus) error
}

// SectionRepository provides operations for sections and their vectors.
type SectionRepository interface {
	// GetSection retrieves a section by ID.
	// Returns ErrNotFound if the section doesn't exist.
	GetSection(ctx context.Context, id core.ID) (*core.Section, error)

	// GetSections retrieves multiple sections by ID.
	// Returns only the sections that exist, in argument order.
	GetSections(ctx context.Context, ids ...core.ID) ([]*core.Section, error)

	// ListSections returns a document's sections ordered by ordinal.
	ListSections(ctx context.Context, docID core.ID) ([]*core.Section, error)

	// ListUnembedded returns non-blank sections without a vector.
	// docID 0 means every document.
	ListUnembedded(ctx context.Context, docID core.ID) ([]*core.Section, error)

	// ForEachEmbedded calls fn for every section that has a vector, ordered by
	// document ID then ordinal. docID 0 means every document.
	// Iteration stops at the first error fn returns.
	ForEachEmbedded(ctx context.Context, docID core.ID, fn func(*core.Section) error) error

	// SetVectors assigns vectors to sections that have none yet.
	// All vectors are written in one transaction or none are.
	// Returns ErrVectorAlreadySet, ErrNotFound or core.ErrDimensionMismatch.
	SetVectors(ctx context.Context, vectors map[core.ID][]float32) error

	// Dimension returns the corpus vector length, or 0 before the first vector.
	Dimension(ctx context.Context) (int, error)
}

// AnalysisRepository provides operations for gaps and recommendations.
type AnalysisRepository interface {
	// AddGaps stores gaps, assigning IDs and CreatedAt.
	AddGaps(ctx context.Context, gaps ...*core.Gap) ([]*core.Gap, error)

	// GetGap retrieves a gap by ID.
	// Returns ErrNotFound if the gap doesn't exist.
	GetGap(ctx context.Context, id core.ID) (*core.Gap, error)

	// ListGaps returns all gaps, newest first.
	ListGaps(ctx context.Context) ([]*core.Gap, error)

	// AddRecommendations stores recommendations, assigning IDs and CreatedAt.
	// Returns ErrNotFound if a referenced gap doesn't exist.
	AddRecommendations(ctx context.Context, recs ...*core.Recommendation) ([]*core.Recommendation, error)

	// ListRecommendations returns a gap's recommendations in creation order.
	ListRecommendations(ctx context.Context, gapID core.ID) ([]*core.Recommendation, error)

	// CountRecommendations returns the total number of stored recommendations.
	CountRecommendations(ctx context.Context) (int, error)

	// ClearAnalyses deletes every gap and recommendation.
	ClearAnalyses(ctx context.Context) error
}

// Store combines all repositories over one backend.
type Store interface {
	DocumentRepository
	SectionRepository
	AnalysisRepository

	// Export reads the whole store into a Dump.
	Export(ctx context.Context) (*Dump, error)

	// Import loads a Dump into an empty store, keeping its IDs.
	// Returns ErrStoreNotEmpty if the store holds any document or gap.
	Import(ctx context.Context, dump *Dump) error

	// Close closes the storage backend and releases resources.
	Close() error
}
