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


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/stdgap/ai"
	"github.com/poiesic/stdgap/core"
	"github.com/poiesic/stdgap/extract"
	"github.com/poiesic/stdgap/split"
	"github.com/poiesic/stdgap/storage"
)

// MaxEmbedChars bounds the section text sent for embedding, in characters.
const MaxEmbedChars = 8000

// Store is the slice of storage the pipeline writes to.
type Store interface {
	storage.DocumentRepository
	storage.SectionRepository
}

// Pipeline orchestrates upload processing: extract, split, store, embed.
type Pipeline struct {
	store     Store
	extractor *extract.Extractor
	splitter  split.Splitter
	batcher   *BatchEmbedder
	batchOpts []BatchOption
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithSplitter replaces the default heading/paragraph/window splitter.
func WithSplitter(splitter split.Splitter) Option {
	return func(p *Pipeline) error {
		if splitter != nil {
			p.splitter = splitter
		}
		return nil
	}
}

// WithExtractor replaces the default text extractor.
func WithExtractor(extractor *extract.Extractor) Option {
	return func(p *Pipeline) error {
		if extractor != nil {
			p.extractor = extractor
		}
		return nil
	}
}

// WithBatchOptions configures the pipeline's BatchEmbedder.
func WithBatchOptions(opts ...BatchOption) Option {
	return func(p *Pipeline) error {
		p.batchOpts = append(p.batchOpts, opts...)
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline. Call Release when done.
func NewPipeline(store Store, embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	splitter, err := split.New()
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		store:     store,
		extractor: extract.New(),
		splitter:  splitter,
		logger:    slog.Default().With("component", "ingestion"),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	batchOpts := append([]BatchOption{WithBatchLogger(p.logger)}, p.batchOpts...)
	if p.batcher, err = NewBatchEmbedder(embedder, batchOpts...); err != nil {
		return nil, err
	}
	return p, nil
}

// Release releases resources including the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.batcher != nil {
		p.batcher.Release()
	}
}

// Upload is a file submitted for processing.
type Upload struct {
	Filename string
	// Format overrides detection from the filename extension when set.
	Format core.Format
	Data   []byte
}

// Report describes the outcome of processing one document.
type Report struct {
	Document *core.Document
	Sections []*core.Section
	Batches  []BatchResult
	// Embedded counts sections that received a vector in this run.
	Embedded int
	// Skipped counts blank sections that were never sent for embedding.
	Skipped int
}

// Process extracts, splits, stores and embeds an uploaded file.
//
// Extraction failures and duplicates are reported before anything is
// stored. Once the document is stored, embedding failures do not remove it:
// the document is marked partial and the returned error is a *BatchError
// alongside a non-nil Report.
func (p *Pipeline) Process(ctx context.Context, upload Upload) (*Report, error) {
	format := upload.Format
	if format == "" {
		var err error
		if format, err = extract.DetectFormat(upload.Filename); err != nil {
			return nil, err
		}
	}
	extracted, err := p.extractor.ExtractFormat(format, upload.Data)
	if err != nil {
		return nil, err
	}

	checksum := core.Checksum(upload.Data)
	if existing, err := p.store.FindDocumentByChecksum(ctx, checksum); err == nil {
		return nil, fmt.Errorf("%w: same content as %q (document %d)", storage.ErrDuplicateDocument, existing.Filename, existing.Id)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	spans := p.splitter.Split(extracted.Text)
	sections := make([]*core.Section, len(spans))
	for i, span := range spans {
		sections[i] = &core.Section{
			Ordinal:   span.Ordinal,
			Label:     span.Label,
			Start:     span.Start,
			End:       span.End,
			Text:      span.Text,
			WordCount: core.WordCount(span.Text),
		}
	}

	doc, err := p.store.AddDocument(ctx, &core.Document{
		Filename: upload.Filename,
		Format:   extracted.Format,
		Size:     int64(len(upload.Data)),
		Checksum: checksum,
		Text:     extracted.Text,
		Status:   core.StatusPending,
	}, sections)
	if err != nil {
		return nil, err
	}
	p.logger.Info("document stored", "id", doc.Id, "filename", doc.Filename, "sections", len(sections))

	report := &Report{Document: doc, Sections: sections}
	embedErr := p.embedSections(ctx, sections, report, noopProgress{})
	if err := p.finishDocument(ctx, doc); err != nil {
		return report, errors.Join(embedErr, err)
	}
	return report, embedErr
}

// embedSections embeds the non-blank sections and stores each batch's
// vectors as soon as the batch completes.
func (p *Pipeline) embedSections(ctx context.Context, sections []*core.Section, report *Report, progress Progress) error {
	pending := make([]*core.Section, 0, len(sections))
	texts := make([]string, 0, len(sections))
	for _, section := range sections {
		if section.Blank() {
			report.Skipped++
			continue
		}
		if section.Embedded() {
			continue
		}
		pending = append(pending, section)
		texts = append(texts, embeddingInput(section.Text))
	}
	if len(pending) == 0 {
		return nil
	}

	results, err := p.batcher.Embed(ctx, texts, func(batch BatchResult) error {
		vectors := make(map[core.ID][]float32, len(batch.Vectors))
		for i, v := range batch.Vectors {
			vectors[pending[batch.Offset+i].Id] = v
		}
		if err := p.store.SetVectors(ctx, vectors); err != nil {
			return err
		}
		for i, v := range batch.Vectors {
			pending[batch.Offset+i].Vector = v
		}
		report.Embedded += len(batch.Vectors)
		progress.Increment(len(batch.Vectors))
		return nil
	})
	report.Batches = append(report.Batches, results...)
	return err
}

// finishDocument sets the document's status from what is stored.
func (p *Pipeline) finishDocument(ctx context.Context, doc *core.Document) error {
	missing, err := p.store.ListUnembedded(ctx, doc.Id)
	if err != nil {
		return err
	}
	status := core.StatusEmbedded
	if len(missing) > 0 {
		status = core.StatusPartial
	}
	if err := p.store.SetDocumentStatus(ctx, doc.Id, status); err != nil {
		return err
	}
	doc.Status = status
	if status == core.StatusPartial {
		p.logger.Warn("document partially embedded", "id", doc.Id, "missing", len(missing))
	}
	return nil
}

// embeddingInput trims text and cuts it to MaxEmbedChars characters.
func embeddingInput(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= MaxEmbedChars {
		return text
	}
	return string(runes[:MaxEmbedChars])
}
