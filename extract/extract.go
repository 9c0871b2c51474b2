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


// Package extract converts uploaded files into plain text.
//
// Each supported container is handled by a format specific function. Only
// textual content is kept; layout and styling are discarded. Headings that
// the container marks structurally (DOCX heading styles, HTML h1-h6) are
// rendered as Markdown headings so the section splitter can find them.
package extract

import (
	"bytes"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/poiesic/stdgap/core"
)

// DefaultMaxBytes is the default upload size limit (50 MiB).
const DefaultMaxBytes = 50 << 20

// Result is the output of a successful extraction.
type Result struct {
	Format core.Format
	Text   string
}

// Extractor turns raw file bytes into normalised text.
type Extractor struct {
	maxBytes    int64
	mdConverter *converter.Converter
	logger      *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxBytes sets the largest accepted input. Values < 1 disable the limit.
func WithMaxBytes(n int64) Option {
	return func(e *Extractor) {
		e.maxBytes = n
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
	}
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		maxBytes: DefaultMaxBytes,
		mdConverter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "extractor")
	return e
}

// DetectFormat maps a filename extension to a document format.
func DetectFormat(filename string) (core.Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".text":
		return core.FormatText, nil
	case ".md", ".markdown":
		return core.FormatMarkdown, nil
	case ".pdf":
		return core.FormatPDF, nil
	case ".docx":
		return core.FormatDOCX, nil
	case ".html", ".htm":
		return core.FormatHTML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
}

// Extract detects the format from filename and extracts its text.
func (e *Extractor) Extract(filename string, data []byte) (*Result, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}
	return e.ExtractFormat(format, data)
}

// ExtractFormat extracts text from data declared as format.
func (e *Extractor) ExtractFormat(format core.Format, data []byte) (*Result, error) {
	if e.maxBytes > 0 && int64(len(data)) > e.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, len(data), e.maxBytes)
	}

	var (
		text string
		err  error
	)
	switch format {
	case core.FormatText, core.FormatMarkdown:
		text = decodeText(data)
	case core.FormatPDF:
		text, err = extractPDF(data)
	case core.FormatDOCX:
		text, err = extractDocx(data)
	case core.FormatHTML:
		text, err = e.extractHTML(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		e.logger.Warn("extraction failed", "format", format, "err", err)
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreadable, format, err)
	}

	text = normalize(text)
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	e.logger.Debug("extracted text", "format", format, "bytes", len(data), "chars", len(text))
	return &Result{Format: format, Text: text}, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText treats data as UTF-8, replacing invalid sequences.
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "�")
}

// normalize converts line endings to \n and drops NUL bytes.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.ReplaceAll(text, "\x00", "")
}
