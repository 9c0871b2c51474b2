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


package core

import (
	"fmt"
)

// ValidFormat reports whether f is a supported document format.
func ValidFormat(f Format) bool {
	switch f {
	case FormatText, FormatMarkdown, FormatPDF, FormatDOCX, FormatHTML:
		return true
	}
	return false
}

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - Filename must not be empty
//   - Format must be one of the supported formats
//   - Text must not be empty
//
// NOT validated (assigned by the store):
//   - ID
//   - Status, SectionCount
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if doc.Filename == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyFilename)
	}
	if !ValidFormat(doc.Format) {
		return fmt.Errorf("%w: %w: %q", ErrInvalidDocument, ErrUnknownFormat, doc.Format)
	}
	if doc.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyContent)
	}
	return nil
}

// ValidateSections checks that sections form an ordered, gap-free cover of text.
//
// Validation rules:
//   - ordinals are 0..n-1 in slice order
//   - each section's Start equals the previous section's End, starting at 0
//   - the last End equals len(text)
//   - each section's Text equals text[Start:End]
//   - vectors, when present, share one dimension
func ValidateSections(text string, sections []*Section) error {
	if len(sections) == 0 {
		if text == "" {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrInvalidSection, ErrSpanMismatch)
	}

	offset := 0
	dim := 0
	for i, s := range sections {
		if s == nil {
			return fmt.Errorf("%w: section %d is nil", ErrInvalidSection, i)
		}
		if s.Ordinal != i {
			return fmt.Errorf("%w: %w: got %d at position %d", ErrInvalidSection, ErrNonContiguousOrdinals, s.Ordinal, i)
		}
		if s.Start != offset || s.End < s.Start || s.End > len(text) {
			return fmt.Errorf("%w: %w: section %d spans [%d,%d)", ErrInvalidSection, ErrSpanMismatch, i, s.Start, s.End)
		}
		if text[s.Start:s.End] != s.Text {
			return fmt.Errorf("%w: %w: section %d text differs from span", ErrInvalidSection, ErrSpanMismatch, i)
		}
		if len(s.Vector) > 0 {
			if dim == 0 {
				dim = len(s.Vector)
			} else if len(s.Vector) != dim {
				return fmt.Errorf("%w: %w: section %d has %d, expected %d", ErrInvalidSection, ErrDimensionMismatch, i, len(s.Vector), dim)
			}
		}
		offset = s.End
	}
	if offset != len(text) {
		return fmt.Errorf("%w: %w: sections end at %d of %d", ErrInvalidSection, ErrSpanMismatch, offset, len(text))
	}
	return nil
}

// ValidateGap validates a Gap according to domain rules.
//
// Validation rules:
//   - Title and Description must not be empty
//   - RiskLevel must be High, Medium or Low
//   - Domain must not be empty
func ValidateGap(gap *Gap) error {
	if gap == nil {
		return fmt.Errorf("%w: gap is nil", ErrInvalidGap)
	}
	if gap.Title == "" || gap.Description == "" {
		return fmt.Errorf("%w: %w", ErrInvalidGap, ErrEmptyContent)
	}
	if _, ok := ParseRiskLevel(string(gap.RiskLevel)); !ok || gap.RiskLevel == "" {
		return fmt.Errorf("%w: %w: %q", ErrInvalidGap, ErrInvalidRiskLevel, gap.RiskLevel)
	}
	if gap.Domain == "" {
		return fmt.Errorf("%w: domain: %w", ErrInvalidGap, ErrEmptyContent)
	}
	return nil
}

// ValidateRecommendation validates a Recommendation according to domain rules.
//
// Validation rules:
//   - GapId must be set
//   - ProposedText and Rationale must not be empty
//   - Difficulty must be Easy, Moderate or Difficult
func ValidateRecommendation(rec *Recommendation) error {
	if rec == nil {
		return fmt.Errorf("%w: recommendation is nil", ErrInvalidRecommendation)
	}
	if rec.GapId == 0 {
		return fmt.Errorf("%w: gap id is required", ErrInvalidRecommendation)
	}
	if rec.ProposedText == "" || rec.Rationale == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecommendation, ErrEmptyContent)
	}
	if _, ok := ParseDifficulty(string(rec.Difficulty)); !ok {
		return fmt.Errorf("%w: %w: %q", ErrInvalidRecommendation, ErrInvalidDifficulty, rec.Difficulty)
	}
	return nil
}
