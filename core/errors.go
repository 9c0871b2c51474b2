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

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidSection indicates a Section or section set failed validation.
	ErrInvalidSection = errors.New("invalid section")

	// ErrInvalidGap indicates a Gap failed validation.
	ErrInvalidGap = errors.New("invalid gap")

	// ErrInvalidRecommendation indicates a Recommendation failed validation.
	ErrInvalidRecommendation = errors.New("invalid recommendation")

	// ErrEmptyContent indicates a required text field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyFilename indicates the document Filename field is empty.
	ErrEmptyFilename = errors.New("filename cannot be empty")

	// ErrUnknownFormat indicates an unsupported document Format value.
	ErrUnknownFormat = errors.New("unknown document format")

	// ErrNonContiguousOrdinals indicates section ordinals are not 0..n-1 in order.
	ErrNonContiguousOrdinals = errors.New("section ordinals must be contiguous")

	// ErrSpanMismatch indicates sections do not reconstruct their document text.
	ErrSpanMismatch = errors.New("sections do not cover document text")

	// ErrInvalidRiskLevel indicates a risk level outside High/Medium/Low.
	ErrInvalidRiskLevel = errors.New("invalid risk level")

	// ErrInvalidDifficulty indicates a difficulty outside Easy/Moderate/Difficult.
	ErrInvalidDifficulty = errors.New("invalid implementation difficulty")

	// ErrDimensionMismatch indicates a vector whose length differs from the corpus dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
