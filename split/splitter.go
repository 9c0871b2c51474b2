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


package split

import (
	"fmt"
	"unicode/utf8"
)

const (
	// DefaultWindowSize is the window length in runes for fallback splitting.
	DefaultWindowSize = 2000

	// DefaultMaxSectionChars caps heading sections; larger ones are windowed.
	DefaultMaxSectionChars = 8000

	maxLabelRunes = 200
)

// Span is one section of the input text.
type Span struct {
	Ordinal int
	Label   string
	Start   int // byte offset, inclusive
	End     int // byte offset, exclusive
	Text    string
}

// Splitter turns text into an ordered cover of spans.
// Empty input yields no spans.
type Splitter interface {
	Split(text string) []Span
}

// Func adapts a plain function to the Splitter interface.
type Func func(text string) []Span

// Split calls f(text).
func (f Func) Split(text string) []Span {
	return f(text)
}

// Options configures the default splitter.
type Options struct {
	// WindowSize is the fixed window length in runes.
	WindowSize int

	// MaxSectionChars is the largest heading section, in runes, kept whole.
	MaxSectionChars int
}

// Option is a functional option for Options.
type Option func(*Options)

// WithWindowSize sets the fallback window length in runes.
func WithWindowSize(n int) Option {
	return func(o *Options) {
		o.WindowSize = n
	}
}

// WithMaxSectionChars sets the largest heading section kept whole.
func WithMaxSectionChars(n int) Option {
	return func(o *Options) {
		o.MaxSectionChars = n
	}
}

// DefaultOptions returns the default splitter options.
func DefaultOptions() Options {
	return Options{
		WindowSize:      DefaultWindowSize,
		MaxSectionChars: DefaultMaxSectionChars,
	}
}

// Validate checks option bounds.
func (o Options) Validate() error {
	if o.WindowSize < 1 {
		return fmt.Errorf("split: window size must be positive, got %d", o.WindowSize)
	}
	if o.MaxSectionChars < o.WindowSize {
		return fmt.Errorf("split: max section chars (%d) must be at least the window size (%d)", o.MaxSectionChars, o.WindowSize)
	}
	return nil
}

// Chain tries heading boundaries first, then paragraph packing, then windows.
type Chain struct {
	opts Options
}

var _ Splitter = (*Chain)(nil)

// New returns the default Chain splitter.
func New(opts ...Option) (*Chain, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return &Chain{opts: o}, nil
}

// Split implements Splitter.
func (c *Chain) Split(text string) []Span {
	if text == "" {
		return nil
	}

	segs := headingSegments(text)
	if segs != nil {
		segs = capSegments(text, segs, c.opts.MaxSectionChars, c.opts.WindowSize)
	} else if segs = paragraphSegments(text, c.opts.WindowSize); segs == nil {
		segs = windowSegments(text, 0, len(text), c.opts.WindowSize)
	}
	return toSpans(text, segs)
}

// Headings splits on heading lines only; text without headings becomes one span.
func Headings(text string) []Span {
	if text == "" {
		return nil
	}
	segs := headingSegments(text)
	if segs == nil {
		segs = []segment{{start: 0, end: len(text)}}
	}
	return toSpans(text, segs)
}

// Windows splits text into fixed windows of size runes.
func Windows(size int) Splitter {
	if size < 1 {
		size = DefaultWindowSize
	}
	return Func(func(text string) []Span {
		if text == "" {
			return nil
		}
		return toSpans(text, windowSegments(text, 0, len(text), size))
	})
}

// segment is a half-open byte range with an optional label.
type segment struct {
	start, end int
	label      string
}

func toSpans(text string, segs []segment) []Span {
	spans := make([]Span, 0, len(segs))
	for _, s := range segs {
		if s.end <= s.start {
			continue
		}
		spans = append(spans, Span{
			Ordinal: len(spans),
			Label:   s.label,
			Start:   s.start,
			End:     s.end,
			Text:    text[s.start:s.end],
		})
	}
	return spans
}

// capSegments windows any segment longer than max runes.
func capSegments(text string, segs []segment, max, window int) []segment {
	out := make([]segment, 0, len(segs))
	for _, s := range segs {
		if utf8.RuneCountInString(text[s.start:s.end]) <= max {
			out = append(out, s)
			continue
		}
		parts := windowSegments(text, s.start, s.end, window)
		for i := range parts {
			if s.label != "" {
				parts[i].label = fmt.Sprintf("%s (part %d)", s.label, i+1)
			}
		}
		out = append(out, parts...)
	}
	return out
}

func truncateLabel(s string) string {
	if utf8.RuneCountInString(s) <= maxLabelRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxLabelRunes])
}
