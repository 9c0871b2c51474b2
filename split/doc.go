// Package split breaks plain text into ordered, labelled sections.
//
// Splitting is a pure function of the input text. Every Splitter in this
// package returns spans that are non-overlapping, in document order and
// cover the whole input, so concatenating Span.Text reconstructs the
// original text byte for byte.
//
// The default Chain prefers heading boundaries, then blank-line paragraph
// packing, then fixed-size rune windows.
package split
