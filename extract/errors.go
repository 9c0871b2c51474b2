package extract

import "errors"

var (
	// ErrUnsupportedFormat indicates a file type with no extractor.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrUnreadable indicates the file could not be parsed as its declared format.
	ErrUnreadable = errors.New("unreadable document")

	// ErrEmptyText indicates the file parsed but held no text.
	ErrEmptyText = errors.New("document contains no text")

	// ErrTooLarge indicates the file exceeds the configured size limit.
	ErrTooLarge = errors.New("document exceeds size limit")
)
