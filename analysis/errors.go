package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrParse indicates a model response that does not have the expected structure.
	// Parse failures are never retried.
	ErrParse = errors.New("unparseable model response")

	// ErrEmptyResearch is returned when the research text is blank.
	ErrEmptyResearch = errors.New("research text cannot be empty")

	// ErrDomainRequired is returned when no technology domain is given.
	ErrDomainRequired = errors.New("domain required")

	// ErrCompleterRequired is returned when a completer is not provided.
	ErrCompleterRequired = errors.New("completer required")

	// ErrSearcherRequired is returned when a searcher is not provided.
	ErrSearcherRequired = errors.New("searcher required")
)

// ParseError describes where a model response broke the expected structure.
type ParseError struct {
	// Path locates the offending value, e.g. "gaps[1].risk_level".
	Path string
	// Reason says what was wrong with it.
	Reason string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", ErrParse, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrParse, e.Path, e.Reason)
}

// Unwrap makes errors.Is(err, ErrParse) hold for every ParseError.
func (e *ParseError) Unwrap() error {
	return ErrParse
}

func parseErrorf(path, format string, args ...any) error {
	return &ParseError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
