package split

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxHeadingBytes = 100

var (
	atxHeading      = regexp.MustCompile(`^ {0,3}#{1,6}[ \t]+(.+?)[ \t#]*$`)
	numberedHeading = regexp.MustCompile(`^\d{1,3}(?:\.\d{1,3}){0,3}\.?[ \t]+\p{Lu}`)
	keywordHeading  = regexp.MustCompile(`^(?i:section|chapter|article|annex|appendix|part|clause)[ \t]+[0-9A-Z][0-9A-Za-z.\-]*(?:[ \t:.\-]|$)`)
)

// headingSegments splits text at heading lines. It returns nil when the
// text has no headings. A blank preamble is folded into the first section.
func headingSegments(text string) []segment {
	type heading struct {
		start int
		label string
	}

	var headings []heading
	for start := 0; start < len(text); {
		end := strings.IndexByte(text[start:], '\n')
		next := len(text)
		if end < 0 {
			end = len(text)
		} else {
			end += start
			next = end + 1
		}
		if label, ok := headingLabel(text[start:end]); ok {
			headings = append(headings, heading{start: start, label: label})
		}
		start = next
	}
	if len(headings) == 0 {
		return nil
	}

	segs := make([]segment, 0, len(headings)+1)
	if first := headings[0].start; first > 0 {
		if strings.TrimSpace(text[:first]) != "" {
			segs = append(segs, segment{start: 0, end: first})
		} else {
			headings[0].start = 0
		}
	}
	for i, h := range headings {
		end := len(text)
		if i+1 < len(headings) {
			end = headings[i+1].start
		}
		segs = append(segs, segment{start: h.start, end: end, label: h.label})
	}
	return segs
}

// headingLabel reports whether line is a heading and returns its label.
func headingLabel(line string) (string, bool) {
	line = strings.TrimRight(line, "\r")
	if m := atxHeading.FindStringSubmatch(line); m != nil {
		return truncateLabel(strings.TrimSpace(m[1])), true
	}

	// Indented lines are body text or code.
	if strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t") {
		return "", false
	}
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || len(trimmed) > maxHeadingBytes {
		return "", false
	}

	if !strings.HasSuffix(trimmed, ".") &&
		(numberedHeading.MatchString(trimmed) || keywordHeading.MatchString(trimmed)) {
		return truncateLabel(trimmed), true
	}
	if isCapsHeading(trimmed) {
		return truncateLabel(trimmed), true
	}
	return "", false
}

// isCapsHeading matches short lines with no lowercase letters, such as
// "GENERAL REQUIREMENTS".
func isCapsHeading(s string) bool {
	n := utf8.RuneCountInString(s)
	if n < 2 || n > 80 {
		return false
	}
	letters := 0
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			letters++
		}
	}
	return letters >= 4
}
