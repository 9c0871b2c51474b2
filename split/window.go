package split

import (
	"regexp"
	"unicode"
	"unicode/utf8"
)

var blankRun = regexp.MustCompile(`\n[ \t\r]*\n(?:[ \t\r]*\n)*`)

// windowSegments cuts text[from:to] into windows of at most size runes.
// A window ends after the last whitespace in its second half when there is
// one, otherwise at the rune limit.
func windowSegments(text string, from, to, size int) []segment {
	var segs []segment
	for start := from; start < to; {
		end := advanceRunes(text, start, to, size)
		if end < to {
			if cut := lastBreak(text, start, end); cut > start {
				end = cut
			}
		}
		segs = append(segs, segment{start: start, end: end})
		start = end
	}
	return segs
}

// paragraphSegments packs blank-line separated paragraphs into segments of
// at most window runes. It returns nil when text has no paragraph breaks.
func paragraphSegments(text string, window int) []segment {
	var bounds []int
	for _, loc := range blankRun.FindAllStringIndex(text, -1) {
		if loc[1] < len(text) {
			bounds = append(bounds, loc[1])
		}
	}
	if len(bounds) == 0 {
		return nil
	}
	bounds = append(bounds, len(text))

	var segs []segment
	curStart, curEnd, curRunes := 0, 0, 0
	flush := func() {
		if curEnd > curStart {
			segs = append(segs, segment{start: curStart, end: curEnd})
		}
		curStart = curEnd
		curRunes = 0
	}

	prev := 0
	for _, b := range bounds {
		n := utf8.RuneCountInString(text[prev:b])
		switch {
		case n > window:
			flush()
			segs = append(segs, windowSegments(text, prev, b, window)...)
			curStart, curEnd = b, b
		case curRunes+n > window:
			flush()
			curEnd = b
			curRunes = n
		default:
			curEnd = b
			curRunes += n
		}
		prev = b
	}
	flush()
	return segs
}

// advanceRunes moves pos forward by up to n runes without passing limit.
func advanceRunes(text string, pos, limit, n int) int {
	for i := 0; i < n && pos < limit; i++ {
		_, w := utf8.DecodeRuneInString(text[pos:limit])
		pos += w
	}
	return pos
}

// lastBreak returns the offset just past the last whitespace rune in the
// second half of text[start:end], or -1.
func lastBreak(text string, start, end int) int {
	mid := start + (end-start)/2
	for i := end; i > mid; {
		r, w := utf8.DecodeLastRuneInString(text[start:i])
		if unicode.IsSpace(r) {
			return i
		}
		i -= w
	}
	return -1
}
